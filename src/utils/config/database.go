package config

import (
	"time"

	"github.com/spf13/viper"
)

type Database struct {
	Port     uint16
	Host     string
	User     string
	Password string
	Name     string
	SslMode  string

	// Negative value disables the ping after connecting
	PingTimeout time.Duration

	// TLS, inline PEM
	ClientKey  string
	ClientCert string
	CaCert     string

	// TLS, paths to PEM files
	ClientKeyPath  string
	ClientCertPath string
	CaCertPath     string

	// Empty credentials skip migrations
	MigrationUser     string
	MigrationPassword string

	// Connection pool
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

func setDatabaseDefaults() {
	viper.SetDefault("Database.Port", "5432")
	viper.SetDefault("Database.Host", "127.0.0.1")
	viper.SetDefault("Database.User", "postgres")
	viper.SetDefault("Database.Password", "postgres")
	viper.SetDefault("Database.Name", "sponsor")
	viper.SetDefault("Database.SslMode", "disable")
	viper.SetDefault("Database.PingTimeout", "15s")
	viper.SetDefault("Database.MigrationUser", "postgres")
	viper.SetDefault("Database.MigrationPassword", "postgres")
	viper.SetDefault("Database.MaxOpenConns", "16")
	viper.SetDefault("Database.MaxIdleConns", "4")
	viper.SetDefault("Database.ConnMaxIdleTime", "10m")
	viper.SetDefault("Database.ConnMaxLifetime", "1h")
}

func setReadOnlyDatabaseDefaults() {
	viper.SetDefault("ReadOnlyDatabase.Port", "5432")
	viper.SetDefault("ReadOnlyDatabase.Host", "127.0.0.1")
	viper.SetDefault("ReadOnlyDatabase.User", "postgres")
	viper.SetDefault("ReadOnlyDatabase.Password", "postgres")
	viper.SetDefault("ReadOnlyDatabase.Name", "sponsor")
	viper.SetDefault("ReadOnlyDatabase.SslMode", "disable")
	viper.SetDefault("ReadOnlyDatabase.PingTimeout", "15s")
	viper.SetDefault("ReadOnlyDatabase.MaxOpenConns", "16")
	viper.SetDefault("ReadOnlyDatabase.MaxIdleConns", "4")
	viper.SetDefault("ReadOnlyDatabase.ConnMaxIdleTime", "10m")
	viper.SetDefault("ReadOnlyDatabase.ConnMaxLifetime", "1h")
}
