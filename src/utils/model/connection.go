package model

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/mysomeid/sponsor/src/utils/build_info"
	"github.com/mysomeid/sponsor/src/utils/config"
	l "github.com/mysomeid/sponsor/src/utils/logger"
	"github.com/mysomeid/sponsor/src/utils/model/sql_migrations"

	migrate "github.com/rubenv/sql-migrate"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Opens a fresh connection pool. Used by the writer to reconnect.
type Connector func(ctx context.Context) (*gorm.DB, error)

func dsn(dbConfig *config.Database, username, password, applicationName string) (out string, cleanup func(), err error) {
	cleanup = func() {}
	out = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s application_name=%s/sponsor/%s",
		dbConfig.Host,
		dbConfig.Port,
		username,
		password,
		dbConfig.Name,
		dbConfig.SslMode,
		applicationName,
		build_info.Version,
	)

	if dbConfig.CaCertPath != "" && dbConfig.ClientKeyPath != "" && dbConfig.ClientCertPath != "" {
		out += fmt.Sprintf(" sslcert=%s sslkey=%s sslrootcert=%s", dbConfig.ClientCertPath, dbConfig.ClientKeyPath, dbConfig.CaCertPath)
		return
	}

	if dbConfig.ClientKey == "" || dbConfig.ClientCert == "" || dbConfig.CaCert == "" {
		return
	}

	// Certificates passed in variables, postgres driver needs files
	var files []string
	cleanup = func() {
		for _, f := range files {
			os.Remove(f)
		}
	}

	write := func(pattern, content string) (name string, err error) {
		f, err := os.CreateTemp("", pattern)
		if err != nil {
			return
		}
		defer f.Close()
		files = append(files, f.Name())
		_, err = f.WriteString(content)
		return f.Name(), err
	}

	keyFile, err := write("key.pem", dbConfig.ClientKey)
	if err != nil {
		return
	}
	certFile, err := write("cert.pem", dbConfig.ClientCert)
	if err != nil {
		return
	}
	caFile, err := write("ca.pem", dbConfig.CaCert)
	if err != nil {
		return
	}

	out += fmt.Sprintf(" sslcert=%s sslkey=%s sslrootcert=%s", certFile, keyFile, caFile)
	return
}

func gormLogger() logger.Interface {
	return logger.New(l.NewSublogger("db"),
		logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  logger.Error,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

func Connect(ctx context.Context, dbConfig *config.Database, username, password, applicationName string) (self *gorm.DB, err error) {
	connString, cleanup, err := dsn(dbConfig, username, password, applicationName)
	defer cleanup()
	if err != nil {
		return
	}

	self, err = gorm.Open(postgres.Open(connString), &gorm.Config{Logger: gormLogger()})
	if err != nil {
		return
	}

	db, err := self.DB()
	if err != nil {
		return
	}

	db.SetMaxOpenConns(dbConfig.MaxOpenConns)
	db.SetMaxIdleConns(dbConfig.MaxIdleConns)
	db.SetConnMaxIdleTime(dbConfig.ConnMaxIdleTime)
	db.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)

	err = Ping(ctx, dbConfig.PingTimeout, self)
	if err != nil {
		db.Close()
		return nil, err
	}

	return
}

func NewConnector(config *config.Config, applicationName string) Connector {
	return func(ctx context.Context) (*gorm.DB, error) {
		return Connect(ctx, &config.Database, config.Database.User, config.Database.Password, applicationName)
	}
}

// Applies migrations and connects
func NewConnection(ctx context.Context, config *config.Config, applicationName string) (self *gorm.DB, err error) {
	err = Migrate(ctx, config)
	if err != nil {
		return
	}

	return NewConnector(config, applicationName)(ctx)
}

func NewReadOnlyConnection(ctx context.Context, config *config.Config, applicationName string) (self *gorm.DB, err error) {
	return Connect(ctx, &config.ReadOnlyDatabase, config.ReadOnlyDatabase.User, config.ReadOnlyDatabase.Password, applicationName)
}

// Schema is applied idempotently, already applied migrations are skipped
func Migrate(ctx context.Context, config *config.Config) (err error) {
	log := l.NewSublogger("db-migrate")

	if config.Database.MigrationUser == "" || config.Database.MigrationPassword == "" {
		log.Info("Migration user not set, skipping migrations")
		return
	}

	migrations := &migrate.HttpFileSystemMigrationSource{
		FileSystem: http.FS(sql_migrations.FS),
	}

	// Use special migration user
	self, err := Connect(ctx, &config.Database, config.Database.MigrationUser, config.Database.MigrationPassword, "migration")
	if err != nil {
		return
	}

	db, err := self.DB()
	if err != nil {
		return
	}
	defer db.Close()

	n, err := migrate.Exec(db, "postgres", migrations, migrate.Up)
	if err != nil {
		return
	}

	log.WithField("num", n).Info("Applied migrations")
	return
}

func Ping(ctx context.Context, timeout time.Duration, db *gorm.DB) (err error) {
	if timeout < 0 {
		// Ping disabled
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return
	}

	dbCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return sqlDB.PingContext(dbCtx)
}

// Closes the underlying pool, errors are only logged
func Close(db *gorm.DB) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	err = sqlDB.Close()
	if err != nil {
		l.NewSublogger("db").WithError(err).Warn("Failed to close connection")
	}
}
