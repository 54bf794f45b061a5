package config

import (
	"bytes"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/iancoleman/strcase"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const ENV_PREFIX = "SPONSOR_"

// Config stores global configuration
type Config struct {
	// Is development mode on
	IsDevelopment bool

	// REST API address. Serves the mint endpoint, read API and monitoring.
	RESTListenAddress string

	// Maximum time the service will be closing before stop is forced.
	StopTimeout time.Duration

	// Logging level
	LogLevel string

	Database         Database
	ReadOnlyDatabase Database
	Ledger           Ledger
	Follower         Follower
	Sender           Sender
	Writer           Writer
	Minter           Minter
	Reader           Reader
	Auditor          Auditor
	Redis            Redis
	Profiler         Profiler
}

func setDefaults() {
	viper.SetDefault("IsDevelopment", "false")
	viper.SetDefault("RESTListenAddress", "0.0.0.0:8080")
	viper.SetDefault("LogLevel", "INFO")
	viper.SetDefault("StopTimeout", "30s")

	setDatabaseDefaults()
	setReadOnlyDatabaseDefaults()
	setLedgerDefaults()
	setFollowerDefaults()
	setSenderDefaults()
	setWriterDefaults()
	setMinterDefaults()
	setReaderDefaults()
	setAuditorDefaults()
	setRedisDefaults()
	setProfilerDefaults()
}

func Default() (config *Config) {
	config, _ = Load("")
	return
}

// Visits every field and registers upper snake case ENV name for it
func BindEnv(path []string, val reflect.Value) {
	if val.Kind() != reflect.Struct {
		key := strings.Join(path, ".")
		env := ENV_PREFIX + strcase.ToScreamingSnake(strings.Join(path, "_"))
		err := viper.BindEnv(key, env)
		if err != nil {
			panic(err)
		}
		return
	}

	for i := 0; i < val.NumField(); i++ {
		newPath := make([]string, len(path))
		copy(newPath, path)
		newPath = append(newPath, val.Type().Field(i).Name)
		BindEnv(newPath, val.Field(i))
	}
}

func decoderConfig(c *mapstructure.DecoderConfig) {
	c.WeaklyTypedInput = true
	c.DecodeHook = mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// Load configuration from file and env
func Load(filename string) (config *Config, err error) {
	viper.SetConfigType("json")

	setDefaults()

	// Works with embedded structs
	BindEnv([]string{}, reflect.ValueOf(Config{}))

	// Empty filename means we use default values
	if filename != "" {
		var content []byte
		/* #nosec */
		content, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}

		err = viper.ReadConfig(bytes.NewBuffer(content))
		if err != nil {
			return nil, err
		}
	}

	config = new(Config)
	err = viper.Unmarshal(config, decoderConfig)
	if err != nil {
		return nil, err
	}

	return
}
