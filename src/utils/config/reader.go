package config

import (
	"time"

	"github.com/spf13/viper"
)

type Reader struct {
	// Page size limit of the events query
	MaxLimit int

	// Timeout of read queries
	QueryTimeout time.Duration
}

func setReaderDefaults() {
	viper.SetDefault("Reader.MaxLimit", "100")
	viper.SetDefault("Reader.QueryTimeout", "1s")
}
