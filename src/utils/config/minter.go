package config

import (
	"time"

	"github.com/spf13/viper"
)

type Minter struct {
	// Max accepted mints per account in the last 24h
	MaxDailyMints int

	// How long the per account mint count is served from memory
	QuotaCacheTTL time.Duration

	// Max time a request waits for the pending record to be stored
	AckTimeout time.Duration
}

func setMinterDefaults() {
	viper.SetDefault("Minter.MaxDailyMints", "5")
	viper.SetDefault("Minter.QuotaCacheTTL", "30s")
	viper.SetDefault("Minter.AckTimeout", "30s")
}
