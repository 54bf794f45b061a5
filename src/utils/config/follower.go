package config

import (
	"time"

	"github.com/spf13/viper"
)

type Follower struct {
	// Height used when there's no checkpoint in the database
	StartHeight uint64

	// Max number of blocks fetched in parallel
	MaxParallel int

	// Max time without a new finalized block before the stream is considered stalled
	MaxBehind time.Duration

	// Consecutive failures without progress before giving up
	MaxRetries int

	// Base of the backoff, delay is BackoffBase << min(retry, BackoffCap)
	BackoffBase time.Duration
	BackoffCap  int
}

func setFollowerDefaults() {
	viper.SetDefault("Follower.StartHeight", "0")
	viper.SetDefault("Follower.MaxParallel", "1")
	viper.SetDefault("Follower.MaxBehind", "240s")
	viper.SetDefault("Follower.MaxRetries", "6")
	viper.SetDefault("Follower.BackoffBase", "5s")
	viper.SetDefault("Follower.BackoffCap", "6")
}
