package config

import (
	"github.com/spf13/viper"
)

type Sender struct {
	// Capacity of the inbox, a full inbox makes mint requests fail fast
	InboxSize int

	// How many times a transaction is resubmitted before the sender gives up
	RetryBudget int

	// Pace of submissions to the node, 0 means unlimited
	MaxSubmissionsPerSecond int
}

func setSenderDefaults() {
	viper.SetDefault("Sender.InboxSize", "10")
	viper.SetDefault("Sender.RetryBudget", "3")
	viper.SetDefault("Sender.MaxSubmissionsPerSecond", "0")
}
