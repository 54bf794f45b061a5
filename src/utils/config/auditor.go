package config

import (
	"time"

	"github.com/spf13/viper"
)

type Auditor struct {
	Enabled bool

	// Cron spec
	Schedule string

	// Pending transactions older than this are checked against the node
	MaxPendingAge time.Duration

	// Max transactions checked in one run
	BatchSize int
}

func setAuditorDefaults() {
	viper.SetDefault("Auditor.Enabled", "true")
	viper.SetDefault("Auditor.Schedule", "@every 10m")
	viper.SetDefault("Auditor.MaxPendingAge", "2h")
	viper.SetDefault("Auditor.BatchSize", "100")
}
