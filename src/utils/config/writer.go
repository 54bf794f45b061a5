package config

import (
	"time"

	"github.com/spf13/viper"
)

type Writer struct {
	// Capacity of the database operation queue
	InboxSize int

	// Pause after a failed operation, before reconnecting
	RetryDelay time.Duration

	// Reconnection attempts, delay doubles after each one
	ReconnectMaxAttempts int
	ReconnectBaseDelay   time.Duration

	// Timeout of a single database operation
	OperationTimeout time.Duration

	// Failures of the same operation before the writer stops, even if reconnecting works
	MaxOperationAttempts int
}

func setWriterDefaults() {
	viper.SetDefault("Writer.InboxSize", "100")
	viper.SetDefault("Writer.RetryDelay", "5s")
	viper.SetDefault("Writer.ReconnectMaxAttempts", "5")
	viper.SetDefault("Writer.ReconnectBaseDelay", "500ms")
	viper.SetDefault("Writer.OperationTimeout", "30s")
	viper.SetDefault("Writer.MaxOperationAttempts", "10")
}
