package config

import (
	"time"

	"github.com/spf13/viper"
)

type Ledger struct {
	// JSON-RPC endpoint of the node
	Url string

	// Timeout of a single request to the node
	RequestTimeout time.Duration

	// How often the finalized head is polled
	PollInterval time.Duration

	// Number of notifications buffered by the finalized block stream
	StreamBufferSize int

	// Requests to the node per second, burst allows short spikes
	RequestsPerSecond float64
	RequestsBurst     int

	// Address of the soulbound token contract
	ContractAddress string

	// Hex encoded secp256k1 key of the sponsoring account
	OperatorKey string

	// Fees of the mint transaction
	GasLimit             uint64
	MaxFeePerGas         string
	MaxPriorityFeePerGas string
}

func setLedgerDefaults() {
	viper.SetDefault("Ledger.Url", "http://localhost:8545")
	viper.SetDefault("Ledger.RequestTimeout", "10s")
	viper.SetDefault("Ledger.PollInterval", "12s")
	viper.SetDefault("Ledger.StreamBufferSize", "64")
	viper.SetDefault("Ledger.RequestsPerSecond", "20")
	viper.SetDefault("Ledger.RequestsBurst", "10")
	viper.SetDefault("Ledger.ContractAddress", "")
	viper.SetDefault("Ledger.OperatorKey", "")
	viper.SetDefault("Ledger.GasLimit", "300000")
	viper.SetDefault("Ledger.MaxFeePerGas", "50000000000")
	viper.SetDefault("Ledger.MaxPriorityFeePerGas", "2000000000")
}
