package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mysomeid/sponsor/src/utils/common"
	"github.com/mysomeid/sponsor/src/utils/config"
	"github.com/mysomeid/sponsor/src/utils/logger"

	"github.com/spf13/cobra"
)

var (
	RootCmd = &cobra.Command{
		Use:   "sponsor",
		Short: "Sponsors token mints and indexes token events from finalized blocks",

		// All child commands will use this
		PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
			// Setup a context that gets cancelled upon SIGINT
			ctx, cancel = context.WithCancel(context.Background())

			signalChannel = make(chan os.Signal, 1)
			signal.Notify(signalChannel, os.Interrupt, syscall.SIGTERM)
			go func() {
				select {
				case <-signalChannel:
					cancel()
				case <-ctx.Done():
				}
			}()

			// Load configuration
			conf, err = config.Load(cfgFile)
			if err != nil {
				return
			}
			ctx = common.SetConfig(ctx, conf)

			// Setup logging
			err = logger.Init(conf)
			if err != nil {
				return
			}
			return
		},

		// Run after all commands
		PersistentPostRunE: func(cmd *cobra.Command, args []string) (err error) {
			signal.Stop(signalChannel)
			cancel()
			logger.NewSublogger("root-cmd").Debug("Finished")
			return
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	// Configuration
	conf    *config.Config
	cfgFile string

	// Context setup
	ctx           context.Context
	cancel        context.CancelFunc
	signalChannel chan os.Signal
)

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "configuration file path")
}
