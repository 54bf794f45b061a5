package cmd

import (
	"github.com/mysomeid/sponsor/src/sponsor"
	"github.com/mysomeid/sponsor/src/utils/logger"

	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(relayCmd)
}

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Accept mint requests, submit them and follow finalized blocks",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		log := logger.NewSublogger("relay-cmd")

		controller, err := sponsor.NewController(ctx, conf)
		if err != nil {
			return
		}

		err = controller.Start()
		if err != nil {
			return
		}

		select {
		case <-ctx.Done():
			log.Info("Signal received, stopping")
			controller.Stop()
		case <-controller.CtxRunning.Done():
		}

		// Everything accepted gets stored before exiting
		<-controller.CtxRunning.Done()

		return controller.Err()
	},
}
