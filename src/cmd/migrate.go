package cmd

import (
	"github.com/mysomeid/sponsor/src/utils/model"

	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		return model.Migrate(ctx, conf)
	},
}
