package cmd

import (
	"fmt"

	"github.com/mysomeid/sponsor/src/utils/build_info"

	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		fmt.Println(build_info.Version)
		return
	},
}
