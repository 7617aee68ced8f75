package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soundprediction/notegraph/pkg/server/handlers"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "notegraph %s (commit %s, built %s, %s)\n",
			handlers.Version, handlers.GitCommit, handlers.BuildTime, handlers.GoVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
