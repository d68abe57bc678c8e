package cmd

import (
	"github.com/encodeous/reroute/core"
	"github.com/spf13/cobra"
)

var controllerPath string

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the controller",
	Long: `This will install routes for the configured topology, then listen for link failure notifications from the
switches and reroute around failed links until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		logPath, _ := cmd.Flags().GetString("log")
		return core.Bootstrap(topologyPath, controllerPath, logPath, verbose)
	},
	GroupID: "ctl",
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&controllerPath, "controller-config", "c", "", "controller config, the defaults are used if empty")
	runCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	runCmd.Flags().StringP("log", "l", "", "also write logs to this file")
}
