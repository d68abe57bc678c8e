package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var topologyPath = DefaultTopologyPath

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reroute",
	Short: "Centralized fast-reroute controller",
	Long: `reroute computes shortest path next hops and loop-free alternates for a network of switches,
installs them into the forwarding registers of every switch, and recomputes them when links fail.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "ctl",
		Title: "Controller Commands",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "cfg",
		Title: "Topology Tools",
	})
	rootCmd.PersistentFlags().StringVarP(&topologyPath, "topology", "t", topologyPath, "network topology")
}
