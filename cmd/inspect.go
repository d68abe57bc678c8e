package cmd

import (
	"fmt"

	"github.com/encodeous/reroute/core"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:     "inspect",
	Aliases: []string{"i"},
	Short:   "Inspects the routes installed by a running controller",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			fmt.Println("Usage: reroute inspect <debug address>")
			return
		}
		doc, err := core.FetchPlan(args[0])
		if err != nil {
			fmt.Println("Error:", err.Error())
			return
		}
		out, err := yaml.Marshal(doc)
		if err != nil {
			fmt.Println("Error:", err.Error())
			return
		}
		fmt.Print(string(out))
	},
	GroupID: "ctl",
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
