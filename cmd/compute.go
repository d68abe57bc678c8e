package cmd

import (
	"fmt"

	"github.com/encodeous/reroute/core"
	"github.com/encodeous/reroute/state"
	"github.com/spf13/cobra"
)

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Prints the routes that would be installed for a set of failed links",
	RunE: func(cmd *cobra.Command, args []string) error {
		topo, err := core.LoadTopology(topologyPath)
		if err != nil {
			return err
		}
		failed, _ := cmd.Flags().GetStringSlice("fail")
		failures, err := parseFailures(topo, failed)
		if err != nil {
			return err
		}
		plan := core.ComputePlan(topo, failures, nil, printLogger{})
		fmt.Print(plan.String())
		return nil
	},
	GroupID: "cfg",
}

// printLogger writes route warnings next to the plan
type printLogger struct{}

func (printLogger) Log(event core.RouteEvent, desc string, args ...any) {
	if event.IsWarning() {
		fmt.Printf("warning: %s %s %v\n", event, desc, args)
	}
}

func parseFailures(topo *state.Topology, failed []string) (state.FailureSet, error) {
	edges := make([]state.EdgeId, 0, len(failed))
	for _, f := range failed {
		edge, err := state.ParseEdgeId(f)
		if err != nil {
			return state.FailureSet{}, err
		}
		if !topo.HasEdge(edge) {
			return state.FailureSet{}, fmt.Errorf("link %s does not exist", edge)
		}
		edges = append(edges, edge)
	}
	return state.NewFailureSet(edges...), nil
}

func init() {
	rootCmd.AddCommand(computeCmd)

	computeCmd.Flags().StringSliceP("fail", "f", nil, "failed links, written as <node>:<node>")
}
