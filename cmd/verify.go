package cmd

import (
	"fmt"
	"strings"

	"github.com/encodeous/reroute/core"
	"github.com/encodeous/reroute/state"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Validates the topology",
	RunE: func(cmd *cobra.Command, args []string) error {
		topo, err := core.LoadTopology(topologyPath)
		if err != nil {
			return err
		}
		if controllerPath != "" {
			if _, err := core.ReadControllerConfig(controllerPath); err != nil {
				return err
			}
		}
		fmt.Printf("Topology is valid: %d switches, %d hosts\n", len(topo.Switches()), len(topo.Hosts()))
		fmt.Print(describeTopology(topo))
		return nil
	},
	GroupID: "cfg",
}

// describeTopology lists every node with its links, and the gateway and subnet of every host
func describeTopology(topo *state.Topology) string {
	sb := strings.Builder{}
	for _, node := range topo.Nodes() {
		kind, _ := topo.Kind(node)
		sb.WriteString(fmt.Sprintf("%s (%s)", node, kind))
		if kind == state.HostNode {
			gw, _ := topo.Gateway(node)
			prefix, _ := topo.HostPrefix(node)
			idx, _ := topo.HostIndex(node)
			sb.WriteString(fmt.Sprintf(" index %d, %s via %s", idx, prefix, gw))
		}
		sb.WriteString("\n")
		for _, adj := range topo.Adjacent(node) {
			sb.WriteString(fmt.Sprintf("  port %d -> %s, weight %g\n", adj.Port, adj.Neighbour, adj.Weight))
		}
	}
	return sb.String()
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVarP(&controllerPath, "controller-config", "c", "", "also validate this controller config")
}
