package cmd

const DefaultTopologyPath = "topology.yaml"
