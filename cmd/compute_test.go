package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/encodeous/reroute/core"
	"github.com/encodeous/reroute/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lineTopology = `
switches:
  - id: s1
  - id: s2
hosts:
  - id: h1
    prefix: 10.0.1.0/24
  - id: h2
    prefix: 10.0.2.0/24
links:
  - a: s1
    b: h1
  - a: s1
    b: s2
    weight: 2
  - a: s2
    b: h2
`

func TestParseFailures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topology.yaml")
	require.NoError(t, os.WriteFile(path, []byte(lineTopology), 0o600))
	topo, err := core.LoadTopology(path)
	require.NoError(t, err)

	failures, err := parseFailures(topo, []string{"s2:s1", "s1:s2"})
	require.NoError(t, err)
	assert.True(t, failures.Equal(state.NewFailureSet(state.MakeEdgeId("s1", "s2"))))

	_, err = parseFailures(topo, []string{"s1:h2"})
	assert.ErrorContains(t, err, "does not exist")

	_, err = parseFailures(topo, []string{"s1"})
	assert.Error(t, err)
}

func TestDescribeTopology(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topology.yaml")
	require.NoError(t, os.WriteFile(path, []byte(lineTopology), 0o600))
	topo, err := core.LoadTopology(path)
	require.NoError(t, err)

	// ports are assigned in neighbour name order
	assert.Equal(t, `h1 (host) index 0, 10.0.1.0/24 via s1
  port 1 -> s1, weight 1
h2 (host) index 1, 10.0.2.0/24 via s2
  port 1 -> s2, weight 1
s1 (switch)
  port 1 -> h1, weight 1
  port 2 -> s2, weight 2
s2 (switch)
  port 1 -> h2, weight 1
  port 2 -> s1, weight 2
`, describeTopology(topo))
}
