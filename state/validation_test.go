package state

import (
	"math"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNameValidator_Valid(t *testing.T) {
	assert.NoError(t, NameValidator("1"))
	assert.NoError(t, NameValidator("ab_cd"))
	assert.NoError(t, NameValidator("abcd-a.com"))
}

func TestNameValidator_Invalid(t *testing.T) {
	assert.Error(t, NameValidator("1A"))
	assert.Error(t, NameValidator("node name"))
	assert.Error(t, NameValidator(""))
	assert.Error(t, NameValidator("\t"))
	assert.Error(t, NameValidator("abcd-a.com\\hi"))
	assert.Error(t, NameValidator(strings.Repeat("a", 200)))
}

func TestWeightValidator(t *testing.T) {
	assert.NoError(t, WeightValidator(0))
	assert.NoError(t, WeightValidator(2.5))
	assert.Error(t, WeightValidator(-1))
	assert.Error(t, WeightValidator(math.NaN()))
	assert.Error(t, WeightValidator(math.Inf(1)))
}

func validTopology() TopologyCfg {
	return TopologyCfg{
		Switches: []SwitchCfg{{Id: "s1"}, {Id: "s2"}},
		Hosts:    []HostCfg{{Id: "h1", Prefix: netip.MustParsePrefix("10.0.1.1/24")}},
		Links: []LinkCfg{
			{A: "s1", B: "s2", Weight: ptr(1.0), Ports: []uint16{2, 1}},
			{A: "s1", B: "h1", Weight: ptr(1.0), Ports: []uint16{1, 1}},
		},
	}
}

func TestTopologyConfigValidator(t *testing.T) {
	cfg := validTopology()
	assert.NoError(t, TopologyConfigValidator(&cfg))

	tests := []struct {
		name   string
		modify func(cfg *TopologyCfg)
		err    string
	}{
		{"no switches", func(cfg *TopologyCfg) { cfg.Switches = nil }, "no switches"},
		{"bad name", func(cfg *TopologyCfg) { cfg.Switches[0].Id = "S 1" }, "not a valid name"},
		{"duplicate node", func(cfg *TopologyCfg) { cfg.Hosts[0].Id = "s2" }, "duplicate node: s2"},
		{"invalid prefix", func(cfg *TopologyCfg) { cfg.Hosts[0].Prefix = netip.Prefix{} }, "invalid prefix"},
		{"unknown node", func(cfg *TopologyCfg) { cfg.Links[0].B = "s9" }, "node s9 not defined"},
		{"self loop", func(cfg *TopologyCfg) { cfg.Links[0].B = "s1" }, "self loop"},
		{"duplicate edge", func(cfg *TopologyCfg) {
			cfg.Links = append(cfg.Links, LinkCfg{A: "s2", B: "s1", Weight: ptr(1.0), Ports: []uint16{3, 3}})
		}, "duplicate edge found: s1, s2"},
		{"negative weight", func(cfg *TopologyCfg) { cfg.Links[0].Weight = ptr(-2.0) }, "negative"},
		{"missing weight", func(cfg *TopologyCfg) { cfg.Links[0].Weight = nil }, "no weight"},
		{"port out of range", func(cfg *TopologyCfg) { cfg.Links[0].Ports[0] = MaxPort + 1 }, "out of range"},
		{"port reuse", func(cfg *TopologyCfg) { cfg.Links[1].Ports[0] = 2 }, "port 2 on s1 is used by links to both s2 and h1"},
		{"host to host", func(cfg *TopologyCfg) {
			cfg.Hosts = append(cfg.Hosts, HostCfg{Id: "h2", Prefix: netip.MustParsePrefix("10.0.2.1/24")})
			cfg.Links = append(cfg.Links, LinkCfg{A: "h1", B: "h2", Weight: ptr(1.0), Ports: []uint16{2, 1}})
		}, "connects two hosts"},
		{"isolated host", func(cfg *TopologyCfg) { cfg.Links = cfg.Links[:1] }, "host h1 is not connected"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTopology()
			tc.modify(&cfg)
			assert.ErrorContains(t, TopologyConfigValidator(&cfg), tc.err)
		})
	}
}

func TestControllerConfigValidator(t *testing.T) {
	cfg := ControllerCfg{}
	cfg.SetDefaults()
	cfg.DebugAddr = "127.0.0.1:6060"
	assert.NoError(t, ControllerConfigValidator(&cfg))

	bad := cfg
	bad.NotificationDelay = -time.Second
	assert.Error(t, ControllerConfigValidator(&bad))

	bad = cfg
	bad.InstallRetryDelay = -time.Second
	assert.ErrorContains(t, ControllerConfigValidator(&bad), "install_retry_delay")

	bad = cfg
	bad.DebouncePolicy = "sometimes"
	assert.ErrorContains(t, ControllerConfigValidator(&bad), "debounce_policy")

	bad = cfg
	bad.Installer = "p4runtime"
	assert.ErrorContains(t, ControllerConfigValidator(&bad), "installer")

	bad = cfg
	bad.DebugAddr = "localhost"
	assert.ErrorContains(t, ControllerConfigValidator(&bad), "debug_addr")
}
