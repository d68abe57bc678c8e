package state

import "time"

const (
	// EtherTypeHeartbeat is carried by keepalive and failure notification frames.
	EtherTypeHeartbeat = 0x1234
	// MaxPort is the largest port number representable in a heartbeat header.
	MaxPort = 1<<9 - 1
)

var (
	NotificationDelay = time.Second * 1
	InstallDedupTTL   = time.Second * 30
	InstallRetryDelay = time.Second * 5
	SlowDispatch      = time.Millisecond * 4
	SlowRecompute     = time.Millisecond * 250
	PlanBacklog       = 16
	MaxFrameSize      = 1514

	// DefaultWeight is the weight given to links declared through the graph syntax.
	DefaultWeight = 1.0
)
