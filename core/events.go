package core

import "fmt"

type RouteEvent int

// trace events

const (
	PlanComputed RouteEvent = iota
	PlanInstalled
	FailureRecorded
	DuplicateFailure
	KeepaliveIgnored
)

// warn events

const (
	Unreachable RouteEvent = iota + 1000
	NoLoopFreeAlternate
	UnknownFailurePort
	InstallFailed
)

func (e RouteEvent) String() string {
	switch e {
	case PlanComputed:
		return "PlanComputed"
	case PlanInstalled:
		return "PlanInstalled"
	case FailureRecorded:
		return "FailureRecorded"
	case DuplicateFailure:
		return "DuplicateFailure"
	case KeepaliveIgnored:
		return "KeepaliveIgnored"
	case Unreachable:
		return "Unreachable"
	case NoLoopFreeAlternate:
		return "NoLoopFreeAlternate"
	case UnknownFailurePort:
		return "UnknownFailurePort"
	case InstallFailed:
		return "InstallFailed"
	}
	return fmt.Sprintf("RouteEvent(%d)", int(e))
}

func (e RouteEvent) IsWarning() bool {
	return e >= 1000
}

// RouteLogger receives the recoverable events raised while computing and installing routes
type RouteLogger interface {
	Log(event RouteEvent, desc string, args ...any)
}

type discardLogger struct{}

func (discardLogger) Log(RouteEvent, string, ...any) {}
