package perf

import (
	"expvar"
	"net/http"

	"github.com/encodeous/metric"
)

var (
	DispatchLatency        = metric.NewHistogram("1m1s")
	RecomputeLatency       = metric.NewHistogram("1m1s")
	FailureNotifications   = metric.NewCounter("10s1s")
	DuplicateNotifications = metric.NewCounter("10s1s")
	Recomputations         = metric.NewCounter("1m1s")
	RegisterWrites         = metric.NewCounter("10s1s")
	SuppressedWrites       = metric.NewCounter("10s1s")
)

func init() {
	expvar.Publish("reroute:DispatchLatency (µs)", DispatchLatency)
	expvar.Publish("reroute:RecomputeLatency (µs)", RecomputeLatency)
	expvar.Publish("reroute:FailureNotifications/s", FailureNotifications)
	expvar.Publish("reroute:DuplicateNotifications/s", DuplicateNotifications)
	expvar.Publish("reroute:Recomputations", Recomputations)
	expvar.Publish("reroute:RegisterWrites/s", RegisterWrites)
	expvar.Publish("reroute:SuppressedWrites/s", SuppressedWrites)
}

// Handler serves every exposed metric
func Handler() http.Handler {
	return metric.Handler(metric.Exposed)
}
