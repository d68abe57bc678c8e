package core

import (
	"errors"
	"expvar"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/encodeous/reroute/perf"
	"github.com/encodeous/reroute/state"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-yaml"
)

// RouteDoc is the serialized form of a NextHopAssignment
type RouteDoc struct {
	Host     state.NodeId `yaml:"host"`
	Index    int          `yaml:"index"`
	Primary  state.NodeId `yaml:"primary"`
	Backup   state.NodeId `yaml:"backup,omitempty"`
	Kind     string       `yaml:"kind"`
	Distance float64      `yaml:"distance"`
}

// PlanDoc is the serialized form of a RouteUpdatePlan, as served on /debug/plan
type PlanDoc struct {
	Generation uint64                      `yaml:"generation"`
	Failures   []string                    `yaml:"failures"`
	Routes     map[state.NodeId][]RouteDoc `yaml:"routes"`
}

func NewPlanDoc(p *RouteUpdatePlan) *PlanDoc {
	doc := &PlanDoc{
		Generation: p.Generation,
		Failures:   make([]string, 0, p.Failures.Len()),
		Routes:     make(map[state.NodeId][]RouteDoc, len(p.Routes)),
	}
	for _, e := range p.Failures.Edges() {
		doc.Failures = append(doc.Failures, e.String())
	}
	for _, sw := range p.Switches() {
		routes := make([]RouteDoc, 0, len(p.Routes[sw]))
		for _, a := range p.Routes[sw] {
			routes = append(routes, RouteDoc{
				Host:     a.Host,
				Index:    a.HostIndex,
				Primary:  a.Primary,
				Backup:   a.Backup,
				Kind:     a.BackupKind.String(),
				Distance: a.Distance,
			})
		}
		doc.Routes[sw] = routes
	}
	return doc
}

// DebugServer serves the controller state on DebugAddr
type DebugServer struct {
	server *http.Server
	ln     net.Listener
	done   chan struct{}
}

func (d *DebugServer) Init(s *state.State) error {
	if s.DebugAddr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", s.DebugAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on debug address: %w", err)
	}
	d.ln = ln
	d.server = &http.Server{
		Handler:           NewDebugRouter(Get[*Controller](s)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	d.done = make(chan struct{})
	s.Log.Info("serving debug endpoints", "addr", ln.Addr().String())
	go func() {
		defer close(d.done)
		err := d.server.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Log.Error("debug server failed", "error", err)
		}
	}()
	return nil
}

// Addr returns the address the server listens on, or nil if it is disabled
func (d *DebugServer) Addr() net.Addr {
	if d.ln == nil {
		return nil
	}
	return d.ln.Addr()
}

func (d *DebugServer) Cleanup(s *state.State) error {
	if d.server == nil {
		return nil
	}
	err := d.server.Close()
	<-d.done
	return err
}

func NewDebugRouter(c *Controller) http.Handler {
	r := chi.NewRouter()
	r.Get("/debug/plan", func(w http.ResponseWriter, req *http.Request) {
		plan := c.CurrentPlan()
		if plan == nil {
			http.Error(w, "no plan installed", http.StatusServiceUnavailable)
			return
		}
		writeYaml(w, NewPlanDoc(plan))
	})
	r.Get("/debug/plan/{switch}", func(w http.ResponseWriter, req *http.Request) {
		plan := c.CurrentPlan()
		if plan == nil {
			http.Error(w, "no plan installed", http.StatusServiceUnavailable)
			return
		}
		sw := state.NodeId(chi.URLParam(req, "switch"))
		routes, ok := NewPlanDoc(plan).Routes[sw]
		if !ok {
			http.Error(w, fmt.Sprintf("unknown switch %s", sw), http.StatusNotFound)
			return
		}
		writeYaml(w, routes)
	})
	r.Post("/debug/fail/{edge}", func(w http.ResponseWriter, req *http.Request) {
		edge, err := state.ParseEdgeId(chi.URLParam(req, "edge"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !c.Topology.HasEdge(edge) {
			http.Error(w, fmt.Sprintf("unknown link %s", edge), http.StatusNotFound)
			return
		}
		if !c.NotifyFailure(edge) {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
	r.Handle("/debug/metrics", perf.Handler())
	r.Handle("/debug/vars", expvar.Handler())
	return r
}

func writeYaml(w http.ResponseWriter, v any) {
	bytes, err := yaml.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(bytes)
}

// FetchPlan reads the installed plan from the debug endpoint of a running controller
func FetchPlan(addr string) (*PlanDoc, error) {
	client := http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s/debug/plan", addr))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("controller returned %s: %s", resp.Status, body)
	}
	doc := &PlanDoc{}
	if err := yaml.Unmarshal(body, doc); err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	return doc, nil
}
