package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"reflect"
	"runtime"
	"syscall"
	"time"

	"github.com/encodeous/reroute/perf"
	"github.com/encodeous/reroute/state"
	"github.com/encodeous/tint"
	"github.com/goccy/go-yaml"
	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

func ReadTopologyConfig(topologyPath string) (*state.TopologyCfg, error) {
	var cfg state.TopologyCfg
	file, err := os.ReadFile(topologyPath)
	if err != nil {
		return nil, err
	}
	err = yaml.Unmarshal(file, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", topologyPath, err)
	}
	return &cfg, nil
}

// ReadControllerConfig reads the controller config at controllerPath. An empty path selects the defaults.
func ReadControllerConfig(controllerPath string) (*state.ControllerCfg, error) {
	var cfg state.ControllerCfg
	if controllerPath != "" {
		file, err := os.ReadFile(controllerPath)
		if err != nil {
			return nil, err
		}
		err = yaml.Unmarshal(file, &cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", controllerPath, err)
		}
	}
	cfg.SetDefaults()
	if err := state.ControllerConfigValidator(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadTopology reads and validates the topology at topologyPath
func LoadTopology(topologyPath string) (*state.Topology, error) {
	cfg, err := ReadTopologyConfig(topologyPath)
	if err != nil {
		return nil, err
	}
	return state.NewTopology(*cfg)
}

// Bootstrap runs the controller until it receives a shutdown signal
func Bootstrap(topologyPath, controllerPath, logPath string, verbose bool) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	topo, err := LoadTopology(topologyPath)
	if err != nil {
		return err
	}
	cfg, err := ReadControllerConfig(controllerPath)
	if err != nil {
		return err
	}
	if logPath != "" {
		cfg.LogPath = logPath
	}

	var inst Installer // nil selects a LogInstaller
	if cfg.Installer == state.RegisterInstaller {
		inst = NewRegisterInstaller()
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(c)
	go func() {
		select {
		case <-c:
			cancel(errors.New("received shutdown signal"))
		case <-ctx.Done():
		}
	}()

	return Start(ctx, topo, *cfg, level, inst, nil)
}

func newLogger(cfg state.ControllerCfg, logLevel slog.Level) (*slog.Logger, error) {
	handlers := make([]slog.Handler, 0)
	handlers = append(handlers,
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:        logLevel,
			AddSource:    false,
			CustomPrefix: "reroute",
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				if attr.Key == "time" {
					return slog.Attr{}
				}
				return attr
			},
		}))

	if cfg.LogPath != "" {
		err := os.MkdirAll(path.Dir(cfg.LogPath), 0700)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, slog.NewTextHandler(&lumberjack.Logger{
			Filename:   cfg.LogPath,
			MaxSize:    100, // megabytes
			MaxBackups: 3,
			Compress:   true,
		}, &slog.HandlerOptions{Level: logLevel}))
	}

	return slog.New(slogmulti.Fanout(handlers...)), nil
}

// Start runs the controller for topo until ctx is cancelled. If initState is not nil, it receives the
// state before the modules are initialized.
func Start(ctx context.Context, topo *state.Topology, cfg state.ControllerCfg, logLevel slog.Level, inst Installer, initState **state.State) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	dispatch := make(chan func(s *state.State) error, 128)

	cfg.SetDefaults()
	logger, err := newLogger(cfg, logLevel)
	if err != nil {
		return err
	}

	s := state.State{
		Modules: make(map[string]state.Module),
		Env: &state.Env{
			Context:         ctx,
			Cancel:          cancel,
			DispatchChannel: dispatch,
			ControllerCfg:   cfg,
			Topology:        topo,
			Log:             logger,
		},
	}
	if initState != nil {
		*initState = &s
	}

	s.Log.Info("init modules")
	err = initModules(&s, inst)
	if err != nil {
		Stop(&s)
		return err
	}
	s.Log.Info("init modules complete")

	s.Log.Info("reroute has been initialized. To gracefully exit, send SIGINT or Ctrl+C.")

	return MainLoop(&s, dispatch)
}

func initModules(s *state.State, inst Installer) error {
	var modules []state.Module
	modules = append(modules, &Controller{Installer: inst})
	modules = append(modules, &DebugServer{})

	for _, module := range modules {
		s.Modules[reflect.TypeOf(module).String()] = module
		if err := module.Init(s); err != nil {
			return err
		}
	}
	return nil
}

func MainLoop(s *state.State, dispatch <-chan func(*state.State) error) error {
	s.Log.Debug("started main loop")
	s.Started.Store(true)
	for {
		select {
		case fun := <-dispatch:
			start := time.Now()
			err := fun(s)
			if err != nil {
				s.Log.Error("error occurred during dispatch: ", "error", err)
				s.Cancel(err)
			}
			elapsed := time.Since(start)
			perf.DispatchLatency.Add(float64(elapsed.Microseconds()))
			if elapsed > state.SlowDispatch {
				s.Log.Warn("dispatch took a long time!", "fun", runtime.FuncForPC(reflect.ValueOf(fun).Pointer()).Name(), "elapsed", elapsed, "len", len(dispatch))
			}
		case <-s.Context.Done():
			goto endLoop
		}
	}
endLoop:
	s.Log.Info("stopped main loop", "reason", context.Cause(s.Context).Error())
	Stop(s)
	return nil
}

func Stop(s *state.State) {
	if s.Stopping.Swap(true) {
		return // don't stop twice
	}
	s.Cancel(context.Canceled)
	s.Log.Info("cleaning up modules")
	for moduleName, module := range s.Modules {
		err := module.Cleanup(s)
		if err != nil {
			s.Log.Error("error occurred during Stop: ", "module", moduleName, "error", err)
		}
	}
	s.Log.Info("stopped")
}
