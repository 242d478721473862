package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vthunder/ambientflow/internal/activity"
	"github.com/vthunder/ambientflow/internal/config"
	"github.com/vthunder/ambientflow/internal/logging"
	"github.com/vthunder/ambientflow/internal/orchestrator"
	"github.com/vthunder/ambientflow/internal/osenv"
	"github.com/vthunder/ambientflow/internal/profiling"
	"github.com/vthunder/ambientflow/internal/usage"
)

// app holds what PersistentPreRunE resolved for the subcommands
type app struct {
	configPath string
	debug      bool
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "ambientflow",
		Short:        "Adapt sound, display and notifications to what you are doing",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if config.LoadDotEnv() {
				logging.Debug("config", "Loaded .env file")
			}
			if a.debug {
				logging.SetDebug(true)
			}
			if a.configPath == "" {
				p, err := config.DefaultPath()
				if err != nil {
					return err
				}
				a.configPath = p
			}
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return fmt.Errorf("loading %s: %w", a.configPath, err)
			}
			a.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default $AMBIENTFLOW_CONFIG or ~/.config/ambientflow/config.yaml)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "print debug logs")

	root.AddCommand(
		newRunCmd(a),
		newMCPCmd(a),
		newStatsCmd(a),
		newConfigCmd(a),
	)
	return root
}

// runtime is an orchestrator with the resources it owns
type runtime struct {
	orch     *orchestrator.Orchestrator
	store    *usage.Store
	profiler *profiling.Profiler
}

func (r *runtime) close() {
	r.orch.Stop()
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			logging.Warn("main", "closing usage store: %v", err)
		}
	}
	if err := r.profiler.Close(); err != nil {
		logging.Warn("main", "closing profiler: %v", err)
	}
}

// build wires the orchestrator to either the real X11 backends or, with
// dryRun, to an in-memory recorder that keeps the desktop untouched. Dry
// runs also leave the config file alone.
func (a *app) build(dryRun bool) (*runtime, error) {
	cfg := a.cfg
	deps := orchestrator.Deps{
		Journal: activity.New(cfg.StatePath),
	}

	if dryRun {
		rec := osenv.NewRecorder()
		deps.Probe, deps.Display, deps.Player, deps.Notifier = osenv.NewX11Probe(), rec, rec, rec
		logging.Info("main", "Dry run: environment changes are recorded, not applied")
	} else {
		deps.Probe = osenv.NewX11Probe()
		deps.Display = osenv.NewXrandrDisplay(cfg.Display.Output)
		deps.Player = osenv.NewMpvPlayer(cfg.SoundsDir)
		deps.Notifier = osenv.NewDunstNotifier()
		deps.ConfigPath = a.configPath
	}

	store, err := usage.Open(cfg.StatePath)
	if err != nil {
		// usage history is optional; the in-memory ledger still works
		logging.Warn("main", "usage store unavailable: %v", err)
		if jerr := deps.Journal.LogError("usage store unavailable", err, map[string]any{"state_path": cfg.StatePath}); jerr != nil {
			logging.Debug("main", "journal: %v", jerr)
		}
		store = nil
	} else {
		deps.Store = store
	}

	level := profiling.ParseLevel(cfg.Tracking.Profile)
	prof, err := profiling.Open(filepath.Join(cfg.StatePath, "system", "profile.jsonl"), level)
	if err != nil {
		logging.Warn("main", "profiling disabled: %v", err)
		prof = nil
	}
	deps.Profiler = prof

	o, err := orchestrator.New(cfg, deps)
	if err != nil {
		if store != nil {
			store.Close()
		}
		prof.Close()
		return nil, err
	}
	return &runtime{orch: o, store: store, profiler: prof}, nil
}
