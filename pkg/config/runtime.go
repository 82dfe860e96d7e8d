package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Tunables is the hot-reloadable subset of configuration: the knobs an
// operator adjusts while the platform runs. Everything else requires a
// restart.
type Tunables struct {
	Thresholds    ThresholdConfig
	ReleaseGate   ReleaseGateConfig
	AlertCooldown time.Duration
}

// Runtime publishes the current Tunables to the engines. Swaps are atomic;
// readers always observe a consistent snapshot.
type Runtime struct {
	current atomic.Pointer[Tunables]
}

// NewRuntime seeds the runtime view from a loaded configuration.
func NewRuntime(cfg *Config) *Runtime {
	r := &Runtime{}
	r.Apply(cfg)
	return r
}

// Tunables returns the current snapshot by value.
func (r *Runtime) Tunables() Tunables {
	return *r.current.Load()
}

// Apply swaps in the tunable subset of cfg.
func (r *Runtime) Apply(cfg *Config) {
	t := Tunables{
		Thresholds:    cfg.Thresholds,
		ReleaseGate:   cfg.ReleaseGate,
		AlertCooldown: cfg.Alerts.Cooldown(),
	}
	r.current.Store(&t)
}

// ApplyOverride maps a system_config key onto one tunable knob and swaps a
// snapshot with that knob replaced. Keys that are persisted but only read
// at startup report false without touching the snapshot.
func (r *Runtime) ApplyOverride(key, value string) (bool, error) {
	t := r.Tunables()

	setFloat := func(dst *float64) error {
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("key %q needs a float value: %w", key, err)
		}
		*dst = v
		return nil
	}

	var err error
	switch key {
	case "burn_rate_threshold_safe":
		err = setFloat(&t.Thresholds.BurnRateSafe)
	case "burn_rate_threshold_observe":
		err = setFloat(&t.Thresholds.BurnRateObserve)
	case "burn_rate_threshold_danger":
		err = setFloat(&t.Thresholds.BurnRateDanger)
	case "burn_rate_threshold_freeze":
		err = setFloat(&t.Thresholds.BurnRateFreeze)
	case "budget_consumed_observe":
		err = setFloat(&t.Thresholds.BudgetObserve)
	case "budget_consumed_danger":
		err = setFloat(&t.Thresholds.BudgetDanger)
	case "budget_consumed_freeze":
		err = setFloat(&t.Thresholds.BudgetFreeze)
	case "gate_burn_rate_threshold":
		err = setFloat(&t.ReleaseGate.BurnRateThreshold)
	case "gate_budget_threshold":
		err = setFloat(&t.ReleaseGate.BudgetThreshold)
	case "alert_cooldown_minutes":
		minutes, perr := strconv.Atoi(value)
		if perr != nil {
			return false, fmt.Errorf("key %q needs an int value: %w", key, perr)
		}
		t.AlertCooldown = time.Duration(minutes) * time.Minute
	default:
		return false, nil
	}
	if err != nil {
		return false, err
	}

	r.current.Store(&t)
	return true, nil
}

// Watcher re-reads the config file when it changes on disk and applies the
// tunable subset to a Runtime. Invalid files are logged and skipped; the
// previous snapshot stays in effect.
type Watcher struct {
	path    string
	runtime *Runtime
	logger  *zap.Logger
	fsw     *fsnotify.Watcher
}

// NewWatcher watches the directory containing path. Watching the directory
// rather than the file survives the rename-and-replace writes editors and
// config mounts perform.
func NewWatcher(path string, rt *Runtime, logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{
		path:    path,
		runtime: rt,
		logger:  logger,
		fsw:     fsw,
	}, nil
}

// Run processes filesystem events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("Ignoring invalid config reload",
			zap.String("path", w.path),
			zap.Error(err),
		)
		return
	}
	w.runtime.Apply(cfg)
	w.logger.Info("Applied config reload",
		zap.String("path", w.path),
		zap.Float64("burn_rate_freeze", cfg.Thresholds.BurnRateFreeze),
		zap.Float64("gate_budget_threshold", cfg.ReleaseGate.BudgetThreshold),
		zap.Int("alert_cooldown_minutes", cfg.Alerts.CooldownMinutes),
	)
}
