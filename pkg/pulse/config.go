package pulse

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// DefaultMaxFlushDepth bounds re-entrant flush waves before the scheduler
// declares a cyclic update.
const DefaultMaxFlushDepth = 100

// Config controls runtime-wide policies. Zero values mean defaults.
type Config struct {
	// Strict reports programmer errors (OnCleanup outside an effect,
	// ownerless effects, use of a disposed root) through the error handler.
	// When false these are silent no-ops.
	Strict bool `yaml:"strict"`

	// MaxFlushDepth caps re-entrant flush waves within one drain.
	// Default: DefaultMaxFlushDepth.
	MaxFlushDepth int `yaml:"max_flush_depth"`

	// MaxEffectRunsPerFlushWave defers effects beyond this many runs in a
	// single wave to the next wave. 0 disables the budget.
	MaxEffectRunsPerFlushWave int `yaml:"max_effect_runs_per_flush_wave"`

	// AutoFlush drains the queue on a background goroutine shortly after a
	// write when no flush is already pending. Disable to make every drain
	// explicit via FlushSync.
	AutoFlush bool `yaml:"auto_flush"`
}

// DefaultConfig returns the runtime defaults: permissive misuse policy,
// automatic flushing, and the standard flush-depth cap.
func DefaultConfig() Config {
	return Config{
		Strict:        false,
		MaxFlushDepth: DefaultMaxFlushDepth,
		AutoFlush:     true,
	}
}

// currentConfig is read on hot paths, so it is stored atomically rather
// than guarded by a mutex.
var currentConfig atomic.Value // Config

func init() {
	currentConfig.Store(DefaultConfig())
}

// Configure installs cfg as the runtime configuration. Zero values are
// replaced with defaults. Intended for application startup; changing policy
// mid-flight is safe but affects only subsequent operations.
func Configure(cfg Config) {
	if cfg.MaxFlushDepth <= 0 {
		cfg.MaxFlushDepth = DefaultMaxFlushDepth
	}
	currentConfig.Store(cfg)
}

// config returns the active configuration.
func config() Config {
	return currentConfig.Load().(Config)
}

// LoadOptional reads pulse.yaml from dir if present. A missing file yields
// the defaults; a malformed file is an error.
func LoadOptional(dir string) (Config, error) {
	path := filepath.Join(dir, "pulse.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return Config{}, fmt.Errorf("failed to read pulse.yaml: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse pulse.yaml: %w", err)
	}
	if cfg.MaxFlushDepth <= 0 {
		cfg.MaxFlushDepth = DefaultMaxFlushDepth
	}
	return cfg, nil
}

// DebugConfig controls development-time logging.
type DebugConfig struct {
	// LogFlushes logs each flush wave with its effect count and duration.
	LogFlushes bool

	// LogEffectRuns logs every individual effect run.
	LogEffectRuns bool
}

// Debug is the global debug configuration.
// Modify at application startup to enable debugging features.
var Debug DebugConfig
