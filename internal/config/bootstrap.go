package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// AppName is the canonical application name.
const AppName = "ngoclaw"

// HomeDir returns the orchestrator's configuration home: ~/.ngoclaw
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+AppName)
}

// Bootstrap ensures ~/.ngoclaw exists with its state/workflows/logs
// subdirectories and a default config.yaml. Safe to call repeatedly —
// it only creates what's missing and never overwrites an existing
// config.yaml.
func Bootstrap(logger *zap.Logger) error {
	root := HomeDir()

	dirs := []string{
		root,
		filepath.Join(root, "state"),
		filepath.Join(root, "workflows"),
		filepath.Join(root, "logs"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(root, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		logger.Debug("orchestrator home directory OK", zap.String("home", root))
		return nil
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		logger.Warn("failed to write default config", zap.String("path", configPath), zap.Error(err))
		return nil
	}

	logger.Info("orchestrator bootstrap complete", zap.String("home", root))
	return nil
}

const defaultConfig = `# Orchestrator configuration.
# Auto-generated on first launch — feel free to edit.

# Where workflow journals are written. Defaults under ~/.ngoclaw/state.
state_dir: ""

# The state file a new workflow starts at when none is given.
default_entry: START.md

# Cost/time caps enforced before each scheduler tick. 0 means unlimited.
budget:
  max_cost_usd: 0
  max_wall_clock: 0s

# Bounded concurrent agent steps per tick.
max_parallel: 8

# NoTransition retries per state before an agent step fails.
retry_limit: 3

# Per-script execution deadline for .sh/.bat states. 0 means unbounded.
script_timeout: 5m

log:
  level: info      # debug | info | warn | error
  format: console   # console | json

run_index:
  type: sqlite      # sqlite | postgres
  dsn: ""

claude:
  binary: claude
  model: ""
  skip_permissions: false
`
