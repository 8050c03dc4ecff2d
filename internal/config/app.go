package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// App holds the application settings loaded from specsync.yaml and the
// SPECSYNC_* environment.
type App struct {
	// StorePath is the SQLite database location.
	StorePath string `mapstructure:"store_path"`

	// LogFile enables rotated file logging when set; empty means stderr.
	LogFile string `mapstructure:"log_file"`

	// DashboardAddr is the listen address of the dashboard server.
	DashboardAddr string `mapstructure:"dashboard_addr"`

	// SyncInterval is how often the daemon runs a synchronization pass.
	SyncInterval time.Duration `mapstructure:"sync_interval"`

	// SyncParallelism bounds concurrent per-requirement workers in a pass.
	// 1 disables parallelism.
	SyncParallelism int `mapstructure:"sync_parallelism"`

	// DefaultAreas are the area paths provisioned when a request does not
	// list any. Empty falls back to the team's own area.
	DefaultAreas []string `mapstructure:"default_areas"`
}

// LoadApp reads the application configuration. If path is non-empty it names
// an explicit config file; otherwise specsync.yaml is searched in the working
// directory and ~/.specsync. Environment variables with the SPECSYNC_ prefix
// override file values. Missing file is not an error; defaults apply.
func LoadApp(path string) (*App, error) {
	v := viper.New()
	v.SetDefault("store_path", ".specsync/specsync.db")
	v.SetDefault("dashboard_addr", "localhost:8080")
	v.SetDefault("sync_interval", "5m")
	v.SetDefault("sync_parallelism", 1)

	v.SetEnvPrefix("SPECSYNC")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("specsync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.specsync")
	}

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read configuration: %w", err)
		}
	}

	var app App
	if err := v.Unmarshal(&app); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if app.SyncParallelism < 1 {
		app.SyncParallelism = 1
	}
	return &app, nil
}

// ConfigFileUsed returns the path of the config file viper would load for
// the given explicit path, resolving the search the same way LoadApp does.
// Used by the daemon to know which file to watch for reloads.
func ConfigFileUsed(path string) string {
	if path != "" {
		return path
	}
	v := viper.New()
	v.SetConfigName("specsync")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.specsync")
	if err := v.ReadInConfig(); err != nil {
		return ""
	}
	return v.ConfigFileUsed()
}
