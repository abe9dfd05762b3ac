package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the fusiond daemon configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Nuctl    NuctlConfig    `toml:"nuctl"`
	Build    BuildConfig    `toml:"build"`
	Schedule ScheduleConfig `toml:"schedule"`
}

// ServerConfig names the orchestrator's own address. Deployed dispatch
// runtimes use it to recognize self-addressed task calls.
type ServerConfig struct {
	Address string `toml:"address"`
}

// NuctlConfig carries the global flags for the nuclio CLI.
type NuctlConfig struct {
	Namespace  string `toml:"namespace"`
	Registry   string `toml:"registry"`
	Kubeconfig string `toml:"kubeconfig"`
	Platform   string `toml:"platform"`
}

// BuildConfig locates the root directory for fusion group builds.
type BuildConfig struct {
	Dir string `toml:"dir"`
}

// ScheduleConfig locates the static reconfiguration schedule. An empty path
// disables the scheduler.
type ScheduleConfig struct {
	Path string `toml:"path"`
}

func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if cfg.Build.Dir == "" {
		cfg.Build.Dir = "build"
	}
	if cfg.Nuctl.Platform == "" {
		cfg.Nuctl.Platform = "auto"
	}
	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Server.Address) == "" {
		return fmt.Errorf("server address is required")
	}
	if strings.TrimSpace(cfg.Nuctl.Namespace) == "" {
		return fmt.Errorf("nuctl namespace is required")
	}
	if strings.TrimSpace(cfg.Nuctl.Registry) == "" {
		return fmt.Errorf("nuctl registry is required")
	}
	return nil
}
