package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"harness/pkg/logging"
)

const configFileName = "harness.yaml"

// Load reads the run configuration. Defaults come first, the YAML file at
// path (or ./harness.yaml when path is empty) overlays them, and HARNESS_*
// environment variables win over both. A missing file is fine; a malformed
// one is not.
func Load(path string) (Config, error) {
	cfg := GetDefaultConfig()

	if path == "" {
		path = configFileName
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Info("config", "no %s found, using defaults", path)
	case err != nil:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		logging.Info("config", "loaded configuration from %s", path)
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides lets CI set the usual knobs without editing files.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HARNESS_BASE_URL"); v != "" {
		cfg.Target.BaseURL = v
	}
	if v := os.Getenv("HARNESS_ADMIN_EMAIL"); v != "" {
		cfg.Target.AdminEmail = v
	}
	if v := os.Getenv("HARNESS_ADMIN_PASSWORD"); v != "" {
		cfg.Target.AdminPassword = v
	}
	if v := os.Getenv("HARNESS_REPORT_DIR"); v != "" {
		cfg.Report.Dir = v
	}
	if v, ok := envBool("HARNESS_VERBOSE"); ok {
		cfg.Run.Verbose = v
	}
	if v, ok := envBool("HARNESS_KEEP_DATA"); ok {
		cfg.Run.KeepData = v
	}
}

func envBool(key string) (bool, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		logging.Warn("config", "ignoring %s=%q: not a boolean", key, raw)
		return false, false
	}
	return v, true
}
