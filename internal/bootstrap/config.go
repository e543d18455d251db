package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"

	"signalbridge/internal/config"
	"signalbridge/internal/transport"
)

// ConfigEnvVar names the config file when no path is given
const ConfigEnvVar = "CONFIG_FILE"

// LoadConfig loads path, falling back to $CONFIG_FILE and then to the
// built-in defaults, and applies the environment overrides.
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = os.Getenv(ConfigEnvVar)
	}

	var cfg *config.Config
	if path == "" {
		cfg = config.DefaultConfig()
	} else {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if err := checkPreFlight(cfg); err != nil {
		return nil, fmt.Errorf("pre-flight checks failed: %w", err)
	}

	return cfg, nil
}

// checkPreFlight performs environment checks beyond schema validation
func checkPreFlight(cfg *config.Config) error {
	if cfg.Bridge.AuthKey.Reveal() != "" && cfg.Bridge.Scheme != transport.SchemeWS {
		return fmt.Errorf("auth_key is only sent over %s, scheme is %s", transport.SchemeWS, cfg.Bridge.Scheme)
	}

	if cfg.System.LogFile != "" {
		dir := filepath.Dir(cfg.System.LogFile)
		info, err := os.Stat(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("log_file directory not found: %s", dir)
			}
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("log_file directory is not a directory: %s", dir)
		}
	}

	return nil
}
