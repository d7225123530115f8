package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// PathEnv names the variable consulted when no path is passed explicitly.
const PathEnv = "CONFIG_PATH"

// DefaultPath is read when present and neither a path nor PathEnv is set.
const DefaultPath = "./config.yaml"

// Load is LoadFrom with no explicit path.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom resolves the config file as path, then $CONFIG_PATH, then
// DefaultPath, reads it and overlays environment variables. Values come from
// ENV first, the file second and env-default tags last. A file named by path
// or $CONFIG_PATH must exist; the default file is optional.
func LoadFrom(path string) (*Config, error) {
	required := true
	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path == "" {
		path, required = DefaultPath, false
	}

	var cfg Config
	switch _, err := os.Stat(path); {
	case err == nil:
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	case required || !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("config: %w", err)
	default:
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// Describe lists every environment variable the configuration reads, with
// its default.
func Describe() (string, error) {
	header := "Environment variables (override the config file):"
	return cleanenv.GetDescription(&Config{}, &header)
}
