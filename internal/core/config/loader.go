package config

import (
	"codegraph/internal/core/errors"
	stderrors "errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads path, fills defaults, applies CODEGRAPH_ environment overrides
// and validates the result. A missing file yields Default with overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		md, decErr := toml.Decode(string(data), cfg)
		if decErr != nil {
			err := errors.Wrap(decErr, errors.CodeValidationError, "decode config")
			return nil, errors.AddContext(err, errors.CtxPath, path)
		}
		for _, key := range md.Undecoded() {
			slog.Warn("unknown config key", "path", path, "key", key.String())
		}
	case stderrors.Is(err, fs.ErrNotExist):
		slog.Debug("config file not found, using defaults", "path", path)
	default:
		err = errors.Wrap(err, errors.CodeFileUnreadable, "read config")
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}

	applyDefaults(cfg)
	ApplyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}
	return cfg, nil
}
