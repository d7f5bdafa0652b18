// Package config loads generator defaults from an optional project TOML
// file using BurntSushi/toml.
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// GeneratorConfig holds the defaults a CLI invocation merges with explicit
// flags (flags always win over the file).
type GeneratorConfig struct {
	SkipActions bool   `toml:"skip_actions"`
	Memoize     string `toml:"memoize"` // "auto" | "all" | "none"
	Package     string `toml:"package"`
	Verbosity   int    `toml:"verbosity"`
}

// Default returns the configuration used when no project file is present.
func Default() GeneratorConfig {
	return GeneratorConfig{
		Memoize: "auto",
		Package: "parser",
	}
}

// Load reads a .sturgeon.toml-shaped file at path, starting from Default()
// so unset fields keep their default value rather than zeroing out.
func Load(path string) (GeneratorConfig, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
