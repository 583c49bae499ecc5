// Package registry reads cargo's registry configuration and resolves crate
// metadata from sparse HTTP indexes.
package registry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// CratesIOName is the implicit default registry.
const CratesIOName = "crates-io"

// CratesIOIndex is the sparse index serving the default registry.
const CratesIOIndex = "sparse+https://index.crates.io/"

// UnknownRegistryError reports a registry name with no configured index.
type UnknownRegistryError struct {
	Name string
}

func (e *UnknownRegistryError) Error() string {
	return fmt.Sprintf("no index configured for registry `%s`", e.Name)
}

// ReplacementCycleError reports a source replacement chain that loops.
type ReplacementCycleError struct {
	Name string
}

func (e *ReplacementCycleError) Error() string {
	return fmt.Sprintf("source replacement for `%s` forms a cycle", e.Name)
}

// Config is the subset of cargo's config.toml the resolver needs.
type Config struct {
	Registries map[string]RegistryConfig `toml:"registries"`
	Source     map[string]SourceConfig   `toml:"source"`
}

// RegistryConfig names one registry's index URL.
type RegistryConfig struct {
	Index string `toml:"index"`
}

// SourceConfig is one entry of the `[source]` replacement table.
type SourceConfig struct {
	ReplaceWith string `toml:"replace-with"`
	Registry    string `toml:"registry"`
}

// LoadConfig reads config from cargoHome, which defaults to $CARGO_HOME and
// then ~/.cargo. A missing file yields an empty config.
func LoadConfig(cargoHome string) (*Config, error) {
	if cargoHome == "" {
		cargoHome = os.Getenv("CARGO_HOME")
	}
	if cargoHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		cargoHome = filepath.Join(home, ".cargo")
	}

	cfg := &Config{}
	for _, name := range []string{"config.toml", "config"} {
		path := filepath.Join(cargoHome, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		break
	}
	return cfg, nil
}

// IndexURL resolves a registry name to its index URL, following the
// `[source]` replacement chain. An empty name means the default registry.
func (c *Config) IndexURL(name string) (string, error) {
	if name == "" {
		name = CratesIOName
	}

	visited := map[string]bool{}
	for {
		if visited[name] {
			return "", &ReplacementCycleError{Name: name}
		}
		visited[name] = true

		src, ok := c.Source[name]
		if !ok || src.ReplaceWith == "" {
			break
		}
		name = src.ReplaceWith
	}

	if src, ok := c.Source[name]; ok && src.Registry != "" {
		return src.Registry, nil
	}
	if reg, ok := c.Registries[name]; ok && reg.Index != "" {
		return reg.Index, nil
	}
	if name == CratesIOName {
		return CratesIOIndex, nil
	}
	return "", &UnknownRegistryError{Name: name}
}
