package assoc

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config describes a [BoundedCache] in a form that can be loaded
// from yaml or command line flags.
type Config struct {
	Name             string   `yaml:"name"`
	MaximumSize      int      `yaml:"maximum_size"`
	WeakKeys         bool     `yaml:"weak_keys"`
	WeakValues       bool     `yaml:"weak_values"`
	Adaptive         bool     `yaml:"adaptive"`
	DisabledBackends []string `yaml:"disabled_backends"`
}

// RegisterFlagsAndApplyDefaults registers a flag for each field,
// named under prefix, and sets the field to its default.
func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.Name, prefix+".name", "default", "Name used in logs and metric labels.")
	f.IntVar(&cfg.MaximumSize, prefix+".maximum-size", 0, "Maximum number of entries. 0 means unbounded.")
	f.BoolVar(&cfg.WeakKeys, prefix+".weak-keys", false, "Drop entries once their key is collected.")
	f.BoolVar(&cfg.WeakValues, prefix+".weak-values", false, "Allow cached values to be collected.")
	f.BoolVar(&cfg.Adaptive, prefix+".adaptive", false, "Prefer adaptive replacement over LRU.")
	cfg.DisabledBackends = nil
	f.Func(prefix+".disabled-backends", "Comma separated backends that must not be selected.", func(s string) error {
		for _, name := range strings.Split(s, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.DisabledBackends = append(cfg.DisabledBackends, name)
			}
		}
		return nil
	})
}

// Validate reports the first invalid setting, if any.
func (cfg *Config) Validate() error {
	if cfg.Name == "" {
		return fmt.Errorf("cache name is required")
	}
	if cfg.MaximumSize < 0 {
		return fmt.Errorf("maximum size must not be negative, got %d", cfg.MaximumSize)
	}
	if _, err := cfg.Capabilities(); err != nil {
		return err
	}
	return nil
}

// Capabilities returns [DefaultCapabilities] minus the disabled backends.
// The weak map fallback cannot be disabled.
func (cfg *Config) Capabilities() (Capabilities, error) {
	caps := DefaultCapabilities()
	for _, name := range cfg.DisabledBackends {
		backend, err := ParseBackend(name)
		if err != nil {
			return 0, err
		}
		if backend == BackendWeakMap {
			return 0, fmt.Errorf("backend %s cannot be disabled", backend)
		}
		caps = caps.Without(backend.capability())
	}
	return caps, nil
}

// LoadConfig reads a yaml document over the flag defaults.
// Unknown fields are an error.
func LoadConfig(r io.Reader) (Config, error) {
	var cfg Config
	cfg.RegisterFlagsAndApplyDefaults("cache", flag.NewFlagSet("cache", flag.ContinueOnError))
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("decoding cache config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromConfig returns a builder with the settings of cfg.
func FromConfig[K comparable, V any](cfg Config) (*CacheBuilder[K, V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	caps, err := cfg.Capabilities()
	if err != nil {
		return nil, err
	}
	builder := NewBuilder[K, V]().
		Name(cfg.Name).
		MaximumSize(cfg.MaximumSize).
		Capabilities(caps)
	if cfg.WeakKeys {
		builder.WeakKeys()
	}
	if cfg.WeakValues {
		builder.WeakValues()
	}
	if cfg.Adaptive {
		builder.Adaptive()
	}
	return builder, nil
}
