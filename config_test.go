package assoc_test

import (
	"flag"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/djdv/go-assoc"
)

func TestConfig(t *testing.T) {
	t.Run("flag defaults", configDefaults)
	t.Run("flags", configFlags)
	t.Run("yaml", configYAML)
	t.Run("unknown field", configUnknownField)
	t.Run("invalid", configInvalid)
}

func configDefaults(t *testing.T) {
	var cfg assoc.Config
	cfg.RegisterFlagsAndApplyDefaults("cache", flag.NewFlagSet("test", flag.ContinueOnError))
	require.Equal(t, assoc.Config{Name: "default"}, cfg)
	require.NoError(t, cfg.Validate())
}

func configFlags(t *testing.T) {
	var (
		r     = require.New(t)
		cfg   assoc.Config
		flags = flag.NewFlagSet("test", flag.ContinueOnError)
	)
	cfg.RegisterFlagsAndApplyDefaults("paths", flags)
	r.NoError(flags.Parse([]string{
		"-paths.name=paths",
		"-paths.maximum-size=2",
		"-paths.disabled-backends=otter, lru2",
		"-paths.disabled-backends=lru1",
	}))
	r.Equal(assoc.Config{
		Name:             "paths",
		MaximumSize:      2,
		DisabledBackends: []string{"otter", "lru2", "lru1"},
	}, cfg)
	builder, err := assoc.FromConfig[string, int](cfg)
	r.NoError(err)
	cache := buildCache(t, builder)
	r.Equal(assoc.BackendClock, cache.Backend())
}

func configYAML(t *testing.T) {
	const document = `
name: contexts
maximum_size: 128
weak_keys: true
disabled_backends: [otter]
`
	r := require.New(t)
	cfg, err := assoc.LoadConfig(strings.NewReader(document))
	r.NoError(err)
	r.Equal(assoc.Config{
		Name:             "contexts",
		MaximumSize:      128,
		WeakKeys:         true,
		DisabledBackends: []string{"otter"},
	}, cfg)
	caps, err := cfg.Capabilities()
	r.NoError(err)
	r.False(caps.Has(assoc.CapOtter))
	builder, err := assoc.FromConfig[*object, int](cfg)
	r.NoError(err)
	cache := buildCache(t, builder)
	r.Equal(assoc.BackendLRU2, cache.Backend())

	empty, err := assoc.LoadConfig(strings.NewReader(""))
	r.NoError(err)
	r.Equal("default", empty.Name)
}

func configUnknownField(t *testing.T) {
	_, err := assoc.LoadConfig(strings.NewReader("maximum_entries: 5\n"))
	require.Error(t, err)
}

func configInvalid(t *testing.T) {
	for _, test := range []struct {
		name string
		cfg  assoc.Config
	}{
		{"no name", assoc.Config{}},
		{"negative size", assoc.Config{Name: "n", MaximumSize: -1}},
		{"unknown backend", assoc.Config{Name: "n", DisabledBackends: []string{"redis"}}},
		{"fallback disabled", assoc.Config{Name: "n", DisabledBackends: []string{"weakmap"}}},
	} {
		t.Run(test.name, func(t *testing.T) {
			require.Error(t, test.cfg.Validate())
			_, err := assoc.FromConfig[string, int](test.cfg)
			require.Error(t, err)
		})
	}
}
