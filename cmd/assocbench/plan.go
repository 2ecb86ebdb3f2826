package main

import (
	"os"

	"github.com/go-kit/log/level"

	"github.com/djdv/go-assoc"
)

type (
	planCmd struct {
		Config *os.File `arg:"" help:"Cache config in yaml."`
	}
	// planKey stands in for the caller's key type,
	// a pointer so weak keys can take effect.
	planKey struct{ name string }
)

func (cmd *planCmd) Run(opts *globalOptions) error {
	defer cmd.Config.Close()
	cfg, err := assoc.LoadConfig(cmd.Config)
	if err != nil {
		return err
	}
	builder, err := assoc.FromConfig[*planKey, any](cfg)
	if err != nil {
		return err
	}
	cache := builder.Logger(opts.logger).Build()
	defer cache.Close()
	level.Info(opts.logger).Log("msg", "backend selected",
		"cache", cfg.Name, "backend", cache.Backend(),
		"maximum_size", cfg.MaximumSize, "weak_keys", cfg.WeakKeys)
	return nil
}
