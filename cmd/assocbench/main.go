// Command assocbench replays synthetic access patterns against
// every cache backend and reports hit ratios and evictions.
package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"vawter.tech/stopper"
)

type (
	globalOptions struct {
		Verbose bool `short:"v" help:"Log at debug level."`

		logger log.Logger
		ctx    *stopper.Context
	}
	cli struct {
		globalOptions

		Run  runCmd  `cmd:"" default:"withargs" help:"Replay access patterns against each backend."`
		Plan planCmd `cmd:"" help:"Show which backend a cache config selects."`
	}
)

const drainTime = time.Second

func main() {
	var opts cli
	kctx := kong.Parse(&opts,
		kong.Name("assocbench"),
		kong.Description("Compare the backends of bounded association caches."),
		kong.UsageOnError(),
	)
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	if opts.Verbose {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}
	opts.logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	ctx := stopper.WithContext(context.Background())
	ctx.Go(func(ctx *stopper.Context) error {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt)
		defer signal.Stop(ch)
		select {
		case <-ch:
			level.Info(opts.logger).Log("msg", "interrupted, finishing current run")
			ctx.Stop(drainTime)
		case <-ctx.Stopping():
		}
		return nil
	})
	opts.ctx = ctx

	err := kctx.Run(&opts.globalOptions)
	ctx.Stop(drainTime)
	if waitErr := ctx.Wait(); err == nil {
		err = waitErr
	}
	kctx.FatalIfErrorf(err)
}

// stopping reports whether the run was interrupted.
func (g *globalOptions) stopping() bool {
	select {
	case <-g.ctx.Stopping():
		return true
	default:
		return false
	}
}
