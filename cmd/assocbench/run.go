package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log/level"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/djdv/go-assoc"
	"github.com/djdv/go-assoc/internal/workload"
)

type (
	runCmd struct {
		Capacity []int    `help:"Maximum cache sizes to test." default:"128,512,2048"`
		Pattern  []string `help:"Access patterns to replay. Defaults to all of them."`
		Backend  []string `help:"Backends to compare." default:"otter,lru2,arc,lru1,clock,weakmap"`
		Accesses int      `help:"Lookups per run after warm up." default:"1048576"`
	}
	// candidate describes how to force one backend.
	candidate struct {
		caps     assoc.Capabilities
		adaptive bool
		// inferred evictions are counted from length changes,
		// which concurrent writers can hide.
		inferred bool
	}
	outcome struct {
		pattern   string
		capacity  int
		backend   string
		selected  assoc.Backend
		result    workload.Result
		size      int
		evictions float64
		elapsed   time.Duration
	}
)

var candidates = map[string]candidate{
	"otter":   {caps: assoc.CapOtter},
	"lru2":    {caps: assoc.CapLRU2},
	"arc":     {caps: assoc.CapLRU2, adaptive: true, inferred: true},
	"lru1":    {caps: assoc.CapLRU1},
	"clock":   {caps: assoc.CapClock},
	"weakmap": {},
}

func (cmd *runCmd) Run(opts *globalOptions) error {
	patterns, err := cmd.patterns()
	if err != nil {
		return err
	}
	var outcomes []outcome
	for _, pattern := range patterns {
		for _, capacity := range cmd.Capacity {
			sequence := pattern.Gen(capacity)
			for _, name := range cmd.Backend {
				if opts.stopping() {
					return printOutcomes(outcomes)
				}
				out, err := cmd.replay(opts, name, capacity, sequence)
				if err != nil {
					return err
				}
				out.pattern = pattern.Name
				outcomes = append(outcomes, out)
			}
		}
	}
	return printOutcomes(outcomes)
}

func (cmd *runCmd) patterns() ([]workload.Pattern, error) {
	if len(cmd.Pattern) == 0 {
		return workload.Patterns(), nil
	}
	patterns := make([]workload.Pattern, 0, len(cmd.Pattern))
	for _, name := range cmd.Pattern {
		pattern, ok := workload.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("unknown pattern %q", name)
		}
		patterns = append(patterns, pattern)
	}
	return patterns, nil
}

func (cmd *runCmd) replay(opts *globalOptions, name string, capacity int, sequence []int) (outcome, error) {
	c, ok := candidates[name]
	if !ok {
		return outcome{}, fmt.Errorf("unknown backend %q", name)
	}
	var (
		reg     = prometheus.NewRegistry()
		builder = assoc.NewBuilder[int, int]().
			Name(name).
			MaximumSize(capacity).
			Capabilities(c.caps).
			Logger(opts.logger).
			Metrics(assoc.NewMetrics(reg))
	)
	if c.adaptive {
		builder.Adaptive()
	}
	cache := builder.Build()
	defer cache.Close()
	var (
		adapted = workload.Adapt[int, int](cache)
		start   = time.Now()
	)
	workload.WarmUp(adapted, sequence)
	result := workload.Replay(adapted, sequence, cmd.Accesses)
	elapsed := time.Since(start)
	cache.Cleanup()
	evictions, err := counterValue(reg, "assoc_evictions_total")
	if err != nil {
		return outcome{}, err
	}
	level.Debug(opts.logger).Log("msg", "replayed", "backend", name,
		"capacity", capacity, "hits", result.Hits, "misses", result.Misses)
	return outcome{
		capacity:  capacity,
		backend:   name,
		selected:  cache.Backend(),
		result:    result,
		size:      cache.Size(),
		evictions: evictions,
		elapsed:   elapsed,
	}, nil
}

// counterValue sums every series of the named counter.
func counterValue(gatherer prometheus.Gatherer, name string) (float64, error) {
	families, err := gatherer.Gather()
	if err != nil {
		return 0, err
	}
	var total float64
	for _, family := range families {
		if family.GetName() != name || family.GetType() != dto.MetricType_COUNTER {
			continue
		}
		for _, metric := range family.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total, nil
}

func printOutcomes(outcomes []outcome) error {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"pattern", "capacity", "backend", "selected", "hit rate", "size", "evictions", "throughput"})
	var last string
	for _, out := range outcomes {
		if last != "" && last != out.pattern {
			t.AppendSeparator()
		}
		last = out.pattern
		var (
			accesses   = out.result.Hits + out.result.Misses
			throughput = float64(accesses) / out.elapsed.Seconds()
		)
		t.AppendRow(table.Row{
			out.pattern,
			humanize.Comma(int64(out.capacity)),
			out.backend,
			out.selected,
			fmt.Sprintf("%.2f%%", out.result.HitRate()),
			humanize.Comma(int64(out.size)),
			out.evictionCell(),
			humanize.SIWithDigits(throughput, 1, "op/s"),
		})
	}
	t.SetCaption("~ evictions inferred from cache length; approximate under concurrent writers.")
	t.Render()
	return nil
}

// evictionCell marks counts that were inferred rather than reported.
func (out outcome) evictionCell() string {
	count := humanize.Comma(int64(out.evictions))
	if candidates[out.backend].inferred {
		return "~" + count
	}
	return count
}
