// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/countdown/pkg/ux"
	"github.com/AleutianAI/countdown/services/countdown"
	"github.com/AleutianAI/countdown/services/countdown/engine"
	"github.com/AleutianAI/countdown/services/countdown/history"
	"github.com/AleutianAI/countdown/services/countdown/present"
	"github.com/AleutianAI/countdown/services/countdown/telemetry"
)

// solveOptions holds the solve command flags.
type solveOptions struct {
	values       []int64
	ops          []string
	preset       string
	maxDepth     int
	timeLimit    time.Duration
	all          bool
	limit        int
	reuseSources bool
	history      bool
}

var solveFlags solveOptions

// solvePreset supplies values and operators omitted on the command line.
type solvePreset struct {
	values    func() []int64
	operators func() []engine.Operator
}

// solvePresets are selectable with --preset. An empty preset supplies nothing.
var solvePresets = map[string]solvePreset{
	"web": {values: countdown.DefaultValues, operators: countdown.DefaultOperators},
}

// solveJob is one fully resolved search request.
type solveJob struct {
	Targets          []int64
	Values           []int64
	Operators        []engine.Operator
	MaxDepth         int
	SliceBudget      time.Duration
	AllowSourceReuse bool
	Tracer           *engine.SearchTracer
	Logger           *slog.Logger
}

// solveOutcome is the result of one target, in input order.
type solveOutcome struct {
	Target      int64
	State       engine.State
	Progress    engine.Progress
	Depth       int
	Count       int64
	Expressions []string
	Elapsed     time.Duration
}

// Reached reports whether the search found the target.
func (o solveOutcome) Reached() bool {
	return o.State == engine.StateCompleted
}

func runSolve(cmd *cobra.Command, args []string) error {
	job, err := buildSolveJob(args, solveFlags, cfg.Search)
	if err != nil {
		return err
	}
	job.Logger = logger.Slog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	timeLimit := solveFlags.timeLimit
	if timeLimit == 0 {
		timeLimit = cfg.Search.TimeLimit
	}
	if timeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeLimit)
		defer cancel()
	}

	if cfg.Observability.TracingEnabled {
		tcfg := cfg.Observability.Telemetry
		tcfg.MetricExporter = "none"
		shutdown, err := telemetry.Init(ctx, tcfg)
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
	}
	job.Tracer = engine.NewSearchTracer(job.Logger, cfg.Observability.TracingEnabled)

	var store *history.Store
	if solveFlags.history {
		var closeDB func() error
		store, closeDB, err = openHistory(cfg.History.Storage, job.Logger)
		if err != nil {
			return err
		}
		defer closeDB()
	}

	live := printer.NewLiveProgress()
	live.Start()
	outcomes, err := solveTargets(ctx, job, solveFlags.all, expressionLimit(solveFlags.limit), func(target int64, p engine.Progress) {
		live.Update(strconv.FormatInt(target, 10), p.CurrentDepth, p.Percent())
	})
	live.Stop()
	if err != nil {
		return err
	}

	for _, o := range outcomes {
		printer.Solution(ux.SolutionView{
			Target:      o.Target,
			State:       o.State.String(),
			Depth:       o.Depth,
			Count:       o.Count,
			Expressions: o.Expressions,
			Elapsed:     o.Elapsed,
		})
		if store != nil {
			if err := saveOutcome(context.WithoutCancel(ctx), store, job, o); err != nil {
				printer.Warning(fmt.Sprintf("history not saved for %d: %v", o.Target, err))
			}
		}
	}
	return nil
}

// buildSolveJob parses targets and resolves flags against presets and config.
func buildSolveJob(args []string, flags solveOptions, search countdown.SearchConfig) (solveJob, error) {
	job := solveJob{
		MaxDepth:         search.MaxDepth,
		SliceBudget:      search.SliceBudget,
		AllowSourceReuse: search.AllowSourceReuse || flags.reuseSources,
	}
	if flags.maxDepth > 0 {
		job.MaxDepth = flags.maxDepth
	}

	for _, arg := range args {
		target, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || target <= 0 || target > engine.MaxValue {
			return solveJob{}, fmt.Errorf("invalid target %q: must be an integer in 1..%d", arg, engine.MaxValue)
		}
		job.Targets = append(job.Targets, target)
	}

	var defaults solvePreset
	if flags.preset != "" {
		p, ok := solvePresets[flags.preset]
		if !ok {
			return solveJob{}, fmt.Errorf("unknown preset %q", flags.preset)
		}
		defaults = p
	}

	job.Values = flags.values
	if len(job.Values) == 0 {
		if defaults.values == nil {
			return solveJob{}, errors.New("no values given: pass --values or a --preset")
		}
		job.Values = defaults.values()
	}
	for _, v := range job.Values {
		if v <= 0 || v > engine.MaxValue {
			return solveJob{}, fmt.Errorf("invalid value %d: must be in 1..%d", v, engine.MaxValue)
		}
	}

	if len(flags.ops) == 0 {
		if defaults.operators == nil {
			return solveJob{}, errors.New("no operators given: pass --ops or a --preset")
		}
		job.Operators = defaults.operators()
	}
	for _, name := range flags.ops {
		op, err := engine.ParseOperator(name)
		if err != nil {
			return solveJob{}, err
		}
		job.Operators = append(job.Operators, op)
	}
	return job, nil
}

// solveTargets runs one search per target concurrently, each on its own
// loop, and returns outcomes in target order.
//
// Description:
//
//	A search ended by ctx is reported as cancelled, not as an error. With
//	all set every distinct minimal expression up to limit is returned,
//	otherwise only the best-scoring ones.
//
// Outputs:
//   - []solveOutcome: One per target.
//   - error: The first validation error from the engine.
func solveTargets(ctx context.Context, job solveJob, all bool, limit int, onProgress func(int64, engine.Progress)) ([]solveOutcome, error) {
	outcomes := make([]solveOutcome, len(job.Targets))

	var g errgroup.Group
	for i, target := range job.Targets {
		g.Go(func() error {
			opts := engine.Options{
				Target:           target,
				Values:           job.Values,
				Operators:        job.Operators,
				SliceBudget:      job.SliceBudget,
				MaxDepth:         job.MaxDepth,
				AllowSourceReuse: job.AllowSourceReuse,
				Logger:           job.Logger,
				Tracer:           job.Tracer,
			}
			if onProgress != nil {
				opts.OnProgress = func(p engine.Progress) { onProgress(target, p) }
			}

			res, err := engine.Solve(ctx, opts)
			if err != nil && res == nil {
				return fmt.Errorf("target %d: %w", target, err)
			}
			outcomes[i] = outcomeOf(res, all, limit)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func outcomeOf(res *engine.Result, all bool, limit int) solveOutcome {
	o := solveOutcome{
		Target:   res.Target,
		State:    res.State,
		Progress: res.Progress,
		Depth:    res.Progress.CurrentDepth,
		Elapsed:  res.Elapsed,
	}
	sol := res.Solution
	if sol == nil {
		return o
	}
	o.Depth = sol.Depth
	o.Count = sol.Count()
	if all {
		for _, e := range present.Dedupe(engine.Collect(sol.Expressions(), limit)) {
			o.Expressions = append(o.Expressions, present.Format(e))
		}
		return o
	}
	o.Expressions = present.Summarize(sol, limit).Best
	return o
}

func saveOutcome(ctx context.Context, store *history.Store, job solveJob, o solveOutcome) error {
	_, err := store.Put(ctx, history.Item{
		Target:      o.Target,
		Values:      job.Values,
		Operators:   job.Operators,
		State:       o.State,
		Canceled:    o.State == engine.StateCancelled,
		Progress:    o.Progress,
		Depth:       o.Depth,
		Count:       o.Count,
		Expressions: o.Expressions,
		Elapsed:     o.Elapsed,
	})
	return err
}

func expressionLimit(flag int) int {
	if flag > 0 {
		return flag
	}
	if cfg.Search.ExpressionLimit > 0 {
		return cfg.Search.ExpressionLimit
	}
	return present.DefaultLimit
}
