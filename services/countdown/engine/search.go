// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// DefaultSliceBudget is the wall time a search may run before yielding.
const DefaultSliceBudget = 40 * time.Millisecond

// State is the lifecycle state of a Search.
type State int32

const (
	// StateIdle means the search was created but not started.
	StateIdle State = iota

	// StateRunning means slices are being scheduled.
	StateRunning

	// StateCompleted means the target was reached and reported.
	StateCompleted

	// StateCancelled means Cancel stopped the search.
	StateCancelled

	// StateExhausted means MaxDepth was reached without finding the target.
	StateExhausted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further callbacks can follow.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateExhausted
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for st := StateIdle; st <= StateExhausted; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown search state %q", text)
}

// Progress reports work on the current depth level.
//
// Iterations counts operator evaluations since the level started and never
// exceeds MaxIterations.
type Progress struct {
	CurrentDepth  int   `json:"current_depth"`
	Iterations    int64 `json:"iterations"`
	MaxIterations int64 `json:"max_iterations"`
}

// Percent returns the level completion as a percentage truncated to two
// decimals. A level with nothing to evaluate reports 100.
func (p Progress) Percent() float64 {
	if p.MaxIterations <= 0 {
		return 100
	}
	return math.Floor(10000*float64(p.Iterations)/float64(p.MaxIterations)) / 100
}

// -----------------------------------------------------------------------------
// Solution
// -----------------------------------------------------------------------------

// Solution is the handle delivered to OnSolution.
//
// It references the search's index, which is complete for Depth by the time
// the handle is delivered and is never written again.
type Solution struct {
	// Target is the value that was reached.
	Target int64

	// Depth is the minimal number of operations reaching Target.
	Depth int

	index *Index
}

// Expressions lazily yields every minimal-depth expression for the target.
func (s *Solution) Expressions() iter.Seq[*Expression] {
	return s.index.Expressions(s.Target)
}

// Derivations returns the top-level derivations of the target.
func (s *Solution) Derivations() []Derivation {
	return s.index.Derivations(s.Target)
}

// Count returns the number of trees Expressions yields.
func (s *Solution) Count() int64 {
	return s.index.CountExpressions(s.Target)
}

// Index returns the index the solution was read from.
func (s *Solution) Index() *Index {
	return s.index
}

// -----------------------------------------------------------------------------
// Options
// -----------------------------------------------------------------------------

// Options configures FindBest.
type Options struct {
	// Target is the value to reach. Must be in (0, MaxValue].
	Target int64

	// Values are the source values. Each must be in (0, MaxValue].
	// Duplicates are allowed.
	Values []int64

	// Operators is the allowed operator set. Duplicates are ignored.
	Operators []Operator

	// OnSolution receives the solution once the reaching level is exhausted.
	OnSolution func(*Solution)

	// OnProgress is called at the start of every level and at the end of
	// every slice.
	OnProgress func(Progress)

	// OnComplete is called after OnSolution, or alone when MaxDepth stops
	// the search.
	OnComplete func()

	// OnCancel is called once when a started search observes Cancel.
	OnCancel func()

	// Scheduler hosts the slices. Nil runs the search on a private Loop
	// that starts with Start and stops at the terminal state.
	Scheduler Scheduler

	// SliceBudget bounds the wall time of one slice. Zero or negative uses
	// DefaultSliceBudget.
	SliceBudget time.Duration

	// MaxDepth stops the search after this level. Zero means unbounded.
	MaxDepth int

	// AllowSourceReuse lets a source value be combined with itself even
	// when it occurs only once.
	AllowSourceReuse bool

	// Logger receives debug and lifecycle logs. Nil uses slog.Default().
	Logger *slog.Logger

	// Tracer records a span per search. Nil disables tracing.
	Tracer *SearchTracer

	// Clock returns the current time. Nil uses time.Now.
	Clock func() time.Time
}

// -----------------------------------------------------------------------------
// Search
// -----------------------------------------------------------------------------

// Search is a single iterative-deepening run.
//
// Description:
//
//	Level L combines every pair of known values whose depths sum to L-1,
//	using every operator, and records each valid result in the index. The
//	first level at which the target is recorded is run to exhaustion so the
//	index holds every derivation at that depth; then the solution is
//	delivered and the search completes.
//
// Thread Safety: Start, Cancel, State and Progress are safe for concurrent
// use. Everything else, including callbacks, runs on the scheduler.
type Search struct {
	opts    Options
	ops     []OperatorInfo
	index   *Index
	sched   Scheduler
	ownLoop *Loop
	budget  time.Duration
	clock   func() time.Time
	logger  *slog.Logger
	tracer  *SearchTracer

	state     atomic.Int32
	cancelled atomic.Bool
	progress  atomic.Pointer[Progress]

	// terminalMu orders Cancel against the move to a terminal state.
	terminalMu sync.Mutex

	// Scheduler-owned.
	ctx        context.Context
	span       trace.Span
	level      int
	cand       *Candidates
	current    Progress
	found      bool
	levelStart time.Time
}

// FindBest validates opts and prepares a search. Call Start to run it.
//
// Inputs:
//   - opts: Search options. Callbacks may be nil.
//
// Outputs:
//   - *Search: The idle search.
//   - error: ErrInvalidTarget, ErrInvalidValue, ErrUnknownOperator or
//     ErrInvalidMaxDepth, wrapped with the offending input.
func FindBest(opts Options) (*Search, error) {
	if opts.Target <= 0 || opts.Target > MaxValue {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTarget, opts.Target)
	}
	for i, v := range opts.Values {
		if v <= 0 || v > MaxValue {
			return nil, fmt.Errorf("%w: values[%d] = %d", ErrInvalidValue, i, v)
		}
	}
	if opts.MaxDepth < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMaxDepth, opts.MaxDepth)
	}

	ops := make([]OperatorInfo, 0, len(opts.Operators))
	seen := make(map[Operator]bool, len(opts.Operators))
	for _, op := range opts.Operators {
		info, ok := Lookup(op)
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownOperator, int(op))
		}
		if seen[op] {
			continue
		}
		seen[op] = true
		ops = append(ops, info)
	}

	s := &Search{
		opts:   opts,
		ops:    ops,
		index:  NewIndex(opts.Values),
		sched:  opts.Scheduler,
		budget: opts.SliceBudget,
		clock:  opts.Clock,
		logger: opts.Logger,
		tracer: opts.Tracer,
		ctx:    context.Background(),
	}
	if s.budget <= 0 {
		s.budget = DefaultSliceBudget
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With(slog.Int64("target", opts.Target))
	if s.sched == nil {
		s.ownLoop = NewLoopWithLogger(s.logger)
		s.sched = s.ownLoop
	}
	s.progress.Store(&Progress{})
	return s, nil
}

// Start schedules the first slice. Calls after the first, or after Cancel on
// an idle search, do nothing.
func (s *Search) Start() {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return
	}
	if s.ownLoop != nil {
		go func() {
			_ = s.ownLoop.Run(context.Background())
		}()
	}
	s.ctx, s.span = s.tracer.StartSearch(s.ctx, s.opts.Target, s.opts.Values, s.opts.Operators)
	s.logger.Debug("search started",
		slog.Int("values", len(s.opts.Values)),
		slog.Int("operators", len(s.ops)),
		slog.Duration("slice_budget", s.budget),
	)
	s.sched.Schedule(s.slice)
}

// Cancel requests cancellation. A running search observes it at the start of
// its next slice, or at the latest before it would complete, and calls
// OnCancel; an idle search moves straight to StateCancelled without
// callbacks. Cancelling a search that already reached a terminal state does
// nothing.
func (s *Search) Cancel() {
	s.terminalMu.Lock()
	defer s.terminalMu.Unlock()
	if s.State().IsTerminal() {
		return
	}
	s.cancelled.Store(true)
	if s.state.CompareAndSwap(int32(StateIdle), int32(StateCancelled)) {
		recordTerminal(s.ctx, StateCancelled)
	}
}

// State returns the current lifecycle state.
func (s *Search) State() State {
	return State(s.state.Load())
}

// Progress returns the last progress reported.
func (s *Search) Progress() Progress {
	return *s.progress.Load()
}

// Level returns the depth level last reported.
func (s *Search) Level() int {
	return s.Progress().CurrentDepth
}

// Index returns the search's index. Read it only once the search is terminal
// or from the scheduler goroutine.
func (s *Search) Index() *Index {
	return s.index
}

// slice runs one time-bounded unit of work and re-schedules itself.
func (s *Search) slice() {
	if s.State() != StateRunning {
		return
	}
	if s.cancelled.Load() {
		s.finishCancelled()
		return
	}

	if s.level == 0 && s.cand == nil && s.index.IsSource(s.opts.Target) {
		s.finishSolved()
		return
	}

	deadline := s.clock().Add(s.budget)
	var evaluated int64
	defer func() { recordIterations(s.ctx, evaluated) }()

	for {
		if s.cand == nil {
			if s.opts.MaxDepth > 0 && s.level >= s.opts.MaxDepth {
				s.finishExhausted()
				return
			}
			s.beginLevel(s.level + 1)
		}

		a, b, ok := s.cand.Next()
		if !ok {
			recordLevel(s.ctx, s.level, s.clock().Sub(s.levelStart))
			if s.found {
				s.finishSolved()
				return
			}
			s.cand = nil
			if !s.clock().Before(deadline) {
				s.yield()
				return
			}
			continue
		}

		evaluated += s.combine(a, b)
		if !s.clock().Before(deadline) {
			s.yield()
			return
		}
	}
}

// beginLevel snapshots the candidates for level and reports zero progress.
func (s *Search) beginLevel(level int) {
	s.level = level
	s.cand = NewCandidates(s.index, level, s.opts.Target, s.opts.AllowSourceReuse)
	s.levelStart = s.clock()
	s.current = Progress{
		CurrentDepth:  level,
		MaxIterations: s.cand.Estimate(len(s.ops)),
	}
	s.tracer.TraceLevel(s.span, level, s.current.MaxIterations, s.index.Len())
	s.logger.Debug("search level started",
		slog.Int("level", level),
		slog.Int64("max_iterations", s.current.MaxIterations),
		slog.Int("known_values", s.index.Len()),
	)
	s.emitProgress()
}

// combine applies every operator to (a, b) and returns the evaluations done.
// Results that are invalid, non-positive or above the target are dropped:
// such values can never be operands.
func (s *Search) combine(a, b int64) int64 {
	for _, op := range s.ops {
		s.current.Iterations++
		v, ok := op.Evaluate(a, b)
		if !ok || v <= 0 || v > s.opts.Target {
			continue
		}
		outcome := s.index.Record(a, op.Op, b, v)
		if v == s.opts.Target && outcome.Reachable() {
			s.found = true
		}
	}
	return int64(len(s.ops))
}

func (s *Search) yield() {
	s.emitProgress()
	s.sched.Schedule(s.slice)
}

func (s *Search) emitProgress() {
	p := s.current
	s.progress.Store(&p)
	if s.opts.OnProgress != nil {
		s.opts.OnProgress(p)
	}
}

func (s *Search) finishSolved() {
	if s.cancelled.Load() {
		s.finishCancelled()
		return
	}
	sol := &Solution{Target: s.opts.Target, Depth: s.level, index: s.index}
	if s.opts.OnSolution != nil {
		s.opts.OnSolution(sol)
	}
	if !s.finish(StateCompleted) {
		s.finishCancelled()
		return
	}
	s.logger.Info("search completed",
		slog.Int("depth", sol.Depth),
		slog.Int("derivations", len(s.index.Derivations(s.opts.Target))),
		slog.Int("known_values", s.index.Len()),
	)
	if s.opts.OnComplete != nil {
		s.opts.OnComplete()
	}
}

func (s *Search) finishExhausted() {
	if !s.finish(StateExhausted) {
		s.finishCancelled()
		return
	}
	s.logger.Info("search exhausted max depth",
		slog.Int("max_depth", s.opts.MaxDepth),
		slog.Int("known_values", s.index.Len()),
	)
	if s.opts.OnComplete != nil {
		s.opts.OnComplete()
	}
}

func (s *Search) finishCancelled() {
	s.finish(StateCancelled)
	s.logger.Info("search cancelled", slog.Int("level", s.level))
	if s.opts.OnCancel != nil {
		s.opts.OnCancel()
	}
}

// finish moves to a terminal state and releases scheduler resources. It
// returns false, changing nothing, when state is not StateCancelled and a
// Cancel got in first.
func (s *Search) finish(state State) bool {
	s.terminalMu.Lock()
	if state != StateCancelled && s.cancelled.Load() {
		s.terminalMu.Unlock()
		return false
	}
	p := s.current
	s.progress.Store(&p)
	s.state.Store(int32(state))
	s.terminalMu.Unlock()

	s.tracer.EndSearch(s.span, state, s.current, nil)
	recordTerminal(s.ctx, state)
	if s.ownLoop != nil {
		s.ownLoop.Stop()
	}
	return true
}

// -----------------------------------------------------------------------------
// Solve
// -----------------------------------------------------------------------------

// Result is the outcome of Solve.
type Result struct {
	Target   int64
	State    State
	Solution *Solution
	Progress Progress
	Elapsed  time.Duration
}

// Solve runs a search to its terminal state and blocks until then.
//
// Description:
//
//	The callbacks in opts are still invoked. When ctx ends first the search
//	is cancelled and Solve waits for OnCancel before returning.
//
// Inputs:
//   - ctx: Cancels the search when done.
//   - opts: As for FindBest.
//
// Outputs:
//   - *Result: The final state, solution (nil unless completed) and progress.
//   - error: Validation errors from FindBest, or ctx.Err() if the search was
//     cancelled by ctx.
func Solve(ctx context.Context, opts Options) (*Result, error) {
	done := make(chan struct{})
	var solution *Solution

	onSolution, onComplete, onCancel := opts.OnSolution, opts.OnComplete, opts.OnCancel
	opts.OnSolution = func(sol *Solution) {
		solution = sol
		if onSolution != nil {
			onSolution(sol)
		}
	}
	opts.OnComplete = func() {
		if onComplete != nil {
			onComplete()
		}
		close(done)
	}
	opts.OnCancel = func() {
		if onCancel != nil {
			onCancel()
		}
		close(done)
	}

	s, err := FindBest(opts)
	if err != nil {
		return nil, err
	}
	s.ctx = ctx

	started := s.clock()
	s.Start()

	select {
	case <-done:
	case <-ctx.Done():
		s.Cancel()
		<-done
	}

	res := &Result{
		Target:   opts.Target,
		State:    s.State(),
		Solution: solution,
		Progress: s.Progress(),
		Elapsed:  s.clock().Sub(started),
	}
	if res.State == StateCancelled {
		if err := ctx.Err(); err != nil {
			return res, err
		}
	}
	return res, nil
}
