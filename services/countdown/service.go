// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package countdown provides the countdown solver service and its HTTP API.
//
// The service runs searches as jobs on one shared cooperative loop, so any
// number of concurrent searches share a single goroutine and each stays
// responsive to Cancel. It exposes endpoints for:
//   - Starting, listing, inspecting and cancelling searches
//   - Streaming live progress over a websocket
//   - Browsing and deleting persisted search history
package countdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/countdown/pkg/validation"
	"github.com/AleutianAI/countdown/services/countdown/engine"
	"github.com/AleutianAI/countdown/services/countdown/history"
	"github.com/AleutianAI/countdown/services/countdown/present"
	"github.com/AleutianAI/countdown/services/countdown/telemetry"
)

// subscriberBuffer is the channel capacity of each job subscriber.
const subscriberBuffer = 64

// persistTimeout bounds one history write.
const persistTimeout = 5 * time.Second

// Service runs countdown searches.
//
// Thread Safety:
//
//	Service is safe for concurrent use. Multiple goroutines can call
//	any combination of methods simultaneously.
type Service struct {
	config  Config
	history *history.Store
	logger  *slog.Logger
	tracer  *engine.SearchTracer
	clock   func() time.Time

	loop     *engine.Loop
	loopDone chan struct{}

	mu      sync.RWMutex
	jobs    map[string]*Job
	order   []string
	running int
	closed  bool
}

// NewService creates a service and starts its scheduler loop.
//
// Description:
//
//	All searches started through the service are scheduled on one
//	engine.Loop owned by the service. Close stops it.
//
// Inputs:
//
//	config - Service configuration. Use DefaultConfig for defaults.
//	store - History store. Nil disables history.
//	logger - Logger. Nil uses slog.Default().
//
// Outputs:
//
//	*Service - The running service.
func NewService(config Config, store *history.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "countdown_service"))

	s := &Service{
		config:   config,
		history:  store,
		logger:   logger,
		tracer:   engine.NewSearchTracer(logger, config.Observability.TracingEnabled),
		clock:    time.Now,
		loop:     engine.NewLoopWithLogger(logger),
		loopDone: make(chan struct{}),
		jobs:     make(map[string]*Job),
	}

	go func() {
		defer close(s.loopDone)
		if err := s.loop.Run(context.Background()); err != nil && !errors.Is(err, engine.ErrLoopStopped) {
			logger.Error("scheduler loop exited", slog.String("error", err.Error()))
		}
	}()

	return s
}

// Config returns the service configuration.
func (s *Service) Config() Config {
	return s.config
}

// HistoryEnabled reports whether finished searches are persisted.
func (s *Service) HistoryEnabled() bool {
	return s.history != nil
}

// Start validates req and starts a search.
//
// Description:
//
//	The search runs asynchronously on the service loop. Use the returned
//	job to wait for it, subscribe to its events or take snapshots.
//
// Inputs:
//
//	ctx - Request context. Only used for trace-aware logging; the search
//	      outlives it.
//	req - The solve request.
//
// Outputs:
//
//	*Job - The running job.
//	error - ErrServiceClosed, ErrTooManySearches, or ErrInvalidRequest
//	        wrapping the validation failure.
func (s *Service) Start(ctx context.Context, req SolveRequest) (*Job, error) {
	if err := solveValidate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	values := req.Values
	if len(values) == 0 {
		values = DefaultValues()
	}
	ops := DefaultOperators()
	if len(req.Operators) > 0 {
		ops = make([]engine.Operator, 0, len(req.Operators))
		for _, name := range req.Operators {
			op, err := engine.ParseOperator(name)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
			}
			ops = append(ops, op)
		}
	}
	maxDepth := req.MaxDepth
	if maxDepth == 0 {
		maxDepth = s.config.Search.MaxDepth
	}
	timeLimit := time.Duration(req.TimeLimitMs) * time.Millisecond
	if timeLimit == 0 {
		timeLimit = s.config.Search.TimeLimit
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate search id: %w", err)
	}
	job := &Job{
		ID:          id.String(),
		Target:      req.Target,
		Values:      append([]int64(nil), values...),
		Operators:   ops,
		StartedAt:   s.clock(),
		done:        make(chan struct{}),
		subscribers: make(map[int]chan Event),
	}
	logger := telemetry.LoggerWithTrace(ctx, s.logger).With(slog.String("search_id", job.ID))

	search, err := engine.FindBest(engine.Options{
		Target:           req.Target,
		Values:           job.Values,
		Operators:        ops,
		OnProgress:       func(p engine.Progress) { s.onProgress(job, p) },
		OnSolution:       func(sol *engine.Solution) { s.onSolution(job, sol) },
		OnComplete:       func() { s.onTerminal(job, EventComplete) },
		OnCancel:         func() { s.onTerminal(job, EventCancel) },
		Scheduler:        s.loop,
		SliceBudget:      s.config.Search.SliceBudget,
		MaxDepth:         maxDepth,
		AllowSourceReuse: req.AllowSourceReuse || s.config.Search.AllowSourceReuse,
		Logger:           logger,
		Tracer:           s.tracer,
		Clock:            s.clock,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	job.search = search

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrServiceClosed
	}
	if s.running >= s.config.Search.MaxConcurrent {
		s.mu.Unlock()
		return nil, ErrTooManySearches
	}
	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)
	s.running++
	s.mu.Unlock()

	searchesStarted.Inc()
	activeSearches.Inc()

	if timeLimit > 0 {
		job.timer = time.AfterFunc(timeLimit, func() {
			logger.Info("search time limit reached", slog.Duration("time_limit", timeLimit))
			search.Cancel()
		})
	}

	logger.Info("search accepted",
		slog.Int64("target", req.Target),
		slog.Int("values", len(job.Values)),
		slog.Int("operators", len(ops)),
		slog.Int("max_depth", maxDepth),
	)
	search.Start()
	return job, nil
}

// Get returns the job with the given ID.
func (s *Service) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSearchNotFound, id)
	}
	return job, nil
}

// Cancel requests cancellation of a job. Cancelling a finished job does
// nothing.
func (s *Service) Cancel(id string) (*Job, error) {
	job, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	job.search.Cancel()
	return job, nil
}

// List returns snapshots of all retained jobs, newest first.
func (s *Service) List() []JobSnapshot {
	s.mu.RLock()
	jobs := make([]*Job, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		jobs = append(jobs, s.jobs[s.order[i]])
	}
	s.mu.RUnlock()

	out := make([]JobSnapshot, len(jobs))
	for i, job := range jobs {
		out[i] = job.Snapshot()
	}
	return out
}

// History returns up to limit persisted items, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]history.Item, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.List(ctx, limit)
}

// HistoryItem returns one persisted item.
func (s *Service) HistoryItem(ctx context.Context, id string) (history.Item, error) {
	if s.history == nil {
		return history.Item{}, ErrHistoryDisabled
	}
	if err := validation.ValidateID(id); err != nil {
		return history.Item{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return s.history.Get(ctx, id)
}

// DeleteHistory removes one persisted item.
func (s *Service) DeleteHistory(ctx context.Context, id string) error {
	if s.history == nil {
		return ErrHistoryDisabled
	}
	if err := validation.ValidateID(id); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return s.history.Delete(ctx, id)
}

// Close stops accepting searches, cancels running ones and waits for them to
// settle, then stops the loop.
//
// Outputs:
//
//	error - ctx.Err() if ctx ended before every job settled.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	s.mu.Unlock()

	for _, job := range jobs {
		job.search.Cancel()
	}

	var err error
wait:
	for _, job := range jobs {
		select {
		case <-job.done:
		case <-ctx.Done():
			err = ctx.Err()
			break wait
		}
	}

	s.loop.Stop()
	<-s.loopDone
	s.logger.Info("countdown service closed", slog.Int("jobs", len(jobs)))
	return err
}

// -----------------------------------------------------------------------------
// Engine callbacks (run on the service loop)
// -----------------------------------------------------------------------------

func (s *Service) onProgress(job *Job, p engine.Progress) {
	job.publish(Event{
		Type:     EventProgress,
		SearchID: job.ID,
		State:    engine.StateRunning,
		Progress: p,
		Percent:  p.Percent(),
	}, false)
}

func (s *Service) onSolution(job *Job, sol *engine.Solution) {
	summary := present.Summarize(sol, s.config.Search.ExpressionLimit)

	job.mu.Lock()
	job.summary = &summary
	job.mu.Unlock()

	p := job.search.Progress()
	job.publish(Event{
		Type:      EventSolution,
		SearchID:  job.ID,
		State:     engine.StateRunning,
		Progress:  p,
		Percent:   p.Percent(),
		Depth:     summary.Depth,
		Count:     summary.Count,
		Solutions: summary.Best,
	}, true)
}

func (s *Service) onTerminal(job *Job, typ EventType) {
	if job.timer != nil {
		job.timer.Stop()
	}
	finished := s.clock()
	elapsed := finished.Sub(job.StartedAt)
	state := job.search.State()

	job.mu.Lock()
	job.finishedAt = finished
	job.mu.Unlock()

	searchesFinished.WithLabelValues(state.String()).Inc()
	searchDuration.WithLabelValues(state.String()).Observe(elapsed.Seconds())
	activeSearches.Dec()

	// History writes leave the loop so other searches keep running.
	go s.settle(job, typ, state, elapsed)
}

// settle persists the job, notifies subscribers and releases its slot.
func (s *Service) settle(job *Job, typ EventType, state engine.State, elapsed time.Duration) {
	snap := job.Snapshot()
	if state == engine.StateCompleted {
		searchDepth.Observe(float64(snap.Depth))
	}

	if s.history != nil {
		historyID := s.persist(job, snap, state, elapsed)
		job.mu.Lock()
		job.historyID = historyID
		job.mu.Unlock()
	}

	s.mu.Lock()
	s.running--
	s.mu.Unlock()

	job.complete(Event{
		Type:      typ,
		SearchID:  job.ID,
		State:     state,
		Progress:  snap.Progress,
		Percent:   snap.Percent,
		Depth:     snap.Depth,
		Count:     snap.Count,
		Solutions: snap.Solutions,
	})
	s.evict()
}

func (s *Service) persist(job *Job, snap JobSnapshot, state engine.State, elapsed time.Duration) string {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	item, err := s.history.Put(ctx, history.Item{
		Target:      job.Target,
		Values:      job.Values,
		Operators:   job.Operators,
		Date:        job.StartedAt,
		State:       state,
		Canceled:    state == engine.StateCancelled,
		Progress:    snap.Progress,
		Depth:       snap.Depth,
		Count:       snap.Count,
		Expressions: snap.Solutions,
		Elapsed:     elapsed,
	})
	if err != nil {
		historyWrites.WithLabelValues("error").Inc()
		s.logger.Error("failed to persist search",
			slog.String("search_id", job.ID),
			slog.String("error", err.Error()),
		)
		return ""
	}
	historyWrites.WithLabelValues("ok").Inc()

	if keep := s.config.History.MaxItems; keep > 0 {
		if pruned, err := s.history.Prune(ctx, keep); err != nil {
			s.logger.Warn("failed to prune history", slog.String("error", err.Error()))
		} else if pruned > 0 {
			s.logger.Debug("pruned history", slog.Int("deleted", pruned))
		}
	}
	return item.ID
}

// evict drops the oldest finished jobs beyond RetainFinished.
func (s *Service) evict() {
	s.mu.Lock()
	defer s.mu.Unlock()

	finished := 0
	for _, id := range s.order {
		if s.jobs[id].finished() {
			finished++
		}
	}
	excess := finished - s.config.Search.RetainFinished
	if excess <= 0 {
		return
	}

	kept := s.order[:0]
	for _, id := range s.order {
		if excess > 0 && s.jobs[id].finished() {
			delete(s.jobs, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

// -----------------------------------------------------------------------------
// Job
// -----------------------------------------------------------------------------

// Job is one search run by the service.
//
// Thread Safety: Safe for concurrent use.
type Job struct {
	ID        string
	Target    int64
	Values    []int64
	Operators []engine.Operator
	StartedAt time.Time

	search *engine.Search
	timer  *time.Timer
	done   chan struct{}

	mu          sync.RWMutex
	summary     *present.Summary
	finishedAt  time.Time
	historyID   string
	subscribers map[int]chan Event
	nextSub     int
	terminal    *Event
}

// Done is closed once the job has settled: terminal state reached, history
// written and subscribers notified.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

func (j *Job) finished() bool {
	select {
	case <-j.done:
		return true
	default:
		return false
	}
}

// Snapshot returns the job's current view.
func (j *Job) Snapshot() JobSnapshot {
	p := j.search.Progress()
	snap := JobSnapshot{
		ID:        j.ID,
		Target:    j.Target,
		Values:    j.Values,
		Operators: j.Operators,
		State:     j.search.State(),
		Progress:  p,
		Percent:   p.Percent(),
		StartedAt: j.StartedAt,
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.summary != nil {
		snap.Depth = j.summary.Depth
		snap.Count = j.summary.Count
		snap.Solutions = j.summary.Best
	}
	if !j.finishedAt.IsZero() {
		t := j.finishedAt
		snap.FinishedAt = &t
	}
	snap.HistoryID = j.historyID
	return snap
}

// Subscribe returns a channel of job events and a function that ends the
// subscription. The channel is closed after the terminal event. Subscribing
// to a settled job yields only its terminal event.
//
// Progress events are dropped when the subscriber falls behind; solution and
// terminal events are not.
func (j *Job) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	j.mu.Lock()
	if j.terminal != nil {
		ch <- *j.terminal
		close(ch)
		j.mu.Unlock()
		return ch, func() {}
	}
	id := j.nextSub
	j.nextSub++
	j.subscribers[id] = ch
	j.mu.Unlock()

	return ch, func() {
		j.mu.Lock()
		defer j.mu.Unlock()
		if c, ok := j.subscribers[id]; ok {
			delete(j.subscribers, id)
			close(c)
		}
	}
}

func (j *Job) publish(ev Event, must bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, ch := range j.subscribers {
		deliver(ch, ev, must)
	}
}

// complete publishes the terminal event, closes subscribers and marks the
// job settled.
func (j *Job) complete(ev Event) {
	j.mu.Lock()
	j.terminal = &ev
	for id, ch := range j.subscribers {
		deliver(ch, ev, true)
		close(ch)
		delete(j.subscribers, id)
	}
	j.mu.Unlock()
	close(j.done)
}

// deliver sends ev without blocking. When must is set and the buffer is
// full, the oldest queued progress event is discarded to make room, or the
// oldest event of any kind if no progress is queued. Queue order is kept.
// The caller holds the job lock, so it is the only sender.
func deliver(ch chan Event, ev Event, must bool) {
	select {
	case ch <- ev:
		return
	default:
	}
	if !must {
		return
	}

	queued := make([]Event, 0, cap(ch))
drain:
	for {
		select {
		case q := <-ch:
			queued = append(queued, q)
		default:
			break drain
		}
	}
	if len(queued) == cap(ch) {
		drop := 0
		for i, q := range queued {
			if q.Type == EventProgress {
				drop = i
				break
			}
		}
		queued = slices.Delete(queued, drop, drop+1)
	}
	for _, q := range queued {
		ch <- q
	}
	ch <- ev
}
