// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package countdown

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/countdown/services/countdown/engine"
	"github.com/AleutianAI/countdown/services/countdown/history"
	storage "github.com/AleutianAI/countdown/services/countdown/storage/badger"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.History.Storage = storage.InMemoryConfig()
	return cfg
}

func newTestService(t *testing.T, cfg Config) *Service {
	t.Helper()

	var store *history.Store
	if cfg.History.Enabled {
		db, err := storage.Open(cfg.History.Storage)
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		store = history.NewStore(db, nil)
	}

	svc := NewService(cfg, store, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Close(ctx)
	})
	return svc
}

func waitDone(t *testing.T, job *Job) {
	t.Helper()
	select {
	case <-job.Done():
	case <-time.After(10 * time.Second):
		t.Fatalf("search %s did not settle", job.ID)
	}
}

// endless never reaches its target: 5 cannot be combined with itself and
// every level is empty.
func endless() SolveRequest {
	return SolveRequest{Target: 1, Values: []int64{5}, Operators: []string{"+"}}
}

func TestService_StartCompletes(t *testing.T) {
	svc := newTestService(t, testConfig())

	job, err := svc.Start(context.Background(), SolveRequest{
		Target:    6,
		Values:    []int64{2, 3},
		Operators: []string{"+", "*"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)
	waitDone(t, job)

	snap := job.Snapshot()
	assert.Equal(t, engine.StateCompleted, snap.State)
	assert.Equal(t, 1, snap.Depth)
	assert.Equal(t, int64(1), snap.Count)
	assert.Equal(t, []string{"2 * 3"}, snap.Solutions)
	assert.Equal(t, []engine.Operator{engine.Add, engine.Multiply}, snap.Operators)
	require.NotNil(t, snap.FinishedAt)
	require.NotEmpty(t, snap.HistoryID)

	item, err := svc.HistoryItem(context.Background(), snap.HistoryID)
	require.NoError(t, err)
	assert.Equal(t, int64(6), item.Target)
	assert.Equal(t, engine.StateCompleted, item.State)
	assert.False(t, item.Canceled)
	assert.Equal(t, []string{"2 * 3"}, item.Expressions)
}

func TestService_Defaults(t *testing.T) {
	svc := newTestService(t, testConfig())

	job, err := svc.Start(context.Background(), SolveRequest{Target: 24})
	require.NoError(t, err)
	assert.Equal(t, DefaultValues(), job.Values)
	assert.Equal(t, DefaultOperators(), job.Operators)

	waitDone(t, job)
	snap := job.Snapshot()
	assert.Equal(t, engine.StateCompleted, snap.State)
	assert.Equal(t, 1, snap.Depth)
	assert.NotEmpty(t, snap.Solutions)
}

func TestDefaultValues(t *testing.T) {
	values := DefaultValues()
	assert.Len(t, values, 20)
	assert.NotContains(t, values, int64(10))
	assert.Equal(t, int64(1), values[0])
	assert.Equal(t, int64(21), values[19])
}

func TestService_Validation(t *testing.T) {
	svc := newTestService(t, testConfig())

	tests := []struct {
		name string
		req  SolveRequest
	}{
		{"zero target", SolveRequest{Target: 0}},
		{"target too large", SolveRequest{Target: engine.MaxValue + 1}},
		{"zero value", SolveRequest{Target: 5, Values: []int64{1, 0}}},
		{"unknown operator", SolveRequest{Target: 5, Operators: []string{"+", "root"}}},
		{"negative depth", SolveRequest{Target: 5, MaxDepth: -1}},
		{"negative time limit", SolveRequest{Target: 5, TimeLimitMs: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Start(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
	assert.Empty(t, svc.List())
}

func TestService_OperatorAliases(t *testing.T) {
	svc := newTestService(t, testConfig())

	job, err := svc.Start(context.Background(), SolveRequest{
		Target:    6,
		Values:    []int64{2, 3},
		Operators: []string{"plus", "Times"},
	})
	require.NoError(t, err)
	assert.Equal(t, []engine.Operator{engine.Add, engine.Multiply}, job.Operators)
	waitDone(t, job)
}

func TestService_Cancel(t *testing.T) {
	svc := newTestService(t, testConfig())

	job, err := svc.Start(context.Background(), endless())
	require.NoError(t, err)

	got, err := svc.Cancel(job.ID)
	require.NoError(t, err)
	assert.Same(t, job, got)
	waitDone(t, job)

	snap := job.Snapshot()
	assert.Equal(t, engine.StateCancelled, snap.State)
	assert.Empty(t, snap.Solutions)

	item, err := svc.HistoryItem(context.Background(), snap.HistoryID)
	require.NoError(t, err)
	assert.True(t, item.Canceled)
	assert.Equal(t, engine.StateCancelled, item.State)

	_, err = svc.Cancel(job.ID)
	assert.NoError(t, err, "cancelling a settled search is a no-op")
}

func TestService_TimeLimit(t *testing.T) {
	svc := newTestService(t, testConfig())

	req := endless()
	req.TimeLimitMs = 50
	job, err := svc.Start(context.Background(), req)
	require.NoError(t, err)
	waitDone(t, job)
	assert.Equal(t, engine.StateCancelled, job.Snapshot().State)
}

func TestService_ConfigTimeLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Search.TimeLimit = 50 * time.Millisecond
	svc := newTestService(t, cfg)

	job, err := svc.Start(context.Background(), endless())
	require.NoError(t, err)
	waitDone(t, job)
	assert.Equal(t, engine.StateCancelled, job.Snapshot().State)
}

func TestService_MaxDepth(t *testing.T) {
	svc := newTestService(t, testConfig())

	req := endless()
	req.MaxDepth = 3
	job, err := svc.Start(context.Background(), req)
	require.NoError(t, err)
	waitDone(t, job)

	snap := job.Snapshot()
	assert.Equal(t, engine.StateExhausted, snap.State)
	assert.Equal(t, 3, snap.Progress.CurrentDepth)
	assert.Empty(t, snap.Solutions)
}

func TestService_NotFound(t *testing.T) {
	svc := newTestService(t, testConfig())

	_, err := svc.Get("missing")
	assert.ErrorIs(t, err, ErrSearchNotFound)

	_, err = svc.Cancel("missing")
	assert.ErrorIs(t, err, ErrSearchNotFound)
}

func TestService_Closed(t *testing.T) {
	svc := newTestService(t, testConfig())

	running, err := svc.Start(context.Background(), endless())
	require.NoError(t, err)

	require.NoError(t, svc.Close(context.Background()))
	assert.Equal(t, engine.StateCancelled, running.Snapshot().State)

	_, err = svc.Start(context.Background(), SolveRequest{Target: 6, Values: []int64{2, 3}})
	assert.ErrorIs(t, err, ErrServiceClosed)

	assert.NoError(t, svc.Close(context.Background()))
}

func TestService_TooManySearches(t *testing.T) {
	cfg := testConfig()
	cfg.Search.MaxConcurrent = 1
	svc := newTestService(t, cfg)

	first, err := svc.Start(context.Background(), endless())
	require.NoError(t, err)

	_, err = svc.Start(context.Background(), endless())
	assert.ErrorIs(t, err, ErrTooManySearches)

	_, err = svc.Cancel(first.ID)
	require.NoError(t, err)
	waitDone(t, first)

	second, err := svc.Start(context.Background(), SolveRequest{Target: 6, Values: []int64{2, 3}})
	require.NoError(t, err)
	waitDone(t, second)
}

func TestService_ConcurrentSearchesShareLoop(t *testing.T) {
	svc := newTestService(t, testConfig())

	blocker, err := svc.Start(context.Background(), endless())
	require.NoError(t, err)

	quick, err := svc.Start(context.Background(), SolveRequest{
		Target: 100,
		Values: []int64{1, 2, 3, 4, 5, 6, 7, 8, 9},
	})
	require.NoError(t, err)
	waitDone(t, quick)
	assert.Equal(t, engine.StateCompleted, quick.Snapshot().State)
	assert.Equal(t, engine.StateRunning, blocker.Snapshot().State)

	_, err = svc.Cancel(blocker.ID)
	require.NoError(t, err)
	waitDone(t, blocker)
}

func TestService_Subscribe(t *testing.T) {
	svc := newTestService(t, testConfig())

	job, err := svc.Start(context.Background(), SolveRequest{
		Target:    6,
		Values:    []int64{2, 3},
		Operators: []string{"+", "*"},
	})
	require.NoError(t, err)

	events, unsubscribe := job.Subscribe()
	defer unsubscribe()

	var got []Event
	for ev := range events {
		got = append(got, ev)
	}
	require.NotEmpty(t, got)

	last := got[len(got)-1]
	assert.Equal(t, EventComplete, last.Type)
	assert.True(t, last.Type.Terminal())
	assert.Equal(t, job.ID, last.SearchID)
	assert.Equal(t, engine.StateCompleted, last.State)
	assert.Equal(t, []string{"2 * 3"}, last.Solutions)

	late, _ := job.Subscribe()
	ev, ok := <-late
	require.True(t, ok)
	assert.Equal(t, EventComplete, ev.Type)
	_, ok = <-late
	assert.False(t, ok)
}

func TestService_SubscribeCancel(t *testing.T) {
	svc := newTestService(t, testConfig())

	job, err := svc.Start(context.Background(), endless())
	require.NoError(t, err)

	events, unsubscribe := job.Subscribe()
	defer unsubscribe()

	_, err = svc.Cancel(job.ID)
	require.NoError(t, err)

	var last Event
	for ev := range events {
		last = ev
	}
	assert.Equal(t, EventCancel, last.Type)
	assert.Equal(t, engine.StateCancelled, last.State)
}

func TestService_Unsubscribe(t *testing.T) {
	svc := newTestService(t, testConfig())

	job, err := svc.Start(context.Background(), endless())
	require.NoError(t, err)

	events, unsubscribe := job.Subscribe()
	unsubscribe()
	unsubscribe()
	for range events {
	}

	_, err = svc.Cancel(job.ID)
	require.NoError(t, err)
	waitDone(t, job)
}

func TestDeliver(t *testing.T) {
	progress := Event{Type: EventProgress}
	solution := Event{Type: EventSolution}
	done := Event{Type: EventComplete}

	tests := []struct {
		name   string
		queued []Event
		ev     Event
		must   bool
		want   []EventType
	}{
		{
			name:   "room left",
			queued: []Event{progress},
			ev:     done,
			must:   true,
			want:   []EventType{EventProgress, EventComplete},
		},
		{
			name:   "full drops optional event",
			queued: []Event{solution, progress, progress},
			ev:     progress,
			want:   []EventType{EventSolution, EventProgress, EventProgress},
		},
		{
			name:   "full keeps solution ahead of progress",
			queued: []Event{solution, progress, progress},
			ev:     done,
			must:   true,
			want:   []EventType{EventSolution, EventProgress, EventComplete},
		},
		{
			name:   "full without progress drops oldest",
			queued: []Event{solution, solution, solution},
			ev:     done,
			must:   true,
			want:   []EventType{EventSolution, EventSolution, EventComplete},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := make(chan Event, 3)
			for _, ev := range tt.queued {
				ch <- ev
			}
			deliver(ch, tt.ev, tt.must)
			close(ch)

			var got []EventType
			for ev := range ch {
				got = append(got, ev.Type)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_SubscribeSlowReader(t *testing.T) {
	job := &Job{subscribers: make(map[int]chan Event), done: make(chan struct{})}
	events, _ := job.Subscribe()

	job.publish(Event{Type: EventSolution, Solutions: []string{"2 * 3"}}, true)
	for i := 0; i < 2*subscriberBuffer; i++ {
		job.publish(Event{Type: EventProgress}, false)
	}
	job.publish(Event{Type: EventProgress}, true)
	job.complete(Event{Type: EventComplete, State: engine.StateCompleted})

	var got []Event
	for ev := range events {
		got = append(got, ev)
	}
	require.Len(t, got, subscriberBuffer)
	assert.Equal(t, EventSolution, got[0].Type)
	assert.Equal(t, []string{"2 * 3"}, got[0].Solutions)
	assert.Equal(t, EventComplete, got[len(got)-1].Type)
}

func TestService_ListNewestFirst(t *testing.T) {
	svc := newTestService(t, testConfig())

	first, err := svc.Start(context.Background(), SolveRequest{Target: 6, Values: []int64{2, 3}})
	require.NoError(t, err)
	second, err := svc.Start(context.Background(), SolveRequest{Target: 5, Values: []int64{2, 3}})
	require.NoError(t, err)
	waitDone(t, first)
	waitDone(t, second)

	list := svc.List()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestService_RetainFinished(t *testing.T) {
	cfg := testConfig()
	cfg.Search.RetainFinished = 1
	svc := newTestService(t, cfg)

	for _, target := range []int64{5, 6} {
		job, err := svc.Start(context.Background(), SolveRequest{Target: target, Values: []int64{2, 3}})
		require.NoError(t, err)
		waitDone(t, job)
	}

	require.Eventually(t, func() bool {
		return len(svc.List()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(6), svc.List()[0].Target)
}

func TestService_HistoryPruned(t *testing.T) {
	cfg := testConfig()
	cfg.History.MaxItems = 2
	svc := newTestService(t, cfg)

	for _, target := range []int64{5, 6, 9} {
		job, err := svc.Start(context.Background(), SolveRequest{Target: target, Values: []int64{2, 3}})
		require.NoError(t, err)
		waitDone(t, job)
	}

	items, err := svc.History(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(9), items[0].Target)
	assert.Equal(t, int64(6), items[1].Target)
}

func TestService_HistoryDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.History.Enabled = false
	svc := newTestService(t, cfg)
	assert.False(t, svc.HistoryEnabled())

	job, err := svc.Start(context.Background(), SolveRequest{Target: 6, Values: []int64{2, 3}})
	require.NoError(t, err)
	waitDone(t, job)
	assert.Empty(t, job.Snapshot().HistoryID)

	_, err = svc.History(context.Background(), 10)
	assert.ErrorIs(t, err, ErrHistoryDisabled)
	_, err = svc.HistoryItem(context.Background(), "x")
	assert.ErrorIs(t, err, ErrHistoryDisabled)
	assert.ErrorIs(t, svc.DeleteHistory(context.Background(), "x"), ErrHistoryDisabled)
}
