// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/countdown/services/countdown/engine"
	storage "github.com/AleutianAI/countdown/services/countdown/storage/badger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db, nil)
}

func TestStore_PutGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stored, err := store.Put(ctx, Item{
		Target:      100,
		Values:      []int64{1, 9, 10},
		Operators:   []engine.Operator{engine.Add, engine.Multiply},
		State:       engine.StateCompleted,
		Progress:    engine.Progress{CurrentDepth: 2, Iterations: 40, MaxIterations: 40},
		Depth:       2,
		Count:       3,
		Expressions: []string{"(1 + 9) * 10"},
		Elapsed:     1500 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NotEmpty(t, stored.ID)
	assert.False(t, stored.Date.IsZero())

	got, err := store.Get(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, got.ID)
	assert.Equal(t, int64(100), got.Target)
	assert.Equal(t, []engine.Operator{engine.Add, engine.Multiply}, got.Operators)
	assert.Equal(t, engine.StateCompleted, got.State)
	assert.Equal(t, stored.Progress, got.Progress)
	assert.Equal(t, []string{"(1 + 9) * 10"}, got.Expressions)
	assert.Equal(t, 1500*time.Millisecond, got.Elapsed)
	assert.True(t, stored.Date.Equal(got.Date))
}

func TestStore_PutInvalid(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Put(context.Background(), Item{})
	assert.ErrorIs(t, err, ErrInvalidItem)
}

func TestStore_GetMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, target := range []int64{10, 20, 30} {
		_, err := store.Put(ctx, Item{Target: target, Date: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}

	items, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []int64{30, 20, 10}, []int64{items[0].Target, items[1].Target, items[2].Target})

	limited, err := store.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
	assert.Equal(t, int64(30), limited[0].Target)
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	item, err := store.Put(ctx, Item{Target: 7, State: engine.StateCancelled, Canceled: true})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, item.ID))
	_, err = store.Get(ctx, item.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, item.ID), ErrNotFound)
}

func TestStore_Prune(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := store.Put(ctx, Item{Target: int64(i + 1), Date: base.Add(time.Duration(i) * time.Second)})
		require.NoError(t, err)
	}

	deleted, err := store.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	items, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(5), items[0].Target)
	assert.Equal(t, int64(4), items[1].Target)

	deleted, err = store.Prune(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
