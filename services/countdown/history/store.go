// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history persists summaries of finished searches.
//
// Only the outcome of a search is stored (target, inputs, final progress and
// the rendered best expressions), never the search state itself, so a
// stored item can be displayed but not resumed.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/countdown/services/countdown/engine"
	storage "github.com/AleutianAI/countdown/services/countdown/storage/badger"
)

var (
	// ErrNotFound is returned when no item has the requested ID.
	ErrNotFound = errors.New("history item not found")

	// ErrInvalidItem is returned by Put for items without a positive target.
	ErrInvalidItem = errors.New("history item must have a positive target")
)

const keyPrefix = "history/"

// Item is the stored summary of one search.
type Item struct {
	ID          string            `json:"id"`
	Target      int64             `json:"target"`
	Values      []int64           `json:"values"`
	Operators   []engine.Operator `json:"operators"`
	Date        time.Time         `json:"date"`
	State       engine.State      `json:"state"`
	Canceled    bool              `json:"canceled"`
	Progress    engine.Progress   `json:"progress"`
	Depth       int               `json:"depth"`
	Count       int64             `json:"count"`
	Expressions []string          `json:"expressions,omitempty"`
	Elapsed     time.Duration     `json:"elapsed"`
}

// Store reads and writes history items in BadgerDB.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db     *storage.DB
	logger *slog.Logger
}

// NewStore creates a store over an open database.
func NewStore(db *storage.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger.With(slog.String("component", "history"))}
}

func itemKey(id string) []byte {
	return []byte(keyPrefix + id)
}

// Put stores item, assigning an ID and date when they are empty.
//
// Outputs:
//   - Item: The stored item with ID and Date filled in.
//   - error: ErrInvalidItem, or a wrapped storage error.
func (s *Store) Put(ctx context.Context, item Item) (Item, error) {
	if item.Target <= 0 {
		return Item{}, ErrInvalidItem
	}
	if item.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return Item{}, fmt.Errorf("generate history id: %w", err)
		}
		item.ID = id.String()
	}
	if item.Date.IsZero() {
		item.Date = time.Now().UTC()
	}

	data, err := json.Marshal(item)
	if err != nil {
		return Item{}, fmt.Errorf("encode history item: %w", err)
	}
	err = s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(itemKey(item.ID), data)
	})
	if err != nil {
		return Item{}, fmt.Errorf("store history item %s: %w", item.ID, err)
	}

	s.logger.Debug("history item stored",
		slog.String("id", item.ID),
		slog.Int64("target", item.Target),
		slog.String("state", item.State.String()),
	)
	return item, nil
}

// Get returns the item with the given ID.
func (s *Store) Get(ctx context.Context, id string) (Item, error) {
	var item Item
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		raw, err := txn.Get(itemKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		return raw.Value(func(val []byte) error {
			return json.Unmarshal(val, &item)
		})
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// List returns up to limit items, newest first. A limit of zero or less
// returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]Item, error) {
	var items []Item
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var item Item
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &item)
			})
			if err != nil {
				s.logger.Warn("skipping unreadable history item",
					slog.String("key", string(it.Item().Key())),
					slog.String("error", err.Error()),
				)
				continue
			}
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date.After(items[j].Date)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Delete removes the item with the given ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(itemKey(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrNotFound, id)
			}
			return err
		}
		return txn.Delete(itemKey(id))
	})
}

// Prune keeps the newest keep items and deletes the rest. It returns the
// number of items deleted. keep <= 0 disables pruning.
func (s *Store) Prune(ctx context.Context, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	items, err := s.List(ctx, 0)
	if err != nil {
		return 0, err
	}
	if len(items) <= keep {
		return 0, nil
	}

	stale := items[keep:]
	err = s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		for _, item := range stale {
			if err := txn.Delete(itemKey(item.ID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	s.logger.Debug("history pruned", slog.Int("deleted", len(stale)))
	return len(stale), nil
}
