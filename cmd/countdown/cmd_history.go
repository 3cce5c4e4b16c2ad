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
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/countdown/pkg/ux"
	"github.com/AleutianAI/countdown/pkg/validation"
	"github.com/AleutianAI/countdown/services/countdown/history"
	storage "github.com/AleutianAI/countdown/services/countdown/storage/badger"
)

var historyLimit int

// openHistory opens the history database described by scfg.
//
// Outputs:
//   - *history.Store: The store.
//   - func() error: Closes the database. Always non-nil on success.
//   - error: Wrapped storage error.
func openHistory(scfg storage.Config, log *slog.Logger) (*history.Store, func() error, error) {
	scfg.Logger = log
	db, err := storage.Open(scfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open history: %w", err)
	}
	return history.NewStore(db, log), db.Close, nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, closeDB, err := openHistory(cfg.History.Storage, logger.Slog())
	if err != nil {
		return err
	}
	defer closeDB()

	items, err := store.List(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		printer.Info("No searches recorded.")
		return nil
	}

	printer.Title("History")
	printer.Table(
		[]string{"ID", "DATE", "TARGET", "STATE", "DEPTH", "COUNT", "ELAPSED"},
		historyRows(items),
	)
	return nil
}

func historyRows(items []history.Item) [][]string {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{
			it.ID,
			it.Date.Local().Format(time.DateTime),
			strconv.FormatInt(it.Target, 10),
			it.State.String(),
			strconv.Itoa(it.Depth),
			strconv.FormatInt(it.Count, 10),
			it.Elapsed.Round(time.Millisecond).String(),
		})
	}
	return rows
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	id, err := validation.SanitizeID(args[0])
	if err != nil {
		return err
	}
	store, closeDB, err := openHistory(cfg.History.Storage, logger.Slog())
	if err != nil {
		return err
	}
	defer closeDB()

	item, err := store.Get(cmd.Context(), id)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			return fmt.Errorf("no search with id %s", id)
		}
		return err
	}

	ops := make([]string, len(item.Operators))
	for i, op := range item.Operators {
		ops[i] = op.String()
	}
	values := make([]string, len(item.Values))
	for i, v := range item.Values {
		values[i] = strconv.FormatInt(v, 10)
	}
	printer.Info(fmt.Sprintf("%s  %s  values %s  ops %s",
		item.ID, item.Date.Local().Format(time.DateTime),
		strings.Join(values, ","), strings.Join(ops, " ")))
	printer.Solution(ux.SolutionView{
		Target:      item.Target,
		State:       item.State.String(),
		Depth:       item.Depth,
		Count:       item.Count,
		Expressions: item.Expressions,
		Elapsed:     item.Elapsed,
	})
	return nil
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	id, err := validation.SanitizeID(args[0])
	if err != nil {
		return err
	}
	store, closeDB, err := openHistory(cfg.History.Storage, logger.Slog())
	if err != nil {
		return err
	}
	defer closeDB()

	if err := store.Delete(cmd.Context(), id); err != nil {
		if errors.Is(err, history.ErrNotFound) {
			return fmt.Errorf("no search with id %s", id)
		}
		return err
	}
	printer.Success("Deleted " + id)
	return nil
}
