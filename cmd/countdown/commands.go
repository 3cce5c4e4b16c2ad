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
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/countdown/pkg/logging"
	"github.com/AleutianAI/countdown/pkg/ux"
	"github.com/AleutianAI/countdown/services/countdown"
)

// --- Global Command Variables ---
var (
	configPath string
	logLevel   string
	logDir     string
	outputMode string

	// Set up by PersistentPreRunE.
	cfg     countdown.Config
	logger  *logging.Logger
	printer *ux.Printer

	rootCmd = &cobra.Command{
		Use:   "countdown",
		Short: "Find the shortest arithmetic expressions that reach a target",
		Long: `countdown combines source values with arithmetic operators, searching
depth by depth until the target is reached, and reports every expression of
minimal depth.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRun: teardown,
	}

	// --- Solving ---
	solveCmd = &cobra.Command{
		Use:   "solve <target>...",
		Short: "Solve one or more targets concurrently",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSolve, // Defined in cmd_solve.go
	}

	// --- Server ---
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the countdown HTTP API",
		RunE:  runServe, // Defined in cmd_serve.go
	}

	// --- History ---
	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Browse persisted searches",
	}
	historyListCmd = &cobra.Command{
		Use:   "list",
		Short: "List recent searches, newest first",
		Args:  cobra.NoArgs,
		RunE:  runHistoryList, // Defined in cmd_history.go
	}
	historyShowCmd = &cobra.Command{
		Use:   "show <id>",
		Short: "Show one search",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShow, // Defined in cmd_history.go
	}
	historyDeleteCmd = &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one search",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryDelete, // Defined in cmd_history.go
	}

	// --- Utilities ---
	operatorsCmd = &cobra.Command{
		Use:   "operators",
		Short: "List available operators",
		Args:  cobra.NoArgs,
		RunE:  runOperators, // Defined in cmd_operators.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a YAML or JSON config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level (debug, info, warn, error). Default: info for serve, warn otherwise")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "",
		"Also write JSON logs to this directory")
	rootCmd.PersistentFlags().StringVar(&outputMode, "output", "",
		"Output mode (rich, plain, machine). Default: rich on a terminal, machine otherwise")

	rootCmd.AddCommand(solveCmd)
	solveCmd.Flags().Int64SliceVar(&solveFlags.values, "values", nil, "Source values, e.g. 1,2,3 (default: preset values)")
	solveCmd.Flags().StringSliceVar(&solveFlags.ops, "ops", nil, "Operators by name or symbol, e.g. +,-,*,^ (default: preset operators)")
	solveCmd.Flags().StringVar(&solveFlags.preset, "preset", "web", "Defaults for omitted --values/--ops: web, or empty to require both")
	solveCmd.Flags().IntVar(&solveFlags.maxDepth, "max-depth", 0, "Give up after this depth (0: unbounded)")
	solveCmd.Flags().DurationVar(&solveFlags.timeLimit, "time-limit", 0, "Cancel searches still running after this long (0: none)")
	solveCmd.Flags().BoolVar(&solveFlags.all, "all", false, "Print every distinct minimal expression instead of the best ones")
	solveCmd.Flags().IntVar(&solveFlags.limit, "limit", 0, "Maximum expressions to expand per target (0: default)")
	solveCmd.Flags().BoolVar(&solveFlags.reuseSources, "reuse-sources", false, "Allow a source value to be combined with itself")
	solveCmd.Flags().BoolVar(&solveFlags.history, "history", false, "Persist results to the history store")

	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", "", "Listen address (default: config server.addr)")
	serveCmd.Flags().BoolVar(&serveFlags.ephemeral, "ephemeral", false, "Keep history in memory only")
	serveCmd.Flags().BoolVar(&serveFlags.debug, "debug", false, "Enable gin debug mode and request logging")

	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyListCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum items to list (0: all)")
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)

	rootCmd.AddCommand(operatorsCmd)
}

// setup loads configuration and builds the logger and printer.
func setup(cmd *cobra.Command, args []string) error {
	loaded, err := countdown.LoadConfig(configPath)
	if err != nil {
		return err
	}
	cfg = loaded

	level := cfg.Observability.LogLevel
	switch {
	case logLevel != "":
		level = logLevel
	case os.Getenv("COUNTDOWN_LOG_LEVEL") == "" && cmd != serveCmd:
		level = "warn"
	}
	parsed, err := logging.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}

	dir := cfg.Observability.LogDir
	if logDir != "" {
		dir = logDir
	}
	logger = logging.New(logging.Config{
		Level:   parsed,
		LogDir:  dir,
		Service: "countdown",
		JSON:    cfg.Observability.LogJSON,
		Output:  cmd.ErrOrStderr(),
	})
	slog.SetDefault(logger.Slog())

	mode := ux.DetectMode(os.Stdout)
	if outputMode != "" {
		mode = ux.ParseMode(outputMode)
	}
	printer = ux.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)
	return nil
}

func teardown(cmd *cobra.Command, args []string) {
	if logger != nil {
		_ = logger.Close()
	}
}
