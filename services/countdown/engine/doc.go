// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine implements the reach-the-target search used by Countdown.
//
// # Overview
//
// Given a target, a multiset of source values and a set of binary operators,
// the engine finds every expression with the minimal number of operations
// ("depth") that evaluates to the target. Intermediate results may be reused
// as operands.
//
// # Architecture
//
//	FindBest(Options)
//	   │
//	   ▼
//	Search ──slice()──► Candidates (depth pairs × values)
//	   │                     │
//	   │ Record()            ▼
//	   └────────────► Index (value → depth, derivations)
//	                         │
//	                         ▼
//	              Expressions(value) iter.Seq[*Expression]
//
//   - Operator registry: evaluation, commutativity and labels (operators.go)
//   - Index: minimal depth and every canonical derivation per value (index.go)
//   - Candidates: operand pairs for one depth level (enumerator.go)
//   - Search: iterative deepening, time slicing, cancellation (search.go)
//   - Reconstruction: lazy expansion into expression trees (reconstruct.go)
//
// # Scheduling
//
// A search never blocks. Work runs in slices of at most Options.SliceBudget on
// a host Scheduler; at the end of a slice the search reports progress and
// re-schedules itself. Loop is the provided host: a single goroutine draining
// a FIFO of tasks, so several searches sharing a Loop interleave slice by
// slice. All callbacks run on the scheduler's goroutine.
//
// # Solution Emission
//
// Solutions are buffered: OnSolution fires exactly once, after the depth
// level at which the target first became reachable has been exhausted, and
// the handle it carries already holds every derivation of that level.
// OnComplete follows immediately.
//
// # Cancellation
//
// Cancel only sets a flag. The flag is read at the start of every slice and
// again, under the same lock Cancel takes, before the search commits to
// StateCompleted or StateExhausted. A Cancel that returns while the search is
// still live therefore always wins: OnComplete is not issued and OnCancel
// fires exactly once (provided the search was started). A Cancel that lands
// after the commit is a no-op. OnSolution may still be delivered when Cancel
// races the end of the solving level; OnCancel then follows it.
//
// # Usage
//
//	loop := engine.NewLoop()
//	go loop.Run(ctx)
//
//	search, err := engine.FindBest(engine.Options{
//	    Target:    100,
//	    Values:    []int64{1, 2, 3, 4, 5, 6, 7, 8, 9},
//	    Operators: engine.AllOperators(),
//	    Scheduler: loop,
//	    OnSolution: func(sol *engine.Solution) {
//	        for expr := range sol.Expressions() {
//	            fmt.Println(expr)
//	        }
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	search.Start()
//
// For a blocking call use Solve, which owns its own Loop.
package engine
