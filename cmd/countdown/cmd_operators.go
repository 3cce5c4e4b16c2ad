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
	"slices"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/countdown/services/countdown"
	"github.com/AleutianAI/countdown/services/countdown/engine"
)

func runOperators(cmd *cobra.Command, args []string) error {
	printer.Title("Operators")
	printer.Table([]string{"NAME", "SYMBOL", "COMMUTATIVE", "DEFAULT"}, operatorRows())
	return nil
}

func operatorRows() [][]string {
	defaults := countdown.DefaultOperators()
	var rows [][]string
	for _, op := range engine.AllOperators() {
		info, ok := engine.Lookup(op)
		if !ok {
			continue
		}
		rows = append(rows, []string{
			info.Name,
			info.Label,
			yesNo(info.Commutative),
			yesNo(slices.Contains(defaults, op)),
		})
	}
	return rows
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
