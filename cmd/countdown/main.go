// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command countdown finds the shortest arithmetic expressions that reach a
// target from a set of source values, from the command line or as an HTTP
// service.
//
// Usage:
//
//	countdown solve 100 --values 1,2,3,4,5,6,7,8,9
//	countdown serve --addr :8080
//	countdown history list
//	countdown operators
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
