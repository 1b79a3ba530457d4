//go:build !cgo

package main

import (
	_ "modernc.org/sqlite"
)

// Non-cgo builds use the pure Go driver so every backend stays available.
const sqliteDriver = "sqlite"
