// Package timeouts defines shared timeout constants used across commands.
// Centralizing these values keeps the durations discoverable.
package timeouts

import "time"

// Run bounds a whole reconciliation run when no timeout is configured.
const Run = 30 * time.Minute

// OTelShutdown limits how long span export may take when a command exits.
const OTelShutdown = 5 * time.Second

// SQLiteBusy is how long a SQLite writer waits on a locked database.
const SQLiteBusy = 5 * time.Second
