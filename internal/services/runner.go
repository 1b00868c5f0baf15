// Package services implements the five settlement-pipeline workers plus the
// isolated wallet balance tracker. Every worker is a stateless polling loop
// over durable state: a pure function of storage + adapter reads into
// storage + adapter writes (spec §9, "retry is absence of state").
package services

import "context"

// Runner is the capability every worker exposes to the scheduler harness.
// A single call to Run is one tick: it suspends at its I/O points (database
// round-trip, adapter call) and returns, successfully or not, without
// retaining pipeline state between calls; the only thing carried over is the
// Commit Listener's open event subscription.
type Runner interface {
	Run(ctx context.Context) error
}
