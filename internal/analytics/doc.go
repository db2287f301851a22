// Package analytics derives streaks, aggregates and insight text from a
// snapshot of habits and their completion days.
//
// Every function is a pure transform of its arguments. The reference day is
// always passed in explicitly and interpreted in its own location, so callers
// decide which local calendar "today" belongs to. No aggregate reads the clock.
package analytics
