// Package jobs persists transcription job records in SQLite. The store is
// the only channel through which job outcomes are observable; the pipeline
// commits each phase independently so a crash leaves the last committed
// status visible.
package jobs
