// Package queue provides the in-process worker pool and periodic scheduler.
//
// Durability lives in the database: sync jobs are rows claimed by the runner
// in feature/channels, and this package only supplies the execution machinery.
// A crashed worker therefore never loses work; the claimed row goes stale and
// is re-claimed on a later tick, with idempotency keys on the ledger making
// redelivery safe.
//
// The Pool runs a fixed number of workers over a buffered task channel. The
// Scheduler runs named jobs on fixed intervals (order polling every few
// minutes, reconciliation sweeps hourly, sync claims every few seconds).
package queue
