// Package reconciliation detects drift between the internal ledger and each
// channel's reported inventory, records mismatches for operator review, and
// applies their resolutions. Detection never mutates quantities on its own.
package reconciliation
