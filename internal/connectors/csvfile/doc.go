// Package csvfile implements a connector over two local files: an accounts
// CSV export holding the current state of every account, and an append-only
// JSON Lines change log holding numbered deltas.
//
// The accounts file backs full reconciliation. The change log backs
// incremental sync, with the highest sequence number as the sync token.
// Watching the change log with fsnotify signals new entries.
package csvfile
