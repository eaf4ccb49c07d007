// Package sqlite stores idsync state in a single SQLite database using the
// pure Go modernc.org/sqlite driver.
//
// One Store backs every persistent port: identities and their attributes,
// sync tokens, run history, propagation attempts, notification tasks and
// scheduler state. The schema is applied by goose from the embedded
// migrations when the store opens.
//
// The database lives at <data_dir>/idsync.db. The store keeps one open
// connection in WAL mode, so writes are serialised.
package sqlite
