// Package domain defines the entities of identity synchronisation:
//
//   - Delta: one change reported by an external resource
//   - Identity: a locally known identity and its attributes
//   - Resource: an external resource and its sync settings
//   - SyncOutcome and SyncRunResult: what a sync run did
//   - SyncToken: a watermark into a resource's change stream
//   - ScheduledTask: a recurring sync, reconcile or prune job
//
// Domain imports only the standard library. Every other package depends on
// it, never the reverse.
package domain
