// Package services holds the identity sync engine.
//
// A sync run resolves each delta from a connector to at most one local
// identity (AccountIdResolver), decides what to do when several identities
// match (ConflictResolver), applies the change through the workflow adapter
// (DeltaApplier) and renders a trace report of the outcomes (ReportBuilder).
// SyncEngine drives these steps per resource and Scheduler runs it on
// intervals.
package services
