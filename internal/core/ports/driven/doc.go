// Package driven defines the collaborators the sync engine calls out to.
//
// Connector, ConnectorFactory, IdentityRepository, WorkflowAdapter,
// SyncTokenStore and ResourceStore are required. PropagationManager,
// NotificationSink and ExecutionStore may be nil: without them the engine
// skips propagation, drops notification events or keeps no run history.
//
// SchedulerStore is used only by the scheduler.
package driven
