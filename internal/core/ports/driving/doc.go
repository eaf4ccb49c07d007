// Package driving defines what the CLI calls into: the sync engine and the
// scheduler. Both are implemented in internal/core/services.
package driving
