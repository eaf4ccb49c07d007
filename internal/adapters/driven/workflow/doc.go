// Package workflow provides WorkflowAdapter variants.
//
// Direct applies every change immediately. Approval parks new identities
// in the pending state and withholds propagation until they are approved.
// The variant is chosen at composition time from configuration.
package workflow
