package domain

import (
	"fmt"
	"strings"
	"time"
)

// EventCategory is the category prefix of sync events.
const EventCategory = "SYNCHRONIZATION"

// Event names raised by the engine.
const (
	EventCreate     = "create"
	EventUpdate     = "update"
	EventDelete     = "delete"
	EventSuspend    = "suspend"
	EventReactivate = "reactivate"
)

// SyncEvent formats an event name as
// [SYNCHRONIZATION]:[identity]:[resource]:[event]:[SUCCESS|FAILURE].
func SyncEvent(resource, event string, success bool) string {
	result := "SUCCESS"
	if !success {
		result = "FAILURE"
	}
	return fmt.Sprintf("[%s]:[identity]:[%s]:[%s]:[%s]", EventCategory, resource, strings.ToLower(event), result)
}

// OperationEvent returns the event name for an operation.
func OperationEvent(op Operation) string {
	return strings.ToLower(string(op))
}

// NotificationTask records a notification to deliver for an identity event.
type NotificationTask struct {
	ID          string
	RunID       string
	IdentityKey string
	Event       string
	CreatedAt   time.Time
	Delivered   bool
}
