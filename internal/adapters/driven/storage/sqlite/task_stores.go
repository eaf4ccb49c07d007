package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/idsync/internal/core/domain"
	"github.com/custodia-labs/idsync/internal/core/ports/driven"
)

// ==================== Propagation Task Store ====================

// propagationTaskStore implements driven.PropagationTaskStore.
type propagationTaskStore struct {
	store *Store
}

var _ driven.PropagationTaskStore = (*propagationTaskStore)(nil)

// Record stores a propagation attempt.
func (s *propagationTaskStore) Record(ctx context.Context, task domain.PropagationTask) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	var attrs interface{}
	if task.Attributes != nil {
		data, err := json.Marshal(task.Attributes)
		if err != nil {
			return fmt.Errorf("marshalling attributes: %w", err)
		}
		attrs = string(data)
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO propagation_tasks (id, run_id, resource, identity_key, username, operation,
			attributes, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, task.ID, task.RunID, task.Resource, task.IdentityKey, task.Username, string(task.Operation),
		attrs, string(task.Status), nullString(task.Error), formatTime(task.CreatedAt))
	if err != nil {
		return fmt.Errorf("recording propagation task: %w", err)
	}
	return nil
}

// List returns recent tasks for a resource, newest first.
// An empty resource lists tasks of every resource.
func (s *propagationTaskStore) List(ctx context.Context, resource string, limit int) ([]domain.PropagationTask, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, run_id, resource, identity_key, username, operation, attributes, status, error, created_at
		FROM propagation_tasks
		WHERE ? = '' OR resource = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, resource, resource, limit)
	if err != nil {
		return nil, fmt.Errorf("querying propagation tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.PropagationTask //nolint:prealloc // size unknown from query
	for rows.Next() {
		var task domain.PropagationTask
		var op, status, createdAt string
		var attrs, errMsg sql.NullString
		if err := rows.Scan(&task.ID, &task.RunID, &task.Resource, &task.IdentityKey, &task.Username,
			&op, &attrs, &status, &errMsg, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning propagation task: %w", err)
		}
		if attrs.Valid {
			if err := json.Unmarshal([]byte(attrs.String), &task.Attributes); err != nil {
				return nil, fmt.Errorf("unmarshalling attributes: %w", err)
			}
		}
		task.Operation = domain.Operation(op)
		task.Status = domain.PropagationStatus(status)
		task.Error = errMsg.String
		task.CreatedAt = parseTime(createdAt)
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating propagation tasks: %w", err)
	}
	return tasks, nil
}

// ==================== Notification Sink ====================

// notificationSink implements driven.NotificationSink.
type notificationSink struct {
	store *Store
}

var _ driven.NotificationSink = (*notificationSink)(nil)

// CreateTasks stores one undelivered notification task per event.
func (s *notificationSink) CreateTasks(ctx context.Context, rc domain.RunContext, identityKey string, events []string) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	now := formatTime(time.Now())
	for _, event := range events {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO notification_tasks (id, run_id, identity_key, event, created_at, delivered)
			VALUES (?, ?, ?, ?, ?, 0)
		`, uuid.NewString(), rc.RunID, identityKey, event, now); err != nil {
			return fmt.Errorf("creating notification task: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing notification tasks: %w", err)
	}
	return nil
}

// ListNotificationTasks returns the notification tasks of an identity in
// creation order.
func (s *Store) ListNotificationTasks(ctx context.Context, identityKey string) ([]domain.NotificationTask, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, identity_key, event, created_at, delivered
		FROM notification_tasks
		WHERE identity_key = ?
		ORDER BY created_at, rowid
	`, identityKey)
	if err != nil {
		return nil, fmt.Errorf("querying notification tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.NotificationTask //nolint:prealloc // size unknown from query
	for rows.Next() {
		var task domain.NotificationTask
		var createdAt string
		var delivered int
		if err := rows.Scan(&task.ID, &task.RunID, &task.IdentityKey, &task.Event, &createdAt, &delivered); err != nil {
			return nil, fmt.Errorf("scanning notification task: %w", err)
		}
		task.CreatedAt = parseTime(createdAt)
		task.Delivered = delivered == 1
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notification tasks: %w", err)
	}
	return tasks, nil
}
