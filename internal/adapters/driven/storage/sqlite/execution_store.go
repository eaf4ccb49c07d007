package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/idsync/internal/core/domain"
	"github.com/custodia-labs/idsync/internal/core/ports/driven"
)

// executionStore implements driven.ExecutionStore.
type executionStore struct {
	store *Store
}

var _ driven.ExecutionStore = (*executionStore)(nil)

// Save records a finished run.
func (s *executionStore) Save(ctx context.Context, exec domain.Execution) error {
	if exec.ID == "" {
		return fmt.Errorf("%w: execution id is required", domain.ErrInvalidInput)
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO executions (id, resource, started_at, ended_at, status, dry_run, full_reconciliation,
			deltas_processed, outcomes, failures, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			ended_at = excluded.ended_at,
			status = excluded.status,
			deltas_processed = excluded.deltas_processed,
			outcomes = excluded.outcomes,
			failures = excluded.failures,
			message = excluded.message
	`, exec.ID, exec.Resource, formatTime(exec.StartedAt), formatNullableTime(exec.EndedAt),
		string(exec.Status), boolToInt(exec.DryRun), boolToInt(exec.FullReconciliation),
		exec.DeltasProcessed, exec.Outcomes, exec.Failures, nullString(exec.Message))

	if err != nil {
		return fmt.Errorf("saving execution: %w", err)
	}
	return nil
}

// List returns recent runs, most recent first.
// An empty resource lists runs of every resource.
func (s *executionStore) List(ctx context.Context, resource string, limit int) ([]domain.Execution, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, resource, started_at, ended_at, status, dry_run, full_reconciliation,
			deltas_processed, outcomes, failures, message
		FROM executions
		WHERE ? = '' OR resource = ?
		ORDER BY started_at DESC
		LIMIT ?
	`, resource, resource, limit)
	if err != nil {
		return nil, fmt.Errorf("querying executions: %w", err)
	}
	defer rows.Close()

	var execs []domain.Execution //nolint:prealloc // size unknown from query
	for rows.Next() {
		var exec domain.Execution
		var startedAt, status string
		var endedAt, message sql.NullString
		var dryRun, full int
		if err := rows.Scan(&exec.ID, &exec.Resource, &startedAt, &endedAt, &status, &dryRun, &full,
			&exec.DeltasProcessed, &exec.Outcomes, &exec.Failures, &message); err != nil {
			return nil, fmt.Errorf("scanning execution: %w", err)
		}
		exec.StartedAt = parseTime(startedAt)
		exec.EndedAt = parseNullableTime(endedAt)
		exec.Status = domain.ExecutionStatus(status)
		exec.DryRun = dryRun == 1
		exec.FullReconciliation = full == 1
		exec.Message = message.String
		execs = append(execs, exec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating executions: %w", err)
	}
	return execs, nil
}

// Prune keeps the most recent 'keep' runs per resource.
func (s *executionStore) Prune(ctx context.Context, keep int) error {
	_, err := s.store.db.ExecContext(ctx, `
		DELETE FROM executions
		WHERE id NOT IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY resource ORDER BY started_at DESC) as rn
				FROM executions
			) WHERE rn <= ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("pruning executions: %w", err)
	}
	return nil
}
