package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/idsync/internal/core/domain"
	"github.com/custodia-labs/idsync/internal/core/ports/driven"
)

// syncTokenStore implements driven.SyncTokenStore.
type syncTokenStore struct {
	store *Store
}

var _ driven.SyncTokenStore = (*syncTokenStore)(nil)

// Save stores or updates the sync token of a resource.
func (s *syncTokenStore) Save(ctx context.Context, state domain.SyncState) error {
	encoded, err := state.Token.Encode()
	if err != nil {
		return fmt.Errorf("encoding sync token: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO sync_tokens (resource, token, last_sync)
		VALUES (?, ?, ?)
		ON CONFLICT(resource) DO UPDATE SET
			token = excluded.token,
			last_sync = excluded.last_sync
	`, state.Resource, encoded, formatNullableTime(state.LastSync))

	if err != nil {
		return fmt.Errorf("saving sync token: %w", err)
	}
	return nil
}

// Get retrieves the sync token of a resource.
func (s *syncTokenStore) Get(ctx context.Context, resource string) (*domain.SyncState, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT resource, token, last_sync
		FROM sync_tokens WHERE resource = ?
	`, resource)

	var state domain.SyncState
	var encoded string
	var lastSync sql.NullString
	if err := row.Scan(&state.Resource, &encoded, &lastSync); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning sync token: %w", err)
	}

	token, err := domain.DecodeSyncToken(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding sync token of %s: %w", resource, err)
	}
	state.Token = token
	state.LastSync = parseNullableTime(lastSync)

	return &state, nil
}

// Delete removes the sync token of a resource.
func (s *syncTokenStore) Delete(ctx context.Context, resource string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM sync_tokens WHERE resource = ?", resource)
	if err != nil {
		return fmt.Errorf("deleting sync token: %w", err)
	}
	return nil
}
