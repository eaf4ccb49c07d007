package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/idsync/internal/core/domain"
	"github.com/custodia-labs/idsync/internal/core/ports/driven"
)

// identityRepository implements driven.IdentityRepository.
type identityRepository struct {
	store *Store
}

var _ driven.IdentityRepository = (*identityRepository)(nil)

const identityColumns = "i.id, i.key, i.username, i.status, i.resources, i.created_at, i.updated_at"

// FindByKey retrieves an identity by key.
func (r *identityRepository) FindByKey(ctx context.Context, _ domain.RunContext, key string) (*domain.Identity, error) {
	identities, err := r.load(ctx, "i.key = ?", key)
	if err != nil {
		return nil, err
	}
	if len(identities) == 0 {
		return nil, domain.ErrNotFound
	}
	return &identities[0], nil
}

// FindByUsername returns every identity with the given username.
func (r *identityRepository) FindByUsername(ctx context.Context, _ domain.RunContext, username string) ([]domain.Identity, error) {
	return r.load(ctx, "i.username = ?", username)
}

// FindByNumericID returns the identity with the given numeric id.
func (r *identityRepository) FindByNumericID(ctx context.Context, _ domain.RunContext, id int64) ([]domain.Identity, error) {
	return r.load(ctx, "i.id = ?", id)
}

// FindByAttributeValue returns identities whose attribute has the single value.
func (r *identityRepository) FindByAttributeValue(
	ctx context.Context,
	_ domain.RunContext,
	attr, value string,
) ([]domain.Identity, error) {
	return r.load(ctx, `i.id IN (
		SELECT identity_id FROM identity_attributes
		WHERE name = ?
		GROUP BY identity_id
		HAVING COUNT(*) = 1 AND MAX(value) = ?
	)`, attr, value)
}

// FindByDerivedAttributeValue evaluates the derived schema against every
// identity referencing its attributes.
func (r *identityRepository) FindByDerivedAttributeValue(
	ctx context.Context,
	_ domain.RunContext,
	attr, value string,
) ([]domain.Identity, error) {
	if _, ok := r.store.derived[attr]; !ok {
		return nil, fmt.Errorf("%w: unknown derived schema %q", domain.ErrCannotEvaluate, attr)
	}
	all, err := r.load(ctx, "1 = 1")
	if err != nil {
		return nil, err
	}
	var out []domain.Identity
	for i := range all {
		v, ok, err := r.store.derived.Evaluate(attr, &all[i])
		if err == nil && ok && v == value {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// Search narrows candidates in SQL, then applies the exact condition.
func (r *identityRepository) Search(ctx context.Context, _ domain.RunContext, cond domain.SearchCond) ([]domain.Identity, error) {
	if len(cond.Leaves) == 0 {
		return nil, nil
	}
	where := make([]string, 0, len(cond.Leaves))
	args := make([]any, 0, len(cond.Leaves)*2)
	for _, leaf := range cond.Leaves {
		clause, leafArgs, ok := searchClause(leaf)
		if !ok {
			return nil, nil
		}
		where = append(where, clause)
		args = append(args, leafArgs...)
	}

	candidates, err := r.load(ctx, strings.Join(where, " AND "), args...)
	if err != nil {
		return nil, err
	}
	out := candidates[:0]
	for i := range candidates {
		if cond.Matches(&candidates[i]) {
			out = append(out, candidates[i])
		}
	}
	return out, nil
}

// searchClause translates a leaf into a SQL filter. It returns false when
// the leaf can never match.
func searchClause(leaf domain.SearchLeaf) (string, []any, bool) {
	switch leaf.Attribute {
	case domain.FieldID:
		if leaf.Type == domain.LeafIsNull {
			return "", nil, false
		}
		id, err := strconv.ParseInt(leaf.Value, 10, 64)
		if err != nil {
			return "", nil, false
		}
		return "i.id = ?", []any{id}, true
	case domain.FieldUsername:
		if leaf.Type == domain.LeafIsNull {
			return "i.username = ''", nil, true
		}
		return "i.username = ?", []any{leaf.Value}, true
	}
	if leaf.Type == domain.LeafIsNull {
		return "i.id NOT IN (SELECT identity_id FROM identity_attributes WHERE name = ?)", []any{leaf.Attribute}, true
	}
	// List-form values are compared exactly in Go.
	if strings.HasPrefix(leaf.Value, "[") {
		return "i.id IN (SELECT identity_id FROM identity_attributes WHERE name = ?)", []any{leaf.Attribute}, true
	}
	return "i.id IN (SELECT identity_id FROM identity_attributes WHERE name = ? AND value = ?)",
		[]any{leaf.Attribute, leaf.Value}, true
}

// List returns every identity ordered by key.
func (r *identityRepository) List(ctx context.Context, _ domain.RunContext) ([]domain.Identity, error) {
	return r.load(ctx, "1 = 1")
}

// Save creates or updates an identity.
func (r *identityRepository) Save(ctx context.Context, _ domain.RunContext, identity domain.Identity) (*domain.Identity, error) {
	if identity.Key == "" {
		return nil, fmt.Errorf("%w: identity key is required", domain.ErrInvalidInput)
	}
	if identity.Status == "" {
		identity.Status = domain.StatusActive
	}
	resources := identity.Resources
	if resources == nil {
		resources = []string{}
	}
	resourcesJSON, err := json.Marshal(resources)
	if err != nil {
		return nil, fmt.Errorf("marshalling resources: %w", err)
	}

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	now := time.Now().UTC()
	var id int64
	var createdAt string
	err = tx.QueryRowContext(ctx, "SELECT id, created_at FROM identities WHERE key = ?", identity.Key).Scan(&id, &createdAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if identity.CreatedAt.IsZero() {
			identity.CreatedAt = now
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO identities (id, key, username, status, resources, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, nullInt(identity.NumericID), identity.Key, identity.Username, string(identity.Status),
			string(resourcesJSON), formatTime(identity.CreatedAt), formatTime(now))
		if err != nil {
			return nil, fmt.Errorf("inserting identity: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("reading identity id: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("reading identity: %w", err)
	default:
		identity.CreatedAt = parseTime(createdAt)
		if _, err := tx.ExecContext(ctx, `
			UPDATE identities SET username = ?, status = ?, resources = ?, updated_at = ?
			WHERE id = ?
		`, identity.Username, string(identity.Status), string(resourcesJSON), formatTime(now), id); err != nil {
			return nil, fmt.Errorf("updating identity: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM identity_attributes WHERE identity_id = ?", id); err != nil {
			return nil, fmt.Errorf("clearing attributes: %w", err)
		}
	}

	for name, values := range identity.Attributes {
		for pos, v := range values {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO identity_attributes (identity_id, name, position, value)
				VALUES (?, ?, ?, ?)
			`, id, name, pos, v); err != nil {
				return nil, fmt.Errorf("inserting attribute %s: %w", name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing identity: %w", err)
	}

	identity.NumericID = id
	identity.UpdatedAt = now
	identity.Resources = append([]string(nil), resources...)
	return &identity, nil
}

// Delete removes an identity and its attributes.
func (r *identityRepository) Delete(ctx context.Context, _ domain.RunContext, key string) error {
	res, err := r.store.db.ExecContext(ctx, "DELETE FROM identities WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("deleting identity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting identity: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// load reads the identities matching where, with their attributes,
// ordered by key.
func (r *identityRepository) load(ctx context.Context, where string, args ...any) ([]domain.Identity, error) {
	rows, err := r.store.db.QueryContext(ctx,
		"SELECT "+identityColumns+" FROM identities i WHERE "+where+" ORDER BY i.key", args...)
	if err != nil {
		return nil, fmt.Errorf("querying identities: %w", err)
	}
	defer rows.Close()

	var identities []domain.Identity //nolint:prealloc // size unknown from query
	index := make(map[int64]int)
	for rows.Next() {
		var identity domain.Identity
		var status, resourcesJSON, createdAt, updatedAt string
		if err := rows.Scan(&identity.NumericID, &identity.Key, &identity.Username, &status,
			&resourcesJSON, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning identity: %w", err)
		}
		identity.Status = domain.IdentityStatus(status)
		if err := json.Unmarshal([]byte(resourcesJSON), &identity.Resources); err != nil {
			return nil, fmt.Errorf("unmarshalling resources: %w", err)
		}
		identity.CreatedAt = parseTime(createdAt)
		identity.UpdatedAt = parseTime(updatedAt)
		index[identity.NumericID] = len(identities)
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating identities: %w", err)
	}
	if len(identities) == 0 {
		return nil, nil
	}

	attrRows, err := r.store.db.QueryContext(ctx, `
		SELECT a.identity_id, a.name, a.value
		FROM identity_attributes a JOIN identities i ON i.id = a.identity_id
		WHERE `+where+`
		ORDER BY a.identity_id, a.name, a.position
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying attributes: %w", err)
	}
	defer attrRows.Close()

	for attrRows.Next() {
		var id int64
		var name, value string
		if err := attrRows.Scan(&id, &name, &value); err != nil {
			return nil, fmt.Errorf("scanning attribute: %w", err)
		}
		idx, ok := index[id]
		if !ok {
			continue
		}
		identity := &identities[idx]
		if identity.Attributes == nil {
			identity.Attributes = make(map[string][]string)
		}
		identity.Attributes[name] = append(identity.Attributes[name], value)
	}
	if err := attrRows.Err(); err != nil {
		return nil, fmt.Errorf("iterating attributes: %w", err)
	}

	return identities, nil
}

// nullInt returns nil for zero, otherwise the value.
func nullInt(n int64) interface{} {
	if n == 0 {
		return nil
	}
	return n
}
