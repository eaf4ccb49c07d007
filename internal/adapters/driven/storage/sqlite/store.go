package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/idsync/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/idsync/internal/core/domain"
	"github.com/custodia-labs/idsync/internal/core/ports/driven"
	"github.com/custodia-labs/idsync/internal/logger"
)

// DBFileName is the database file created inside the data directory.
const DBFileName = "idsync.db"

// timeLayout keeps stored timestamps lexically sortable.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is a unified SQLite-based storage that provides access to
// all persistence interfaces through wrapper types.
type Store struct {
	db      *sql.DB
	path    string
	derived domain.DerivedSchemas
}

// Option configures the store.
type Option func(*Store)

// WithDerivedSchemas sets the derived schemas used to match identities by
// derived attribute.
func WithDerivedSchemas(derived domain.DerivedSchemas) Option {
	return func(s *Store) {
		s.derived = derived
	}
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.idsync/data/idsync.db.
func NewStore(dataDir string, opts ...Option) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".idsync", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DBFileName)

	// WAL mode lets readers proceed while a sync writes.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection serialises writers and keeps per-connection pragmas.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:   db,
		path: dbPath,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// IdentityRepository returns an IdentityRepository backed by this store.
func (s *Store) IdentityRepository() driven.IdentityRepository {
	return &identityRepository{store: s}
}

// SyncTokenStore returns a SyncTokenStore backed by this store.
func (s *Store) SyncTokenStore() driven.SyncTokenStore {
	return &syncTokenStore{store: s}
}

// ExecutionStore returns an ExecutionStore backed by this store.
func (s *Store) ExecutionStore() driven.ExecutionStore {
	return &executionStore{store: s}
}

// PropagationTaskStore returns a PropagationTaskStore backed by this store.
func (s *Store) PropagationTaskStore() driven.PropagationTaskStore {
	return &propagationTaskStore{store: s}
}

// NotificationSink returns a NotificationSink backed by this store.
func (s *Store) NotificationSink() driven.NotificationSink {
	return &notificationSink{store: s}
}

// SchedulerStore returns a SchedulerStore backed by this store.
func (s *Store) SchedulerStore() driven.SchedulerStore {
	return &schedulerStore{store: s}
}

// migrate applies all pending migrations with goose.
func (s *Store) migrate(ctx context.Context) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, migrations.FS)
	if err != nil {
		return fmt.Errorf("creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	for _, r := range results {
		logger.Debug("Applied migration %s in %s", r.Source.Path, r.Duration)
	}
	return nil
}

// ==================== Helper Functions ====================

// formatTime formats a time for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// formatNullableTime formats a time for storage, or returns nil for zero time.
func formatNullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

// parseTime parses a stored timestamp. Returns zero time if invalid.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// parseNullableTime parses a nullable stored timestamp.
// Returns zero time if the string is empty or invalid.
func parseNullableTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	return parseTime(s.String)
}

// nullString returns nil for empty strings, otherwise the string.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// boolToInt converts a bool to 1 (true) or 0 (false).
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
