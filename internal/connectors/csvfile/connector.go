package csvfile

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/custodia-labs/idsync/internal/core/domain"
	"github.com/custodia-labs/idsync/internal/core/ports/driven"
	"github.com/custodia-labs/idsync/internal/logger"
)

// Name is the connector type identifier.
const Name = "csvfile"

// Ensure Connector implements the interface.
var _ driven.Connector = (*Connector)(nil)

// Connector reads accounts and deltas from local files.
type Connector struct {
	resource string
	config   *Config

	mu       sync.Mutex
	closed   bool
	lastSeq  int64
	synced   bool
	watchers []func() error
}

// New creates a csvfile connector for a resource.
func New(resource string, cfg *Config) *Connector {
	return &Connector{resource: resource, config: cfg}
}

// Builder is the driven.ConnectorBuilder for csvfile resources.
func Builder(resource domain.Resource) (driven.Connector, error) {
	cfg, err := ParseConfig(resource)
	if err != nil {
		return nil, fmt.Errorf("resource %s: %w", resource.Name, err)
	}
	return New(resource.Name, cfg), nil
}

// Type returns the connector type identifier.
func (c *Connector) Type() string {
	return Name
}

// Resource returns the configured resource name.
func (c *Connector) Resource() string {
	return c.resource
}

// Capabilities returns the connector's capabilities.
func (c *Connector) Capabilities() driven.ConnectorCapabilities {
	return driven.ConnectorCapabilities{
		SupportsIncremental:        c.config.ChangelogPath != "",
		SupportsFullReconciliation: c.config.AccountsPath != "",
		SupportsWatch:              c.config.ChangelogPath != "",
		SupportsValidation:         true,
	}
}

// Validate checks that the configured files are usable. A change log that
// does not exist yet is accepted; its directory must exist.
func (c *Connector) Validate(ctx context.Context) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if c.config.AccountsPath != "" {
		if err := checkAccountsHeader(c.config); err != nil {
			return err
		}
	}
	if c.config.ChangelogPath != "" {
		info, err := os.Stat(c.config.ChangelogPath)
		switch {
		case err == nil && info.IsDir():
			return fmt.Errorf("%w: changelog %s is a directory", domain.ErrInvalidInput, c.config.ChangelogPath)
		case err == nil:
		case os.IsNotExist(err):
			if _, err := os.Stat(dirOf(c.config.ChangelogPath)); err != nil {
				return fmt.Errorf("changelog directory: %w", err)
			}
		default:
			return fmt.Errorf("stat changelog: %w", err)
		}
	}
	return nil
}

// Sync streams every change log entry with a sequence number above the
// token, in file order.
func (c *Connector) Sync(ctx context.Context, _ string, token *domain.SyncToken, handler driven.DeltaHandler) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if c.config.ChangelogPath == "" {
		return fmt.Errorf("%w: no changelog configured", domain.ErrUnsupportedType)
	}

	var after int64
	if token != nil {
		n, err := token.Number()
		if err != nil {
			return err
		}
		after = n
	}

	last := after
	var convErr error
	err := scanChangelog(ctx, c.config.ChangelogPath, func(e Entry) bool {
		if e.Seq <= after {
			return true
		}
		delta, err := e.Delta()
		if err != nil {
			convErr = fmt.Errorf("%w: seq %d: %v", ErrBadEntry, e.Seq, err)
			return false
		}
		if e.Seq > last {
			last = e.Seq
		}
		return handler(delta)
	})
	if err == nil {
		err = convErr
	}
	if err != nil {
		return err
	}

	logger.Debug("csvfile %s: streamed changelog up to seq %d", c.resource, last)
	c.mu.Lock()
	c.lastSeq = last
	c.synced = true
	c.mu.Unlock()
	return nil
}

// GetAllObjects streams every row of the accounts file.
func (c *Connector) GetAllObjects(ctx context.Context, _ string, handler driven.DeltaHandler) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if c.config.AccountsPath == "" {
		return fmt.Errorf("%w: no accounts file configured", domain.ErrUnsupportedType)
	}
	return readAccounts(ctx, c.config, handler)
}

// LatestSyncToken returns the highest sequence number streamed by the last
// Sync call, so entries appended after that pass are picked up next time.
// Without a prior Sync the change log is scanned. An empty log yields nil.
func (c *Connector) LatestSyncToken(ctx context.Context, _ string) (*domain.SyncToken, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	synced, last := c.synced, c.lastSeq
	c.mu.Unlock()

	if !synced {
		err := scanChangelog(ctx, c.config.ChangelogPath, func(e Entry) bool {
			if e.Seq > last {
				last = e.Seq
			}
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	if last == 0 {
		return nil, nil
	}
	return domain.NumberToken(last), nil
}

// Close stops any active watchers. Safe to call more than once.
func (c *Connector) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	watchers := c.watchers
	c.watchers = nil
	c.mu.Unlock()

	var firstErr error
	for _, stop := range watchers {
		if err := stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Connector) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrConnectorClosed
	}
	return nil
}
