package services

import (
	"context"
	"errors"
	stdsync "sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/idsync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/idsync/internal/core/domain"
	"github.com/custodia-labs/idsync/internal/core/ports/driven"
)

var testRC = domain.SystemRunContext("test-run")

func strAttr(name string, values ...string) domain.Attribute {
	attr := domain.Attribute{Name: name}
	for _, v := range values {
		attr.Values = append(attr.Values, domain.StringValue(v))
	}
	return attr
}

func boolAttr(name string, v bool) domain.Attribute {
	return domain.Attribute{Name: name, Values: []domain.Value{domain.BoolValue(v)}}
}

func upsert(uid string, attrs ...domain.Attribute) domain.Delta {
	return domain.Delta{Type: domain.DeltaCreateOrUpdate, UID: uid, Attributes: attrs}
}

func deletion(uid string) domain.Delta {
	return domain.Delta{Type: domain.DeltaDelete, UID: uid}
}

// testResource returns a resource matching on username with every
// operation enabled.
func testResource(name string) domain.Resource {
	return domain.Resource{
		Name:          name,
		ConnectorType: "mock",
		ObjectClass:   "__ACCOUNT__",
		AccountID:     &domain.AccountIDMapping{Kind: domain.MappingByUsername},
		PerformCreate: true,
		PerformUpdate: true,
		PerformDelete: true,
		SyncStatus:    true,
		TraceLevel:    domain.TraceAll,
	}
}

func withPolicy(r domain.Resource, policy domain.ConflictPolicy) domain.Resource {
	r.SyncPolicy = &domain.SyncPolicy{ConflictResolution: policy}
	return r
}

func seedIdentities(t *testing.T, identities ...domain.Identity) *memory.IdentityRepository {
	t.Helper()
	repo := memory.NewIdentityRepository(nil)
	for _, i := range identities {
		if i.Status == "" {
			i.Status = domain.StatusActive
		}
		_, err := repo.Save(context.Background(), testRC, i)
		require.NoError(t, err)
	}
	return repo
}

// --- Mock implementations ---

// syncMockConnector implements driven.Connector for testing.
type syncMockConnector struct {
	mu           stdsync.Mutex
	capabilities driven.ConnectorCapabilities
	deltas       []domain.Delta
	allObjects   []domain.Delta
	syncErr      error
	allErr       error
	validateErr  error
	latest       *domain.SyncToken
	latestErr    error
	watch        chan struct{}

	// block, when set, holds Sync until closed.
	block chan struct{}
	// afterFirst runs once the first delta was handed over.
	afterFirst func()

	gotToken    *domain.SyncToken
	syncCalls   int
	getAllCalls int
	closed      bool
}

func newSyncMockConnector(deltas ...domain.Delta) *syncMockConnector {
	return &syncMockConnector{
		capabilities: driven.ConnectorCapabilities{
			SupportsIncremental:        true,
			SupportsFullReconciliation: true,
			SupportsWatch:              true,
			SupportsValidation:         true,
		},
		deltas:     deltas,
		allObjects: deltas,
		latest:     domain.NumberToken(42),
	}
}

func (m *syncMockConnector) Type() string     { return "mock" }
func (m *syncMockConnector) Resource() string { return "mock" }
func (m *syncMockConnector) Capabilities() driven.ConnectorCapabilities {
	return m.capabilities
}

func (m *syncMockConnector) Validate(_ context.Context) error {
	return m.validateErr
}

func (m *syncMockConnector) Sync(
	ctx context.Context,
	_ string,
	token *domain.SyncToken,
	handler driven.DeltaHandler,
) error {
	m.mu.Lock()
	m.syncCalls++
	m.gotToken = token
	m.mu.Unlock()

	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.stream(m.deltas, handler, m.syncErr)
}

func (m *syncMockConnector) GetAllObjects(_ context.Context, _ string, handler driven.DeltaHandler) error {
	m.mu.Lock()
	m.getAllCalls++
	m.mu.Unlock()
	return m.stream(m.allObjects, handler, m.allErr)
}

func (m *syncMockConnector) stream(deltas []domain.Delta, handler driven.DeltaHandler, err error) error {
	for i, d := range deltas {
		if !handler(d) {
			return nil
		}
		if i == 0 && m.afterFirst != nil {
			m.afterFirst()
		}
	}
	return err
}

func (m *syncMockConnector) LatestSyncToken(_ context.Context, _ string) (*domain.SyncToken, error) {
	return m.latest, m.latestErr
}

func (m *syncMockConnector) Watch(_ context.Context) (<-chan struct{}, error) {
	if m.watch == nil {
		return nil, errors.New("watch not configured")
	}
	return m.watch, nil
}

func (m *syncMockConnector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// syncMockConnectorFactory implements driven.ConnectorFactory.
type syncMockConnectorFactory struct {
	mu         stdsync.Mutex
	connectors map[string]*syncMockConnector
	createErr  error
	creates    int
}

func newSyncMockConnectorFactory() *syncMockConnectorFactory {
	return &syncMockConnectorFactory{connectors: make(map[string]*syncMockConnector)}
}

func (f *syncMockConnectorFactory) Create(_ context.Context, resource domain.Resource) (driven.Connector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return nil, f.createErr
	}
	c, ok := f.connectors[resource.Name]
	if !ok {
		return nil, domain.ErrUnsupportedType
	}
	return c, nil
}

func (f *syncMockConnectorFactory) Register(_ string, _ driven.ConnectorBuilder) {}

func (f *syncMockConnectorFactory) SupportedTypes() []string { return []string{"mock"} }

// mockPropagation implements driven.PropagationManager and records tasks.
type mockPropagation struct {
	mu    stdsync.Mutex
	tasks []domain.PropagationTask
	err   error
}

func (m *mockPropagation) Execute(_ context.Context, _ domain.RunContext, tasks []domain.PropagationTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, tasks...)
	return m.err
}

func (m *mockPropagation) recorded() []domain.PropagationTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.PropagationTask(nil), m.tasks...)
}

// failingWorkflow wraps a workflow adapter and fails selected operations.
type failingWorkflow struct {
	driven.WorkflowAdapter
	createErr  error
	updateErr  error
	suspendErr error
	deleteErr  error
}

func (w *failingWorkflow) Create(
	ctx context.Context,
	rc domain.RunContext,
	candidate domain.Candidate,
	enabled *bool,
) (*domain.WorkflowResult, error) {
	if w.createErr != nil {
		return nil, w.createErr
	}
	return w.WorkflowAdapter.Create(ctx, rc, candidate, enabled)
}

func (w *failingWorkflow) Update(ctx context.Context, rc domain.RunContext, mod domain.Modification) (*domain.WorkflowResult, error) {
	if w.updateErr != nil {
		return nil, w.updateErr
	}
	return w.WorkflowAdapter.Update(ctx, rc, mod)
}

func (w *failingWorkflow) Suspend(ctx context.Context, rc domain.RunContext, key string) (*domain.WorkflowResult, error) {
	if w.suspendErr != nil {
		return nil, w.suspendErr
	}
	return w.WorkflowAdapter.Suspend(ctx, rc, key)
}

func (w *failingWorkflow) Delete(ctx context.Context, rc domain.RunContext, key string) error {
	if w.deleteErr != nil {
		return w.deleteErr
	}
	return w.WorkflowAdapter.Delete(ctx, rc, key)
}

// failingRepository wraps a repository and fails lookups.
type failingRepository struct {
	driven.IdentityRepository
	err error
}

func (r *failingRepository) FindByUsername(_ context.Context, _ domain.RunContext, _ string) ([]domain.Identity, error) {
	return nil, r.err
}
