package workflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/custodia-labs/idsync/internal/core/domain"
	"github.com/custodia-labs/idsync/internal/core/ports/driven"
)

// Ensure Direct implements the interface.
var _ driven.WorkflowAdapter = (*Direct)(nil)

// Workflow event names.
const (
	EventCreate     = "[WORKFLOW]:[identity]:[create]"
	EventUpdate     = "[WORKFLOW]:[identity]:[update]"
	EventSuspend    = "[WORKFLOW]:[identity]:[suspend]"
	EventReactivate = "[WORKFLOW]:[identity]:[reactivate]"
	EventApprove    = "[WORKFLOW]:[identity]:[approve]"
)

// Direct applies identity changes straight to the repository.
type Direct struct {
	repo  driven.IdentityRepository
	newID func() string
}

// NewDirect creates a direct workflow adapter.
func NewDirect(repo driven.IdentityRepository) *Direct {
	return &Direct{repo: repo, newID: uuid.NewString}
}

// Create stores a new active identity, or a suspended one when enabled is false.
func (d *Direct) Create(
	ctx context.Context,
	rc domain.RunContext,
	candidate domain.Candidate,
	enabled *bool,
) (*domain.WorkflowResult, error) {
	status := domain.StatusActive
	if enabled != nil && !*enabled {
		status = domain.StatusSuspended
	}
	identity, err := d.create(ctx, rc, candidate, status)
	if err != nil {
		return nil, err
	}
	return &domain.WorkflowResult{
		Key:                 identity.Key,
		PropagationEligible: true,
		AffectedResources:   identity.Resources,
		Events:              []string{EventCreate},
	}, nil
}

func (d *Direct) create(
	ctx context.Context,
	rc domain.RunContext,
	candidate domain.Candidate,
	status domain.IdentityStatus,
) (*domain.Identity, error) {
	if err := authorize(rc, domain.AuthorityIdentityCreate); err != nil {
		return nil, err
	}
	if candidate.Username == "" {
		return nil, fmt.Errorf("%w: username is required", domain.ErrInvalidInput)
	}
	identity, err := d.repo.Save(ctx, rc, domain.Identity{
		Key:        d.newID(),
		NumericID:  candidate.NumericID,
		Username:   candidate.Username,
		Status:     status,
		Attributes: candidate.Attributes,
		Resources:  domain.MergeResources(candidate.Resources, nil),
	})
	if err != nil {
		return nil, fmt.Errorf("save identity: %w", err)
	}
	return identity, nil
}

// Update applies a modification and reports every assigned resource as affected.
func (d *Direct) Update(ctx context.Context, rc domain.RunContext, mod domain.Modification) (*domain.WorkflowResult, error) {
	if err := authorize(rc, domain.AuthorityIdentityUpdate); err != nil {
		return nil, err
	}
	identity, err := d.repo.FindByKey(ctx, rc, mod.Key)
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}

	updated := mod.ApplyTo(*identity)
	saved, err := d.repo.Save(ctx, rc, updated)
	if err != nil {
		return nil, fmt.Errorf("save identity: %w", err)
	}
	return &domain.WorkflowResult{
		Key:                 saved.Key,
		PropagationEligible: saved.Status != domain.StatusPending,
		AffectedResources:   saved.Resources,
		Events:              []string{EventUpdate},
	}, nil
}

// Suspend disables an identity.
func (d *Direct) Suspend(ctx context.Context, rc domain.RunContext, key string) (*domain.WorkflowResult, error) {
	return d.setStatus(ctx, rc, key, domain.StatusSuspended, EventSuspend)
}

// Reactivate enables an identity.
func (d *Direct) Reactivate(ctx context.Context, rc domain.RunContext, key string) (*domain.WorkflowResult, error) {
	return d.setStatus(ctx, rc, key, domain.StatusActive, EventReactivate)
}

func (d *Direct) setStatus(
	ctx context.Context,
	rc domain.RunContext,
	key string,
	status domain.IdentityStatus,
	event string,
) (*domain.WorkflowResult, error) {
	if err := authorize(rc, domain.AuthorityIdentityUpdate); err != nil {
		return nil, err
	}
	identity, err := d.repo.FindByKey(ctx, rc, key)
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	identity.Status = status
	saved, err := d.repo.Save(ctx, rc, *identity)
	if err != nil {
		return nil, fmt.Errorf("save identity: %w", err)
	}
	return &domain.WorkflowResult{
		Key:                 saved.Key,
		PropagationEligible: true,
		AffectedResources:   saved.Resources,
		Events:              []string{event},
	}, nil
}

// Delete removes an identity.
func (d *Direct) Delete(ctx context.Context, rc domain.RunContext, key string) error {
	if err := authorize(rc, domain.AuthorityIdentityDelete); err != nil {
		return err
	}
	if err := d.repo.Delete(ctx, rc, key); err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	return nil
}

func authorize(rc domain.RunContext, authority string) error {
	if !rc.HasAuthority(authority) {
		return fmt.Errorf("%w: %s lacks %s", domain.ErrUnauthorized, rc.Principal, authority)
	}
	return nil
}
