package workflow

import (
	"context"
	"fmt"

	"github.com/custodia-labs/idsync/internal/core/domain"
	"github.com/custodia-labs/idsync/internal/core/ports/driven"
)

// Ensure Approval implements the interface.
var _ driven.WorkflowAdapter = (*Approval)(nil)

// Approval creates identities in the pending state. Pending identities are
// not propagated until Approve is called.
type Approval struct {
	*Direct
}

// NewApproval creates an approval workflow adapter.
func NewApproval(repo driven.IdentityRepository) *Approval {
	return &Approval{Direct: NewDirect(repo)}
}

// Create stores a pending identity. The enabled override is applied on approval.
func (a *Approval) Create(
	ctx context.Context,
	rc domain.RunContext,
	candidate domain.Candidate,
	_ *bool,
) (*domain.WorkflowResult, error) {
	identity, err := a.create(ctx, rc, candidate, domain.StatusPending)
	if err != nil {
		return nil, err
	}
	return &domain.WorkflowResult{
		Key:                 identity.Key,
		PropagationEligible: false,
		AffectedResources:   identity.Resources,
		Events:              []string{EventCreate},
	}, nil
}

// Approve activates a pending identity and makes it eligible for propagation.
func (a *Approval) Approve(ctx context.Context, rc domain.RunContext, key string) (*domain.WorkflowResult, error) {
	identity, err := a.repo.FindByKey(ctx, rc, key)
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	if identity.Status != domain.StatusPending {
		return nil, fmt.Errorf("%w: identity %s is %s, not pending", domain.ErrInvalidInput, key, identity.Status)
	}
	return a.setStatus(ctx, rc, key, domain.StatusActive, EventApprove)
}

// New returns the workflow adapter named by kind: "direct" or "approval".
func New(kind string, repo driven.IdentityRepository) (driven.WorkflowAdapter, error) {
	switch kind {
	case "", "direct":
		return NewDirect(repo), nil
	case "approval":
		return NewApproval(repo), nil
	default:
		return nil, fmt.Errorf("%w: workflow %q", domain.ErrUnsupportedType, kind)
	}
}
