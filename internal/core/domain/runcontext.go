package domain

// Authorities granted to runs.
const (
	AuthorityIdentityCreate = "IDENTITY_CREATE"
	AuthorityIdentityUpdate = "IDENTITY_UPDATE"
	AuthorityIdentityDelete = "IDENTITY_DELETE"
	AuthorityIdentityRead   = "IDENTITY_READ"
	AuthorityPropagate      = "PROPAGATE"
)

// SystemPrincipal is the principal used by scheduled and CLI runs.
const SystemPrincipal = "idsync"

// RunContext carries the caller's identity and authorities into every
// collaborator call made during a sync run.
type RunContext struct {
	RunID       string
	Principal   string
	Authorities map[string]struct{}
}

// SystemRunContext returns a context holding every authority.
func SystemRunContext(runID string) RunContext {
	return NewRunContext(runID, SystemPrincipal,
		AuthorityIdentityCreate,
		AuthorityIdentityUpdate,
		AuthorityIdentityDelete,
		AuthorityIdentityRead,
		AuthorityPropagate,
	)
}

// NewRunContext builds a context with the given authorities.
func NewRunContext(runID, principal string, authorities ...string) RunContext {
	set := make(map[string]struct{}, len(authorities))
	for _, a := range authorities {
		set[a] = struct{}{}
	}
	return RunContext{RunID: runID, Principal: principal, Authorities: set}
}

// HasAuthority reports whether the context grants authority.
func (rc RunContext) HasAuthority(authority string) bool {
	_, ok := rc.Authorities[authority]
	return ok
}
