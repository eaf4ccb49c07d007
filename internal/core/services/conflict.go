package services

import (
	"fmt"
	"sort"

	"github.com/custodia-labs/idsync/internal/core/domain"
)

// SelectMatches applies a conflict policy to a set of matching identity keys.
// Keys are sorted ascending before selection. Under IGNORE, more than one
// match yields an empty selection and ErrAmbiguousMatch.
func SelectMatches(matches []string, policy domain.ConflictPolicy, op domain.Operation) ([]string, error) {
	if len(matches) <= 1 {
		return matches, nil
	}

	sorted := append([]string(nil), matches...)
	sort.Strings(sorted)

	switch policy {
	case domain.ConflictFirstMatch:
		return sorted[:1], nil
	case domain.ConflictLastMatch:
		return sorted[len(sorted)-1:], nil
	case domain.ConflictAll:
		return sorted, nil
	default:
		return []string{}, fmt.Errorf("%w for %s: %v", domain.ErrAmbiguousMatch, op, sorted)
	}
}
