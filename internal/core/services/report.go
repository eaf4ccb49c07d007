package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/idsync/internal/core/domain"
)

// DryRunBanner prefixes reports of dry runs.
const DryRunBanner = "==>Dry run only, no modifications were made<=="

var operationVerbs = map[domain.Operation][2]string{
	domain.OperationCreate: {"created", "create"},
	domain.OperationUpdate: {"updated", "update"},
	domain.OperationDelete: {"deleted", "delete"},
}

// BuildReport renders outcomes at the given trace level.
// NONE renders nothing. SUMMARY renders counts per operation and status,
// FAILURES adds every failure grouped by operation, ALL adds every success.
func BuildReport(outcomes []domain.SyncOutcome, level domain.TraceLevel, dryRun bool) string {
	if !level.AtLeast(domain.TraceSummary) {
		return ""
	}

	grouped := make(map[domain.Operation]map[domain.OutcomeStatus][]domain.SyncOutcome, len(domain.Operations))
	for _, op := range domain.Operations {
		grouped[op] = make(map[domain.OutcomeStatus][]domain.SyncOutcome, 2)
	}
	for _, o := range outcomes {
		if _, ok := grouped[o.Operation]; !ok {
			continue
		}
		grouped[o.Operation][o.Status] = append(grouped[o.Operation][o.Status], o)
	}

	var b strings.Builder
	if dryRun {
		b.WriteString(DryRunBanner)
		b.WriteString("\n\n")
	}

	summary := make([]string, 0, len(domain.Operations))
	for _, op := range domain.Operations {
		summary = append(summary, fmt.Sprintf("[%s/failures]: %d/%d",
			operationVerbs[op][0],
			len(grouped[op][domain.OutcomeSuccess]),
			len(grouped[op][domain.OutcomeFailure])))
	}
	b.WriteString(strings.Join(summary, " "))

	if level.AtLeast(domain.TraceFailures) {
		for _, op := range domain.Operations {
			failed := grouped[op][domain.OutcomeFailure]
			if len(failed) == 0 {
				continue
			}
			fmt.Fprintf(&b, "\n\nFailed to %s: %d", operationVerbs[op][1], len(failed))
			for _, o := range failed {
				fmt.Fprintf(&b, "\n  %s: %s", outcomeLabel(o), o.Message)
			}
		}
	}

	if level.AtLeast(domain.TraceAll) {
		for _, op := range domain.Operations {
			done := grouped[op][domain.OutcomeSuccess]
			if len(done) == 0 {
				continue
			}
			verb := operationVerbs[op][0]
			fmt.Fprintf(&b, "\n\n%s%s: %d", strings.ToUpper(verb[:1]), verb[1:], len(done))
			for _, o := range done {
				fmt.Fprintf(&b, "\n  %s", outcomeLabel(o))
			}
		}
	}

	return b.String()
}

func outcomeLabel(o domain.SyncOutcome) string {
	if o.IdentityKey == "" || o.IdentityKey == o.DisplayLabel {
		return o.DisplayLabel
	}
	return fmt.Sprintf("%s (%s)", o.DisplayLabel, o.IdentityKey)
}
