package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/patchflow/patchflow/internal/types"
)

// maxRecentActivity bounds each capability's recent-activity log
const maxRecentActivity = 20

// defaultConsumers is the fixed set of consumer identities whose
// capability lists absorb newly discovered terms.
var defaultConsumers = []string{
	"code-review",
	"refactoring",
	"test-generation",
}

// updateCapabilities merges newly discovered terms into every consumer's
// capability list. Term lists are append-only and deduplicated; the running
// update count increments once per submission; a recent-activity entry is
// prepended and the log trimmed to maxRecentActivity.
func updateCapabilities(ctx context.Context, store CapabilityStore, sub types.Submission, terms []string, now time.Time) error {
	for _, consumer := range defaultConsumers {
		record, err := store.Load(ctx, consumer)
		if err != nil {
			return fmt.Errorf("failed to load capability for %s: %w", consumer, err)
		}

		added := mergeTerms(record, terms)
		record.UpdateCount++
		record.RecentActivity = append([]ActivityEntry{{
			SubmissionID: sub.ID,
			Subject:      sub.Subject,
			TermsAdded:   added,
			At:           now,
		}}, record.RecentActivity...)
		if len(record.RecentActivity) > maxRecentActivity {
			record.RecentActivity = record.RecentActivity[:maxRecentActivity]
		}

		if err := store.Save(ctx, record); err != nil {
			return fmt.Errorf("failed to save capability for %s: %w", consumer, err)
		}
	}
	return nil
}

// mergeTerms appends terms not already present and returns how many were added
func mergeTerms(record *Capability, terms []string) int {
	known := make(map[string]struct{}, len(record.Terms))
	for _, t := range record.Terms {
		known[t] = struct{}{}
	}

	added := 0
	for _, t := range terms {
		if _, ok := known[t]; ok {
			continue
		}
		known[t] = struct{}{}
		record.Terms = append(record.Terms, t)
		added++
	}
	return added
}
