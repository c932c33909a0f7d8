package retrieval

import (
	"slices"
	"sort"

	"github.com/toneill57/innpilot-sub001/internal/catalog"
	"github.com/toneill57/innpilot-sub001/internal/model"
)

// complianceTerms mark queries where recall matters more than latency.
var complianceTerms = []string{
	"compliance", "regulation", "legal", "law", "tax", "vat", "iva",
	"sire", "tra", "migration", "registration", "report", "reporting",
	"invoice", "audit", "license", "licence", "permit", "gdpr",
	"data protection",
}

// IsComplianceSensitive reports whether a query touches regulatory topics.
func IsComplianceSensitive(query string) bool {
	text := catalog.Normalize(query)
	for _, term := range complianceTerms {
		if catalog.ContainsTerm(text, term) {
			return true
		}
	}
	return false
}

// StartTier picks the first tier to search. Compliance-sensitive staff
// queries go straight to the most precise tier.
func StartTier(actor model.Actor, query string) model.Tier {
	if actor.Kind == model.ActorStaff && IsComplianceSensitive(query) {
		return model.TierFull
	}
	return model.TierFast
}

// Order ranks collections for a query: collections whose topic keywords
// occur in the query come first, then by catalog priority.
func Order(collections []catalog.Collection, query string) []catalog.Collection {
	out := slices.Clone(collections)
	boosted := make(map[string]bool, len(out))
	for _, c := range out {
		boosted[c.Name] = c.Matches(query)
	}
	sort.SliceStable(out, func(i, j int) bool {
		bi, bj := boosted[out[i].Name], boosted[out[j].Name]
		if bi != bj {
			return bi
		}
		return out[i].Priority < out[j].Priority
	})
	return out
}
