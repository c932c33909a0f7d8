// Package catalog lists the knowledge collections each tenant exposes to
// retrieval, with their priority order and topic keywords.
package catalog

import (
	"context"
	"slices"
	"sort"
	"strings"
	"unicode"
)

// Well-known collection names.
const (
	Accommodation = "accommodation"
	Policy        = "policy"
	Tourism       = "tourism"
	Compliance    = "compliance"
)

// Collection describes one knowledge collection.
type Collection struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Priority    int      `json:"priority"`
	Keywords    []string `json:"keywords"`
}

// Matches reports whether any of the collection's keywords occurs in query.
func (c Collection) Matches(query string) bool {
	text := Normalize(query)
	for _, k := range c.Keywords {
		if ContainsTerm(text, k) {
			return true
		}
	}
	return false
}

// Normalize lower-cases text and reduces it to space separated words,
// padded with a space on each side, for use with ContainsTerm.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 2)
	b.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}

// ContainsTerm reports whether normalized text contains term as whole
// words, allowing a plural "s".
func ContainsTerm(normalized, term string) bool {
	term = strings.TrimSpace(strings.ToLower(term))
	if term == "" {
		return false
	}
	return strings.Contains(normalized, " "+term+" ") || strings.Contains(normalized, " "+term+"s ")
}

// Catalog resolves the collections of a tenant.
type Catalog interface {
	Collections(ctx context.Context, tenantID string) ([]Collection, error)
}

// Static serves the same collections to every tenant.
type Static struct {
	collections []Collection
}

// NewStatic creates a catalog from a fixed list, ordered by priority.
func NewStatic(collections ...Collection) *Static {
	sorted := slices.Clone(collections)
	sortByPriority(sorted)
	return &Static{collections: sorted}
}

// Default is the catalog used when no tenant-specific one is configured.
func Default() *Static {
	return NewStatic(
		Collection{
			Name:        Accommodation,
			DisplayName: "Accommodations",
			Priority:    1,
			Keywords:    []string{"room", "suite", "apartment", "cabin", "bed", "stay", "night", "availability", "available", "price", "rate", "book", "guest", "view", "kitchen", "balcony"},
		},
		Collection{
			Name:        Policy,
			DisplayName: "House policies",
			Priority:    2,
			Keywords:    []string{"check-in", "checkin", "checkout", "check-out", "wifi", "pet", "cancel", "refund", "policy", "rule", "smoking", "parking", "breakfast", "deposit"},
		},
		Collection{
			Name:        Tourism,
			DisplayName: "Local guide",
			Priority:    3,
			Keywords:    []string{"tour", "beach", "restaurant", "museum", "visit", "excursion", "dive", "diving", "snorkel", "airport", "taxi", "island", "things to do"},
		},
		Collection{
			Name:        Compliance,
			DisplayName: "Compliance",
			Priority:    4,
			Keywords:    []string{"tax", "registration", "sire", "invoice", "compliance", "legal", "migration", "passport"},
		},
	)
}

// Collections implements Catalog.
func (s *Static) Collections(context.Context, string) ([]Collection, error) {
	return slices.Clone(s.collections), nil
}

func sortByPriority(cols []Collection) {
	sort.SliceStable(cols, func(i, j int) bool {
		return cols[i].Priority < cols[j].Priority
	})
}

var _ Catalog = (*Static)(nil)
