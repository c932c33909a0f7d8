// Package intent extracts structured booking slots from a turn and folds them
// into the accumulated intent of a conversation.
package intent

import (
	"strings"

	"github.com/toneill57/innpilot-sub001/internal/model"
)

// Merge folds partial into accumulated. A slot takes the partial value when
// it is set and keeps the accumulated value otherwise. captured reports
// whether any slot went from unset to set or changed to a materially
// different value. Complete never regresses once true.
func Merge(accumulated, partial model.Intent) (merged model.Intent, captured bool) {
	merged = accumulated.Clone()

	var changed bool
	merged.StartDate, changed = mergeString(merged.StartDate, partial.StartDate)
	captured = captured || changed
	merged.EndDate, changed = mergeString(merged.EndDate, partial.EndDate)
	captured = captured || changed
	merged.Category, changed = mergeString(merged.Category, partial.Category)
	captured = captured || changed
	if partial.PartySize != nil {
		n := *partial.PartySize
		if accumulated.PartySize == nil || *accumulated.PartySize != n {
			captured = true
		}
		merged.PartySize = &n
	}

	merged.Complete = accumulated.Complete || merged.MandatoryFilled()
	return merged, captured
}

// mergeString returns the value to store and whether it differs materially
// from the accumulated one. A nil partial keeps the accumulated value.
func mergeString(acc, partial *string) (*string, bool) {
	if partial == nil {
		return acc, false
	}
	v := *partial
	changed := acc == nil || !strings.EqualFold(strings.TrimSpace(*acc), strings.TrimSpace(v))
	return &v, changed
}
