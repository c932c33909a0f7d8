package intent

import (
	"context"

	"github.com/toneill57/innpilot-sub001/internal/model"
	"github.com/toneill57/innpilot-sub001/pkg/metrics"
)

// FastPath answers from keyword heuristics and asks the fallback only when
// the text cues a slot the heuristics could not fill. Keyword values win
// over fallback values for the same slot.
type FastPath struct {
	keyword  *Keyword
	fallback Extractor
}

// NewFastPath combines the keyword extractor with a fallback. A nil
// fallback makes the keyword extractor authoritative.
func NewFastPath(keyword *Keyword, fallback Extractor) *FastPath {
	return &FastPath{keyword: keyword, fallback: fallback}
}

// Extract implements Extractor.
func (f *FastPath) Extract(ctx context.Context, text string) model.Intent {
	out := f.keyword.Extract(ctx, text)
	if out.Empty() {
		if f.fallback == nil || !f.keyword.HasCues(text) {
			metrics.IntentExtractions.WithLabelValues("skipped").Inc()
			return model.Intent{}
		}
		return f.fallback.Extract(ctx, text)
	}

	if f.fallback == nil || !f.keyword.Unresolved(text, out) {
		metrics.IntentExtractions.WithLabelValues("captured").Inc()
		return out
	}
	return overlay(f.fallback.Extract(ctx, text), out)
}

// overlay returns base with every slot set in top replaced by top's value.
func overlay(base, top model.Intent) model.Intent {
	if top.StartDate != nil {
		base.StartDate = top.StartDate
	}
	if top.EndDate != nil {
		base.EndDate = top.EndDate
	}
	if top.PartySize != nil {
		base.PartySize = top.PartySize
	}
	if top.Category != nil {
		base.Category = top.Category
	}
	return normalize(base)
}

var _ Extractor = (*FastPath)(nil)
