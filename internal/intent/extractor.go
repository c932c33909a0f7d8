package intent

import (
	"context"
	"strings"
	"time"

	"github.com/toneill57/innpilot-sub001/internal/model"
)

// DateLayout is the format of date slots.
const DateLayout = "2006-01-02"

// MaxPartySize bounds accepted party sizes; larger numbers are treated as noise.
const MaxPartySize = 50

// Extractor derives a partial intent from one turn of text. Extraction
// failures are absorbed: the result is then an empty intent.
type Extractor interface {
	Extract(ctx context.Context, text string) model.Intent
}

// Categories maps accepted spellings to canonical accommodation categories.
var Categories = map[string]string{
	"suite":       "suite",
	"suites":      "suite",
	"apartment":   "apartment",
	"apartments":  "apartment",
	"apartamento": "apartment",
	"cabin":       "cabin",
	"cabins":      "cabin",
	"cabaña":      "cabin",
	"room":        "room",
	"rooms":       "room",
	"habitación":  "room",
	"villa":       "villa",
	"villas":      "villa",
}

// normalize checks a raw partial intent, dropping slots that are malformed.
func normalize(raw model.Intent) model.Intent {
	var out model.Intent
	if d, ok := validDate(raw.StartDate); ok {
		out.StartDate = &d
	}
	if d, ok := validDate(raw.EndDate); ok {
		out.EndDate = &d
	}
	if out.StartDate != nil && out.EndDate != nil && *out.EndDate < *out.StartDate {
		out.EndDate = nil
	}
	if raw.PartySize != nil && *raw.PartySize > 0 && *raw.PartySize <= MaxPartySize {
		n := *raw.PartySize
		out.PartySize = &n
	}
	if raw.Category != nil {
		if c, ok := Categories[strings.ToLower(strings.TrimSpace(*raw.Category))]; ok {
			out.Category = &c
		}
	}
	return out
}

func validDate(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	t, err := time.Parse(DateLayout, strings.TrimSpace(*s))
	if err != nil {
		return "", false
	}
	return t.Format(DateLayout), true
}
