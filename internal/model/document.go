package model

// Tier is one of the fixed embedding lengths used for retrieval.
type Tier string

const (
	TierFast     Tier = "fast"
	TierBalanced Tier = "balanced"
	TierFull     Tier = "full"
)

// Tiers lists the tiers from fastest to most precise.
var Tiers = []Tier{TierFast, TierBalanced, TierFull}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t.rank() >= 0
}

// Next returns the next more precise tier, or false at the top.
func (t Tier) Next() (Tier, bool) {
	r := t.rank()
	if r < 0 || r+1 >= len(Tiers) {
		return t, false
	}
	return Tiers[r+1], true
}

func (t Tier) rank() int {
	for i, v := range Tiers {
		if v == t {
			return i
		}
	}
	return -1
}

// Visibility is the tag that restricts which actors may read a document.
type Visibility string

const (
	VisibilityPublic Visibility = "public"
	VisibilityGuest  Visibility = "guest"
	VisibilityStaff  Visibility = "staff"
	VisibilityAdmin  Visibility = "admin"
)

var visibilityLevels = map[Visibility]int{
	VisibilityPublic: 0,
	VisibilityGuest:  1,
	VisibilityStaff:  2,
	VisibilityAdmin:  3,
}

// ParseVisibility maps a stored tag to a Visibility. Unknown tags are
// reported as not ok so callers can exclude the document.
func ParseVisibility(tag string) (Visibility, bool) {
	v := Visibility(tag)
	_, ok := visibilityLevels[v]
	return v, ok
}

// Level is the privilege rank of the tag; higher is more restricted.
func (v Visibility) Level() int {
	if l, ok := visibilityLevels[v]; ok {
		return l
	}
	return len(visibilityLevels)
}

// AllowedVisibilities returns every tag readable at the given clearance,
// lowest first. An unknown clearance reads nothing.
func AllowedVisibilities(clearance Visibility) []Visibility {
	limit, ok := visibilityLevels[clearance]
	if !ok {
		return nil
	}
	out := make([]Visibility, 0, len(visibilityLevels))
	for _, v := range []Visibility{VisibilityPublic, VisibilityGuest, VisibilityStaff, VisibilityAdmin} {
		if v.Level() <= limit {
			out = append(out, v)
		}
	}
	return out
}

// RetrievedDocument is a candidate unit of knowledge produced per request.
type RetrievedDocument struct {
	ID         string            `json:"id"`
	Collection string            `json:"collection"`
	Title      string            `json:"title,omitempty"`
	Content    string            `json:"content"`
	Score      float32           `json:"score"`
	Tier       Tier              `json:"tier"`
	Visibility Visibility        `json:"visibility"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Recall is a prior exchange of the same conversation surfaced as context.
type Recall struct {
	SessionID string  `json:"session_id"`
	Content   string  `json:"content"`
	Score     float32 `json:"score"`
}

// Source is a citation returned to callers.
type Source struct {
	ID          string  `json:"id"`
	Collection  string  `json:"collection"`
	DisplayName string  `json:"display_name"`
	Excerpt     string  `json:"excerpt"`
	Score       float32 `json:"score"`
}
