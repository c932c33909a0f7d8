package model

// Slot names a field of the structured intent.
type Slot string

const (
	SlotStartDate Slot = "start_date"
	SlotEndDate   Slot = "end_date"
	SlotPartySize Slot = "party_size"
	SlotCategory  Slot = "category"
)

// AllSlots lists every slot in a stable order.
var AllSlots = []Slot{SlotStartDate, SlotEndDate, SlotPartySize, SlotCategory}

// MandatorySlots must all be set for an intent to be complete.
var MandatorySlots = []Slot{SlotStartDate, SlotEndDate, SlotPartySize}

// Intent is the slot-filling record accumulated over a conversation.
// A nil slot is unset. Dates use the 2006-01-02 layout.
type Intent struct {
	StartDate *string `json:"start_date"`
	EndDate   *string `json:"end_date"`
	PartySize *int    `json:"party_size"`
	Category  *string `json:"category"`
	Complete  bool    `json:"complete"`
}

// IsSet reports whether the named slot holds a value.
func (i Intent) IsSet(slot Slot) bool {
	switch slot {
	case SlotStartDate:
		return i.StartDate != nil
	case SlotEndDate:
		return i.EndDate != nil
	case SlotPartySize:
		return i.PartySize != nil
	case SlotCategory:
		return i.Category != nil
	}
	return false
}

// Empty reports whether no slot is set.
func (i Intent) Empty() bool {
	for _, s := range AllSlots {
		if i.IsSet(s) {
			return false
		}
	}
	return true
}

// MandatoryFilled reports whether every mandatory slot is set.
func (i Intent) MandatoryFilled() bool {
	for _, s := range MandatorySlots {
		if !i.IsSet(s) {
			return false
		}
	}
	return true
}

// Clone returns a copy that shares no pointers with i.
func (i Intent) Clone() Intent {
	c := Intent{Complete: i.Complete}
	if i.StartDate != nil {
		v := *i.StartDate
		c.StartDate = &v
	}
	if i.EndDate != nil {
		v := *i.EndDate
		c.EndDate = &v
	}
	if i.PartySize != nil {
		v := *i.PartySize
		c.PartySize = &v
	}
	if i.Category != nil {
		v := *i.Category
		c.Category = &v
	}
	return c
}

// IntentView is the accumulated intent as reported to callers.
type IntentView struct {
	Intent
	CapturedThisMessage bool `json:"captured_this_message"`
}
