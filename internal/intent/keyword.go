package intent

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/toneill57/innpilot-sub001/internal/model"
)

var months = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "a couple": 2, "couple": 2,
}

const (
	monthPattern  = `(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sept?(?:ember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?`
	dayPattern    = `(\d{1,2})(?:st|nd|rd|th)?`
	countPattern  = `(\d{1,2}|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve)`
	rangeJoin     = `\s*(?:-|–|to|until|till|through|thru)\s*`
	personPattern = `(guests?|people|persons?|pax|travell?ers|adults?|children|child|kids?)`
)

var (
	isoDateRe       = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	slashDateRe     = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{4}))?\b`)
	monthDayRangeRe = regexp.MustCompile(`\b` + monthPattern + `\s+` + dayPattern + rangeJoin + `(\d{1,2})(?:st|nd|rd|th)?\b`)
	monthDayRe      = regexp.MustCompile(`\b` + monthPattern + `\s+` + dayPattern + `\b`)
	dayMonthRe      = regexp.MustCompile(`\b` + dayPattern + `\s+(?:of\s+)?` + monthPattern + `\b`)
	personCountRe   = regexp.MustCompile(`\b` + countPattern + `\s+` + personPattern + `\b`)
	partyOfRe       = regexp.MustCompile(`\b(?:party|group|family) of\s+` + countPattern + `\b`)
	coupleRe        = regexp.MustCompile(`\b(?:a couple|my (?:wife|husband|partner|girlfriend|boyfriend) and (?:i|me))\b`)
	endMarkerRe     = regexp.MustCompile(`(?:until|till|to|check[- ]?out|leaving|depart(?:ing)?)\s*(?:on\s+)?$`)
	wordRe          = regexp.MustCompile(`[\p{L}]+`)
	countAfterRe    = regexp.MustCompile(`^\s+(?:` + personPattern + `|nights?|rooms?|beds?|of us)\b`)
	dateLeadRe      = regexp.MustCompile(`\b(?:on|from|in|until|till|to|between|by|since|after|before|through|thru|arriv\w*|leav\w*|depart\w*|check[- ]?(?:in|out))\s*$`)
	dateCueRe       = regexp.MustCompile(`\b(?:today|tonight|tomorrow|weekend|week|nights?|days?|(?:mon|tues|wednes|thurs|fri|satur|sun)day|arriv\w*|leav\w*|depart\w*|check[- ]?(?:in|out)|until|till)\b`)
	partyCueRe      = regexp.MustCompile(`\b(?:of us|people|guests?|adults?|kids?|children|persons?|pax)\b`)
	cueRe           = regexp.MustCompile(`\d|\b(?:tomorrow|tonight|weekend|week|nights?|stay|book(?:ing)?|reserv\w*|check[- ]?in|arriv\w*)\b`)
)

type dateHit struct {
	pos  int
	date time.Time
	end  bool
}

// Keyword extracts slots with regular expressions. It never calls a
// provider and never fails.
type Keyword struct {
	now func() time.Time
}

// NewKeyword creates a keyword extractor. Dates without a year resolve to
// the next occurrence on or after the day reported by now.
func NewKeyword(now func() time.Time) *Keyword {
	if now == nil {
		now = time.Now
	}
	return &Keyword{now: now}
}

// Extract implements Extractor.
func (k *Keyword) Extract(_ context.Context, text string) model.Intent {
	lower := strings.ToLower(text)
	var raw model.Intent

	dates := k.dates(lower)
	switch {
	case len(dates) >= 2:
		s, e := dates[0].date, dates[1].date
		if e.Before(s) {
			e = e.AddDate(1, 0, 0)
		}
		start, end := s.Format(DateLayout), e.Format(DateLayout)
		raw.StartDate, raw.EndDate = &start, &end
	case len(dates) == 1:
		d := dates[0].date.Format(DateLayout)
		if dates[0].end {
			raw.EndDate = &d
		} else {
			raw.StartDate = &d
		}
	}

	if n, ok := partySize(lower); ok {
		raw.PartySize = &n
	}
	if c, ok := category(lower); ok {
		raw.Category = &c
	}
	return normalize(raw)
}

// HasCues reports whether text mentions anything a slot could be read from.
func (k *Keyword) HasCues(text string) bool {
	lower := strings.ToLower(text)
	if cueRe.MatchString(lower) {
		return true
	}
	for _, w := range wordRe.FindAllString(lower, -1) {
		if _, ok := months[w]; ok {
			return true
		}
		if _, ok := numberWords[w]; ok {
			return true
		}
		if _, ok := Categories[w]; ok {
			return true
		}
	}
	return personCountRe.MatchString(lower)
}

// Unresolved reports whether text cues a slot that is still unset in got.
func (k *Keyword) Unresolved(text string, got model.Intent) bool {
	lower := strings.ToLower(text)
	if got.StartDate == nil || got.EndDate == nil {
		if dateCueRe.MatchString(lower) {
			return true
		}
		for _, w := range wordRe.FindAllString(lower, -1) {
			if _, ok := months[w]; ok {
				return true
			}
		}
	}
	return got.PartySize == nil && partyCueRe.MatchString(lower)
}

func (k *Keyword) dates(lower string) []dateHit {
	today := k.now()
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	var hits []dateHit
	taken := func(pos int) bool {
		for _, h := range hits {
			if h.pos == pos {
				return true
			}
		}
		return false
	}
	add := func(pos int, d time.Time) {
		if taken(pos) {
			return
		}
		hits = append(hits, dateHit{pos: pos, date: d, end: endMarkerRe.MatchString(lower[:pos])})
	}

	for _, m := range isoDateRe.FindAllStringSubmatchIndex(lower, -1) {
		y, _ := strconv.Atoi(lower[m[2]:m[3]])
		mo, _ := strconv.Atoi(lower[m[4]:m[5]])
		d, _ := strconv.Atoi(lower[m[6]:m[7]])
		if t, ok := makeDate(y, time.Month(mo), d); ok {
			add(m[0], t)
		}
	}
	for _, m := range monthDayRangeRe.FindAllStringSubmatchIndex(lower, -1) {
		if countAfterRe.MatchString(lower[m[1]:]) {
			continue
		}
		mo := months[lower[m[2]:m[3]]]
		d1, _ := strconv.Atoi(lower[m[4]:m[5]])
		d2, _ := strconv.Atoi(lower[m[6]:m[7]])
		if t, ok := inferYear(today, mo, d1); ok {
			add(m[0], t)
			if d2 <= d1 {
				continue
			}
			if t2, ok := makeDate(t.Year(), mo, d2); ok {
				add(m[6], t2)
			}
		}
	}
	for _, m := range monthDayRe.FindAllStringSubmatchIndex(lower, -1) {
		if !monthDayContext(lower, m) {
			continue
		}
		mo := months[lower[m[2]:m[3]]]
		d, _ := strconv.Atoi(lower[m[4]:m[5]])
		if t, ok := inferYear(today, mo, d); ok {
			add(m[0], t)
		}
	}
	for _, m := range dayMonthRe.FindAllStringSubmatchIndex(lower, -1) {
		d, _ := strconv.Atoi(lower[m[2]:m[3]])
		mo := months[lower[m[4]:m[5]]]
		if t, ok := inferYear(today, mo, d); ok {
			add(m[0], t)
		}
	}
	for _, m := range slashDateRe.FindAllStringSubmatchIndex(lower, -1) {
		d, _ := strconv.Atoi(lower[m[2]:m[3]])
		mo, _ := strconv.Atoi(lower[m[4]:m[5]])
		if m[6] >= 0 {
			y, _ := strconv.Atoi(lower[m[6]:m[7]])
			if t, ok := makeDate(y, time.Month(mo), d); ok {
				add(m[0], t)
			}
			continue
		}
		if t, ok := inferYear(today, time.Month(mo), d); ok {
			add(m[0], t)
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
	return dedupeOverlapping(hits)
}

// monthDayContext reports whether a "<month> <n>" match reads as a date.
// A count noun after the number makes it a quantity ("may 3 guests"), and
// the bare word "may" needs an ordinal suffix or a leading date preposition.
func monthDayContext(lower string, m []int) bool {
	if countAfterRe.MatchString(lower[m[1]:]) {
		return false
	}
	if lower[m[2]:m[3]] != "may" || m[1] > m[5] {
		return true
	}
	return dateLeadRe.MatchString(lower[:m[0]])
}

// dedupeOverlapping drops a hit that resolves to the same date as the
// previous one, which happens when two patterns match the same phrase.
func dedupeOverlapping(hits []dateHit) []dateHit {
	out := hits[:0]
	for _, h := range hits {
		if n := len(out); n > 0 && out[n-1].date.Equal(h.date) {
			continue
		}
		out = append(out, h)
	}
	return out
}

func makeDate(year int, month time.Month, day int) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}

func inferYear(today time.Time, month time.Month, day int) (time.Time, bool) {
	t, ok := makeDate(today.Year(), month, day)
	if !ok {
		return time.Time{}, false
	}
	if t.Before(today) {
		return makeDate(today.Year()+1, month, day)
	}
	return t, true
}

func partySize(lower string) (int, bool) {
	total, counted := 0, false
	var guests int
	for _, m := range personCountRe.FindAllStringSubmatch(lower, -1) {
		n, ok := count(m[1])
		if !ok {
			continue
		}
		switch {
		case strings.HasPrefix(m[2], "adult"), strings.HasPrefix(m[2], "child"), strings.HasPrefix(m[2], "kid"):
			total += n
			counted = true
		case guests == 0:
			guests = n
		}
	}
	if counted {
		return total, true
	}
	if guests > 0 {
		return guests, true
	}
	if m := partyOfRe.FindStringSubmatch(lower); m != nil {
		return count(m[1])
	}
	if coupleRe.MatchString(lower) {
		return 2, true
	}
	return 0, false
}

func count(s string) (int, bool) {
	if n, ok := numberWords[s]; ok {
		return n, true
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

func category(lower string) (string, bool) {
	for _, w := range wordRe.FindAllString(lower, -1) {
		if c, ok := Categories[w]; ok && c != "room" {
			return c, true
		}
	}
	for _, w := range wordRe.FindAllString(lower, -1) {
		if c, ok := Categories[w]; ok {
			return c, true
		}
	}
	return "", false
}

var _ Extractor = (*Keyword)(nil)
