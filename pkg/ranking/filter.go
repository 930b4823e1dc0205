// Package ranking implements the deterministic post-filter and scoring
// kernel that sits between the Provider Adapter and the Assistant
// assembly stage.
package ranking

import (
	"sort"
	"strings"
	"time"

	"github.com/shacharon/pizza-sub006/pkg/jobstore"
)

// OpenState is the requested open/closed filter axis.
type OpenState struct {
	Kind  string // "", "OPEN_NOW", "CLOSED_NOW", "OPEN_AT", "OPEN_BETWEEN"
	Day   time.Weekday
	Start string // "HH:MM"
	End   string // "HH:MM", only for OPEN_BETWEEN
}

// RatingBucket is the minimum-rating filter axis.
type RatingBucket string

const (
	RatingNone RatingBucket = ""
	Rating35   RatingBucket = "R35"
	Rating40   RatingBucket = "R40"
	Rating45   RatingBucket = "R45"
)

func (b RatingBucket) threshold() (float64, bool) {
	switch b {
	case Rating35:
		return 3.5, true
	case Rating40:
		return 4.0, true
	case Rating45:
		return 4.5, true
	default:
		return 0, false
	}
}

// OpeningPeriod is one structured opening interval, possibly crossing
// midnight (Start > End).
type OpeningPeriod struct {
	Day   time.Weekday
	Start string // "HH:MM"
	End   string // "HH:MM"
}

// SharedFilters is the full set of post-filter inputs for one request.
type SharedFilters struct {
	OpenState       OpenState
	MinRating       RatingBucket
	IsGlutenFree    bool // annotation only, never a removal
	IsKosher        bool // hard constraint, never relaxed
	MeatDairy       string
	DropUnknownOpen bool // tunable: UNKNOWN openNow is kept by default under OPEN_NOW/CLOSED_NOW; set true to drop it instead
}

// OpeningHours maps placeId -> structured opening periods, supplied out
// of band (provider data is not normalized into ResultItem directly).
type OpeningHours map[string][]OpeningPeriod

// FilterCounters reports the outcome of one post-filter pass
// (before = after + removed).
type FilterCounters struct {
	Before         int
	After          int
	Removed        int
	UnknownKept    int
	UnknownRemoved int
}

// ApplyFilters runs the openState and minRating axes over items in order
// and returns the survivors plus counters. IsGlutenFree, IsKosher and
// MeatDairy remove no items here. It never mutates items in place.
func ApplyFilters(items []jobstore.ResultItem, filters SharedFilters, hours OpeningHours, now time.Time) ([]jobstore.ResultItem, FilterCounters) {
	counters := FilterCounters{Before: len(items)}

	out := make([]jobstore.ResultItem, 0, len(items))
	for _, item := range items {
		if !passesOpenState(item, filters, hours, now, &counters) {
			counters.Removed++
			continue
		}
		if !passesMinRating(item, filters.MinRating) {
			counters.Removed++
			continue
		}
		out = append(out, item)
	}

	counters.After = len(out)
	return out, counters
}

func passesOpenState(item jobstore.ResultItem, filters SharedFilters, hours OpeningHours, now time.Time, counters *FilterCounters) bool {
	switch filters.OpenState.Kind {
	case "":
		return true

	case "OPEN_NOW":
		if item.OpenNow == nil {
			if filters.DropUnknownOpen {
				counters.UnknownRemoved++
				return false
			}
			counters.UnknownKept++
			return true
		}
		return *item.OpenNow

	case "CLOSED_NOW":
		if item.OpenNow == nil {
			if filters.DropUnknownOpen {
				counters.UnknownRemoved++
				return false
			}
			counters.UnknownKept++
			return true
		}
		return !*item.OpenNow

	case "OPEN_AT":
		periods, ok := hours[item.PlaceID]
		if !ok {
			counters.UnknownKept++
			return true
		}
		return anyPeriodContains(periods, filters.OpenState.Day, filters.OpenState.Start)

	case "OPEN_BETWEEN":
		periods, ok := hours[item.PlaceID]
		if !ok {
			counters.UnknownKept++
			return true
		}
		return anyPeriodCovers(periods, filters.OpenState.Day, filters.OpenState.Start, filters.OpenState.End)

	default:
		return true
	}
}

func passesMinRating(item jobstore.ResultItem, bucket RatingBucket) bool {
	threshold, active := bucket.threshold()
	if !active {
		return true
	}
	if item.Rating == nil {
		return true // unrated kept by default
	}
	return *item.Rating >= threshold
}

// anyPeriodContains checks whether the instant (day, HH:MM) falls inside
// any period, handling periods that cross midnight.
func anyPeriodContains(periods []OpeningPeriod, day time.Weekday, at string) bool {
	atMin, ok := toMinutes(at)
	if !ok {
		return true // unparseable treated as unknown, kept by default
	}
	for _, p := range periods {
		if containsInstant(p, day, atMin) {
			return true
		}
	}
	return false
}

// anyPeriodCovers checks whether the full [start,end) window on day is
// covered by any single period (two-endpoint check).
func anyPeriodCovers(periods []OpeningPeriod, day time.Weekday, start, end string) bool {
	startMin, ok1 := toMinutes(start)
	endMin, ok2 := toMinutes(end)
	if !ok1 || !ok2 {
		return true
	}
	for _, p := range periods {
		if containsInstant(p, day, startMin) && containsInstant(p, day, endMin) {
			return true
		}
	}
	return false
}

func containsInstant(p OpeningPeriod, day time.Weekday, minutes int) bool {
	startMin, ok1 := toMinutes(p.Start)
	endMin, ok2 := toMinutes(p.End)
	if !ok1 || !ok2 {
		return false
	}
	if p.Day != day && !(endMin < startMin && p.Day == (day+6)%7) {
		// Not the queried day, unless this period started the day before
		// and crosses midnight into `day`.
		if p.Day != day {
			return false
		}
	}
	if endMin >= startMin {
		return minutes >= startMin && minutes < endMin
	}
	// Crosses midnight: valid from start..24:00 on p.Day, and 00:00..end
	// on the following day.
	if p.Day == day {
		return minutes >= startMin
	}
	return minutes < endMin
}

func toMinutes(hhmm string) (int, bool) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err1 := parseUint(parts[0])
	m, err2 := parseUint(parts[1])
	if err1 != nil || err2 != nil || h > 23 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

func parseUint(s string) (int, error) {
	n := 0
	if len(s) == 0 {
		return 0, &strconvErr{s}
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, &strconvErr{s}
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

type strconvErr struct{ s string }

func (e *strconvErr) Error() string { return "invalid number: " + e.s }

// StableSortByComposite sorts items by the already-computed composite
// score descending, breaking ties by placeId ascending.
func StableSortByComposite(items []jobstore.ResultItem, composite map[string]float64) {
	sort.SliceStable(items, func(i, j int) bool {
		ci, cj := composite[items[i].PlaceID], composite[items[j].PlaceID]
		if ci != cj {
			return ci > cj
		}
		return items[i].PlaceID < items[j].PlaceID
	})
}
