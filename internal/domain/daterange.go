package domain

import (
	"fmt"
	"time"
)

// DateLayout is the layout of dates in search qualifiers and metric rows.
const DateLayout = "2006-01-02"

// DateField selects which pull request timestamp a search range applies to.
type DateField string

const (
	DateFieldCreated DateField = "created"
	DateFieldUpdated DateField = "updated"
)

// ISODate formats t as a UTC calendar date.
func ISODate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange normalizes both bounds to calendar days. An end before the start is
// clamped to the start.
func NewDateRange(start, end time.Time) DateRange {
	s, e := Day(start), Day(end)
	if e.Before(s) {
		e = s
	}
	return DateRange{Start: s, End: e}
}

// Days returns the number of calendar days covered by the range.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// CanSplit reports whether the range can be halved into two non-empty ranges.
func (r DateRange) CanSplit() bool {
	return r.Days() >= 2
}

// Split halves the range at its midpoint. The left half ends on the midpoint day and
// the right half starts the day after, so the halves are disjoint and contiguous.
func (r DateRange) Split() (DateRange, DateRange, bool) {
	if !r.CanSplit() {
		return r, DateRange{}, false
	}
	mid := r.Start.AddDate(0, 0, (r.Days()-1)/2)
	return DateRange{Start: r.Start, End: mid}, DateRange{Start: mid.AddDate(0, 0, 1), End: r.End}, true
}

// Qualifier renders the range as a search qualifier such as "created:2024-01-01..2024-01-10".
func (r DateRange) Qualifier(field DateField) string {
	return fmt.Sprintf("%s:%s..%s", field, r.Start.Format(DateLayout), r.End.Format(DateLayout))
}

func (r DateRange) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}
