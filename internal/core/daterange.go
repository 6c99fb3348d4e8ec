package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for dates sent to the backend.
const DateLayout = "2006-01-02"

var (
	ErrInvalidDate  = errors.New("invalid date")
	ErrInvalidRange = errors.New("end date before start date")
)

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
	Days  int
}

// NewDateRange truncates both ends to UTC midnight and counts days inclusively.
func NewDateRange(start, end time.Time) (DateRange, error) {
	s := midnight(start)
	e := midnight(end)
	if e.Before(s) {
		return DateRange{}, ErrInvalidRange
	}
	days := int(e.Sub(s).Hours()/24) + 1
	return DateRange{Start: s, End: e, Days: days}, nil
}

// ParseDateRange parses two YYYY-MM-DD strings.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.Parse(DateLayout, strings.TrimSpace(start))
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: start %q", ErrInvalidDate, start)
	}
	e, err := time.Parse(DateLayout, strings.TrimSpace(end))
	if err != nil {
		return DateRange{}, fmt.Errorf("%w: end %q", ErrInvalidDate, end)
	}
	return NewDateRange(s, e)
}

// MonthRange returns the range covering a whole calendar month.
func MonthRange(year int, month time.Month) DateRange {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, month, DaysIn(year, month), 0, 0, 0, 0, time.UTC)
	r, _ := NewDateRange(start, end)
	return r
}

// CurrentMonth returns the month range containing now.
func CurrentMonth(now time.Time) DateRange {
	return MonthRange(now.Year(), now.Month())
}

// StartParam returns the start date in wire format.
func (r DateRange) StartParam() string {
	return r.Start.Format(DateLayout)
}

// EndParam returns the end date in wire format.
func (r DateRange) EndParam() string {
	return r.End.Format(DateLayout)
}

// Key identifies the range, e.g. for caching.
func (r DateRange) Key() string {
	return r.StartParam() + ".." + r.EndParam()
}

// IsZero reports whether the range was never set.
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// DaysIn returns the number of days in the given month, honouring leap years.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
