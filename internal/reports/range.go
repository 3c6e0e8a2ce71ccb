package reports

import (
	"time"

	"github.com/angelmondragon/bizledger-backend/internal/repo"
	"github.com/angelmondragon/bizledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bizledger-backend/pkg/errors"
)

// RangeSpec selects the report window. From and To are only read for custom
// ranges, where they name calendar days.
type RangeSpec struct {
	Kind enums.RangeKind
	From time.Time
	To   time.Time
}

// Window is a resolved range. Both bounds are inclusive. An unbounded window
// contains every instant.
type Window struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Bounded bool      `json:"bounded"`
}

// Resolve turns the range into concrete bounds using now in loc. Weeks start
// on Monday.
func (r RangeSpec) Resolve(now time.Time, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	today := startOfDay(now)

	switch r.Kind {
	case enums.RangeKindAllTime, "":
		return Window{}, nil
	case enums.RangeKindToday:
		return closed(today, today.AddDate(0, 0, 1)), nil
	case enums.RangeKindThisWeek:
		offset := (int(today.Weekday()) + 6) % 7
		start := today.AddDate(0, 0, -offset)
		return closed(start, start.AddDate(0, 0, 7)), nil
	case enums.RangeKindThisMonth:
		start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, loc)
		return closed(start, start.AddDate(0, 1, 0)), nil
	case enums.RangeKindThisYear:
		start := time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, loc)
		return closed(start, start.AddDate(1, 0, 0)), nil
	case enums.RangeKindCustom:
		if r.From.IsZero() || r.To.IsZero() {
			return Window{}, pkgerrors.New(pkgerrors.CodeValidation, "custom range requires from and to")
		}
		from := time.Date(r.From.Year(), r.From.Month(), r.From.Day(), 0, 0, 0, 0, loc)
		to := time.Date(r.To.Year(), r.To.Month(), r.To.Day(), 0, 0, 0, 0, loc)
		if to.Before(from) {
			return Window{}, pkgerrors.New(pkgerrors.CodeValidation, "range end is before its start")
		}
		return closed(from, to.AddDate(0, 0, 1)), nil
	default:
		return Window{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown range "+r.Kind.String())
	}
}

// closed converts a half-open [start, next) span into inclusive bounds.
func closed(start, next time.Time) Window {
	return Window{Start: start, End: next.Add(-time.Nanosecond), Bounded: true}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Contains reports whether t falls inside the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	if !w.Bounded {
		return true
	}
	return !t.Before(w.Start) && !t.After(w.End)
}

// DateRange converts the window into a store filter.
func (w Window) DateRange() repo.DateRange {
	if !w.Bounded {
		return repo.DateRange{}
	}
	start, end := w.Start, w.End
	return repo.DateRange{From: &start, To: &end}
}
