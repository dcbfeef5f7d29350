package seminar

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/semina/core"
)

// TimingPolicy computes the daily booking-window and selection-trigger times.
// All methods are pure: "now" is always passed in, never read ambiently.
type TimingPolicy struct {
	conf core.SeminarConfig
	loc  *time.Location
}

func NewTimingPolicy(conf core.SeminarConfig) (*TimingPolicy, error) {
	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "loading timezone %q", conf.Timezone)
	}
	return &TimingPolicy{conf: conf, loc: loc}, nil
}

func (p *TimingPolicy) Location() *time.Location { return p.loc }

func (p *TimingPolicy) todayAt(now time.Time, hour, minute int) time.Time {
	n := now.In(p.loc)
	return time.Date(n.Year(), n.Month(), n.Day(), hour, minute, 0, 0, p.loc)
}

// WindowStart returns the booking window start on now's calendar day.
func (p *TimingPolicy) WindowStart(now time.Time) time.Time {
	return p.todayAt(now, p.conf.WindowStartHour, p.conf.WindowStartMinute)
}

// WindowEnd returns the booking window end on now's calendar day.
func (p *TimingPolicy) WindowEnd(now time.Time) time.Time {
	return p.todayAt(now, p.conf.WindowEndHour, p.conf.WindowEndMinute)
}

// SelectionTime returns the configured selection time on now's calendar day.
func (p *TimingPolicy) SelectionTime(now time.Time) time.Time {
	return p.todayAt(now, p.conf.SelectionHour, p.conf.SelectionMinute)
}

// NextWindowStart returns today's window start if it is still ahead,
// otherwise tomorrow's.
func (p *TimingPolicy) NextWindowStart(now time.Time) time.Time {
	start := p.WindowStart(now)
	if now.Before(start) {
		return start
	}
	return start.AddDate(0, 0, 1)
}

// IsBookingWindowOpen reports whether now falls within today's booking
// window. Both boundaries are inclusive.
func (p *TimingPolicy) IsBookingWindowOpen(now time.Time) bool {
	return !now.Before(p.WindowStart(now)) && !now.After(p.WindowEnd(now))
}

// ShouldTriggerAutoSelection reports whether now is within the trigger
// tolerance after today's selection time. This is level-triggered: it stays
// true for the whole tolerance window, so callers must rely on the selection
// engine's idempotence rather than on this predicate for dedupe.
func (p *TimingPolicy) ShouldTriggerAutoSelection(now time.Time) bool {
	diff := now.Sub(p.SelectionTime(now))
	return diff >= 0 && diff <= p.conf.TriggerTolerance
}

// NextSeminarDate returns tomorrow's date, the default booking target.
// Holiday/weekend adjustment is HolidayPolicy's job.
func (p *TimingPolicy) NextSeminarDate(now time.Time) time.Time {
	return Date(now.In(p.loc).AddDate(0, 0, 1))
}

// BookingWindowInfo is a discriminated window status: exactly one of the
// open/closed branches is populated.
type BookingWindowInfo struct {
	IsOpen bool

	// open branch
	TimeUntilClose     time.Duration
	TimeUntilSelection time.Duration

	// closed branch
	TimeUntilOpen time.Duration
	NextOpenTime  time.Time

	SelectionTime time.Time
}

// BookingWindowInfo computes the full window status for now. When closed
// before today's window, NextOpenTime is today's start, not tomorrow's.
func (p *TimingPolicy) BookingWindowInfo(now time.Time) BookingWindowInfo {
	start := p.WindowStart(now)
	end := p.WindowEnd(now)
	selTime := p.SelectionTime(now)

	if p.IsBookingWindowOpen(now) {
		untilSel := selTime.Sub(now)
		if untilSel < 0 {
			untilSel = 0
		}
		return BookingWindowInfo{
			IsOpen:             true,
			TimeUntilClose:     end.Sub(now),
			TimeUntilSelection: untilSel,
			SelectionTime:      selTime,
		}
	}

	if now.Before(start) {
		return BookingWindowInfo{
			TimeUntilOpen: start.Sub(now),
			NextOpenTime:  start,
			SelectionTime: selTime,
		}
	}

	// after today's close: next window is tomorrow's
	next := p.NextWindowStart(now)
	return BookingWindowInfo{
		TimeUntilOpen: next.Sub(now),
		NextOpenTime:  next,
		SelectionTime: selTime,
	}
}

// FormatTimeRemaining renders a countdown duration for display.
func FormatTimeRemaining(d time.Duration) string {
	if d <= 0 {
		return "Time's up!"
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// FormatDateWithDay renders a date as e.g. "Monday, January 2, 2006".
func FormatDateWithDay(t time.Time) string {
	return t.Format("Monday, January 2, 2006")
}
