package seminar

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/semina/core"
)

// maxWorkingDayLookahead bounds the next-working-day search; a calendar with
// no working day in a month is a data problem we want to fail loudly on.
const maxWorkingDayLookahead = 30

// HolidayCheck is the result of a single-date holiday lookup.
// Holiday is nil for implicit weekend non-working days.
type HolidayCheck struct {
	IsHoliday bool
	Holiday   *Holiday
}

func (c HolidayCheck) Name() string {
	if c.Holiday != nil {
		return c.Holiday.HolidayName
	}
	if c.IsHoliday {
		return "Weekend"
	}
	return ""
}

// IsWeekend reports whether date falls on Saturday or Sunday. Weekends are
// non-working regardless of the holiday calendar.
func IsWeekend(date time.Time) bool {
	wd := date.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// HolidayPolicy decides whether seminars run on a date and finds the next
// valid date when they do not.
type HolidayPolicy struct {
	holidays   HolidayRepository
	selections SelectionRepository
	timing     *TimingPolicy
	logger     core.Logger
}

func NewHolidayPolicy(holidays HolidayRepository, selections SelectionRepository, timing *TimingPolicy, logger core.Logger) *HolidayPolicy {
	return &HolidayPolicy{
		holidays:   holidays,
		selections: selections,
		timing:     timing,
		logger:     logger,
	}
}

// IsHoliday checks the holiday calendar for date. A store failure is treated
// as "not a holiday" so an infrastructure hiccup cannot silently block all
// booking and selection; the degraded lookup is logged prominently.
func (p *HolidayPolicy) IsHoliday(ctx context.Context, date time.Time) HolidayCheck {
	if IsWeekend(date) {
		return HolidayCheck{IsHoliday: true}
	}

	hol, err := p.holidays.GetHolidayByDate(ctx, Date(date))
	if err != nil {
		if errors.Cause(err) == ErrHolidayNotFound {
			return HolidayCheck{}
		}
		p.logger.Error("holiday lookup failed; treating "+FormatDate(date)+" as a working day", err)
		return HolidayCheck{}
	}
	if !hol.AffectsSeminars {
		return HolidayCheck{}
	}
	return HolidayCheck{IsHoliday: true, Holiday: &hol}
}

// IsWorkingDay reports whether seminars run on date.
func (p *HolidayPolicy) IsWorkingDay(ctx context.Context, date time.Time) bool {
	return !p.IsHoliday(ctx, date).IsHoliday
}

// NextWorkingDay advances date day by day, skipping weekends and holidays,
// until skip working days have passed. The search is bounded by
// maxWorkingDayLookahead.
func (p *HolidayPolicy) NextWorkingDay(ctx context.Context, date time.Time, skip int) (time.Time, error) {
	if skip < 1 {
		skip = 1
	}
	d := Date(date)
	var found int
	for i := 0; i < maxWorkingDayLookahead; i++ {
		d = d.AddDate(0, 0, 1)
		if p.IsWorkingDay(ctx, d) {
			found++
			if found == skip {
				return d, nil
			}
		}
	}
	return time.Time{}, errors.Errorf("no working day found within %d days after %s", maxWorkingDayLookahead, FormatDate(date))
}

// HolidayAwareNextSeminarDate returns the next date seminars actually run on,
// starting from tomorrow.
func (p *HolidayPolicy) HolidayAwareNextSeminarDate(ctx context.Context, now time.Time) (time.Time, error) {
	d := p.timing.NextSeminarDate(now)
	if p.IsWorkingDay(ctx, d) {
		return d, nil
	}
	return p.NextWorkingDay(ctx, d, 1)
}

// RescheduleResult describes a holiday reschedule check. Migrated is true
// only when existing selections were actually moved in the store.
type RescheduleResult struct {
	NeedsReschedule bool      `json:"needs_reschedule"`
	HolidayName     string    `json:"holiday_name,omitempty"`
	NewDate         time.Time `json:"new_date"`
	MovedSelections int       `json:"moved_selections"`
	Migrated        bool      `json:"migrated"`

	// Moved holds the selections (with students) that were migrated, for
	// notification purposes.
	Moved []Selection `json:"-"`
}

// CheckAndRescheduleSeminar checks whether date is a non-working day and, if
// so, computes the next working date and migrates any existing selections to
// it. This is a side-effecting action, not a pure query.
func (p *HolidayPolicy) CheckAndRescheduleSeminar(ctx context.Context, date time.Time) (RescheduleResult, error) {
	check := p.IsHoliday(ctx, date)
	if !check.IsHoliday {
		return RescheduleResult{}, nil
	}

	newDate, err := p.NextWorkingDay(ctx, date, 1)
	if err != nil {
		return RescheduleResult{NeedsReschedule: true, HolidayName: check.Name()}, err
	}
	res := RescheduleResult{
		NeedsReschedule: true,
		HolidayName:     check.Name(),
		NewDate:         newDate,
	}

	existing, err := p.selections.QuerySelectionsForDate(ctx, Date(date))
	if err != nil {
		return res, errors.Wrap(err, "querying selections to reschedule")
	}
	if len(existing) > 0 {
		moved, err := p.selections.MoveSelections(ctx, Date(date), newDate)
		if err != nil {
			return res, errors.Wrap(err, "moving selections")
		}
		res.MovedSelections = moved
		res.Migrated = true
		res.Moved = existing
		p.logger.Info(FormatDate(date) + " is " + check.Name() + "; moved existing selections to " + FormatDate(newDate))
	}
	return res, nil
}
