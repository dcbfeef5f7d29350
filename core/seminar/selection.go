package seminar

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type (
	// Pick pairs a created selection with the booking it was drawn from.
	Pick struct {
		Selection Selection
		Booking   Booking
	}

	// SelectionSummary are the headline numbers of one selection pass.
	SelectionSummary struct {
		TotalBookings    int `json:"total_bookings"`
		EligibleBookings int `json:"eligible_bookings"`
		ClassIIBookings  int `json:"class_ii_bookings"`
		ClassIIIBookings int `json:"class_iii_bookings"`
		SelectedCount    int `json:"selected_count"`
	}

	// SelectionOutcome reports what SelectPresenters did: new picks, the
	// selections that already existed, or why the pass was skipped entirely.
	// NonWorkingDay marks the skip where the whole day is off, as opposed to
	// the draw merely being covered already.
	SelectionOutcome struct {
		Picks         []Pick
		Existing      []Selection
		Skipped       bool
		NonWorkingDay bool
		SkipReason    string
		Summary       SelectionSummary
	}
)

// SelectPresenters draws at most one presenter per class year for date,
// uniformly at random among that class's bookings. Already-covered classes
// are left untouched, so repeated runs for the same date converge to the
// same selections.
func (s *Service) SelectPresenters(ctx context.Context, date time.Time) (SelectionOutcome, error) {
	date = Date(date)

	if !s.holidays.IsWorkingDay(ctx, date) {
		return SelectionOutcome{
			Skipped:       true,
			NonWorkingDay: true,
			SkipReason:    fmt.Sprintf("%s is not a working day; no selection performed", FormatDate(date)),
		}, nil
	}

	existing, err := s.repo.QuerySelectionsForDate(ctx, date)
	if err != nil {
		return SelectionOutcome{}, errors.Wrap(err, "querying existing selections")
	}
	covered := make(map[ClassYear]bool, len(existing))
	for _, sel := range existing {
		covered[sel.ClassYear] = true
	}

	allCovered := len(AllClassYears) > 0
	for _, cy := range AllClassYears {
		if !covered[cy] {
			allCovered = false
			break
		}
	}
	if allCovered {
		return SelectionOutcome{
			Existing:   existing,
			Skipped:    true,
			SkipReason: fmt.Sprintf("selections already exist for %s", FormatDate(date)),
			Summary:    SelectionSummary{SelectedCount: len(existing)},
		}, nil
	}

	bookings, err := s.repo.QueryBookingsForDate(ctx, date)
	if err != nil {
		return SelectionOutcome{}, errors.Wrap(err, "querying bookings")
	}

	// A student can only hold one booking per date, but dedupe anyway so a
	// dirty store cannot double a student's odds.
	seen := make(map[string]bool, len(bookings))
	byClass := make(map[ClassYear][]Booking)
	var eligible int
	for _, b := range bookings {
		if seen[b.StudentID] {
			continue
		}
		seen[b.StudentID] = true
		eligible++
		byClass[b.Student.ClassYear] = append(byClass[b.Student.ClassYear], b)
	}

	outcome := SelectionOutcome{
		Existing: existing,
		Summary: SelectionSummary{
			TotalBookings:    len(bookings),
			EligibleBookings: eligible,
			ClassIIBookings:  len(byClass[ClassYearII]),
			ClassIIIBookings: len(byClass[ClassYearIII]),
		},
	}

	for _, cy := range AllClassYears {
		if covered[cy] {
			continue
		}
		pool := byClass[cy]
		if len(pool) == 0 {
			continue
		}
		winner := pool[s.randFunc(len(pool))]

		// Final check right before insert: another runner may have raced us
		// past the earlier read.
		latest, err := s.repo.QuerySelectionsForDate(ctx, date)
		if err != nil {
			return outcome, errors.Wrap(err, "re-checking selections")
		}
		var raced bool
		for _, sel := range latest {
			if sel.ClassYear == cy {
				outcome.Existing = append(outcome.Existing, sel)
				raced = true
				break
			}
		}
		if raced {
			continue
		}

		now := s.nowFunc().UTC()
		sel := Selection{
			ID:          uuid.New().String(),
			StudentID:   winner.StudentID,
			SeminarDate: date,
			ClassYear:   cy,
			SelectedAt:  now,
			CreatedAt:   now,
		}
		created, err := s.repo.CreateSelection(ctx, sel)
		if err != nil {
			// A unique-constraint hit means another runner inserted first;
			// that selection is just as valid as ours would have been.
			if errors.Cause(err) == ErrSelectionExists {
				s.logger.Debug("selection race lost for " + string(cy) + " on " + FormatDate(date))
				continue
			}
			return outcome, errors.Wrapf(err, "creating selection for %s", cy)
		}
		created.Student = winner.Student
		outcome.Picks = append(outcome.Picks, Pick{Selection: created, Booking: winner})
	}

	outcome.Summary.SelectedCount = len(outcome.Picks) + len(outcome.Existing)
	return outcome, nil
}
