package seminar

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

// FineResult reports one fine-issuing pass. Per-student failures are
// collected in Errors instead of aborting the pass; Success is false only
// when the pass could not run at all.
type FineResult struct {
	Success      bool     `json:"success"`
	Message      string   `json:"message"`
	FinesCreated int      `json:"fines_created"`
	Errors       []string `json:"errors,omitempty"`
}

// IssueNoBookingFines fines every student in the fined class years who
// neither booked for date, nor has ever been selected, nor already holds a
// no-booking fine for date. The existing-fine exemption makes the pass
// idempotent even without the unique constraint backing it.
func (s *Service) IssueNoBookingFines(ctx context.Context, date time.Time) FineResult {
	date = Date(date)

	if !s.holidays.IsWorkingDay(ctx, date) {
		return FineResult{
			Success: true,
			Message: fmt.Sprintf("%s is not a working day; no fines issued", FormatDate(date)),
		}
	}

	classYears := make([]ClassYear, 0, len(s.conf.Seminar.FineClassYears))
	for _, cy := range s.conf.Seminar.FineClassYears {
		classYears = append(classYears, ClassYear(cy))
	}

	roster, err := s.repo.QueryStudentsByClassYears(ctx, classYears)
	if err != nil {
		return s.fineFailure(errors.Wrap(err, "querying roster"))
	}

	bookings, err := s.repo.QueryBookingsForDate(ctx, date)
	if err != nil {
		return s.fineFailure(errors.Wrap(err, "querying bookings"))
	}
	booked := make(map[string]bool, len(bookings))
	for _, b := range bookings {
		booked[b.StudentID] = true
	}

	selected, err := s.repo.QuerySelectedStudentIDs(ctx)
	if err != nil {
		return s.fineFailure(errors.Wrap(err, "querying selected students"))
	}

	fined, err := s.repo.QueryFinedStudentIDs(ctx, FineTypeNoBooking, date)
	if err != nil {
		return s.fineFailure(errors.Wrap(err, "querying existing fines"))
	}

	res := FineResult{Success: true}
	for _, st := range roster {
		if booked[st.ID] || selected[st.ID] || fined[st.ID] {
			continue
		}

		now := s.nowFunc().UTC()
		f := Fine{
			ID:            uuid.New().String(),
			StudentID:     st.ID,
			FineType:      FineTypeNoBooking,
			ReferenceDate: date,
			BaseAmount:    s.conf.Seminar.FineAmount,
			DaysOverdue:   1,
			PaymentStatus: PaymentPending,
			Description:   null.StringFrom("No seminar booking for " + FormatDate(date)),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if _, err = s.repo.CreateFine(ctx, f); err != nil {
			if errors.Cause(err) == ErrFineExists {
				continue
			}
			res.Errors = append(res.Errors, fmt.Sprintf("%s (%s): %v", st.Name, st.RegisterNumber, err))
			continue
		}
		res.FinesCreated++
	}

	res.Message = fmt.Sprintf("issued %d fine(s) for %s", res.FinesCreated, FormatDate(date))
	if n := len(res.Errors); n > 0 {
		res.Message += fmt.Sprintf(" (%d failed)", n)
		s.logger.Warn(res.Message)
	}
	return res
}

func (s *Service) fineFailure(err error) FineResult {
	s.logger.Error("fine pass failed", err)
	return FineResult{Message: err.Error()}
}
