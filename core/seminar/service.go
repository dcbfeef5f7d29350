package seminar

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/semina/core"
)

var (
	ErrStudentNotFound = errors.New("student not found")
	ErrBookingExists   = errors.New("booking already exists")
	ErrBookingNotFound = errors.New("booking not found")
	ErrSelectionExists = errors.New("selection already exists")
	ErrFineExists      = errors.New("fine already exists")
	ErrFineNotFound    = errors.New("fine not found")
	ErrHolidayExists   = errors.New("holiday already exists")
	ErrHolidayNotFound = errors.New("holiday not found")
)

type (
	StudentRepository interface {
		GetStudentByID(ctx context.Context, id string) (Student, error)
		QueryStudentsByClassYears(ctx context.Context, classYears []ClassYear) ([]Student, error)
	}

	BookingRepository interface {
		CreateBooking(ctx context.Context, b Booking) (Booking, error)
		GetBooking(ctx context.Context, studentID string, date time.Time) (Booking, error)
		QueryBookingsForDate(ctx context.Context, date time.Time) ([]Booking, error)
	}

	SelectionRepository interface {
		CreateSelection(ctx context.Context, sel Selection) (Selection, error)
		QuerySelectionsForDate(ctx context.Context, date time.Time) ([]Selection, error)
		// QuerySelectedStudentIDs returns the IDs of students who have ever
		// been selected, on any date.
		QuerySelectedStudentIDs(ctx context.Context) (map[string]bool, error)
		MoveSelections(ctx context.Context, from, to time.Time) (int, error)
	}

	HolidayRepository interface {
		CreateHoliday(ctx context.Context, h Holiday) (Holiday, error)
		GetHolidayByDate(ctx context.Context, date time.Time) (Holiday, error)
		QueryHolidays(ctx context.Context, from, to time.Time) ([]Holiday, error)
		DeleteHoliday(ctx context.Context, id string) error
	}

	FineRepository interface {
		CreateFine(ctx context.Context, f Fine) (Fine, error)
		GetFine(ctx context.Context, id string) (Fine, error)
		QueryFinesByStudent(ctx context.Context, studentID string) ([]Fine, error)
		// QueryFinedStudentIDs returns the IDs of students already holding a
		// fine of fineType for refDate.
		QueryFinedStudentIDs(ctx context.Context, fineType FineType, refDate time.Time) (map[string]bool, error)
		UpdateFineStatus(ctx context.Context, id string, status PaymentStatus) (Fine, error)
	}

	// Repository is the full persistence surface of the seminar core.
	Repository interface {
		StudentRepository
		BookingRepository
		SelectionRepository
		HolidayRepository
		FineRepository
	}
)

// Service implements the seminar booking, selection and fine use cases.
type Service struct {
	conf     *core.Config
	repo     Repository
	mailSvc  core.EmailService
	logger   core.Logger
	timing   *TimingPolicy
	holidays *HolidayPolicy

	// mockable in tests
	nowFunc  func() time.Time
	randFunc func(n int) int
}

func NewService(conf *core.Config, repo Repository, mailSvc core.EmailService, logger core.Logger) (*Service, error) {
	timing, err := NewTimingPolicy(conf.Seminar)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Service{
		conf:     conf,
		repo:     repo,
		mailSvc:  mailSvc,
		logger:   logger,
		timing:   timing,
		holidays: NewHolidayPolicy(repo, repo, timing, logger),
		nowFunc:  time.Now,
		randFunc: rng.Intn,
	}, nil
}

// NewServiceMock builds a Service with a frozen clock and a deterministic
// draw, for tests.
func NewServiceMock(conf *core.Config, repo Repository, mailSvc core.EmailService, logger core.Logger, nowFunc func() time.Time) (*Service, error) {
	svc, err := NewService(conf, repo, mailSvc, logger)
	if err != nil {
		return nil, err
	}
	svc.nowFunc = nowFunc
	svc.randFunc = func(int) int { return 0 }
	return svc, nil
}

func (s *Service) Timing() *TimingPolicy { return s.timing }

// Now returns the current time in the seminar timezone.
func (s *Service) Now() time.Time { return s.nowFunc().In(s.timing.loc) }

// WindowInfo returns the booking window status as of now.
func (s *Service) WindowInfo() BookingWindowInfo {
	return s.timing.BookingWindowInfo(s.nowFunc())
}

// ShouldTriggerAutoSelection reports whether a scheduler tick at this moment
// should run the daily selection.
func (s *Service) ShouldTriggerAutoSelection() bool {
	return s.timing.ShouldTriggerAutoSelection(s.nowFunc())
}

type (
	// SelectionInfo is one selected presenter in a run report.
	SelectionInfo struct {
		StudentID      string    `json:"student_id"`
		Student        string    `json:"student"`
		RegisterNumber string    `json:"register_number"`
		ClassYear      ClassYear `json:"class_year"`
		Topic          string    `json:"topic,omitempty"`
		AlreadyExisted bool      `json:"already_existed"`
	}

	// RunResult is the full report of one daily-selection run.
	RunResult struct {
		Success    bool              `json:"success"`
		Message    string            `json:"message"`
		Date       time.Time         `json:"date"`
		Reschedule *RescheduleResult `json:"reschedule,omitempty"`
		Selections []SelectionInfo   `json:"selections"`
		Summary    SelectionSummary  `json:"summary"`
		Fines      *FineResult       `json:"fines,omitempty"`
		Emails     EmailSummary      `json:"emails"`
		Timestamp  time.Time         `json:"timestamp"`
	}
)

// RunDailySelection orchestrates one end-to-end daily run: resolve tomorrow's
// seminar date, reschedule around holidays, draw presenters, notify them and
// fine the students who never booked. The whole sequence is idempotent; a
// retry within the same day is a cheap no-op.
func (s *Service) RunDailySelection(ctx context.Context) (RunResult, error) {
	now := s.nowFunc()
	res := RunResult{Timestamp: now.UTC(), Selections: []SelectionInfo{}}
	seminarRuns.Inc()

	target := s.timing.NextSeminarDate(now)

	resched, err := s.holidays.CheckAndRescheduleSeminar(ctx, target)
	if err != nil {
		return res, errors.Wrap(err, "holiday reschedule check")
	}
	if resched.NeedsReschedule {
		res.Reschedule = &resched
		target = resched.NewDate
		if len(resched.Moved) > 0 {
			s.notifyReschedule(resched)
		}
	}
	res.Date = target

	outcome, err := s.SelectPresenters(ctx, target)
	if err != nil {
		return res, errors.Wrapf(err, "selecting presenters for %s", FormatDate(target))
	}
	res.Summary = outcome.Summary
	if outcome.Skipped {
		res.Success = true
		res.Message = outcome.SkipReason
		if outcome.NonWorkingDay {
			return res, nil
		}

		// The draw already happened in an earlier run. Fines are an
		// independent step and are still owed for the date.
		for _, ex := range outcome.Existing {
			res.Selections = append(res.Selections, SelectionInfo{
				StudentID:      ex.StudentID,
				Student:        ex.Student.Name,
				RegisterNumber: ex.Student.RegisterNumber,
				ClassYear:      ex.ClassYear,
				AlreadyExisted: true,
			})
		}
		fines := s.IssueNoBookingFines(ctx, target)
		res.Fines = &fines
		seminarFines.Add(float64(fines.FinesCreated))
		res.Message = fmt.Sprintf("%s; %d fine(s) issued", outcome.SkipReason, fines.FinesCreated)
		return res, nil
	}

	for _, pick := range outcome.Picks {
		res.Selections = append(res.Selections, SelectionInfo{
			StudentID:      pick.Selection.StudentID,
			Student:        pick.Selection.Student.Name,
			RegisterNumber: pick.Selection.Student.RegisterNumber,
			ClassYear:      pick.Selection.ClassYear,
			Topic:          pick.Booking.Topic.String,
			AlreadyExisted: false,
		})
		seminarSelections.WithLabelValues(string(pick.Selection.ClassYear)).Inc()
	}
	for _, ex := range outcome.Existing {
		res.Selections = append(res.Selections, SelectionInfo{
			StudentID:      ex.StudentID,
			Student:        ex.Student.Name,
			RegisterNumber: ex.Student.RegisterNumber,
			ClassYear:      ex.ClassYear,
			AlreadyExisted: true,
		})
	}

	res.Emails = s.notifySelections(target, outcome.Picks)

	fines := s.IssueNoBookingFines(ctx, target)
	res.Fines = &fines
	seminarFines.Add(float64(fines.FinesCreated))

	res.Success = true
	res.Message = fmt.Sprintf(
		"selected %d presenter(s) for %s; %d fine(s) issued",
		len(outcome.Picks), FormatDate(target), fines.FinesCreated,
	)
	s.logger.Info(res.Message)
	return res, nil
}

// BookSeminar records a student's opt-in for the next seminar. It only
// succeeds while the booking window is open; the booking date is the next
// working day after today.
func (s *Service) BookSeminar(ctx context.Context, studentID, topic string) (Booking, error) {
	now := s.nowFunc()
	if !s.timing.IsBookingWindowOpen(now) {
		info := s.timing.BookingWindowInfo(now)
		return Booking{}, core.NewValidationError(errors.Errorf(
			"booking window is closed; opens in %s", FormatTimeRemaining(info.TimeUntilOpen),
		))
	}

	date, err := s.holidays.HolidayAwareNextSeminarDate(ctx, now)
	if err != nil {
		return Booking{}, err
	}

	if _, err = s.repo.GetStudentByID(ctx, studentID); err != nil {
		return Booking{}, err
	}

	b := Booking{
		ID:          uuid.New().String(),
		StudentID:   studentID,
		BookingDate: date,
		Topic:       null.NewString(topic, topic != ""),
		CreatedAt:   now.UTC(),
	}
	created, err := s.repo.CreateBooking(ctx, b)
	if err != nil {
		if errors.Cause(err) == ErrBookingExists {
			return Booking{}, core.NewValidationError(errors.Errorf(
				"you already have a booking for %s", FormatDate(date),
			))
		}
		return Booking{}, errors.Wrap(err, "creating booking")
	}
	return created, nil
}

// BookingsForDate returns the bookings for date, with students attached.
// StudentBooking returns a student's booking for the given seminar date.
func (s *Service) StudentBooking(ctx context.Context, studentID string, date time.Time) (Booking, error) {
	return s.repo.GetBooking(ctx, studentID, Date(date))
}

func (s *Service) BookingsForDate(ctx context.Context, date time.Time) ([]Booking, error) {
	return s.repo.QueryBookingsForDate(ctx, Date(date))
}

// SelectionsForDate returns the selections for date, with students attached.
func (s *Service) SelectionsForDate(ctx context.Context, date time.Time) ([]Selection, error) {
	return s.repo.QuerySelectionsForDate(ctx, Date(date))
}

// AddHoliday registers a holiday in the calendar.
func (s *Service) AddHoliday(ctx context.Context, date time.Time, name, holType string, affectsSeminars bool) (Holiday, error) {
	h := Holiday{
		ID:              uuid.New().String(),
		HolidayDate:     Date(date),
		HolidayName:     name,
		HolidayType:     holType,
		AffectsSeminars: affectsSeminars,
		CreatedAt:       s.nowFunc().UTC(),
	}
	created, err := s.repo.CreateHoliday(ctx, h)
	if err != nil {
		if errors.Cause(err) == ErrHolidayExists {
			return Holiday{}, core.NewValidationError(errors.Errorf(
				"a holiday already exists on %s", FormatDate(date),
			))
		}
		return Holiday{}, errors.Wrap(err, "creating holiday")
	}
	return created, nil
}

// Holidays lists the holidays in [from, to].
func (s *Service) Holidays(ctx context.Context, from, to time.Time) ([]Holiday, error) {
	return s.repo.QueryHolidays(ctx, Date(from), Date(to))
}

// RemoveHoliday deletes a holiday from the calendar.
func (s *Service) RemoveHoliday(ctx context.Context, id string) error {
	return s.repo.DeleteHoliday(ctx, id)
}

// StudentFines lists a student's fines, newest first.
func (s *Service) StudentFines(ctx context.Context, studentID string) ([]Fine, error) {
	if _, err := s.repo.GetStudentByID(ctx, studentID); err != nil {
		return nil, err
	}
	return s.repo.QueryFinesByStudent(ctx, studentID)
}

// CreateManualFine records an admin-issued fine.
func (s *Service) CreateManualFine(ctx context.Context, studentID string, fineType FineType, refDate time.Time, amount float64, description string) (Fine, error) {
	if amount <= 0 {
		amount = s.conf.Seminar.FineAmount
	}
	if _, err := s.repo.GetStudentByID(ctx, studentID); err != nil {
		return Fine{}, err
	}

	now := s.nowFunc().UTC()
	f := Fine{
		ID:            uuid.New().String(),
		StudentID:     studentID,
		FineType:      fineType,
		ReferenceDate: Date(refDate),
		BaseAmount:    amount,
		DaysOverdue:   1,
		PaymentStatus: PaymentPending,
		Description:   null.NewString(description, description != ""),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	created, err := s.repo.CreateFine(ctx, f)
	if err != nil {
		if errors.Cause(err) == ErrFineExists {
			return Fine{}, core.NewValidationError(errors.Errorf(
				"a %s fine already exists for this student on %s", fineType, FormatDate(refDate),
			))
		}
		return Fine{}, errors.Wrap(err, "creating fine")
	}
	return created, nil
}

// UpdateFineStatus sets a fine's payment status.
func (s *Service) UpdateFineStatus(ctx context.Context, id string, status PaymentStatus) (Fine, error) {
	if !status.Valid() {
		return Fine{}, core.NewValidationError(errors.Errorf("invalid payment status %q", status))
	}
	return s.repo.UpdateFineStatus(ctx, id, status)
}
