package seminar

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// DateLayout is the wire/storage format of all seminar dates.
const DateLayout = "2006-01-02"

// Date strips the time-of-day off t, keeping the calendar date as observed
// in t's location. The result is anchored at midnight UTC so that date values
// compare and round-trip through DATE columns cleanly.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a normalized date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// FormatDate renders a normalized date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ClassYear is the cohort partition within which at most one presenter
// is drawn per seminar date.
type ClassYear string

const (
	ClassYearII  ClassYear = "II-IT"
	ClassYearIII ClassYear = "III-IT"
)

var AllClassYears = []ClassYear{ClassYearII, ClassYearIII}

func (c ClassYear) Valid() bool {
	for _, cy := range AllClassYears {
		if c == cy {
			return true
		}
	}
	return false
}

type FineType string

const (
	FineTypeNoBooking      FineType = "seminar_no_booking"
	FineTypeAssignmentLate FineType = "assignment_late"
	FineTypeAbsence        FineType = "attendance_absent"
	FineTypeOther          FineType = "other"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentWaived  PaymentStatus = "waived"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentWaived:
		return true
	}
	return false
}

// Student is the immutable identity record; created once at first login
// by the external auth collaborator.
type Student struct {
	ID             string    `db:"id" json:"id"`
	RegisterNumber string    `db:"register_number" json:"register_number"`
	Name           string    `db:"name" json:"name"`
	ClassYear      ClassYear `db:"class_year" json:"class_year"`
	Email          string    `db:"email" json:"email"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"` // UTC
}

// Booking is a student's opt-in to be eligible for presenter selection on a
// specific date. At most one per student per date; never mutated.
type Booking struct {
	ID          string      `db:"id" json:"id"`
	StudentID   string      `db:"student_id" json:"student_id"`
	BookingDate time.Time   `db:"booking_date" json:"booking_date"`
	Topic       null.String `db:"topic" json:"topic,omitempty"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"` // UTC

	Student Student `db:"student" json:"student,omitempty"`
}

// Selection is the outcome of the daily draw: at most one per class year
// per seminar date. Created exactly once; never mutated or deleted here.
type Selection struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	SeminarDate time.Time `db:"seminar_date" json:"seminar_date"`
	ClassYear   ClassYear `db:"class_year" json:"class_year"`
	SelectedAt  time.Time `db:"selected_at" json:"selected_at"` // UTC
	CreatedAt   time.Time `db:"created_at" json:"created_at"`   // UTC

	Student Student `db:"student" json:"student,omitempty"`
}

// Holiday is a read-only input from the admin collaborator's calendar.
type Holiday struct {
	ID              string    `db:"id" json:"id"`
	HolidayDate     time.Time `db:"holiday_date" json:"holiday_date"`
	HolidayName     string    `db:"holiday_name" json:"holiday_name"`
	HolidayType     string    `db:"holiday_type" json:"holiday_type"`
	AffectsSeminars bool      `db:"affects_seminars" json:"affects_seminars"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"` // UTC
}

// Fine is a fixed-amount penalty record. This core creates fines; the
// payment status is mutated later by the admin collaborator, never here.
type Fine struct {
	ID            string        `db:"id" json:"id"`
	StudentID     string        `db:"student_id" json:"student_id"`
	FineType      FineType      `db:"fine_type" json:"fine_type"`
	ReferenceDate time.Time     `db:"reference_date" json:"reference_date"`
	BaseAmount    float64       `db:"base_amount" json:"base_amount"`
	DaysOverdue   int           `db:"days_overdue" json:"days_overdue"`
	PaymentStatus PaymentStatus `db:"payment_status" json:"payment_status"`
	Description   null.String   `db:"description" json:"description,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"` // UTC
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"` // UTC
}
