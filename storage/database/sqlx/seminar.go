package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/semina/core/seminar"
)

// studentCols aliases the joined students columns onto the embedded
// Student struct.
const studentCols = `
	s.id AS "student.id",
	s.register_number AS "student.register_number",
	s.name AS "student.name",
	s.class_year AS "student.class_year",
	s.email AS "student.email",
	s.created_at AS "student.created_at"`

type seminarRepository struct {
	db *sqlx.DB
}

func NewSeminarRepository(db *sql.DB, driverName string) seminar.Repository {
	return &seminarRepository{db: sqlx.NewDb(db, driverName)}
}

func isUniqueViolation(err error) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return ok && pqErr.Code == "23505"
}

// students

func (repo *seminarRepository) GetStudentByID(ctx context.Context, id string) (seminar.Student, error) {
	var st seminar.Student
	err := repo.db.GetContext(ctx, &st,
		`SELECT id, register_number, name, class_year, email, created_at FROM students WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return seminar.Student{}, seminar.ErrStudentNotFound
	}
	return st, errors.Wrap(err, "getting student")
}

func (repo *seminarRepository) QueryStudentsByClassYears(ctx context.Context, classYears []seminar.ClassYear) ([]seminar.Student, error) {
	query, args, err := sqlx.In(
		`SELECT id, register_number, name, class_year, email, created_at FROM students WHERE class_year IN (?) ORDER BY register_number`,
		classYears)
	if err != nil {
		return nil, errors.Wrap(err, "building roster query")
	}

	students := make([]seminar.Student, 0)
	err = repo.db.SelectContext(ctx, &students, repo.db.Rebind(query), args...)
	return students, errors.Wrap(err, "querying roster")
}

// bookings

func (repo *seminarRepository) CreateBooking(ctx context.Context, b seminar.Booking) (seminar.Booking, error) {
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO seminar_bookings (id, student_id, booking_date, topic, created_at)
		 VALUES (:id, :student_id, :booking_date, :topic, :created_at)`, b)
	if err != nil {
		if isUniqueViolation(err) {
			return seminar.Booking{}, seminar.ErrBookingExists
		}
		return seminar.Booking{}, errors.Wrap(err, "inserting booking")
	}
	return b, nil
}

func (repo *seminarRepository) GetBooking(ctx context.Context, studentID string, date time.Time) (seminar.Booking, error) {
	var b seminar.Booking
	err := repo.db.GetContext(ctx, &b,
		`SELECT b.id, b.student_id, b.booking_date, b.topic, b.created_at, `+studentCols+`
		 FROM seminar_bookings b
		 JOIN students s ON s.id = b.student_id
		 WHERE b.student_id = $1 AND b.booking_date = $2`, studentID, seminar.Date(date))
	if err == sql.ErrNoRows {
		return seminar.Booking{}, seminar.ErrBookingNotFound
	}
	return b, errors.Wrap(err, "getting booking")
}

func (repo *seminarRepository) QueryBookingsForDate(ctx context.Context, date time.Time) ([]seminar.Booking, error) {
	bookings := make([]seminar.Booking, 0)
	err := repo.db.SelectContext(ctx, &bookings,
		`SELECT b.id, b.student_id, b.booking_date, b.topic, b.created_at, `+studentCols+`
		 FROM seminar_bookings b
		 JOIN students s ON s.id = b.student_id
		 WHERE b.booking_date = $1
		 ORDER BY b.created_at`, seminar.Date(date))
	return bookings, errors.Wrap(err, "querying bookings")
}

// selections

func (repo *seminarRepository) CreateSelection(ctx context.Context, sel seminar.Selection) (seminar.Selection, error) {
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO seminar_selections (id, student_id, seminar_date, class_year, selected_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sel.ID, sel.StudentID, sel.SeminarDate, sel.ClassYear, sel.SelectedAt, sel.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return seminar.Selection{}, seminar.ErrSelectionExists
		}
		return seminar.Selection{}, errors.Wrap(err, "inserting selection")
	}
	return sel, nil
}

func (repo *seminarRepository) QuerySelectionsForDate(ctx context.Context, date time.Time) ([]seminar.Selection, error) {
	selections := make([]seminar.Selection, 0)
	err := repo.db.SelectContext(ctx, &selections,
		`SELECT sel.id, sel.student_id, sel.seminar_date, sel.class_year, sel.selected_at, sel.created_at, `+studentCols+`
		 FROM seminar_selections sel
		 JOIN students s ON s.id = sel.student_id
		 WHERE sel.seminar_date = $1
		 ORDER BY sel.class_year`, seminar.Date(date))
	return selections, errors.Wrap(err, "querying selections")
}

func (repo *seminarRepository) QuerySelectedStudentIDs(ctx context.Context) (map[string]bool, error) {
	var ids []string
	err := repo.db.SelectContext(ctx, &ids, `SELECT DISTINCT student_id FROM seminar_selections`)
	if err != nil {
		return nil, errors.Wrap(err, "querying selected students")
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// MoveSelections reassigns the selections on from to to, row by row. When the
// target date already holds a pick for the same class, that pick stands and
// the displaced selection is dropped instead of moved.
func (repo *seminarRepository) MoveSelections(ctx context.Context, from, to time.Time) (int, error) {
	var ids []string
	err := repo.db.SelectContext(ctx, &ids,
		`SELECT id FROM seminar_selections WHERE seminar_date = $1 ORDER BY class_year`, seminar.Date(from))
	if err != nil {
		return 0, errors.Wrap(err, "querying selections to move")
	}

	var moved int
	for _, id := range ids {
		_, err = repo.db.ExecContext(ctx,
			`UPDATE seminar_selections SET seminar_date = $1 WHERE id = $2`, seminar.Date(to), id)
		if err != nil {
			if isUniqueViolation(err) {
				if _, err = repo.db.ExecContext(ctx,
					`DELETE FROM seminar_selections WHERE id = $1`, id); err != nil {
					return moved, errors.Wrap(err, "dropping superseded selection")
				}
				continue
			}
			return moved, errors.Wrap(err, "moving selection")
		}
		moved++
	}
	return moved, nil
}

// holidays

func (repo *seminarRepository) CreateHoliday(ctx context.Context, h seminar.Holiday) (seminar.Holiday, error) {
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO holidays (id, holiday_date, holiday_name, holiday_type, affects_seminars, created_at)
		 VALUES (:id, :holiday_date, :holiday_name, :holiday_type, :affects_seminars, :created_at)`, h)
	if err != nil {
		if isUniqueViolation(err) {
			return seminar.Holiday{}, seminar.ErrHolidayExists
		}
		return seminar.Holiday{}, errors.Wrap(err, "inserting holiday")
	}
	return h, nil
}

func (repo *seminarRepository) GetHolidayByDate(ctx context.Context, date time.Time) (seminar.Holiday, error) {
	var h seminar.Holiday
	err := repo.db.GetContext(ctx, &h,
		`SELECT id, holiday_date, holiday_name, holiday_type, affects_seminars, created_at
		 FROM holidays WHERE holiday_date = $1`, seminar.Date(date))
	if err == sql.ErrNoRows {
		return seminar.Holiday{}, seminar.ErrHolidayNotFound
	}
	return h, errors.Wrap(err, "getting holiday")
}

func (repo *seminarRepository) QueryHolidays(ctx context.Context, from, to time.Time) ([]seminar.Holiday, error) {
	holidays := make([]seminar.Holiday, 0)
	err := repo.db.SelectContext(ctx, &holidays,
		`SELECT id, holiday_date, holiday_name, holiday_type, affects_seminars, created_at
		 FROM holidays WHERE holiday_date BETWEEN $1 AND $2
		 ORDER BY holiday_date`, seminar.Date(from), seminar.Date(to))
	return holidays, errors.Wrap(err, "querying holidays")
}

func (repo *seminarRepository) DeleteHoliday(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM holidays WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting holiday")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return seminar.ErrHolidayNotFound
	}
	return nil
}

// fines

func (repo *seminarRepository) CreateFine(ctx context.Context, f seminar.Fine) (seminar.Fine, error) {
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO fines (id, student_id, fine_type, reference_date, base_amount, days_overdue, payment_status, description, created_at, updated_at)
		 VALUES (:id, :student_id, :fine_type, :reference_date, :base_amount, :days_overdue, :payment_status, :description, :created_at, :updated_at)`, f)
	if err != nil {
		if isUniqueViolation(err) {
			return seminar.Fine{}, seminar.ErrFineExists
		}
		return seminar.Fine{}, errors.Wrap(err, "inserting fine")
	}
	return f, nil
}

func (repo *seminarRepository) GetFine(ctx context.Context, id string) (seminar.Fine, error) {
	var f seminar.Fine
	err := repo.db.GetContext(ctx, &f,
		`SELECT id, student_id, fine_type, reference_date, base_amount, days_overdue, payment_status, description, created_at, updated_at
		 FROM fines WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return seminar.Fine{}, seminar.ErrFineNotFound
	}
	return f, errors.Wrap(err, "getting fine")
}

func (repo *seminarRepository) QueryFinesByStudent(ctx context.Context, studentID string) ([]seminar.Fine, error) {
	fines := make([]seminar.Fine, 0)
	err := repo.db.SelectContext(ctx, &fines,
		`SELECT id, student_id, fine_type, reference_date, base_amount, days_overdue, payment_status, description, created_at, updated_at
		 FROM fines WHERE student_id = $1
		 ORDER BY created_at DESC`, studentID)
	return fines, errors.Wrap(err, "querying fines")
}

func (repo *seminarRepository) QueryFinedStudentIDs(ctx context.Context, fineType seminar.FineType, refDate time.Time) (map[string]bool, error) {
	var ids []string
	err := repo.db.SelectContext(ctx, &ids,
		`SELECT student_id FROM fines WHERE fine_type = $1 AND reference_date = $2`,
		fineType, seminar.Date(refDate))
	if err != nil {
		return nil, errors.Wrap(err, "querying fined students")
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

func (repo *seminarRepository) UpdateFineStatus(ctx context.Context, id string, status seminar.PaymentStatus) (seminar.Fine, error) {
	res, err := repo.db.ExecContext(ctx,
		`UPDATE fines SET payment_status = $1, updated_at = now() WHERE id = $2`, status, id)
	if err != nil {
		return seminar.Fine{}, errors.Wrap(err, "updating fine")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return seminar.Fine{}, seminar.ErrFineNotFound
	}
	return repo.GetFine(ctx, id)
}
