package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/semina/core/seminar"
)

type seminarRepository struct {
	db *DB
}

func NewSeminarRepository(db *DB) seminar.Repository {
	return &seminarRepository{db: db}
}

// students

func (repo *seminarRepository) GetStudentByID(_ context.Context, id string) (seminar.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if st, ok := repo.db.students[id]; ok {
		return *st, nil
	}
	return seminar.Student{}, seminar.ErrStudentNotFound
}

func (repo *seminarRepository) QueryStudentsByClassYears(_ context.Context, classYears []seminar.ClassYear) ([]seminar.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	wanted := make(map[seminar.ClassYear]bool, len(classYears))
	for _, cy := range classYears {
		wanted[cy] = true
	}

	students := make([]seminar.Student, 0)
	for _, st := range repo.db.students {
		if wanted[st.ClassYear] {
			students = append(students, *st)
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].RegisterNumber < students[j].RegisterNumber })
	return students, nil
}

// bookings

func (repo *seminarRepository) CreateBooking(_ context.Context, b seminar.Booking) (seminar.Booking, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.bookings {
		if existing.StudentID == b.StudentID && existing.BookingDate.Equal(b.BookingDate) {
			return seminar.Booking{}, seminar.ErrBookingExists
		}
	}
	repo.db.bookings[b.ID] = &b
	return b, nil
}

func (repo *seminarRepository) GetBooking(_ context.Context, studentID string, date time.Time) (seminar.Booking, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	date = seminar.Date(date)
	for _, b := range repo.db.bookings {
		if b.StudentID == studentID && b.BookingDate.Equal(date) {
			return repo.withBookingStudent(*b), nil
		}
	}
	return seminar.Booking{}, seminar.ErrBookingNotFound
}

func (repo *seminarRepository) QueryBookingsForDate(_ context.Context, date time.Time) ([]seminar.Booking, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	date = seminar.Date(date)
	bookings := make([]seminar.Booking, 0)
	for _, b := range repo.db.bookings {
		if b.BookingDate.Equal(date) {
			bookings = append(bookings, repo.withBookingStudent(*b))
		}
	}
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].CreatedAt.Before(bookings[j].CreatedAt) })
	return bookings, nil
}

func (repo *seminarRepository) withBookingStudent(b seminar.Booking) seminar.Booking {
	if st, ok := repo.db.students[b.StudentID]; ok {
		b.Student = *st
	}
	return b
}

// selections

func (repo *seminarRepository) CreateSelection(_ context.Context, sel seminar.Selection) (seminar.Selection, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.selections {
		if existing.SeminarDate.Equal(sel.SeminarDate) && existing.ClassYear == sel.ClassYear {
			return seminar.Selection{}, seminar.ErrSelectionExists
		}
	}
	repo.db.selections[sel.ID] = &sel
	return sel, nil
}

func (repo *seminarRepository) QuerySelectionsForDate(_ context.Context, date time.Time) ([]seminar.Selection, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	date = seminar.Date(date)
	selections := make([]seminar.Selection, 0)
	for _, sel := range repo.db.selections {
		if sel.SeminarDate.Equal(date) {
			s := *sel
			if st, ok := repo.db.students[s.StudentID]; ok {
				s.Student = *st
			}
			selections = append(selections, s)
		}
	}
	sort.Slice(selections, func(i, j int) bool { return selections[i].ClassYear < selections[j].ClassYear })
	return selections, nil
}

func (repo *seminarRepository) QuerySelectedStudentIDs(_ context.Context) (map[string]bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	set := make(map[string]bool, len(repo.db.selections))
	for _, sel := range repo.db.selections {
		set[sel.StudentID] = true
	}
	return set, nil
}

func (repo *seminarRepository) MoveSelections(_ context.Context, from, to time.Time) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	from, to = seminar.Date(from), seminar.Date(to)
	covered := make(map[seminar.ClassYear]bool)
	for _, sel := range repo.db.selections {
		if sel.SeminarDate.Equal(to) {
			covered[sel.ClassYear] = true
		}
	}

	var moved int
	for id, sel := range repo.db.selections {
		if !sel.SeminarDate.Equal(from) {
			continue
		}
		// the target date already has a pick for this class; drop ours
		if covered[sel.ClassYear] {
			delete(repo.db.selections, id)
			continue
		}
		sel.SeminarDate = to
		repo.db.selections[id] = sel
		covered[sel.ClassYear] = true
		moved++
	}
	return moved, nil
}

// holidays

func (repo *seminarRepository) CreateHoliday(_ context.Context, h seminar.Holiday) (seminar.Holiday, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.holidays {
		if existing.HolidayDate.Equal(h.HolidayDate) {
			return seminar.Holiday{}, seminar.ErrHolidayExists
		}
	}
	repo.db.holidays[h.ID] = &h
	return h, nil
}

func (repo *seminarRepository) GetHolidayByDate(_ context.Context, date time.Time) (seminar.Holiday, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	date = seminar.Date(date)
	for _, h := range repo.db.holidays {
		if h.HolidayDate.Equal(date) {
			return *h, nil
		}
	}
	return seminar.Holiday{}, seminar.ErrHolidayNotFound
}

func (repo *seminarRepository) QueryHolidays(_ context.Context, from, to time.Time) ([]seminar.Holiday, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	from, to = seminar.Date(from), seminar.Date(to)
	holidays := make([]seminar.Holiday, 0)
	for _, h := range repo.db.holidays {
		if !h.HolidayDate.Before(from) && !h.HolidayDate.After(to) {
			holidays = append(holidays, *h)
		}
	}
	sort.Slice(holidays, func(i, j int) bool { return holidays[i].HolidayDate.Before(holidays[j].HolidayDate) })
	return holidays, nil
}

func (repo *seminarRepository) DeleteHoliday(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.holidays[id]; !ok {
		return seminar.ErrHolidayNotFound
	}
	delete(repo.db.holidays, id)
	return nil
}

// fines

func (repo *seminarRepository) CreateFine(_ context.Context, f seminar.Fine) (seminar.Fine, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, existing := range repo.db.fines {
		if existing.StudentID == f.StudentID && existing.FineType == f.FineType && existing.ReferenceDate.Equal(f.ReferenceDate) {
			return seminar.Fine{}, seminar.ErrFineExists
		}
	}
	repo.db.fines[f.ID] = &f
	return f, nil
}

func (repo *seminarRepository) GetFine(_ context.Context, id string) (seminar.Fine, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if f, ok := repo.db.fines[id]; ok {
		return *f, nil
	}
	return seminar.Fine{}, seminar.ErrFineNotFound
}

func (repo *seminarRepository) QueryFinesByStudent(_ context.Context, studentID string) ([]seminar.Fine, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	fines := make([]seminar.Fine, 0)
	for _, f := range repo.db.fines {
		if f.StudentID == studentID {
			fines = append(fines, *f)
		}
	}
	sort.Slice(fines, func(i, j int) bool { return fines[i].CreatedAt.After(fines[j].CreatedAt) })
	return fines, nil
}

func (repo *seminarRepository) QueryFinedStudentIDs(_ context.Context, fineType seminar.FineType, refDate time.Time) (map[string]bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	refDate = seminar.Date(refDate)
	set := make(map[string]bool)
	for _, f := range repo.db.fines {
		if f.FineType == fineType && f.ReferenceDate.Equal(refDate) {
			set[f.StudentID] = true
		}
	}
	return set, nil
}

func (repo *seminarRepository) UpdateFineStatus(_ context.Context, id string, status seminar.PaymentStatus) (seminar.Fine, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	f, ok := repo.db.fines[id]
	if !ok {
		return seminar.Fine{}, seminar.ErrFineNotFound
	}
	f.PaymentStatus = status
	f.UpdatedAt = time.Now().UTC()
	return *f, nil
}
