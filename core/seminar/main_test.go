package seminar

import (
	"context"
	"net/mail"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/semina/core"
)

func testConfig() *core.Config {
	return &core.Config{
		Debug:            true,
		TestMode:         true,
		Env:              "TEST",
		AppName:          "Semina",
		DefaultFromEmail: mail.Address{Name: "Semina", Address: "noreply@localhost"},
		Seminar: core.SeminarConfig{
			WindowStartHour:   10,
			WindowStartMinute: 30,
			WindowEndHour:     13,
			WindowEndMinute:   30,
			SelectionHour:     13,
			SelectionMinute:   30,
			TriggerTolerance:  5 * time.Minute,
			Timezone:          "Asia/Kolkata",
			FineAmount:        10.00,
			FineClassYears:    []string{"II-IT", "III-IT"},
			OpTimeout:         15 * time.Second,
		},
	}
}

// nopLogger discards everything.
type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

// mailRecorder records sent messages instead of sending them.
type mailRecorder struct {
	mutex sync.Mutex
	sent  []*core.EmailMessage
	err   error
}

func (m *mailRecorder) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		_ = m.SendMessage(msg)
	}
}

func (m *mailRecorder) SendMessage(msg *core.EmailMessage) error {
	if m.err != nil {
		return m.err
	}
	m.mutex.Lock()
	m.sent = append(m.sent, msg)
	m.mutex.Unlock()
	return nil
}

// fakeRepo is an in-memory Repository with failure knobs.
type fakeRepo struct {
	mutex      sync.RWMutex
	students   map[string]Student
	bookings   map[string]Booking
	selections map[string]Selection
	holidays   map[string]Holiday
	fines      map[string]Fine

	holidayErr          error           // returned by GetHolidayByDate
	selectionExistsOnce bool            // next CreateSelection fails with ErrSelectionExists
	createFineErrFor    map[string]error // per-student CreateFine failures
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		students:   make(map[string]Student),
		bookings:   make(map[string]Booking),
		selections: make(map[string]Selection),
		holidays:   make(map[string]Holiday),
		fines:      make(map[string]Fine),
	}
}

func (r *fakeRepo) addStudent(st Student) {
	r.mutex.Lock()
	r.students[st.ID] = st
	r.mutex.Unlock()
}

func (r *fakeRepo) addBooking(studentID string, date time.Time, topic string) {
	r.mutex.Lock()
	id := "bk-" + studentID + "-" + FormatDate(date)
	r.bookings[id] = Booking{
		ID:          id,
		StudentID:   studentID,
		BookingDate: Date(date),
		Topic:       null.NewString(topic, topic != ""),
		CreatedAt:   time.Now().UTC(),
	}
	r.mutex.Unlock()
}

func (r *fakeRepo) addHoliday(date time.Time, name string, affects bool) {
	r.mutex.Lock()
	id := "hol-" + FormatDate(date)
	r.holidays[id] = Holiday{
		ID:              id,
		HolidayDate:     Date(date),
		HolidayName:     name,
		HolidayType:     "college",
		AffectsSeminars: affects,
	}
	r.mutex.Unlock()
}

func (r *fakeRepo) GetStudentByID(_ context.Context, id string) (Student, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if st, ok := r.students[id]; ok {
		return st, nil
	}
	return Student{}, ErrStudentNotFound
}

func (r *fakeRepo) QueryStudentsByClassYears(_ context.Context, classYears []ClassYear) ([]Student, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	wanted := make(map[ClassYear]bool, len(classYears))
	for _, cy := range classYears {
		wanted[cy] = true
	}
	students := make([]Student, 0)
	for _, st := range r.students {
		if wanted[st.ClassYear] {
			students = append(students, st)
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].RegisterNumber < students[j].RegisterNumber })
	return students, nil
}

func (r *fakeRepo) CreateBooking(_ context.Context, b Booking) (Booking, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, existing := range r.bookings {
		if existing.StudentID == b.StudentID && existing.BookingDate.Equal(b.BookingDate) {
			return Booking{}, ErrBookingExists
		}
	}
	r.bookings[b.ID] = b
	return b, nil
}

func (r *fakeRepo) GetBooking(_ context.Context, studentID string, date time.Time) (Booking, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	date = Date(date)
	for _, b := range r.bookings {
		if b.StudentID == studentID && b.BookingDate.Equal(date) {
			b.Student = r.students[b.StudentID]
			return b, nil
		}
	}
	return Booking{}, ErrBookingNotFound
}

func (r *fakeRepo) QueryBookingsForDate(_ context.Context, date time.Time) ([]Booking, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	date = Date(date)
	bookings := make([]Booking, 0)
	for _, b := range r.bookings {
		if b.BookingDate.Equal(date) {
			b.Student = r.students[b.StudentID]
			bookings = append(bookings, b)
		}
	}
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].ID < bookings[j].ID })
	return bookings, nil
}

func (r *fakeRepo) CreateSelection(_ context.Context, sel Selection) (Selection, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.selectionExistsOnce {
		r.selectionExistsOnce = false
		return Selection{}, ErrSelectionExists
	}
	for _, existing := range r.selections {
		if existing.SeminarDate.Equal(sel.SeminarDate) && existing.ClassYear == sel.ClassYear {
			return Selection{}, ErrSelectionExists
		}
	}
	r.selections[sel.ID] = sel
	return sel, nil
}

func (r *fakeRepo) QuerySelectionsForDate(_ context.Context, date time.Time) ([]Selection, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	date = Date(date)
	selections := make([]Selection, 0)
	for _, sel := range r.selections {
		if sel.SeminarDate.Equal(date) {
			sel.Student = r.students[sel.StudentID]
			selections = append(selections, sel)
		}
	}
	sort.Slice(selections, func(i, j int) bool { return selections[i].ClassYear < selections[j].ClassYear })
	return selections, nil
}

func (r *fakeRepo) QuerySelectedStudentIDs(_ context.Context) (map[string]bool, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	set := make(map[string]bool, len(r.selections))
	for _, sel := range r.selections {
		set[sel.StudentID] = true
	}
	return set, nil
}

func (r *fakeRepo) MoveSelections(_ context.Context, from, to time.Time) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	from, to = Date(from), Date(to)
	covered := make(map[ClassYear]bool)
	for _, sel := range r.selections {
		if sel.SeminarDate.Equal(to) {
			covered[sel.ClassYear] = true
		}
	}
	var moved int
	for id, sel := range r.selections {
		if !sel.SeminarDate.Equal(from) {
			continue
		}
		if covered[sel.ClassYear] {
			delete(r.selections, id)
			continue
		}
		sel.SeminarDate = to
		r.selections[id] = sel
		covered[sel.ClassYear] = true
		moved++
	}
	return moved, nil
}

func (r *fakeRepo) CreateHoliday(_ context.Context, h Holiday) (Holiday, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, existing := range r.holidays {
		if existing.HolidayDate.Equal(h.HolidayDate) {
			return Holiday{}, ErrHolidayExists
		}
	}
	r.holidays[h.ID] = h
	return h, nil
}

func (r *fakeRepo) GetHolidayByDate(_ context.Context, date time.Time) (Holiday, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if r.holidayErr != nil {
		return Holiday{}, r.holidayErr
	}
	date = Date(date)
	for _, h := range r.holidays {
		if h.HolidayDate.Equal(date) {
			return h, nil
		}
	}
	return Holiday{}, ErrHolidayNotFound
}

func (r *fakeRepo) QueryHolidays(_ context.Context, from, to time.Time) ([]Holiday, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	from, to = Date(from), Date(to)
	holidays := make([]Holiday, 0)
	for _, h := range r.holidays {
		if !h.HolidayDate.Before(from) && !h.HolidayDate.After(to) {
			holidays = append(holidays, h)
		}
	}
	sort.Slice(holidays, func(i, j int) bool { return holidays[i].HolidayDate.Before(holidays[j].HolidayDate) })
	return holidays, nil
}

func (r *fakeRepo) DeleteHoliday(_ context.Context, id string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.holidays[id]; !ok {
		return ErrHolidayNotFound
	}
	delete(r.holidays, id)
	return nil
}

func (r *fakeRepo) CreateFine(_ context.Context, f Fine) (Fine, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if err, ok := r.createFineErrFor[f.StudentID]; ok {
		return Fine{}, err
	}
	for _, existing := range r.fines {
		if existing.StudentID == f.StudentID && existing.FineType == f.FineType && existing.ReferenceDate.Equal(f.ReferenceDate) {
			return Fine{}, ErrFineExists
		}
	}
	r.fines[f.ID] = f
	return f, nil
}

func (r *fakeRepo) GetFine(_ context.Context, id string) (Fine, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if f, ok := r.fines[id]; ok {
		return f, nil
	}
	return Fine{}, ErrFineNotFound
}

func (r *fakeRepo) QueryFinesByStudent(_ context.Context, studentID string) ([]Fine, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	fines := make([]Fine, 0)
	for _, f := range r.fines {
		if f.StudentID == studentID {
			fines = append(fines, f)
		}
	}
	return fines, nil
}

func (r *fakeRepo) QueryFinedStudentIDs(_ context.Context, fineType FineType, refDate time.Time) (map[string]bool, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	refDate = Date(refDate)
	set := make(map[string]bool)
	for _, f := range r.fines {
		if f.FineType == fineType && f.ReferenceDate.Equal(refDate) {
			set[f.StudentID] = true
		}
	}
	return set, nil
}

func (r *fakeRepo) UpdateFineStatus(_ context.Context, id string, status PaymentStatus) (Fine, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	f, ok := r.fines[id]
	if !ok {
		return Fine{}, ErrFineNotFound
	}
	f.PaymentStatus = status
	f.UpdatedAt = time.Now().UTC()
	r.fines[id] = f
	return f, nil
}

var _ Repository = (*fakeRepo)(nil)

func newTestService(t *testing.T, repo Repository, now time.Time) (*Service, *mailRecorder) {
	t.Helper()
	mailSvc := new(mailRecorder)
	svc, err := NewServiceMock(testConfig(), repo, mailSvc, nopLogger{}, func() time.Time { return now })
	if err != nil {
		t.Fatalf("NewServiceMock() failed: %v", err)
	}
	return svc, mailSvc
}

// kolkata builds a time in the service timezone.
func kolkata(t *testing.T, year int, month time.Month, day, hour, min, sec int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("loading timezone: %v", err)
	}
	return time.Date(year, month, day, hour, min, sec, 0, loc)
}
