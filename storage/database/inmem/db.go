package inmemdb

import (
	"sync"

	"github.com/trezcool/semina/core/seminar"
)

type (
	DB struct {
		mutex      sync.RWMutex
		students   map[string]*seminar.Student
		bookings   map[string]*seminar.Booking
		selections map[string]*seminar.Selection
		holidays   map[string]*seminar.Holiday
		fines      map[string]*seminar.Fine
	}
)

func Open() (*DB, error) {
	db := &DB{
		students:   make(map[string]*seminar.Student),
		bookings:   make(map[string]*seminar.Booking),
		selections: make(map[string]*seminar.Selection),
		holidays:   make(map[string]*seminar.Holiday),
		fines:      make(map[string]*seminar.Fine),
	}
	return db, nil
}

// AddStudents seeds the roster. Students are owned by the auth system in
// production; here they are test/dev fixtures.
func (db *DB) AddStudents(students ...seminar.Student) {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	for i := range students {
		st := students[i]
		db.students[st.ID] = &st
	}
}
