package main

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/semina/core"
	"github.com/trezcool/semina/core/seminar"
)

// addStudent updates or creates a student record. Students normally arrive
// through the auth system; this exists for seeding and repairs.
func (cli *commandLine) addStudent(reg, name, class, email string) error {
	reg = core.CleanString(reg, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	name = core.CleanString(name)

	cy := seminar.ClassYear(class)
	if !cy.Valid() {
		return errors.Errorf("invalid class year %q", class)
	}

	_, err := cli.db.Exec(
		`INSERT INTO students (id, register_number, name, class_year, email)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (register_number)
		 DO UPDATE SET name = EXCLUDED.name, class_year = EXCLUDED.class_year, email = EXCLUDED.email`,
		uuid.New().String(), reg, name, cy, email,
	)
	return errors.Wrap(err, "upserting student")
}
