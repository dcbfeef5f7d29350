package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"

	"github.com/trezcool/semina/core/seminar"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db  *sql.DB
	svc *seminar.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate - apply pending database migrations")
	fmt.Println("  addstudent -register REG -name NAME -class CLASS -email EMAIL - add or update a student")
	fmt.Println("  addholiday -date YYYY-MM-DD -name NAME [-type TYPE] [-affects=false] - add a holiday")
	fmt.Println("  runselection - run the daily presenter selection now")
	fmt.Println("  issuefines [-date YYYY-MM-DD] - issue no-booking fines for a date")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addStudentCmd := flag.NewFlagSet("addstudent", flag.ExitOnError)
	addStudentReg := addStudentCmd.String("register", "", "The student's register number.")
	addStudentName := addStudentCmd.String("name", "", "The student's full name.")
	addStudentClass := addStudentCmd.String("class", "", "The student's class year (II-IT or III-IT).")
	addStudentEmail := addStudentCmd.String("email", "", "The student's email address.")

	addHolidayCmd := flag.NewFlagSet("addholiday", flag.ExitOnError)
	addHolidayDate := addHolidayCmd.String("date", "", "The holiday date (YYYY-MM-DD).")
	addHolidayName := addHolidayCmd.String("name", "", "The holiday name.")
	addHolidayType := addHolidayCmd.String("type", "college", "The holiday type.")
	addHolidayAffects := addHolidayCmd.Bool("affects", true, "Whether the holiday affects seminars.")

	issueFinesCmd := flag.NewFlagSet("issuefines", flag.ExitOnError)
	issueFinesDate := issueFinesCmd.String("date", "", "The seminar date to fine for (YYYY-MM-DD). Defaults to tomorrow.")

	switch args[1] {
	case "migrate":
		return cli.migrate()
	case "addstudent":
		if err := addStudentCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addStudentReg == "" || *addStudentName == "" || *addStudentClass == "" || *addStudentEmail == "" {
			addStudentCmd.Usage()
			return errHelp
		}
		return cli.addStudent(*addStudentReg, *addStudentName, *addStudentClass, *addStudentEmail)
	case "addholiday":
		if err := addHolidayCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addHolidayDate == "" || *addHolidayName == "" {
			addHolidayCmd.Usage()
			return errHelp
		}
		return cli.addHoliday(*addHolidayDate, *addHolidayName, *addHolidayType, *addHolidayAffects)
	case "runselection":
		return cli.runSelection()
	case "issuefines":
		if err := issueFinesCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.issueFines(*issueFinesDate)
	default:
		cli.printUsage()
		return errHelp
	}
}
