package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/trezcool/semina/core/seminar"
)

func (cli *commandLine) addHoliday(date, name, holType string, affects bool) error {
	d, err := seminar.ParseDate(date)
	if err != nil {
		return err
	}
	h, err := cli.svc.AddHoliday(context.Background(), d, name, holType, affects)
	if err != nil {
		return err
	}
	fmt.Printf("holiday %q added on %s\n", h.HolidayName, seminar.FormatDate(h.HolidayDate))
	return nil
}

func (cli *commandLine) runSelection() error {
	res, err := cli.svc.RunDailySelection(context.Background())
	if err != nil {
		return err
	}
	return printJSON(res)
}

func (cli *commandLine) issueFines(date string) error {
	var d time.Time
	if date == "" {
		d = cli.svc.Timing().NextSeminarDate(time.Now())
	} else {
		var err error
		if d, err = seminar.ParseDate(date); err != nil {
			return err
		}
	}
	return printJSON(cli.svc.IssueNoBookingFines(context.Background(), d))
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
