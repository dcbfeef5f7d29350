package seminar

import (
	"fmt"
	"net/mail"
	"time"

	"github.com/trezcool/semina/core"
)

type (
	// EmailResult is one notification attempt in a run report.
	EmailResult struct {
		Student   string    `json:"student"`
		ClassYear ClassYear `json:"class_year"`
		Sent      bool      `json:"sent"`
		Error     string    `json:"error,omitempty"`
	}

	EmailSummary struct {
		Sent    int           `json:"sent"`
		Failed  int           `json:"failed"`
		Results []EmailResult `json:"results,omitempty"`
	}
)

// notifySelections emails each newly selected presenter. Sends are
// synchronous so the run report can state per-student outcomes; a failed
// email never fails the run.
func (s *Service) notifySelections(date time.Time, picks []Pick) EmailSummary {
	var summary EmailSummary
	for _, pick := range picks {
		res := EmailResult{
			Student:   pick.Selection.Student.Name,
			ClassYear: pick.Selection.ClassYear,
		}
		msg := s.selectionMessage(date, pick)
		if err := s.mailSvc.SendMessage(msg); err != nil {
			res.Error = err.Error()
			summary.Failed++
			s.logger.Error("selection email to "+pick.Selection.Student.Email+" failed", err)
		} else {
			res.Sent = true
			summary.Sent++
		}
		summary.Results = append(summary.Results, res)
	}
	return summary
}

func (s *Service) selectionMessage(date time.Time, pick Pick) *core.EmailMessage {
	st := pick.Selection.Student
	topic := pick.Booking.Topic.String
	if topic == "" {
		topic = "Not provided"
	}
	day := FormatDateWithDay(date)

	text := fmt.Sprintf(
		"Dear %s,\n\n"+
			"You have been selected to present the seminar on %s.\n\n"+
			"Topic: %s\n"+
			"Class: %s\n"+
			"Register Number: %s\n\n"+
			"Please be prepared with your presentation.\n\n"+
			"Best of luck!\n%s",
		st.Name, day, topic, st.ClassYear, st.RegisterNumber, s.conf.AppName,
	)
	html := fmt.Sprintf(
		"<p>Dear %s,</p>"+
			"<p>You have been selected to present the seminar on <strong>%s</strong>.</p>"+
			"<ul><li>Topic: %s</li><li>Class: %s</li><li>Register Number: %s</li></ul>"+
			"<p>Please be prepared with your presentation.</p>"+
			"<p>Best of luck!<br>%s</p>",
		st.Name, day, topic, st.ClassYear, st.RegisterNumber, s.conf.AppName,
	)

	return &core.EmailMessage{
		To:          []mail.Address{{Name: st.Name, Address: st.Email}},
		Subject:     fmt.Sprintf("Seminar Selection - %s", FormatDate(date)),
		TextContent: text,
		HTMLContent: html,
	}
}

// notifyReschedule tells already-selected presenters their seminar moved.
// Fire-and-forget: the reschedule already happened either way.
func (s *Service) notifyReschedule(resched RescheduleResult) {
	msgs := make([]*core.EmailMessage, 0, len(resched.Moved))
	for _, sel := range resched.Moved {
		st := sel.Student
		if st.Email == "" {
			continue
		}
		text := fmt.Sprintf(
			"Dear %s,\n\n"+
				"Your seminar has been rescheduled to %s due to %s.\n\n"+
				"Your selection carries over; no action is needed.\n\n%s",
			st.Name, FormatDateWithDay(resched.NewDate), resched.HolidayName, s.conf.AppName,
		)
		msgs = append(msgs, &core.EmailMessage{
			To:          []mail.Address{{Name: st.Name, Address: st.Email}},
			Subject:     fmt.Sprintf("Seminar Rescheduled - %s", FormatDate(resched.NewDate)),
			TextContent: text,
		})
	}
	s.mailSvc.SendMessages(msgs...)
}
