package seminar

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestIssueNoBookingFines(t *testing.T) {
	ctx := context.Background()
	now := kolkata(t, 2025, time.March, 5, 13, 30, 0)
	seminarDate := Date(kolkata(t, 2025, time.March, 6, 0, 0, 0)) // Thursday

	t.Run("fines only the unexempt", func(t *testing.T) {
		repo := newFakeRepo()
		seedRoster(repo)
		// ii-1 booked; iii-1 was selected once in the past; ii-2 already fined
		repo.addBooking("ii-1", seminarDate, "")
		repo.selections["old"] = Selection{ID: "old", StudentID: "iii-1", SeminarDate: seminarDate.AddDate(0, 0, -7), ClassYear: ClassYearIII}
		repo.fines["pre"] = Fine{ID: "pre", StudentID: "ii-2", FineType: FineTypeNoBooking, ReferenceDate: seminarDate, BaseAmount: 10, PaymentStatus: PaymentPending}
		svc, _ := newTestService(t, repo, now)

		res := svc.IssueNoBookingFines(ctx, seminarDate)
		if !res.Success {
			t.Fatalf("fine pass failed: %s", res.Message)
		}
		if res.FinesCreated != 1 {
			t.Fatalf("FinesCreated = %d, want 1 (only iii-2)", res.FinesCreated)
		}

		fines, _ := repo.QueryFinesByStudent(ctx, "iii-2")
		if len(fines) != 1 {
			t.Fatalf("iii-2 fines = %d, want 1", len(fines))
		}
		f := fines[0]
		if f.FineType != FineTypeNoBooking || f.BaseAmount != 10.00 || f.PaymentStatus != PaymentPending || f.DaysOverdue != 1 {
			t.Errorf("fine = %+v, want a pending 10.00 no-booking fine", f)
		}
		if !f.ReferenceDate.Equal(seminarDate) {
			t.Errorf("ReferenceDate = %s, want %s", FormatDate(f.ReferenceDate), FormatDate(seminarDate))
		}
	})

	t.Run("second pass creates nothing", func(t *testing.T) {
		repo := newFakeRepo()
		seedRoster(repo)
		repo.addBooking("ii-1", seminarDate, "")
		svc, _ := newTestService(t, repo, now)

		first := svc.IssueNoBookingFines(ctx, seminarDate)
		if first.FinesCreated != 3 {
			t.Fatalf("first pass FinesCreated = %d, want 3", first.FinesCreated)
		}
		second := svc.IssueNoBookingFines(ctx, seminarDate)
		if !second.Success || second.FinesCreated != 0 {
			t.Errorf("second pass = %+v, want a successful no-op", second)
		}
	})

	t.Run("no fines on a weekend", func(t *testing.T) {
		repo := newFakeRepo()
		seedRoster(repo)
		svc, _ := newTestService(t, repo, now)
		saturday := Date(kolkata(t, 2025, time.March, 8, 0, 0, 0))

		res := svc.IssueNoBookingFines(ctx, saturday)
		if !res.Success || res.FinesCreated != 0 {
			t.Errorf("res = %+v, want a successful no-op", res)
		}
	})

	t.Run("a failing row does not abort the pass", func(t *testing.T) {
		repo := newFakeRepo()
		seedRoster(repo)
		repo.createFineErrFor = map[string]error{"ii-1": errors.New("connection reset")}
		svc, _ := newTestService(t, repo, now)

		res := svc.IssueNoBookingFines(ctx, seminarDate)
		if !res.Success {
			t.Fatalf("fine pass failed: %s", res.Message)
		}
		if res.FinesCreated != 3 {
			t.Errorf("FinesCreated = %d, want 3", res.FinesCreated)
		}
		if len(res.Errors) != 1 {
			t.Errorf("Errors = %v, want exactly one", res.Errors)
		}
	})
}
