package seminar

import (
	"testing"
	"time"
)

func newTestTimingPolicy(t *testing.T) *TimingPolicy {
	t.Helper()
	p, err := NewTimingPolicy(testConfig().Seminar)
	if err != nil {
		t.Fatalf("NewTimingPolicy() failed: %v", err)
	}
	return p
}

func TestIsBookingWindowOpen(t *testing.T) {
	p := newTestTimingPolicy(t)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "before open", now: kolkata(t, 2025, time.March, 5, 10, 29, 59), want: false},
		{name: "exactly at open", now: kolkata(t, 2025, time.March, 5, 10, 30, 0), want: true},
		{name: "mid window", now: kolkata(t, 2025, time.March, 5, 12, 0, 0), want: true},
		{name: "exactly at close", now: kolkata(t, 2025, time.March, 5, 13, 30, 0), want: true},
		{name: "just after close", now: kolkata(t, 2025, time.March, 5, 13, 30, 1), want: false},
		{name: "midnight", now: kolkata(t, 2025, time.March, 5, 0, 0, 0), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.IsBookingWindowOpen(tt.now); got != tt.want {
				t.Errorf("IsBookingWindowOpen() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShouldTriggerAutoSelection(t *testing.T) {
	p := newTestTimingPolicy(t)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "before selection time", now: kolkata(t, 2025, time.March, 5, 13, 29, 59), want: false},
		{name: "exactly at selection time", now: kolkata(t, 2025, time.March, 5, 13, 30, 0), want: true},
		{name: "within tolerance", now: kolkata(t, 2025, time.March, 5, 13, 33, 0), want: true},
		{name: "at tolerance limit", now: kolkata(t, 2025, time.March, 5, 13, 35, 0), want: true},
		{name: "past tolerance", now: kolkata(t, 2025, time.March, 5, 13, 35, 1), want: false},
		{name: "next morning", now: kolkata(t, 2025, time.March, 6, 9, 0, 0), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.ShouldTriggerAutoSelection(tt.now); got != tt.want {
				t.Errorf("ShouldTriggerAutoSelection() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBookingWindowInfo(t *testing.T) {
	p := newTestTimingPolicy(t)

	t.Run("closed before open points at today's window", func(t *testing.T) {
		now := kolkata(t, 2025, time.March, 5, 9, 30, 0)
		info := p.BookingWindowInfo(now)
		if info.IsOpen {
			t.Fatal("window should be closed")
		}
		if want := time.Hour; info.TimeUntilOpen != want {
			t.Errorf("TimeUntilOpen = %v, want %v", info.TimeUntilOpen, want)
		}
		if want := p.WindowStart(now); !info.NextOpenTime.Equal(want) {
			t.Errorf("NextOpenTime = %v, want %v", info.NextOpenTime, want)
		}
	})

	t.Run("open reports close and selection countdowns", func(t *testing.T) {
		now := kolkata(t, 2025, time.March, 5, 12, 30, 0)
		info := p.BookingWindowInfo(now)
		if !info.IsOpen {
			t.Fatal("window should be open")
		}
		if want := time.Hour; info.TimeUntilClose != want {
			t.Errorf("TimeUntilClose = %v, want %v", info.TimeUntilClose, want)
		}
		if want := time.Hour; info.TimeUntilSelection != want {
			t.Errorf("TimeUntilSelection = %v, want %v", info.TimeUntilSelection, want)
		}
	})

	t.Run("closed after close points at tomorrow's window", func(t *testing.T) {
		now := kolkata(t, 2025, time.March, 5, 14, 0, 0)
		info := p.BookingWindowInfo(now)
		if info.IsOpen {
			t.Fatal("window should be closed")
		}
		wantOpen := kolkata(t, 2025, time.March, 6, 10, 30, 0)
		if !info.NextOpenTime.Equal(wantOpen) {
			t.Errorf("NextOpenTime = %v, want %v", info.NextOpenTime, wantOpen)
		}
		if want := wantOpen.Sub(now); info.TimeUntilOpen != want {
			t.Errorf("TimeUntilOpen = %v, want %v", info.TimeUntilOpen, want)
		}
	})
}

func TestNextSeminarDate(t *testing.T) {
	p := newTestTimingPolicy(t)

	now := kolkata(t, 2025, time.March, 5, 11, 0, 0)
	want := Date(kolkata(t, 2025, time.March, 6, 0, 0, 0))
	if got := p.NextSeminarDate(now); !got.Equal(want) {
		t.Errorf("NextSeminarDate() = %v, want %v", got, want)
	}

	// late evening UTC is already the next day in Kolkata
	now = time.Date(2025, time.March, 5, 20, 0, 0, 0, time.UTC) // 01:30 Mar 6 IST
	want = Date(kolkata(t, 2025, time.March, 7, 0, 0, 0))
	if got := p.NextSeminarDate(now); !got.Equal(want) {
		t.Errorf("NextSeminarDate() = %v, want %v", got, want)
	}
}

func TestFormatTimeRemaining(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{name: "expired", d: 0, want: "Time's up!"},
		{name: "negative", d: -time.Minute, want: "Time's up!"},
		{name: "seconds only", d: 42 * time.Second, want: "42s"},
		{name: "minutes and seconds", d: 2*time.Minute + 3*time.Second, want: "2m 3s"},
		{name: "hours", d: time.Hour + 2*time.Minute + 3*time.Second, want: "1h 2m 3s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatTimeRemaining(tt.d); got != tt.want {
				t.Errorf("FormatTimeRemaining() = %q, want %q", got, tt.want)
			}
		})
	}
}
