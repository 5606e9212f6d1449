package progress

import (
	"testing"
	"time"
)

func TestNewBar(t *testing.T) {
	b := NewBar(100)
	if b.total != 100 {
		t.Errorf("expected total=100, got %d", b.total)
	}
	if b.current != 0 {
		t.Errorf("expected current=0, got %d", b.current)
	}
	if b.width != 50 {
		t.Errorf("expected width=50, got %d", b.width)
	}
}

func TestBarObserveAndFinish(t *testing.T) {
	b := NewBar(1000)
	for i := uint64(100); i <= 1000; i += 100 {
		b.Observe(i, 2*time.Millisecond)
		if b.current != i {
			t.Errorf("expected current=%d, got %d", i, b.current)
		}
	}
	if got := b.meanSignDuration(); got != 2*time.Millisecond {
		t.Errorf("expected mean sign duration=2ms, got %v", got)
	}
	if rate := b.signRate(); rate <= 0 {
		t.Errorf("expected a positive sign rate, got %v", rate)
	}

	b.Finish()
	if b.current != b.total {
		t.Errorf("expected current=total after finish, got %d", b.current)
	}
}

func TestBarMeanSignDurationBeforeAnyObservation(t *testing.T) {
	b := NewBar(10)
	if got := b.meanSignDuration(); got != 0 {
		t.Errorf("expected mean sign duration=0 before any Observe, got %v", got)
	}
	if rate := b.signRate(); rate != 0 {
		t.Errorf("expected sign rate=0 before any Observe, got %v", rate)
	}
}

func TestEstimateTime(t *testing.T) {
	estimated := EstimateTime(1000, 100.0)
	if estimated != 10*time.Second {
		t.Errorf("expected 10s, got %v", estimated)
	}
	if EstimateTime(1000, 0) != 0 {
		t.Errorf("expected 0 for zero rate")
	}
	if EstimateTime(1000, -10) != 0 {
		t.Errorf("expected 0 for negative rate")
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30.0s"},
		{90 * time.Second, "1.5m"},
		{2 * time.Hour, "2.0h"},
		{25 * time.Hour, "1.0d"},
		{48 * time.Hour, "2.0d"},
	}
	for _, c := range cases {
		if got := FormatDuration(c.d); got != c.want {
			t.Errorf("FormatDuration(%v) = %s, want %s", c.d, got, c.want)
		}
	}
}
