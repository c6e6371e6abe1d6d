package slew

import (
	"testing"
	"time"
)

func TestStep_ClampsToMaxRate(t *testing.T) {
	l := New(20)
	l.Limiting = true
	st := l.Step(90, 0, false)
	if st.Delta != 20 || !st.Clamped {
		t.Fatalf("step=%+v want delta=20 clamped", st)
	}
	st = l.Step(-90, 0, false)
	if st.Delta != -20 || !st.Clamped {
		t.Fatalf("step=%+v want delta=-20 clamped", st)
	}
}

func TestStep_NoClampWithinRate(t *testing.T) {
	l := New(20)
	l.Limiting = true
	st := l.Step(10, 0, false)
	if st.Delta != 10 || st.Clamped || st.Suppressed {
		t.Fatalf("step=%+v want delta=10", st)
	}
}

func TestStep_ShortestWayAcrossSeam(t *testing.T) {
	l := New(20)
	l.Limiting = true
	st := l.Step(-170, 170, false)
	if st.Delta != 20 || st.Clamped {
		t.Fatalf("step=%+v want delta=20 unclamped", st)
	}
}

func TestStep_WarmUpSequence(t *testing.T) {
	l := New(20)

	// Initial move is unclamped even if large.
	st := l.Step(90, 0, false)
	if st.Delta != 90 || st.Clamped || st.Suppressed {
		t.Fatalf("initial step=%+v", st)
	}

	// Warm-up request: limiting starts and nothing is emitted on the same tick.
	st = l.Step(180, 90, true)
	if !st.Suppressed || st.Delta != 0 || !l.Limiting {
		t.Fatalf("warm-up step=%+v limiter=%+v", st, l)
	}

	// From now on moves are clamped.
	st = l.Step(180, 90, true)
	if st.Delta != 20 || !st.Clamped {
		t.Fatalf("limited step=%+v", st)
	}

	l.Reset()
	if l.Limiting {
		t.Fatalf("reset limiter=%+v", l)
	}
}

func TestStep_WarmUpOnFirstTickNeverSnaps(t *testing.T) {
	l := New(20)
	st := l.Step(-100, 0, true)
	if !st.Suppressed || st.Delta != 0 {
		t.Fatalf("step=%+v want suppressed", st)
	}
}

func TestNext(t *testing.T) {
	if got := Next(Step{Clamped: true}, 5*time.Second); got != RefreshInterval {
		t.Fatalf("got=%v want %v", got, RefreshInterval)
	}
	if got := Next(Step{}, 5*time.Second); got != 5*time.Second {
		t.Fatalf("got=%v want 5s", got)
	}
}

func TestNegligible(t *testing.T) {
	if !Negligible(0.99) || !Negligible(-0.5) || Negligible(1) || Negligible(-3) {
		t.Fatalf("threshold mismatch")
	}
}

func TestNew_DefaultRate(t *testing.T) {
	if l := New(0); l.MaxRate != DefaultMaxRate {
		t.Fatalf("max=%v want %v", l.MaxRate, DefaultMaxRate)
	}
}
