package rotation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type syncDisplay struct {
	mu        sync.Mutex
	rotations []float64
}

func (d *syncDisplay) SetRotation(rad float64) {
	d.mu.Lock()
	d.rotations = append(d.rotations, rad)
	d.mu.Unlock()
}
func (d *syncDisplay) SetTilt(float64)        {}
func (d *syncDisplay) SetActiveTool(Mode)     {}
func (d *syncDisplay) SetVisibleTools([]Mode) {}
func (d *syncDisplay) RequestRefresh()        {}
func (d *syncDisplay) Notice(string)          {}

func (d *syncDisplay) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.rotations)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestLoop_TicksAfterModeSelect(t *testing.T) {
	disp := &syncDisplay{}
	l := NewLoop(Options{
		Settings: DefaultSettings(),
		Display:  disp,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	if err := l.Post(ctx, FixUpdate{Fix: cogFix(30)}); err != nil {
		t.Fatalf("post: %v", err)
	}
	if err := l.Post(ctx, ToolEvent{Tool: CourseUp, Action: Click}); err != nil {
		t.Fatalf("post: %v", err)
	}
	waitFor(t, func() bool { return l.Status().Ticks >= 1 })
	if disp.count() != 1 {
		t.Fatalf("rotations=%d want 1", disp.count())
	}
	if l.Status().Mode != CourseUp {
		t.Fatalf("mode=%v want course_up", l.Status().Mode)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := l.Post(context.Background(), ResetRequested{}); !errors.Is(err, ErrLoopStopped) {
		t.Fatalf("err=%v want ErrLoopStopped", err)
	}
}

func TestLoop_SettingsSnapshot(t *testing.T) {
	l := NewLoop(Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}, 1)
	if l.Settings().UpdateInterval != 5*time.Second {
		t.Fatalf("settings=%+v want defaults", l.Settings())
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.Run(ctx) }()

	s := DefaultSettings()
	s.UpdateInterval = time.Second
	if err := l.Post(ctx, SettingsChanged{Settings: s}); err != nil {
		t.Fatalf("post: %v", err)
	}
	waitFor(t, func() bool { return l.Settings().UpdateInterval == time.Second })
}

func TestTimerScheduler_ReplacesPending(t *testing.T) {
	var s timerScheduler
	if s.C() != nil {
		t.Fatalf("idle scheduler has a channel")
	}
	s.Schedule(time.Hour)
	first := s.C()
	s.Schedule(time.Millisecond)
	if s.C() == first {
		t.Fatalf("schedule did not replace timer")
	}
	select {
	case <-s.C():
	case <-time.After(time.Second):
		t.Fatalf("timer did not fire")
	}
	s.Stop()
	if s.C() != nil {
		t.Fatalf("stopped scheduler has a channel")
	}
}
