package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"rotationctrl/internal/config"
	"rotationctrl/internal/display"
	"rotationctrl/internal/logging"
	"rotationctrl/internal/replay"
	"rotationctrl/internal/rotation"
)

func testConfig(t *testing.T, yaml string) (config.Config, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	return cfg, path
}

func startApp(t *testing.T, cfg config.Config, path string) (*app, context.CancelFunc, <-chan error) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := newApp(cfg, path, logger, logging.NewBuffer(100))
	if err != nil {
		t.Fatalf("newApp() error: %v", err)
	}
	t.Cleanup(a.Close)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	return a, cancel, done
}

func stopApp(t *testing.T, cancel context.CancelFunc, done <-chan error) {
	t.Helper()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run() did not return")
	}
}

func waitStatus(t *testing.T, a *app, ok func(rotation.Status) bool) rotation.Status {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		st := a.loop.Status()
		if ok(st) {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatalf("status never matched: %+v", st)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestApp_SimDrivesCourseUp(t *testing.T) {
	cfg, path := testConfig(t, `
web:
  listen: 127.0.0.1:0
nmea:
  source: sim
sim:
  interval: 20ms
  period: 1m
rotation:
  update_rate: 0.05
`)
	a, cancel, done := startApp(t, cfg, path)

	waitStatus(t, a, func(st rotation.Status) bool { return st.Fix.CogDeg != nil })
	a.postEvent(rotation.ToolEvent{Tool: rotation.CourseUp, Action: rotation.Click})
	st := waitStatus(t, a, func(st rotation.Status) bool { return st.Mode == rotation.CourseUp && st.Ticks > 0 })
	if st.CourseDeg == nil {
		t.Fatalf("course unset: %+v", st)
	}
	if n := a.nmea.Snapshot(); n.Events == 0 || n.Errors != 0 {
		t.Fatalf("nmea snapshot=%+v", n)
	}
	stopApp(t, cancel, done)
}

func TestApp_StartupWarningsReachDisplays(t *testing.T) {
	cfg, path := testConfig(t, "web:\n  listen: 127.0.0.1:0\nrotation:\n  update_rate: 0\n")
	if len(cfg.Warnings) != 1 {
		t.Fatalf("warnings=%v", cfg.Warnings)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := newApp(cfg, path, logger, nil)
	if err != nil {
		t.Fatalf("newApp() error: %v", err)
	}
	defer a.Close()
	_, ch := a.hub.Subscribe(16)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	timeout := time.After(3 * time.Second)
	for {
		select {
		case c := <-ch:
			if c.Type == display.TypeNotice {
				stopApp(t, cancel, done)
				return
			}
		case <-timeout:
			t.Fatalf("no notice delivered")
		}
	}
}

func TestApp_RecordsAndReplays(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "trip.log")

	cfg, path := testConfig(t, "web:\n  listen: 127.0.0.1:0\nnmea:\n  source: sim\n  record: "+logPath+"\nsim:\n  interval: 10ms\n")
	a, cancel, done := startApp(t, cfg, path)
	waitStatus(t, a, func(st rotation.Status) bool { return st.Fix.CogDeg != nil })
	stopApp(t, cancel, done)
	a.Close()

	recs, err := replay.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if len(recs) < 2 || !recs[0].IsStart() {
		t.Fatalf("records=%d", len(recs))
	}

	cfg2, path2 := testConfig(t, "web:\n  listen: 127.0.0.1:0\nnmea:\n  source: replay\n  replay_file: "+logPath+"\n  replay_speed: 100\n")
	b, cancel2, done2 := startApp(t, cfg2, path2)
	waitStatus(t, b, func(st rotation.Status) bool { return st.Fix.CogDeg != nil })
	stopApp(t, cancel2, done2)
}
