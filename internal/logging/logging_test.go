package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuffer_HoldsPartialLines(t *testing.T) {
	b := NewBuffer(10)
	_, _ = b.Write([]byte("one\ntw"))
	lines, _ := b.Snapshot(10)
	if len(lines) != 1 || lines[0] != "one" {
		t.Fatalf("lines=%q want [one]", lines)
	}
	_, _ = b.Write([]byte("o\r\n\nthree\n"))
	lines, _ = b.Snapshot(10)
	if strings.Join(lines, ",") != "one,two,three" {
		t.Fatalf("lines=%q", lines)
	}
}

func TestBuffer_DropsOldest(t *testing.T) {
	b := NewBuffer(2)
	_, _ = b.Write([]byte("a\nb\nc\n"))
	lines, dropped := b.Snapshot(0)
	if strings.Join(lines, ",") != "b,c" || dropped != 1 {
		t.Fatalf("lines=%q dropped=%d", lines, dropped)
	}
	lines, _ = b.Snapshot(1)
	if len(lines) != 1 || lines[0] != "c" {
		t.Fatalf("tail=%q want [c]", lines)
	}
}

func TestParseLevel(t *testing.T) {
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error")
	}
	lvl, err := ParseLevel("WARN")
	if err != nil || lvl.String() != "WARN" {
		t.Fatalf("lvl=%v err=%v", lvl, err)
	}
}

func TestNew_WritesAllSinks(t *testing.T) {
	var stderr bytes.Buffer
	buf := NewBuffer(10)
	file := filepath.Join(t.TempDir(), "logs", "rotationctrl.log")
	l, closer, err := New(Options{Level: "debug", File: file, MaxSizeMB: 1, MaxBackups: 1, Buffer: buf, Stderr: &stderr})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Debug("tick", "mode", "course_up")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	lines, _ := buf.Snapshot(10)
	if len(lines) != 2 {
		t.Fatalf("buffer lines=%d want 2", len(lines))
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if rec["msg"] != "tick" || rec["mode"] != "course_up" {
		t.Fatalf("record=%v", rec)
	}
	if !strings.Contains(stderr.String(), `"msg":"tick"`) {
		t.Fatalf("stderr missing record")
	}
	b, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(b), `"msg":"tick"`) {
		t.Fatalf("file missing record")
	}
}
