package telemetry

import (
	"math"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/api/write"

	"rotationctrl/internal/rotation"
)

type fakeWriter struct {
	points  []*write.Point
	flushed bool
	closed  bool
}

func (f *fakeWriter) WritePoint(p *write.Point) { f.points = append(f.points, p) }
func (f *fakeWriter) Flush()                    { f.flushed = true }
func (f *fakeWriter) Close()                    { f.closed = true }

func fieldMap(p *write.Point) map[string]interface{} {
	out := map[string]interface{}{}
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func tagMap(p *write.Point) map[string]string {
	out := map[string]string{}
	for _, t := range p.TagList() {
		out[t.Key] = t.Value
	}
	return out
}

func TestWriter_ObserveTick(t *testing.T) {
	fw := &fakeWriter{}
	w := newWriter(fw, "boat")
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	w.ObserveTick(rotation.Report{At: at, Mode: rotation.WindUp, TargetDeg: math.NaN(), RotationDeg: 12.5, Applied: true, Next: 50 * time.Millisecond})

	if len(fw.points) != 1 {
		t.Fatalf("points=%d want 1", len(fw.points))
	}
	p := fw.points[0]
	if p.Name() != "rotation.tick" || !p.Time().Equal(at) {
		t.Fatalf("name=%q time=%v", p.Name(), p.Time())
	}
	tags := tagMap(p)
	if tags["mode"] != "wind_up" || tags["host"] != "boat" {
		t.Fatalf("tags=%v", tags)
	}
	fields := fieldMap(p)
	if _, ok := fields["target_deg"]; ok {
		t.Fatalf("undefined target written")
	}
	if fields["rotation_deg"] != 12.5 {
		t.Fatalf("fields=%v", fields)
	}
}

func TestWriter_OverrideAndClose(t *testing.T) {
	fw := &fakeWriter{}
	w := newWriter(fw, "")
	w.ObserveOverride(rotation.CourseUp)
	w.Close()
	if len(fw.points) != 1 || fw.points[0].Name() != "rotation.override" {
		t.Fatalf("points=%v", fw.points)
	}
	if _, ok := tagMap(fw.points[0])["host"]; ok {
		t.Fatalf("empty host tagged")
	}
	if !fw.flushed || !fw.closed {
		t.Fatalf("flushed=%v closed=%v", fw.flushed, fw.closed)
	}
}

func TestNew_RequiresURL(t *testing.T) {
	if _, err := New(Config{}, nil); err == nil {
		t.Fatalf("expected error")
	}
}
