// Package telemetry records control loop activity to InfluxDB.
package telemetry

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api/write"

	"rotationctrl/internal/angle"
	"rotationctrl/internal/rotation"
)

type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
	// Host is added as a tag to every point.
	Host string
}

// pointWriter is the subset of api.WriteApi used here.
type pointWriter interface {
	WritePoint(p *write.Point)
	Flush()
	Close()
}

// Writer implements rotation.Observer. Points are written asynchronously;
// write errors are logged and never reach the control loop.
type Writer struct {
	w     pointWriter
	tags  map[string]string
	close func()
}

func New(cfg Config, logger *slog.Logger) (*Writer, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("telemetry: url is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	writeApi := client.WriteApi(cfg.Org, cfg.Bucket)
	errorsCh := writeApi.Errors()
	go func() {
		for err := range errorsCh {
			logger.Warn("influx write error", "err", err)
		}
	}()
	w := newWriter(writeApi, cfg.Host)
	w.close = client.Close
	return w, nil
}

func newWriter(pw pointWriter, host string) *Writer {
	tags := map[string]string{}
	if host != "" {
		tags["host"] = host
	}
	return &Writer{w: pw, tags: tags}
}

func (w *Writer) withTags(extra map[string]string) map[string]string {
	out := make(map[string]string, len(w.tags)+len(extra))
	for k, v := range w.tags {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func (w *Writer) ObserveTick(r rotation.Report) {
	if w == nil {
		return
	}
	fields := map[string]interface{}{
		"applied":    r.Applied,
		"clamped":    r.Clamped,
		"suppressed": r.Suppressed,
		"next_ms":    r.Next.Milliseconds(),
	}
	if angle.Defined(r.RotationDeg) {
		fields["rotation_deg"] = r.RotationDeg
	}
	if angle.Defined(r.TargetDeg) {
		fields["target_deg"] = r.TargetDeg
	}
	ts := r.At
	if ts.IsZero() {
		ts = time.Now()
	}
	w.w.WritePoint(influxdb2.NewPoint("rotation.tick", w.withTags(map[string]string{"mode": r.Mode.String()}), fields, ts))
}

func (w *Writer) ObserveOverride(m rotation.Mode) {
	if w == nil {
		return
	}
	w.w.WritePoint(influxdb2.NewPoint("rotation.override",
		w.withTags(map[string]string{"mode": m.String()}),
		map[string]interface{}{"count": 1},
		time.Now()))
}

// Close flushes pending points and releases the client.
func (w *Writer) Close() {
	if w == nil {
		return
	}
	w.w.Flush()
	w.w.Close()
	if w.close != nil {
		w.close()
	}
}
