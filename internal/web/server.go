// Package web serves the HTTP API and the websocket used by chart views.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rotationctrl/internal/bus"
	"rotationctrl/internal/logging"
	"rotationctrl/internal/rotation"
	"rotationctrl/internal/waypoint"
)

// Poster queues controller events.
type Poster interface {
	Post(ctx context.Context, ev rotation.Event) error
}

// Publisher puts messages on the application bus.
type Publisher interface {
	Publish(msg bus.Message) int
}

// Deps wires the handlers. Nil optional members disable their routes.
type Deps struct {
	Status    *Status
	Events    Poster
	Bus       Publisher
	Waypoints *waypoint.Store
	Settings  SettingsStore
	Logs      *logging.Buffer
	Hub       *Hub
	Gatherer  prometheus.Gatherer
	Logger    *slog.Logger
}

type server struct {
	Deps
	log *slog.Logger
}

func Handler(d Deps) http.Handler {
	if d.Status == nil {
		d.Status = NewStatus()
	}
	s := &server{Deps: d, log: d.Logger}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.log = s.log.With("component", "web")

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/settings", d.Settings.handleGet).Methods(http.MethodGet)
	api.HandleFunc("/settings", d.Settings.handlePost).Methods(http.MethodPost)

	if d.Events != nil {
		api.HandleFunc("/tools/{tool}", s.handleTool).Methods(http.MethodPost)
		api.HandleFunc("/viewport", s.handleViewport).Methods(http.MethodPost)
		api.HandleFunc("/reset", s.handleReset).Methods(http.MethodPost)
	}
	if d.Bus != nil {
		api.HandleFunc("/messages", s.handleMessage).Methods(http.MethodPost)
	}
	if d.Waypoints != nil {
		api.HandleFunc("/waypoints", s.handleWaypointsList).Methods(http.MethodGet)
		api.HandleFunc("/waypoints", s.handleWaypointsReplace).Methods(http.MethodPut)
		api.HandleFunc("/waypoints/{guid}", s.handleWaypointGet).Methods(http.MethodGet)
		api.HandleFunc("/waypoints/{guid}", s.handleWaypointPut).Methods(http.MethodPut)
	}
	if d.Logs != nil {
		api.HandleFunc("/logs", logsHandler(d.Logs)).Methods(http.MethodGet)
	}
	if d.Hub != nil {
		r.HandleFunc("/ws", s.handleWS)
	}
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(b)
	_, _ = w.Write([]byte("\n"))
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte("{\"ok\":true}\n"))
}

// readJSON decodes a small JSON body into v, rejecting unknown fields.
func readJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid json: trailing data")
	}
	return nil
}

func (s *server) post(w http.ResponseWriter, r *http.Request, ev rotation.Event) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.Events.Post(ctx, ev); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeOK(w)
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Status.Snapshot(time.Now().UTC()))
}

type toolRequest struct {
	Action string `json:"action"`
}

// handleTool accepts an optional {"action": "click"|"press"|"release"} body;
// an empty body is a click.
func (s *server) handleTool(w http.ResponseWriter, r *http.Request) {
	tool, err := rotation.ParseMode(mux.Vars(r)["tool"])
	if err != nil || tool == rotation.None {
		http.Error(w, fmt.Sprintf("unknown tool %q", mux.Vars(r)["tool"]), http.StatusNotFound)
		return
	}
	var req toolRequest
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	action, err := rotation.ParseToolAction(req.Action)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.post(w, r, rotation.ToolEvent{Tool: tool, Action: action})
}

type viewportRequest struct {
	Rotation  *float64 `json:"rotation"`
	Tilt      *float64 `json:"tilt"`
	Precision bool     `json:"precision"`
}

func (v viewportRequest) event() (rotation.ViewportUpdate, error) {
	if v.Rotation == nil || v.Tilt == nil {
		return rotation.ViewportUpdate{}, errors.New("rotation and tilt are required")
	}
	return rotation.ViewportUpdate{
		Viewport:  rotation.Viewport{Rotation: *v.Rotation, Tilt: *v.Tilt},
		Precision: v.Precision,
	}, nil
}

func (s *server) handleViewport(w http.ResponseWriter, r *http.Request) {
	var req viewportRequest
	if err := readJSON(w, r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ev, err := req.event()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.post(w, r, ev)
}

func (s *server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.post(w, r, rotation.ResetRequested{})
}

func (s *server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg bus.Message
	if err := readJSON(w, r, &msg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(msg.ID) == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}
	n := s.Bus.Publish(msg)
	writeJSON(w, http.StatusOK, map[string]int{"delivered": n})
}

func (s *server) handleWaypointsList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Waypoints.List())
}

func (s *server) handleWaypointsReplace(w http.ResponseWriter, r *http.Request) {
	var wps []waypoint.Waypoint
	if err := readJSON(w, r, &wps); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.Waypoints.Replace(wps); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.Waypoints.List())
}

func (s *server) handleWaypointGet(w http.ResponseWriter, r *http.Request) {
	wp, err := s.Waypoints.Lookup(mux.Vars(r)["guid"])
	if errors.Is(err, waypoint.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, wp)
}

func (s *server) handleWaypointPut(w http.ResponseWriter, r *http.Request) {
	var wp waypoint.Waypoint
	if err := readJSON(w, r, &wp); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	guid := mux.Vars(r)["guid"]
	if wp.GUID == "" {
		wp.GUID = guid
	}
	if wp.GUID != guid {
		http.Error(w, "guid does not match path", http.StatusBadRequest)
		return
	}
	if err := s.Waypoints.Put(wp); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, wp)
}

func (s *server) handleRoot(w http.ResponseWriter, r *http.Request) {
	snap := s.Status.Snapshot(time.Now().UTC())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>rotationctrl</title></head><body>")
	_, _ = fmt.Fprintf(w, "<h1>rotationctrl</h1>")
	_, _ = fmt.Fprintf(w, "<p>Use <a href=\"/api/status\">/api/status</a> or connect a chart view to /ws.</p>")
	if c := snap.Controller; c != nil {
		names := make([]string, len(c.Tools))
		for i, m := range c.Tools {
			names[i] = m.String()
		}
		_, _ = fmt.Fprintf(w, "<pre>mode=%s\ntools=%s\nrotation_deg=%.1f\nticks=%d\noverrides=%d</pre>",
			c.Mode, strings.Join(names, ","), c.RotationDeg, c.Ticks, c.Overrides)
	}
	_, _ = fmt.Fprintf(w, "</body></html>")
}

// Serve runs the HTTP server until ctx is cancelled. Request contexts derive
// from ctx so websocket sessions end on shutdown.
func Serve(ctx context.Context, listenAddr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
