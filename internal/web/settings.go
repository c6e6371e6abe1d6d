package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"rotationctrl/internal/config"
)

// SettingsPayload mirrors the rotation preferences.
type SettingsPayload struct {
	ManualRotate   bool    `json:"manual_rotate"`
	ManualTilt     bool    `json:"manual_tilt"`
	NorthUp        bool    `json:"north_up"`
	SouthUp        bool    `json:"south_up"`
	CourseUp       bool    `json:"course_up"`
	HeadingUp      bool    `json:"heading_up"`
	RouteUp        bool    `json:"route_up"`
	WindUp         bool    `json:"wind_up"`
	UpdateRate     float64 `json:"update_rate"`
	FilterSeconds  float64 `json:"filter_seconds"`
	MaxSlewRate    float64 `json:"max_slew_rate"`
	RotationOffset float64 `json:"rotation_offset"`

	// Warnings lists values that were replaced by defaults on this save.
	Warnings []string `json:"warnings,omitempty"`
}

// SettingsPayloadIn is the strict POST schema.
//
// All fields are required (no partial updates) to avoid hidden defaults and
// prevent accidental schema drift.
type SettingsPayloadIn struct {
	ManualRotate   *bool    `json:"manual_rotate"`
	ManualTilt     *bool    `json:"manual_tilt"`
	NorthUp        *bool    `json:"north_up"`
	SouthUp        *bool    `json:"south_up"`
	CourseUp       *bool    `json:"course_up"`
	HeadingUp      *bool    `json:"heading_up"`
	RouteUp        *bool    `json:"route_up"`
	WindUp         *bool    `json:"wind_up"`
	UpdateRate     *float64 `json:"update_rate"`
	FilterSeconds  *float64 `json:"filter_seconds"`
	MaxSlewRate    *float64 `json:"max_slew_rate"`
	RotationOffset *float64 `json:"rotation_offset"`
}

var settingsPostKeys = []string{
	"manual_rotate",
	"manual_tilt",
	"north_up",
	"south_up",
	"course_up",
	"heading_up",
	"route_up",
	"wind_up",
	"update_rate",
	"filter_seconds",
	"max_slew_rate",
	"rotation_offset",
}

func decodeSettingsPayloadInStrict(body []byte) (SettingsPayloadIn, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()

	// First pass: stream tokens to enforce strict object rules and detect duplicate keys.
	allowed := make(map[string]struct{}, len(settingsPostKeys))
	for _, k := range settingsPostKeys {
		allowed[k] = struct{}{}
	}
	seen := make(map[string]struct{}, len(settingsPostKeys))

	tok, err := dec.Token()
	if err != nil {
		return SettingsPayloadIn{}, fmt.Errorf("invalid json: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return SettingsPayloadIn{}, errors.New("invalid json: expected object")
	}

	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return SettingsPayloadIn{}, fmt.Errorf("invalid json: %w", err)
		}
		key, ok := kt.(string)
		if !ok {
			return SettingsPayloadIn{}, errors.New("invalid json: expected string key")
		}
		if _, ok := allowed[key]; !ok {
			return SettingsPayloadIn{}, fmt.Errorf("invalid json: unknown key %q", key)
		}
		if _, dup := seen[key]; dup {
			return SettingsPayloadIn{}, fmt.Errorf("invalid json: duplicate key %q", key)
		}
		seen[key] = struct{}{}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return SettingsPayloadIn{}, fmt.Errorf("invalid json: %w", err)
		}
		if strings.TrimSpace(string(raw)) == "null" {
			return SettingsPayloadIn{}, fmt.Errorf("invalid json: %q cannot be null", key)
		}
	}

	end, err := dec.Token()
	if err != nil {
		return SettingsPayloadIn{}, fmt.Errorf("invalid json: %w", err)
	}
	delim, ok = end.(json.Delim)
	if !ok || delim != '}' {
		return SettingsPayloadIn{}, errors.New("invalid json: expected end of object")
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return SettingsPayloadIn{}, errors.New("invalid json: trailing data")
	}

	for _, k := range settingsPostKeys {
		if _, ok := seen[k]; !ok {
			return SettingsPayloadIn{}, fmt.Errorf("invalid json: missing required key %q", k)
		}
	}

	// Second pass: decode into the typed struct.
	var out SettingsPayloadIn
	dec2 := json.NewDecoder(bytes.NewReader(body))
	dec2.DisallowUnknownFields()
	if err := dec2.Decode(&out); err != nil {
		return SettingsPayloadIn{}, fmt.Errorf("invalid json: %w", err)
	}
	return out, nil
}

func configToSettingsPayload(cfg config.Config) SettingsPayload {
	r := cfg.Rotation
	b := func(p *bool) bool { return p != nil && *p }
	p := SettingsPayload{
		ManualRotate:   b(r.ManualRotate),
		ManualTilt:     b(r.ManualTilt),
		NorthUp:        b(r.NorthUp),
		SouthUp:        b(r.SouthUp),
		CourseUp:       b(r.CourseUp),
		HeadingUp:      b(r.HeadingUp),
		RouteUp:        b(r.RouteUp),
		WindUp:         b(r.WindUp),
		FilterSeconds:  r.FilterSeconds,
		MaxSlewRate:    r.MaxSlewRate,
		RotationOffset: r.RotationOffset,
		Warnings:       cfg.Warnings,
	}
	if r.UpdateRate != nil {
		p.UpdateRate = *r.UpdateRate
	}
	return p
}

// applySettingsPayload copies p into cfg. Range checks are left to
// config.DefaultAndValidate so the file and the API agree on them.
func applySettingsPayload(cfg *config.Config, p SettingsPayloadIn) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	r := &cfg.Rotation
	r.ManualRotate = p.ManualRotate
	r.ManualTilt = p.ManualTilt
	r.NorthUp = p.NorthUp
	r.SouthUp = p.SouthUp
	r.CourseUp = p.CourseUp
	r.HeadingUp = p.HeadingUp
	r.RouteUp = p.RouteUp
	r.WindUp = p.WindUp
	r.UpdateRate = p.UpdateRate
	if p.FilterSeconds == nil || *p.FilterSeconds <= 0 {
		return errors.New("filter_seconds must be > 0")
	}
	r.FilterSeconds = *p.FilterSeconds
	if p.MaxSlewRate == nil || *p.MaxSlewRate <= 0 {
		return errors.New("max_slew_rate must be > 0")
	}
	r.MaxSlewRate = *p.MaxSlewRate
	if p.RotationOffset == nil {
		return errors.New("rotation_offset is required")
	}
	r.RotationOffset = *p.RotationOffset
	return nil
}

type SettingsStore struct {
	ConfigPath string
	// Apply, when set, is called after validation and before saving.
	// If Apply returns an error, the config is not saved.
	// Apply is expected to make the new config effective immediately.
	Apply func(cfg config.Config) error
}

func (s SettingsStore) load() (config.Config, error) {
	return config.Load(s.ConfigPath)
}

func (s SettingsStore) save(cfg config.Config) error {
	if err := config.DefaultAndValidate(&cfg); err != nil {
		return err
	}
	b, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	// Write atomically to avoid corrupting config on crash/power loss.
	// Use a temp file in the same directory so os.Rename is atomic.
	dir := filepath.Dir(s.ConfigPath)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.ConfigPath)+".tmp.*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.ConfigPath)
}

func (s SettingsStore) handleGet(w http.ResponseWriter, r *http.Request) {
	if strings.TrimSpace(s.ConfigPath) == "" {
		http.Error(w, "settings not available (no config path)", http.StatusNotImplemented)
		return
	}
	cfg, err := s.load()
	if err != nil {
		http.Error(w, fmt.Sprintf("load failed: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, configToSettingsPayload(cfg))
}

func (s SettingsStore) handlePost(w http.ResponseWriter, r *http.Request) {
	if strings.TrimSpace(s.ConfigPath) == "" {
		http.Error(w, "settings not available (no config path)", http.StatusNotImplemented)
		return
	}
	if ct := strings.TrimSpace(r.Header.Get("Content-Type")); ct != "application/json" {
		http.Error(w, "content-type must be application/json", http.StatusUnsupportedMediaType)
		return
	}

	// Small config payload; cap to prevent unbounded reads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("read failed: %v", err), http.StatusBadRequest)
		return
	}
	p, err := decodeSettingsPayloadInStrict(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	oldCfg, err := s.load()
	if err != nil {
		http.Error(w, fmt.Sprintf("load failed: %v", err), http.StatusInternalServerError)
		return
	}

	cfg := oldCfg
	if err := applySettingsPayload(&cfg, p); err != nil {
		http.Error(w, fmt.Sprintf("invalid settings: %v", err), http.StatusBadRequest)
		return
	}
	if err := config.DefaultAndValidate(&cfg); err != nil {
		http.Error(w, fmt.Sprintf("invalid config: %v", err), http.StatusBadRequest)
		return
	}

	if s.Apply != nil {
		if err := s.Apply(cfg); err != nil {
			http.Error(w, fmt.Sprintf("apply failed: %v", err), http.StatusBadRequest)
			return
		}
	}

	if err := s.save(cfg); err != nil {
		// Best-effort rollback to keep runtime consistent with disk.
		if s.Apply != nil {
			_ = s.Apply(oldCfg)
		}
		http.Error(w, fmt.Sprintf("save failed: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, configToSettingsPayload(cfg))
}
