package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"rotationctrl/internal/filter"
	"rotationctrl/internal/rotation"
	"rotationctrl/internal/waypoint"
)

const (
	DefaultUpdateRate    = 5.0
	MinUpdateRate        = 0.05
	MaxUpdateRate        = 3600.0
	DefaultFilterSeconds = 10.0
	DefaultMaxSlewRate   = 20.0
)

type Config struct {
	Rotation  RotationConfig      `yaml:"rotation"`
	Log       LogConfig           `yaml:"log"`
	Web       WebConfig           `yaml:"web"`
	NMEA      NMEAConfig          `yaml:"nmea"`
	Sim       SimConfig           `yaml:"sim"`
	Waypoints []waypoint.Waypoint `yaml:"waypoints"`
	Buttons   ButtonsConfig       `yaml:"buttons"`
	Telemetry TelemetryConfig     `yaml:"telemetry"`
	UDP       UDPConfig           `yaml:"udp"`

	// Warnings lists values that were invalid and replaced by defaults.
	Warnings []string `yaml:"-"`
}

// RotationConfig holds the operator preferences. Keys match the persisted
// preference names one to one.
type RotationConfig struct {
	ManualRotate *bool `yaml:"manual_rotate"`
	ManualTilt   *bool `yaml:"manual_tilt"`
	NorthUp      *bool `yaml:"north_up"`
	SouthUp      *bool `yaml:"south_up"`
	CourseUp     *bool `yaml:"course_up"`
	HeadingUp    *bool `yaml:"heading_up"`
	RouteUp      *bool `yaml:"route_up"`
	WindUp       *bool `yaml:"wind_up"`

	// UpdateRate is the tick period in seconds.
	UpdateRate     *float64 `yaml:"update_rate"`
	FilterSeconds  float64  `yaml:"filter_seconds"`
	MaxSlewRate    float64  `yaml:"max_slew_rate"`
	RotationOffset float64  `yaml:"rotation_offset"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

type WebConfig struct {
	Listen string `yaml:"listen"`
}

type NMEAConfig struct {
	// Source is serial, udp, tcp, sim, replay or none.
	Source    string `yaml:"source"`
	Device    string `yaml:"device"`
	Baud      int    `yaml:"baud"`
	UDPListen string `yaml:"udp_listen"`
	TCPAddr   string `yaml:"tcp_addr"`

	// Record appends every valid sentence to this log file.
	Record string `yaml:"record"`

	ReplayFile  string  `yaml:"replay_file"`
	ReplaySpeed float64 `yaml:"replay_speed"`
	ReplayLoop  bool    `yaml:"replay_loop"`
}

type SimConfig struct {
	CenterLatDeg float64       `yaml:"center_lat_deg"`
	CenterLonDeg float64       `yaml:"center_lon_deg"`
	RadiusNm     float64       `yaml:"radius_nm"`
	Period       time.Duration `yaml:"period"`
	Interval     time.Duration `yaml:"interval"`
	// WindFromDeg/WindKt describe the simulated true wind.
	WindFromDeg float64 `yaml:"wind_from_deg"`
	WindKt      float64 `yaml:"wind_kt"`
	// VariationDeg answers declination requests while simulating.
	VariationDeg float64 `yaml:"variation_deg"`
}

type ButtonsConfig struct {
	Enable bool   `yaml:"enable"`
	Chip   string `yaml:"chip"`
	// Lines maps a tool name (course_up, rotate_cw, ...) to a GPIO line
	// offset.
	Lines     map[string]int `yaml:"lines"`
	ActiveLow bool           `yaml:"active_low"`
	Debounce  time.Duration  `yaml:"debounce"`
}

type TelemetryConfig struct {
	Enable bool   `yaml:"enable"`
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

type UDPConfig struct {
	// Dest is host:port for the command mirror; empty disables it.
	Dest string `yaml:"dest"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func boolDefault(p **bool, v bool) {
	if *p == nil {
		*p = &v
	}
}

// DefaultAndValidate fills defaults and rejects unusable values. An update
// rate outside [MinUpdateRate, MaxUpdateRate] (NaN and infinities included)
// is not an error: it is reset to the default and a warning is recorded in
// cfg.Warnings.
func DefaultAndValidate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	cfg.Warnings = nil

	r := &cfg.Rotation
	boolDefault(&r.ManualRotate, false)
	boolDefault(&r.ManualTilt, false)
	boolDefault(&r.NorthUp, true)
	boolDefault(&r.SouthUp, false)
	boolDefault(&r.CourseUp, true)
	boolDefault(&r.HeadingUp, false)
	boolDefault(&r.RouteUp, false)
	boolDefault(&r.WindUp, false)
	if r.UpdateRate == nil {
		v := DefaultUpdateRate
		r.UpdateRate = &v
	} else if !(*r.UpdateRate >= MinUpdateRate && *r.UpdateRate <= MaxUpdateRate) {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("invalid update period %v, defaulting to %v seconds", *r.UpdateRate, DefaultUpdateRate))
		v := DefaultUpdateRate
		r.UpdateRate = &v
	}
	if r.FilterSeconds == 0 {
		r.FilterSeconds = DefaultFilterSeconds
	}
	if !(r.FilterSeconds > 0) || math.IsInf(r.FilterSeconds, 0) {
		return fmt.Errorf("rotation.filter_seconds must be > 0")
	}
	if r.MaxSlewRate == 0 {
		r.MaxSlewRate = DefaultMaxSlewRate
	}
	if !(r.MaxSlewRate > 0 && r.MaxSlewRate <= 180) {
		return fmt.Errorf("rotation.max_slew_rate must be within (0,180]")
	}
	if !(r.RotationOffset >= -360 && r.RotationOffset <= 360) {
		return fmt.Errorf("rotation.rotation_offset must be within [-360,360]")
	}

	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	switch cfg.Log.Level {
	case "":
		cfg.Log.Level = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	if cfg.Log.MaxSizeMB <= 0 {
		cfg.Log.MaxSizeMB = 16
	}
	if cfg.Log.MaxBackups <= 0 {
		cfg.Log.MaxBackups = 3
	}

	if strings.TrimSpace(cfg.Web.Listen) == "" {
		cfg.Web.Listen = "127.0.0.1:8090"
	}

	cfg.NMEA.Source = strings.ToLower(strings.TrimSpace(cfg.NMEA.Source))
	switch cfg.NMEA.Source {
	case "":
		cfg.NMEA.Source = "none"
	case "serial":
		if strings.TrimSpace(cfg.NMEA.Device) == "" {
			return fmt.Errorf("nmea.device is required when nmea.source is serial")
		}
		if cfg.NMEA.Baud == 0 {
			cfg.NMEA.Baud = 4800
		}
	case "udp":
		if strings.TrimSpace(cfg.NMEA.UDPListen) == "" {
			cfg.NMEA.UDPListen = ":10110"
		}
	case "tcp":
		if strings.TrimSpace(cfg.NMEA.TCPAddr) == "" {
			return fmt.Errorf("nmea.tcp_addr is required when nmea.source is tcp")
		}
	case "replay":
		if strings.TrimSpace(cfg.NMEA.ReplayFile) == "" {
			return fmt.Errorf("nmea.replay_file is required when nmea.source is replay")
		}
		if cfg.NMEA.ReplaySpeed == 0 {
			cfg.NMEA.ReplaySpeed = 1
		}
		if cfg.NMEA.ReplaySpeed < 0 {
			return fmt.Errorf("nmea.replay_speed must be > 0")
		}
	case "sim", "none":
	default:
		return fmt.Errorf("nmea.source must be one of serial, udp, tcp, sim, replay, none")
	}

	// Simulator defaults (safe even if unused).
	if cfg.Sim.RadiusNm <= 0 {
		cfg.Sim.RadiusNm = 0.5
	}
	if cfg.Sim.Period <= 0 {
		cfg.Sim.Period = 10 * time.Minute
	}
	if cfg.Sim.Interval <= 0 {
		cfg.Sim.Interval = time.Second
	}
	if cfg.Sim.WindKt <= 0 {
		cfg.Sim.WindKt = 12
	}

	seen := make(map[string]struct{}, len(cfg.Waypoints))
	for i, wp := range cfg.Waypoints {
		guid := strings.TrimSpace(wp.GUID)
		if guid == "" {
			return fmt.Errorf("waypoints[%d].guid is required", i)
		}
		if _, dup := seen[guid]; dup {
			return fmt.Errorf("waypoints[%d].guid %q is duplicated", i, guid)
		}
		seen[guid] = struct{}{}
		if wp.LatDeg < -90 || wp.LatDeg > 90 || wp.LonDeg < -180 || wp.LonDeg > 180 {
			return fmt.Errorf("waypoints[%d] position out of range", i)
		}
		cfg.Waypoints[i].GUID = guid
	}

	if cfg.Buttons.Enable {
		if strings.TrimSpace(cfg.Buttons.Chip) == "" {
			cfg.Buttons.Chip = "gpiochip0"
		}
		if len(cfg.Buttons.Lines) == 0 {
			return fmt.Errorf("buttons.lines is required when buttons.enable is true")
		}
		for name, line := range cfg.Buttons.Lines {
			if _, err := rotation.ParseMode(name); err != nil {
				return fmt.Errorf("buttons.lines: %w", err)
			}
			if line < 0 {
				return fmt.Errorf("buttons.lines.%s must be >= 0", name)
			}
		}
		if cfg.Buttons.Debounce <= 0 {
			cfg.Buttons.Debounce = 20 * time.Millisecond
		}
	}

	if cfg.Telemetry.Enable {
		if strings.TrimSpace(cfg.Telemetry.URL) == "" {
			return fmt.Errorf("telemetry.url is required when telemetry.enable is true")
		}
		if strings.TrimSpace(cfg.Telemetry.Bucket) == "" {
			return fmt.Errorf("telemetry.bucket is required when telemetry.enable is true")
		}
	}
	return nil
}

// Settings converts the rotation section into controller settings. Call
// DefaultAndValidate first.
func (r RotationConfig) Settings() rotation.Settings {
	rate := DefaultUpdateRate
	if r.UpdateRate != nil {
		rate = *r.UpdateRate
	}
	vis := func(p *bool) bool { return p != nil && *p }
	return rotation.Settings{
		UpdateInterval:    time.Duration(rate * float64(time.Second)),
		FilterCoefficient: filter.Coefficient(r.FilterSeconds),
		MaxSlewRate:       r.MaxSlewRate,
		RotationOffset:    r.RotationOffset,
		Visible: map[rotation.Mode]bool{
			rotation.ManualRotateCCW: vis(r.ManualRotate),
			rotation.ManualRotateCW:  vis(r.ManualRotate),
			rotation.ManualTiltUp:    vis(r.ManualTilt),
			rotation.ManualTiltDown:  vis(r.ManualTilt),
			rotation.NorthUp:         vis(r.NorthUp),
			rotation.SouthUp:         vis(r.SouthUp),
			rotation.CourseUp:        vis(r.CourseUp),
			rotation.HeadingUp:       vis(r.HeadingUp),
			rotation.RouteUp:         vis(r.RouteUp),
			rotation.WindUp:          vis(r.WindUp),
		},
	}
}
