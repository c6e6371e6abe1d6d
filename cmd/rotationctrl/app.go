package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"rotationctrl/internal/bus"
	"rotationctrl/internal/buttons"
	"rotationctrl/internal/config"
	"rotationctrl/internal/display"
	"rotationctrl/internal/logging"
	"rotationctrl/internal/metrics"
	"rotationctrl/internal/nmea"
	"rotationctrl/internal/replay"
	"rotationctrl/internal/rotation"
	"rotationctrl/internal/sim"
	"rotationctrl/internal/telemetry"
	"rotationctrl/internal/udp"
	"rotationctrl/internal/waypoint"
	"rotationctrl/internal/web"
)

// app owns every long-running component. Each one runs in the errgroup
// started by Run; the first failure cancels the rest.
type app struct {
	cfg        config.Config
	configPath string
	log        *slog.Logger

	bus       *bus.Bus
	waypoints *waypoint.Store
	hub       *web.Hub
	mirror    *udp.Broadcaster
	influx    *telemetry.Writer
	recorder  *replay.Writer
	collector *metrics.Collector
	loop      *rotation.Loop
	nmea      *nmea.Service
	buttons   *buttons.Service
	status    *web.Status
	logs      *logging.Buffer
}

func newApp(cfg config.Config, configPath string, logger *slog.Logger, logs *logging.Buffer) (*app, error) {
	a := &app{
		cfg:        cfg,
		configPath: configPath,
		log:        logger,
		bus:        bus.New(),
		waypoints:  waypoint.NewStore(cfg.Waypoints),
		hub:        web.NewHub(),
		logs:       logs,
	}

	displays := display.Multi{a.hub.Display()}
	if dest := strings.TrimSpace(cfg.UDP.Dest); dest != "" {
		m, err := udp.NewBroadcaster(dest, logger)
		if err != nil {
			return nil, fmt.Errorf("udp mirror: %w", err)
		}
		a.mirror = m
		displays = append(displays, m.Display())
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	collector, err := metrics.NewCollector(reg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("metrics: %w", err)
	}
	a.collector = collector
	observers := []rotation.Observer{collector}

	if cfg.Telemetry.Enable {
		host, _ := os.Hostname()
		w, err := telemetry.New(telemetry.Config{
			URL:    cfg.Telemetry.URL,
			Token:  cfg.Telemetry.Token,
			Org:    cfg.Telemetry.Org,
			Bucket: cfg.Telemetry.Bucket,
			Host:   host,
		}, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.influx = w
		observers = append(observers, w)
	}

	a.loop = rotation.NewLoop(rotation.Options{
		Settings:  cfg.Rotation.Settings(),
		Display:   displays,
		Waypoints: a.waypoints,
		Publisher: a.bus,
		Observers: observers,
		Logger:    logger,
	}, 0)

	if path := strings.TrimSpace(cfg.NMEA.Record); path != "" {
		w, err := replay.CreateWriter(path)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("nmea record: %w", err)
		}
		a.recorder = w
	}
	var tap func(string)
	if a.recorder != nil {
		tap = a.record
	}
	a.nmea = nmea.New(nmea.Config{
		Source:    cfg.NMEA.Source,
		Device:    cfg.NMEA.Device,
		Baud:      cfg.NMEA.Baud,
		UDPListen: cfg.NMEA.UDPListen,
		TCPAddr:   cfg.NMEA.TCPAddr,
		Tap:       tap,
	}, a.postEvent, logger)

	if cfg.Buttons.Enable {
		lines := make(map[rotation.Mode]int, len(cfg.Buttons.Lines))
		for name, line := range cfg.Buttons.Lines {
			m, err := rotation.ParseMode(name)
			if err != nil {
				a.Close()
				return nil, fmt.Errorf("buttons: %w", err)
			}
			lines[m] = line
		}
		a.buttons = buttons.New(buttons.Config{
			Chip:      cfg.Buttons.Chip,
			Lines:     lines,
			ActiveLow: cfg.Buttons.ActiveLow,
			Debounce:  cfg.Buttons.Debounce,
		}, func(ev rotation.ToolEvent) { a.postEvent(ev) }, logger)
	}

	a.status = web.NewStatus()
	a.status.SetController(a.loop.Status)
	a.status.SetNMEA(a.nmea.Snapshot)
	a.status.SetClients(a.hub.Clients)
	a.status.SetSource(cfg.NMEA.Source)
	return a, nil
}

// postEvent blocks while the controller queue is full and gives up once the
// loop has stopped.
func (a *app) postEvent(ev rotation.Event) {
	if err := a.loop.Post(context.Background(), ev); err != nil && !errors.Is(err, rotation.ErrLoopStopped) {
		a.log.Warn("event dropped", "event", fmt.Sprintf("%T", ev), "err", err)
	}
}

func (a *app) record(line string) {
	if err := a.recorder.WriteLine(time.Now(), line); err != nil {
		a.log.Debug("nmea record failed", "err", err)
	}
}

func (a *app) applyConfig(ctx context.Context, cfg config.Config) error {
	for _, w := range cfg.Warnings {
		a.log.Warn("config value replaced", "warning", w)
	}
	return a.loop.Post(ctx, rotation.SettingsChanged{Settings: cfg.Rotation.Settings(), Warnings: cfg.Warnings})
}

// forwardBus hands every bus message to the controller.
func (a *app) forwardBus(ctx context.Context) error {
	id, ch := a.bus.Subscribe(64)
	defer a.bus.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := a.loop.Post(ctx, rotation.MessageReceived{Message: msg}); err != nil {
				return nil
			}
		}
	}
}

func (a *app) runSource(ctx context.Context) error {
	switch a.cfg.NMEA.Source {
	case "sim":
		v := sim.Vessel{
			CenterLatDeg: a.cfg.Sim.CenterLatDeg,
			CenterLonDeg: a.cfg.Sim.CenterLonDeg,
			RadiusNm:     a.cfg.Sim.RadiusNm,
			Period:       a.cfg.Sim.Period,
			WindFromDeg:  a.cfg.Sim.WindFromDeg,
			WindKt:       a.cfg.Sim.WindKt,
			VariationDeg: a.cfg.Sim.VariationDeg,
		}
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return v.Run(ctx, a.cfg.Sim.Interval, a.nmea.HandleLine) })
		g.Go(func() error { return sim.AnswerVariation(ctx, a.bus, v.VariationDeg) })
		return g.Wait()
	case "replay":
		recs, err := replay.ReadFile(a.cfg.NMEA.ReplayFile)
		if err != nil {
			return fmt.Errorf("nmea replay: %w", err)
		}
		a.log.Info("replaying nmea log", "file", a.cfg.NMEA.ReplayFile, "records", len(recs), "speed", a.cfg.NMEA.ReplaySpeed)
		return replay.Play(ctx, recs, a.cfg.NMEA.ReplaySpeed, a.cfg.NMEA.ReplayLoop, nil, a.nmea.HandleLine)
	default:
		return nil
	}
}

func (a *app) webDeps(ctx context.Context) web.Deps {
	return web.Deps{
		Status:    a.status,
		Events:    a.loop,
		Bus:       a.bus,
		Waypoints: a.waypoints,
		Settings: web.SettingsStore{
			ConfigPath: a.configPath,
			Apply:      func(cfg config.Config) error { return a.applyConfig(ctx, cfg) },
		},
		Logs:     a.logs,
		Hub:      a.hub,
		Gatherer: a.collector.Gatherer(),
		Logger:   a.log,
	}
}

func (a *app) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.loop.Run(ctx) })
	g.Go(func() error { return a.forwardBus(ctx) })
	g.Go(func() error { return a.nmea.Run(ctx) })
	g.Go(func() error { return a.runSource(ctx) })
	if a.buttons != nil {
		g.Go(func() error { return a.buttons.Run(ctx) })
	}
	g.Go(func() error { return web.Serve(ctx, a.cfg.Web.Listen, web.Handler(a.webDeps(ctx))) })

	// Startup warnings (an invalid update period, for one) reach the operator
	// the same way as warnings raised by a settings change.
	if len(a.cfg.Warnings) > 0 {
		if err := a.applyConfig(ctx, a.cfg); err != nil {
			a.log.Warn("startup warnings not delivered", "err", err)
		}
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *app) Close() {
	if a.recorder != nil {
		_ = a.recorder.Close()
	}
	if a.influx != nil {
		a.influx.Close()
	}
	if a.mirror != nil {
		_ = a.mirror.Close()
	}
}
