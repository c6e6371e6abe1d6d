package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"rotationctrl/internal/config"
	"rotationctrl/internal/logging"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./rotationctrl.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logBuf := logging.NewBuffer(2000)
	logger, closer, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Buffer:     logBuf,
	})
	if err != nil {
		log.Fatalf("logging init failed: %v", err)
	}
	defer closer.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(cfg, configPath, logger, logBuf)
	if err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	logger.Info("rotationctrl starting", "config", configPath, "source", cfg.NMEA.Source, "listen", cfg.Web.Listen)
	if err := a.Run(ctx); err != nil {
		logger.Error("rotationctrl stopped", "err", err)
		os.Exit(1)
	}
	logger.Info("rotationctrl stopping")
}
