// SPDX-FileCopyrightText: 2026 The Ryzenmon Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"syscall"

	"github.com/alecthomas/kingpin/v2"

	"github.com/pvetools/ryzenmon/internal/config"
	"github.com/pvetools/ryzenmon/internal/exporter/influx"
	"github.com/pvetools/ryzenmon/internal/exporter/prometheus"
	"github.com/pvetools/ryzenmon/internal/logger"
	"github.com/pvetools/ryzenmon/internal/monitor"
	"github.com/pvetools/ryzenmon/internal/server"
	"github.com/pvetools/ryzenmon/internal/service"
	"github.com/pvetools/ryzenmon/internal/version"
)

func main() {
	cfg, err := parseArgsAndConfig()
	if err != nil {
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	logVersionInfo(log)
	printConfigInfo(log, cfg)

	services := createServices(log, cfg)
	if err := service.Init(log, services); err != nil {
		log.Error("Initialization failed", "error", err)
		os.Exit(1)
	}

	log.Info("Starting ryzenmon")
	if err := service.Run(context.Background(), log, services); err != nil {
		log.Error("Ryzenmon terminated with an error", "error", err)
		os.Exit(1)
	}
	log.Info("Graceful shutdown completed")
}

func parseArgsAndConfig() (*config.Config, error) {
	const appName = "ryzenmon"
	app := kingpin.New(appName, "AMD RAPL power monitor publishing to InfluxDB.")

	configFile := app.Flag("config.file", "Path to YAML configuration file").
		Default(config.DefaultPath).String()
	updateConfig := config.RegisterFlags(app)
	kingpin.MustParse(app.Parse(os.Args[1:]))

	log := logger.New("info", "text", os.Stderr)

	if _, err := os.Stat(*configFile); os.IsNotExist(err) {
		// first run: write a template and make the operator fill it in
		if writeErr := config.WriteTemplate(*configFile); writeErr != nil {
			log.Error("Error writing config template", "path", *configFile, "error", writeErr)
			return nil, writeErr
		}
		log.Error("No configuration found; a template was written, edit it and restart",
			"path", *configFile)
		return nil, fmt.Errorf("missing configuration file %s", *configFile)
	}

	log.Info("Loading configuration file", "path", *configFile)
	cfg, err := config.FromFile(*configFile)
	if err != nil {
		log.Error("Error loading config file", "error", err.Error())
		return nil, err
	}

	// command line flags override config file settings
	if err := updateConfig(cfg); err != nil {
		log.Error("Error applying command line flags", "error", err.Error())
		return nil, err
	}

	return cfg, nil
}

func logVersionInfo(log *slog.Logger) {
	v := version.Info()
	log.Info("Ryzenmon version information",
		"version", v.Version,
		"buildTime", v.BuildTime,
		"gitBranch", v.GitBranch,
		"gitCommit", v.GitCommit,
		"goVersion", v.GoVersion,
		"goOS", v.GoOS,
		"goArch", v.GoArch,
	)
}

func printConfigInfo(log *slog.Logger, cfg *config.Config) {
	if !log.Enabled(context.Background(), slog.LevelInfo) || cfg.Log.Format == "json" {
		return
	}

	fmt.Printf(`
Configuration
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
%s
━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
`, cfg)
}

func createServices(log *slog.Logger, cfg *config.Config) []service.Service {
	log.Debug("Creating all services")

	sampler := monitor.NewSampler(
		monitor.WithLogger(log),
		monitor.WithMSRPath(cfg.Monitor.MSRPath),
		monitor.WithWindow(cfg.Monitor.Window.Duration()),
		monitor.WithReadConcurrency(cfg.Monitor.ReadConcurrency),
	)
	publisher := influx.NewPublisher(cfg.Influx, influx.WithLogger(log))
	pm := monitor.NewPowerMonitor(
		sampler,
		publisher,
		monitor.WithLogger(log),
		monitor.WithSysfsPath(cfg.Monitor.Sysfs),
		monitor.WithInterval(cfg.Monitor.Interval.Duration()),
	)

	apiServer := server.NewAPIServer(
		server.WithLogger(log),
		server.WithListen(cfg.Web.ListenAddresses, cfg.Web.ConfigFile),
	)
	promExporter := prometheus.NewExporter(pm, apiServer, prometheus.WithLogger(log))
	health := server.NewHealthService(apiServer, pm, log)

	services := []service.Service{
		publisher,
		pm,
		promExporter,
		health,
		apiServer,
		service.NewSignalHandler(os.Interrupt, syscall.SIGTERM),
	}

	if cfg.Web.Pprof {
		services = append(services, server.NewPprof(apiServer))
	}

	return services
}
