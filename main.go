package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"venueflow/config"
	"venueflow/internal/manager"
	"venueflow/logger"
	"venueflow/writer"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Venueflow.Name,
		"version": cfg.Venueflow.Version,
	}).Info("starting venueflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace, cfg.Logging.DashboardName)
	}
	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, cfg.Manager.Report.Interval)
	}

	m := manager.New(cfg, log)

	var archive *writer.Archive
	if cfg.Storage.S3.Enabled {
		archive, err = writer.NewArchive(cfg)
		if err != nil {
			log.WithError(err).Error("failed to create archive")
			os.Exit(1)
		}
		if err := archive.Start(ctx); err != nil {
			log.WithError(err).Error("failed to start archive")
			os.Exit(1)
		}
		m.SetArchiver(archive)
	} else {
		log.WithComponent("main").Info("S3 storage disabled; skipping archive")
	}

	if err := m.Initialize(ctx); err != nil {
		log.WithError(err).Error("failed to initialize venue manager")
		os.Exit(1)
	}

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := m.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("manager shutdown reported an error")
	}

	if archive != nil {
		log.Info("stopping archive")
		archive.Stop()
	}

	log.Info("venueflow stopped")
}
