// Command mxverifyd serves the address validator over HTTP.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/optimode/mxverify/config"
	"github.com/optimode/mxverify/internal/httpapi"
	"github.com/optimode/mxverify/internal/jobs"
	"github.com/optimode/mxverify/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	log, err := logging.New(logging.Options{
		Level:       cfg.LogLevel,
		JSON:        cfg.IsProduction(),
		SentryDSN:   cfg.SentryDSN,
		Environment: cfg.Environment,
	})
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialise logging")
	}
	defer logging.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := cfg.OpenCache(ctx, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open result cache")
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.WithError(err).Warn("closing result cache")
		}
	}()

	app := httpapi.New(httpapi.Options{
		Validator:      cfg.Validator(store, log),
		Jobs:           jobs.NewRegistry(jobs.DefaultLimit),
		Batch:          cfg.Batch(),
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         log,
		BaseContext:    ctx,
	})

	errc := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"port":     cfg.Port,
			"env":      cfg.Environment,
			"smtpMode": cfg.SMTPMode.String(),
		}).Info("server starting")
		errc <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errc:
		if err != nil {
			log.WithError(err).Error("server stopped")
		}
	case <-ctx.Done():
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.WithError(err).Error("shutdown")
		}
	}
}
