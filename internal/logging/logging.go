// Package logging configures logrus and sentry for the binaries and offers
// the structured error/event helpers used by the HTTP layer.
package logging

import (
	"fmt"
	"io"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// Options configures New.
type Options struct {
	Level       string // logrus level name, default "info"
	JSON        bool
	SentryDSN   string // empty disables sentry
	Environment string
	Out         io.Writer
}

// New returns a configured logger. When SentryDSN is set the global sentry
// hub is initialised as well.
func New(opts Options) (*logrus.Logger, error) {
	log := logrus.New()
	if opts.Out != nil {
		log.SetOutput(opts.Out)
	}

	level := logrus.InfoLevel
	if opts.Level != "" {
		l, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		level = l
	}
	log.SetLevel(level)

	if opts.JSON {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if opts.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         opts.SentryDSN,
			Environment: opts.Environment,
		}); err != nil {
			return nil, fmt.Errorf("sentry init: %w", err)
		}
	}
	return log, nil
}

// Flush waits for buffered sentry events to be sent.
func Flush() {
	sentry.Flush(2 * time.Second)
}

// ReportError logs err with its context and sends it to sentry.
func ReportError(log logrus.FieldLogger, errorType string, err error, fields map[string]any) {
	entry := log.WithFields(logrus.Fields{
		"error_type": errorType,
		"error":      err.Error(),
	})
	for k, v := range fields {
		entry = entry.WithField(k, v)
	}
	entry.Error("Error occurred")

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_type", errorType)
		for k, v := range fields {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(err)
	})
}

// ReportEvent logs an event and records it as a sentry breadcrumb.
func ReportEvent(log logrus.FieldLogger, eventType string, data map[string]any) {
	entry := log.WithField("event_type", eventType)
	for k, v := range data {
		entry = entry.WithField(k, v)
	}
	entry.Info("Event occurred")

	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Type:      "info",
		Category:  eventType,
		Data:      data,
		Timestamp: time.Now(),
	})
}
