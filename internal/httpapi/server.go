// Package httpapi exposes the validator over HTTP: single-address checks,
// list uploads processed as batch jobs, CSV downloads and a websocket
// progress stream.
package httpapi

import (
	"context"
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/optimode/mxverify"
	"github.com/optimode/mxverify/internal/jobs"
)

// DefaultMaxUploadBytes is the upload size limit.
const DefaultMaxUploadBytes = 10 << 20

// Options configures the server.
type Options struct {
	Validator      *mxverify.Validator
	Jobs           *jobs.Registry // default: a registry of jobs.DefaultLimit
	Batch          mxverify.BatchOptions
	MaxUploadBytes int
	AllowOrigins   string // CORS, default "*"
	Logger         logrus.FieldLogger
	// BaseContext is the parent of background batch jobs.
	BaseContext context.Context
}

// Server holds the handler dependencies.
type Server struct {
	v         *mxverify.Validator
	jobs      *jobs.Registry
	batch     mxverify.BatchOptions
	maxUpload int
	log       logrus.FieldLogger
	ctx       context.Context
}

// New builds the fiber app with every route registered.
func New(opts Options) *fiber.App {
	s := &Server{
		v:         opts.Validator,
		jobs:      opts.Jobs,
		batch:     opts.Batch,
		maxUpload: opts.MaxUploadBytes,
		log:       opts.Logger,
		ctx:       opts.BaseContext,
	}
	if s.v == nil {
		s.v = mxverify.New()
	}
	if s.jobs == nil {
		s.jobs = jobs.NewRegistry(jobs.DefaultLimit)
	}
	if s.maxUpload <= 0 {
		s.maxUpload = DefaultMaxUploadBytes
	}
	if s.log == nil {
		l := logrus.New()
		l.Out = io.Discard
		s.log = l
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}
	origins := opts.AllowOrigins
	if origins == "" {
		origins = "*"
	}

	app := fiber.New(fiber.Config{
		// Room for the multipart envelope around the file.
		BodyLimit:             s.maxUpload + 64<<10,
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{AllowOrigins: origins}))
	app.Use(s.requestLogger)

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")
	api.Post("/validate-email", s.ValidateEmail)
	api.Post("/upload", s.Upload)
	api.Get("/download", s.DownloadLatest)

	jobsGroup := api.Group("/jobs")
	jobsGroup.Get("/:id", s.GetJob)
	jobsGroup.Get("/:id/valid.csv", s.DownloadValid)
	jobsGroup.Get("/:id/invalid.csv", s.DownloadInvalid)
	jobsGroup.Use("/:id/progress", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	jobsGroup.Get("/:id/progress", websocket.New(s.Progress))

	return app
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) requestLogger(c *fiber.Ctx) error {
	err := c.Next()
	s.log.WithFields(logrus.Fields{
		"method": c.Method(),
		"path":   c.Path(),
		"status": c.Response().StatusCode(),
	}).Debug("request")
	return err
}
