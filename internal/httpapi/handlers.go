package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/optimode/mxverify"
	"github.com/optimode/mxverify/export"
	"github.com/optimode/mxverify/internal/jobs"
	"github.com/optimode/mxverify/internal/logging"
)

var validate = validator.New()

type validateRequest struct {
	Email string `json:"email" validate:"required,max=1024"`
}

// validateStruct turns validator errors into one readable message.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	var msgs []string
	for _, e := range verrs {
		field := strings.ToLower(e.Field())
		switch e.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "max":
			msgs = append(msgs, field+" must be at most "+e.Param()+" characters")
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return errors.New(strings.Join(msgs, ", "))
}

// ValidateEmail handles POST /api/validate-email.
func (s *Server) ValidateEmail(c *fiber.Ctx) error {
	var req validateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request format",
		})
	}
	if err := validateStruct(req); err != nil {
		msg := err.Error()
		if req.Email == "" {
			msg = "Email is required"
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}

	result, err := s.v.Validate(c.UserContext(), req.Email)
	if err != nil {
		logging.ReportError(s.log, "validate_email", err, map[string]any{"email": req.Email})
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Validation unavailable",
		})
	}
	return c.JSON(result)
}

// Upload handles POST /api/upload. The multipart field "file" holds one
// address per line. With ?async=1 the job runs in the background and the
// response is 202 with the job id.
func (s *Server) Upload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No file uploaded",
		})
	}
	if fh.Size > int64(s.maxUpload) {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": fmt.Sprintf("File exceeds %d bytes", s.maxUpload),
		})
	}

	f, err := fh.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "cannot open upload")
	}
	defer func() { _ = f.Close() }()

	emails, err := mxverify.ReadAddresses(f)
	if errors.Is(err, mxverify.ErrEmptyInput) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No email addresses in file",
		})
	}
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	job := s.jobs.Create(len(emails))
	logging.ReportEvent(s.log, "batch_started", map[string]any{
		"job_id": job.ID(),
		"total":  len(emails),
	})

	if c.QueryBool("async") {
		go s.run(job, emails)
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"id":         job.ID(),
			"status":     jobs.StatusRunning,
			"totalCount": len(emails),
		})
	}

	s.run(job, emails)
	snap := job.Snapshot()
	if snap.Status == jobs.StatusFailed {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"id":    job.ID(),
			"error": snap.Error,
		})
	}
	return c.JSON(fiber.Map{
		"id":                 job.ID(),
		"totalCount":         snap.TotalCount,
		"validCount":         snap.ValidCount,
		"invalidCount":       snap.InvalidCount,
		"timeElapsedSeconds": snap.ElapsedSeconds,
	})
}

// run executes the batch for job and records the outcome.
func (s *Server) run(job *jobs.Job, emails []string) {
	opts := s.batch
	opts.Progress = job.Update

	job.Start()
	report, err := s.v.ValidateBatch(s.ctx, emails, opts)
	if err != nil {
		logging.ReportError(s.log, "batch", err, map[string]any{"job_id": job.ID()})
		job.Fail(err)
		return
	}
	job.Finish(report)
	logging.ReportEvent(s.log, "batch_finished", map[string]any{
		"job_id":       job.ID(),
		"total":        report.Total,
		"valid":        report.ValidCount,
		"invalid":      report.InvalidCount,
		"elapsed_secs": report.ElapsedSeconds(),
	})
}

// GetJob handles GET /api/jobs/:id.
func (s *Server) GetJob(c *fiber.Ctx) error {
	job, ok := s.jobs.Get(c.Params("id"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "job not found")
	}
	return c.JSON(job.Snapshot())
}

// DownloadValid handles GET /api/jobs/:id/valid.csv.
func (s *Server) DownloadValid(c *fiber.Ctx) error {
	return s.download(c, func(r mxverify.BatchReport) []mxverify.Result { return r.Valid }, "valid.csv")
}

// DownloadInvalid handles GET /api/jobs/:id/invalid.csv.
func (s *Server) DownloadInvalid(c *fiber.Ctx) error {
	return s.download(c, func(r mxverify.BatchReport) []mxverify.Result { return r.Invalid }, "invalid.csv")
}

func (s *Server) download(c *fiber.Ctx, pick func(mxverify.BatchReport) []mxverify.Result, name string) error {
	job, ok := s.jobs.Get(c.Params("id"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "job not found")
	}
	return sendReport(c, job, pick, name)
}

// DownloadLatest handles GET /api/download: every result of the most
// recent job, in upload order.
func (s *Server) DownloadLatest(c *fiber.Ctx) error {
	job, ok := s.jobs.Latest()
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "no results yet")
	}
	return sendReport(c, job, func(r mxverify.BatchReport) []mxverify.Result { return r.Results }, "validated_emails.csv")
}

func sendReport(c *fiber.Ctx, job *jobs.Job, pick func(mxverify.BatchReport) []mxverify.Result, name string) error {
	report, done := job.Report()
	if !done {
		return fiber.NewError(fiber.StatusConflict, "job not finished")
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, pick(report)); err != nil {
		return err
	}
	c.Attachment(name)
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	return c.Send(buf.Bytes())
}

// Progress streams job snapshots over a websocket until the job is done.
func (s *Server) Progress(c *websocket.Conn) {
	defer func() { _ = c.Close() }()

	job, ok := s.jobs.Get(c.Params("id"))
	if !ok {
		_ = c.WriteJSON(fiber.Map{"error": "job not found"})
		return
	}

	updates, cancel := job.Subscribe()
	defer cancel()
	for snap := range updates {
		if err := c.WriteJSON(snap); err != nil {
			s.log.WithError(err).WithField("job_id", job.ID()).Debug("progress stream closed")
			return
		}
	}
}
