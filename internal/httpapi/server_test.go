package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimode/mxverify"
	"github.com/optimode/mxverify/internal/httpapi"
	"github.com/optimode/mxverify/internal/jobs"
	"github.com/optimode/mxverify/types"
)

// providerDNS resolves the known providers and nothing else.
type providerDNS struct{}

func (providerDNS) LookupMX(_ context.Context, name string) ([]*net.MX, error) {
	switch name {
	case "gmail.com", "outlook.com":
		return []*net.MX{{Host: "mx." + name + ".", Pref: 10}}, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (types.ValidationResult, bool, error) {
	return types.ValidationResult{}, false, errors.New("redis: connection refused")
}

func (brokenStore) Set(context.Context, string, types.ValidationResult, time.Duration) error {
	return errors.New("redis: connection refused")
}

func newApp(t *testing.T, maxUpload int) (*fiber.App, *jobs.Registry) {
	t.Helper()
	reg := jobs.NewRegistry(4)
	app := httpapi.New(httpapi.Options{
		Validator:      mxverify.New().WithResolver(providerDNS{}),
		Jobs:           reg,
		MaxUploadBytes: maxUpload,
	})
	return app, reg
}

func uploadRequest(t *testing.T, target, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "emails.txt")
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestHealth(t *testing.T) {
	app, _ := newApp(t, 0)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "running", body["status"])
}

func TestValidateEmail(t *testing.T) {
	app, _ := newApp(t, 0)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantValid  bool
		wantReason string
	}{
		{"known provider", `{"email":"user@gmail.com"}`, http.StatusOK, true, "Valid domain and MX records"},
		{"bad format", `{"email":"not-an-email"}`, http.StatusOK, false, "Invalid email format"},
		{"unknown domain", `{"email":"user@nowhere.example"}`, http.StatusOK, false, "No MX records found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/validate-email", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var res types.ValidationResult
			decode(t, resp, &res)
			assert.Equal(t, tt.wantValid, res.Valid)
			assert.Equal(t, tt.wantReason, res.Reason)
		})
	}
}

func TestValidateEmail_Missing(t *testing.T) {
	app, _ := newApp(t, 0)
	req := httptest.NewRequest(http.MethodPost, "/api/validate-email", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "Email is required", body["error"])
}

func TestValidateEmail_CacheDown(t *testing.T) {
	app := httpapi.New(httpapi.Options{
		Validator: mxverify.New().WithResolver(providerDNS{}).WithCache(brokenStore{}),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/validate-email", strings.NewReader(`{"email":"user@gmail.com"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestUpload_Sync(t *testing.T) {
	app, reg := newApp(t, 0)

	resp, err := app.Test(uploadRequest(t, "/api/upload", "a@gmail.com\n\n  not-an-email \nb@outlook.com\nc@nowhere.example\n"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		ID           string  `json:"id"`
		TotalCount   int     `json:"totalCount"`
		ValidCount   int     `json:"validCount"`
		InvalidCount int     `json:"invalidCount"`
		Elapsed      float64 `json:"timeElapsedSeconds"`
	}
	decode(t, resp, &body)
	assert.Equal(t, 4, body.TotalCount)
	assert.Equal(t, 2, body.ValidCount)
	assert.Equal(t, 2, body.InvalidCount)

	_, ok := reg.Get(body.ID)
	require.True(t, ok)

	// Job status
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/jobs/"+body.ID, nil))
	require.NoError(t, err)
	var snap jobs.Snapshot
	decode(t, resp, &snap)
	assert.Equal(t, jobs.StatusDone, snap.Status)
	assert.Equal(t, 100, snap.Progress)

	// Partition downloads
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/jobs/"+body.ID+"/valid.csv", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "valid.csv")
	csv := readBody(t, resp)
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "email,valid,reason,checks.syntax,checks.length,checks.characters,checks.domain,checks.mx,checks.smtp", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "a@gmail.com,true,"))
	assert.True(t, strings.HasPrefix(lines[2], "b@outlook.com,true,"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/jobs/"+body.ID+"/invalid.csv", nil))
	require.NoError(t, err)
	lines = strings.Split(strings.TrimSpace(readBody(t, resp)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "not-an-email,false,Invalid email format"))
	assert.True(t, strings.HasPrefix(lines[2], "c@nowhere.example,false,No MX records found"))

	// Combined download keeps upload order.
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/download", nil))
	require.NoError(t, err)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "validated_emails.csv")
	lines = strings.Split(strings.TrimSpace(readBody(t, resp)), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[1], "a@gmail.com,"))
	assert.True(t, strings.HasPrefix(lines[2], "not-an-email,"))
	assert.True(t, strings.HasPrefix(lines[3], "b@outlook.com,"))
	assert.True(t, strings.HasPrefix(lines[4], "c@nowhere.example,"))
}

func TestUpload_Async(t *testing.T) {
	app, reg := newApp(t, 0)

	resp, err := app.Test(uploadRequest(t, "/api/upload?async=1", "a@gmail.com\nb@gmail.com\n"))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body struct {
		ID string `json:"id"`
	}
	decode(t, resp, &body)

	job, ok := reg.Get(body.ID)
	require.True(t, ok)
	assert.Eventually(t, func() bool {
		return job.Snapshot().Status == jobs.StatusDone
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, job.Snapshot().ValidCount)
}

func TestUpload_Errors(t *testing.T) {
	app, _ := newApp(t, 64)

	// No file field
	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(""))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Only blank lines
	resp, err = app.Test(uploadRequest(t, "/api/upload", "\n   \n"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Over the size limit
	resp, err = app.Test(uploadRequest(t, "/api/upload", strings.Repeat("a@gmail.com\n", 10)))
	require.NoError(t, err)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestUpload_CacheDownFailsJob(t *testing.T) {
	reg := jobs.NewRegistry(1)
	app := httpapi.New(httpapi.Options{
		Validator: mxverify.New().WithResolver(providerDNS{}).WithCache(brokenStore{}),
		Jobs:      reg,
	})

	resp, err := app.Test(uploadRequest(t, "/api/upload", "a@gmail.com\n"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	job, ok := reg.Latest()
	require.True(t, ok)
	assert.Equal(t, jobs.StatusFailed, job.Snapshot().Status)
}

func TestJobs_NotFound(t *testing.T) {
	app, _ := newApp(t, 0)

	for _, path := range []string{"/api/jobs/nope", "/api/jobs/nope/valid.csv", "/api/jobs/nope/invalid.csv", "/api/download"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestJobs_NotFinished(t *testing.T) {
	app, reg := newApp(t, 0)
	job := reg.Create(1)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID()+"/valid.csv", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestProgress_RequiresUpgrade(t *testing.T) {
	app, reg := newApp(t, 0)
	job := reg.Create(1)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID()+"/progress", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestMetrics(t *testing.T) {
	app, _ := newApp(t, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/validate-email", strings.NewReader(`{"email":"not-an-email"}`))
	req.Header.Set("Content-Type", "application/json")
	_, err := app.Test(req)
	require.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `mxverify_validations_total{code="invalid_format"}`)
}
