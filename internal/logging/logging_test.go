package logging_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimode/mxverify/internal/logging"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log, err := logging.New(logging.Options{Level: "debug", JSON: true, Out: &buf})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log.WithField("k", "v").Debug("hello")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "v", line["k"])
}

func TestNew_BadLevel(t *testing.T) {
	_, err := logging.New(logging.Options{Level: "loud"})
	assert.Error(t, err)
}

func TestReportError(t *testing.T) {
	var buf bytes.Buffer
	log, err := logging.New(logging.Options{JSON: true, Out: &buf})
	require.NoError(t, err)

	logging.ReportError(log, "upload", errors.New("boom"), map[string]any{"job_id": "01J"})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "upload", line["error_type"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "01J", line["job_id"])
	assert.Equal(t, "error", line["level"])
}

func TestReportEvent(t *testing.T) {
	var buf bytes.Buffer
	log, err := logging.New(logging.Options{JSON: true, Out: &buf})
	require.NoError(t, err)

	logging.ReportEvent(log, "batch_done", map[string]any{"total": 3})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "batch_done", line["event_type"])
	assert.EqualValues(t, 3, line["total"])
}
