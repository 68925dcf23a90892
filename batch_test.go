package mxverify_test

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimode/mxverify"
	"github.com/optimode/mxverify/cache"
)

func TestValidateBatch_ConservationAndOrder(t *testing.T) {
	dns := &fakeDNS{records: map[string][]*net.MX{
		"gmail.com":    mx("gmail-smtp-in.l.google.com"),
		"yahoo.com":    mx("mta5.am0.yahoodns.net"),
		"nomx.example": {},
	}}
	v := newTestValidator(dns, &fakeDialer{}, cache.NewMemory())

	emails := []string{
		"a@gmail.com",
		"not-an-email",
		"b@yahoo.com",
		"c@nomx.example",
		"d@gmail.com",
		"bad@@example.com",
		"e@yahoo.com",
	}
	report, err := v.ValidateBatch(context.Background(), emails, mxverify.BatchOptions{ChunkSize: 2, ChunksPerWave: 1})
	require.NoError(t, err)

	assert.Equal(t, len(emails), report.Total)
	assert.Equal(t, report.Total, report.ValidCount+report.InvalidCount)
	assert.Equal(t, 4, report.ValidCount)
	assert.Equal(t, 3, report.InvalidCount)

	var valid, invalid []string
	for _, r := range report.Valid {
		valid = append(valid, r.Email)
	}
	for _, r := range report.Invalid {
		invalid = append(invalid, r.Email)
	}
	assert.Equal(t, []string{"a@gmail.com", "b@yahoo.com", "d@gmail.com", "e@yahoo.com"}, valid)
	assert.Equal(t, []string{"not-an-email", "c@nomx.example", "bad@@example.com"}, invalid)
	require.Len(t, report.Results, len(emails))
	for i, r := range report.Results {
		assert.Equal(t, emails[i], r.Email)
	}
	assert.Positive(t, report.Elapsed)
}

func TestValidateBatch_ProgressPerWave(t *testing.T) {
	dns := &fakeDNS{records: map[string][]*net.MX{}}
	v := newTestValidator(dns, &fakeDialer{}, cache.NewMemory())

	emails := make([]string, 9)
	for i := range emails {
		emails[i] = fmt.Sprintf("user%d@example.org", i)
	}

	var mu sync.Mutex
	var got []mxverify.Progress
	_, err := v.ValidateBatch(context.Background(), emails, mxverify.BatchOptions{
		ChunkSize:     2,
		ChunksPerWave: 2,
		Progress: func(p mxverify.Progress) {
			mu.Lock()
			got = append(got, p)
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, mxverify.Progress{Processed: 4, Total: 9, Percent: 44, Wave: 1, Waves: 3}, got[0])
	assert.Equal(t, mxverify.Progress{Processed: 8, Total: 9, Percent: 88, Wave: 2, Waves: 3}, got[1])
	assert.Equal(t, mxverify.Progress{Processed: 9, Total: 9, Percent: 100, Wave: 3, Waves: 3}, got[2])
}

func TestValidateBatch_MaxInFlight(t *testing.T) {
	dns := &fakeDNS{records: map[string][]*net.MX{}, delay: 20 * time.Millisecond}
	v := newTestValidator(dns, &fakeDialer{}, cache.NewMemory())

	emails := make([]string, 12)
	for i := range emails {
		// Distinct domains so the lookups are not collapsed.
		emails[i] = fmt.Sprintf("user@d%d.example", i)
	}
	report, err := v.ValidateBatch(context.Background(), emails, mxverify.BatchOptions{MaxInFlight: 3})
	require.NoError(t, err)
	assert.Equal(t, 12, report.InvalidCount)
	assert.LessOrEqual(t, dns.maxInflight.Load(), int64(3))
	assert.Equal(t, int64(12), dns.calls.Load())
}

func TestValidateBatch_CacheFailureAborts(t *testing.T) {
	v := newTestValidator(&fakeDNS{}, &fakeDialer{}, failingStore{})

	_, err := v.ValidateBatch(context.Background(), []string{"a@example.org", "b@example.org"})
	assert.ErrorIs(t, err, mxverify.ErrCacheUnavailable)
}

func TestValidateBatch_Empty(t *testing.T) {
	report, err := mxverify.New().ValidateBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Total)
	assert.Empty(t, report.Valid)
	assert.Empty(t, report.Invalid)
}

func TestReadAddresses(t *testing.T) {
	in := "  a@example.com \r\n\n\t\nb@example.com\nnot-an-email\n   \n"
	got, err := mxverify.ReadAddresses(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com", "not-an-email"}, got)

	_, err = mxverify.ReadAddresses(strings.NewReader("\n  \n"))
	assert.ErrorIs(t, err, mxverify.ErrEmptyInput)
}
