package mxverify

import (
	"time"

	"github.com/optimode/mxverify/cache"
	"github.com/optimode/mxverify/check"
)

// DNSOptions configures MX resolution.
type DNSOptions struct {
	// Timeout is the maximum time for MX lookup. Default: 5s
	Timeout time.Duration
	// Nameservers, when set, are queried directly ("host" or "host:port")
	// instead of the system resolver.
	Nameservers []string
	// Retries is how many extra rounds over Nameservers a failed query gets.
	Retries int
}

func defaultDNSOptions() DNSOptions {
	return DNSOptions{
		Timeout: 5 * time.Second,
	}
}

// ProbeMode selects how the SMTP dialogue is driven.
type ProbeMode = check.ProbeMode

// Probe modes re-exported.
const (
	ProbeStrict    = check.ProbeStrict
	ProbePipelined = check.ProbePipelined
)

// SMTPOptions configures the SMTP probe.
type SMTPOptions struct {
	// HeloDomain is the domain sent in the HELO command. Required, e.g. "myapp.com"
	HeloDomain string
	// MailFrom is the address sent in the MAIL FROM command. Required, e.g. "verify@myapp.com"
	MailFrom string
	// AttemptTimeout bounds connect + exchange per mail exchanger. Default: 10s
	AttemptTimeout time.Duration
	// Port is the SMTP port. Default: 25
	Port string
	// Mode is ProbeStrict (default) or ProbePipelined.
	Mode ProbeMode
	// MaxConnsPerHost is the max simultaneous sessions per MX host. Default: 0 (unlimited)
	MaxConnsPerHost int
}

func defaultSMTPOptions() SMTPOptions {
	def := check.DefaultSMTPConfig()
	return SMTPOptions{
		HeloDomain:     def.HeloDomain,
		MailFrom:       def.MailFrom,
		AttemptTimeout: def.AttemptTimeout,
		Port:           def.Port,
		Mode:           def.Mode,
	}
}

// CacheOptions configures the result cache.
type CacheOptions struct {
	// TTL is how long verdicts are kept. Default: 1h
	TTL time.Duration
	// FoldCase lower-cases cache keys and the provider comparison.
	// Default: false (exact address)
	FoldCase bool
}

func defaultCacheOptions() CacheOptions {
	return CacheOptions{TTL: cache.DefaultTTL}
}

// BatchOptions configures ValidateBatch.
type BatchOptions struct {
	// ChunkSize is the number of addresses per chunk. Default: 1000
	ChunkSize int
	// ChunksPerWave is how many chunks run before the next barrier. Default: 5
	ChunksPerWave int
	// MaxInFlight caps concurrent validations within a wave. Default: 500
	MaxInFlight int
	// Progress, if set, is called after every wave.
	Progress func(Progress)
}

func defaultBatchOptions() BatchOptions {
	return BatchOptions{
		ChunkSize:     1000,
		ChunksPerWave: 5,
		MaxInFlight:   500,
	}
}

func (o BatchOptions) withDefaults() BatchOptions {
	def := defaultBatchOptions()
	if o.ChunkSize <= 0 {
		o.ChunkSize = def.ChunkSize
	}
	if o.ChunksPerWave <= 0 {
		o.ChunksPerWave = def.ChunksPerWave
	}
	if o.MaxInFlight <= 0 {
		o.MaxInFlight = def.MaxInFlight
	}
	return o
}
