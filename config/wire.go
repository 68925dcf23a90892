package config

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/optimode/mxverify"
	"github.com/optimode/mxverify/cache"
)

// OpenCache returns the Redis store when RedisURL is set and the in-memory
// store otherwise. The returned close func is never nil.
func (c Config) OpenCache(ctx context.Context, log logrus.FieldLogger) (cache.Store, func() error, error) {
	if c.RedisURL == "" {
		log.Info("using in-memory result cache")
		return cache.NewMemory(), func() error { return nil }, nil
	}
	r, err := cache.NewRedis(ctx, c.RedisURL, "mxverify:")
	if err != nil {
		return nil, nil, err
	}
	log.WithField("redis", c.MaskedRedisURL()).Info("connected to redis result cache")
	return r, r.Close, nil
}

// Validator builds a validator from the configuration.
func (c Config) Validator(store cache.Store, log logrus.FieldLogger) *mxverify.Validator {
	return mxverify.New().
		WithLogger(log).
		WithDNS(mxverify.DNSOptions{
			Timeout:     c.DNSTimeout,
			Nameservers: c.DNSNameservers,
			Retries:     c.DNSRetries,
		}).
		WithSMTP(mxverify.SMTPOptions{
			HeloDomain:      c.HeloDomain,
			MailFrom:        c.MailFrom,
			AttemptTimeout:  c.SMTPTimeout,
			Port:            c.SMTPPort,
			Mode:            c.SMTPMode,
			MaxConnsPerHost: c.MaxConnsPerHost,
		}).
		WithCache(store, mxverify.CacheOptions{
			TTL:      c.CacheTTL,
			FoldCase: c.CacheFoldCase,
		})
}

// Batch returns the batch tuning knobs.
func (c Config) Batch() mxverify.BatchOptions {
	return mxverify.BatchOptions{
		ChunkSize:     c.ChunkSize,
		ChunksPerWave: c.ChunksPerWave,
		MaxInFlight:   c.MaxInFlight,
	}
}
