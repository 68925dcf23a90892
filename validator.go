package mxverify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/optimode/mxverify/cache"
	"github.com/optimode/mxverify/check"
	"github.com/optimode/mxverify/internal/metrics"
	"github.com/optimode/mxverify/internal/parse"
	"github.com/optimode/mxverify/internal/providers"
	"github.com/optimode/mxverify/types"
)

// DialFunc opens the TCP connection to a mail exchanger.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Validator is the main builder struct.
// Instantiate with the New() function.
type Validator struct {
	dnsOpts   DNSOptions
	smtpOpts  SMTPOptions
	cacheOpts CacheOptions

	lookup check.MXLookuper
	dial   DialFunc
	store  cache.Store
	known  providers.Set
	log    logrus.FieldLogger
	err    error // configuration error, returned on Validate()

	resolver *check.MXResolver
	prober   *check.SMTPProber
}

// New creates a Validator with the default pipeline: system resolver,
// strict SMTP probe on port 25 and an in-memory cache.
func New() *Validator {
	l := logrus.New()
	l.Out = io.Discard

	v := &Validator{
		dnsOpts:   defaultDNSOptions(),
		smtpOpts:  defaultSMTPOptions(),
		cacheOpts: defaultCacheOptions(),
		store:     cache.NewMemory(),
		known:     providers.Default,
		log:       l,
	}
	v.build()
	return v
}

// WithDNS overrides the default DNSOptions.
func (v *Validator) WithDNS(opts DNSOptions) *Validator {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultDNSOptions().Timeout
	}
	v.dnsOpts = opts
	v.build()
	return v
}

// WithResolver replaces the MX lookup backend.
func (v *Validator) WithResolver(lookup check.MXLookuper) *Validator {
	v.lookup = lookup
	v.build()
	return v
}

// WithSMTP overrides the default SMTPOptions.
// SMTPOptions.HeloDomain and MailFrom are required.
func (v *Validator) WithSMTP(opts SMTPOptions) *Validator {
	if opts.HeloDomain == "" || opts.MailFrom == "" {
		v.err = ErrInvalidSMTPOptions
		return v
	}
	// Apply defaults for unset values
	def := defaultSMTPOptions()
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = def.AttemptTimeout
	}
	if opts.Port == "" {
		opts.Port = def.Port
	}
	v.smtpOpts = opts
	v.err = nil
	v.build()
	return v
}

// WithDialer replaces the TCP dialer used by the SMTP probe.
func (v *Validator) WithDialer(dial DialFunc) *Validator {
	v.dial = dial
	v.build()
	return v
}

// WithCache replaces the in-memory result cache. Optionally overrides the
// default CacheOptions.
func (v *Validator) WithCache(store cache.Store, opts ...CacheOptions) *Validator {
	if store != nil {
		v.store = store
	}
	if len(opts) > 0 {
		o := opts[0]
		if o.TTL <= 0 {
			o.TTL = defaultCacheOptions().TTL
		}
		v.cacheOpts = o
	}
	return v
}

// WithKnownProviders replaces the embedded list of large providers whose
// domains are accepted without an SMTP probe.
func (v *Validator) WithKnownProviders(domains ...string) *Validator {
	v.known = providers.New(domains...)
	return v
}

// WithLogger sets the logger. The default discards everything.
func (v *Validator) WithLogger(log logrus.FieldLogger) *Validator {
	if log != nil {
		v.log = log
		v.build()
	}
	return v
}

// build (re)creates the resolver and prober from the current options.
func (v *Validator) build() {
	lookup := v.lookup
	if lookup == nil && len(v.dnsOpts.Nameservers) > 0 {
		lookup = check.NewNameserverLookup(v.dnsOpts.Nameservers, v.dnsOpts.Timeout, v.dnsOpts.Retries)
	}
	v.resolver = check.NewMXResolver(check.DNSConfig{Timeout: v.dnsOpts.Timeout}, lookup)

	var dial func(ctx context.Context, network, address string) (net.Conn, error)
	if v.dial != nil {
		dial = v.dial
	}
	v.prober = check.NewSMTPProber(check.SMTPConfig{
		HeloDomain:      v.smtpOpts.HeloDomain,
		MailFrom:        v.smtpOpts.MailFrom,
		Port:            v.smtpOpts.Port,
		AttemptTimeout:  v.smtpOpts.AttemptTimeout,
		Mode:            v.smtpOpts.Mode,
		MaxConnsPerHost: v.smtpOpts.MaxConnsPerHost,
	}, dial, v.log)
}

// Validate runs the pipeline on email: syntax, length and character checks,
// then the cache, MX resolution, the known-provider shortcut and the SMTP
// probe. Every verdict, valid or not, is returned as a Result; the error is
// reserved for infrastructure failures (ErrCacheUnavailable) and context
// cancellation.
func (v *Validator) Validate(ctx context.Context, email string) (Result, error) {
	if v.err != nil {
		return Result{}, v.err
	}

	res, err := v.validate(ctx, email)
	if err != nil {
		return Result{}, err
	}
	metrics.Validations.WithLabelValues(res.Code).Inc()
	v.log.WithFields(logrus.Fields{
		"email": email,
		"valid": res.Valid,
		"code":  res.Code,
	}).Debug("validation finished")
	return res, nil
}

func (v *Validator) validate(ctx context.Context, email string) (res Result, err error) {
	res = Result{Email: email}

	// Local checks never touch the cache or the network.
	flags, reason, ok := check.ValidateFormat(email)
	res.Checks = flags
	if !ok {
		res.Reason = reason
		res.Code = types.CodeInvalidFormat
		return res, nil
	}

	defer func() {
		if r := recover(); r != nil {
			res = unexpected(res, fmt.Errorf("%v", r))
			err = nil
		}
	}()

	key := cache.Key(email, v.cacheOpts.FoldCase)
	cached, found, err := v.store.Get(ctx, key)
	if err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	if found {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		cached.Email = email
		return cached, nil
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	addr := parse.Split(email)
	hosts, err := v.resolver.ResolveMX(ctx, addr.ASCIIDomain)
	if err != nil {
		if !errors.Is(err, check.ErrNoMXRecords) {
			// Same as a recovered panic: reported, never cached.
			return unexpected(res, err), nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		res.Checks.Domain = check.DomainExists(err)
		res.Reason = types.ReasonNoMXRecords
		res.Code = types.CodeNoMXRecords
		return v.remember(ctx, key, res)
	}
	res.Checks.Domain = true
	res.Checks.MX = true

	if v.isKnownProvider(addr.Domain) {
		res.Valid = true
		res.Reason = types.ReasonKnownProvider
		res.Code = types.CodeKnownProvider
		return v.remember(ctx, key, res)
	}

	out := v.prober.Probe(ctx, email, hosts)
	// A probe cut short by cancellation is not a verdict.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}
	res.Valid = out.Valid
	res.Checks.SMTP = out.Valid
	res.Reason = out.Reason
	res.Code = out.Code
	res.MXHost = out.MXHost
	res.SMTPCode = out.SMTPCode
	return v.remember(ctx, key, res)
}

// remember stores res under key and returns it.
func (v *Validator) remember(ctx context.Context, key string, res Result) (Result, error) {
	if err := v.store.Set(ctx, key, res, v.cacheOpts.TTL); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return res, nil
}

func (v *Validator) isKnownProvider(domain string) bool {
	if v.cacheOpts.FoldCase {
		domain = strings.ToLower(domain)
	}
	return v.known.IsKnown(domain)
}

// unexpected turns a stage failure that has no verdict into an invalid
// result carrying the error text. Both callers, the resolver error branch
// and the deferred recover in validate, return it without remember so a
// transient fault is retried on the next call.
func unexpected(res Result, err error) Result {
	res.Valid = false
	res.Reason = err.Error()
	res.Code = types.CodeUnexpectedError
	return res
}
