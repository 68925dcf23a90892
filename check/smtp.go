package check

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/optimode/mxverify/internal/metrics"
	"github.com/optimode/mxverify/internal/smtpsession"
	"github.com/optimode/mxverify/types"
)

// ProbeMode selects how the SMTP dialogue is driven.
type ProbeMode int

const (
	// ProbeStrict reads every reply before sending the next command and
	// takes the verdict from the RCPT TO reply.
	ProbeStrict ProbeMode = iota
	// ProbePipelined writes all commands at once and accepts when the
	// transcript contains a 250 reply anywhere.
	ProbePipelined
)

func (m ProbeMode) String() string {
	if m == ProbePipelined {
		return "pipelined"
	}
	return "strict"
}

// ParseProbeMode maps "strict" and "pipelined" to a ProbeMode.
func ParseProbeMode(s string) (ProbeMode, error) {
	switch s {
	case "", "strict":
		return ProbeStrict, nil
	case "pipelined":
		return ProbePipelined, nil
	}
	return ProbeStrict, errors.New("unknown probe mode: " + s)
}

// SMTPConfig is the SMTP prober configuration.
type SMTPConfig struct {
	HeloDomain      string
	MailFrom        string
	Port            string
	AttemptTimeout  time.Duration // connect + exchange budget per mail exchanger
	Mode            ProbeMode
	MaxConnsPerHost int // simultaneous sessions per mail exchanger, 0 = unlimited
}

// DefaultSMTPConfig returns the probe defaults.
func DefaultSMTPConfig() SMTPConfig {
	return SMTPConfig{
		HeloDomain:     "example.com",
		MailFrom:       "verify@example.com",
		Port:           "25",
		AttemptTimeout: 10 * time.Second,
		Mode:           ProbeStrict,
	}
}

// ProbeOutcome is the verdict of a probe over the whole MX sequence.
type ProbeOutcome struct {
	Valid    bool
	Code     types.ReasonCode
	Reason   string
	MXHost   string // exchanger that produced the verdict
	SMTPCode int
	Attempts int // exchangers contacted, including failed connects
}

// SMTPProber checks whether a mail exchanger would accept a recipient,
// trying the exchangers of a domain in priority order until one of them
// gives a verdict.
type SMTPProber struct {
	cfg  SMTPConfig
	dial smtpsession.Dialer
	gate *smtpsession.Gate
	log  logrus.FieldLogger
}

// NewSMTPProber creates a prober. A nil dial uses net.Dialer and a nil
// logger discards output.
func NewSMTPProber(cfg SMTPConfig, dial smtpsession.Dialer, log logrus.FieldLogger) *SMTPProber {
	def := DefaultSMTPConfig()
	if cfg.HeloDomain == "" {
		cfg.HeloDomain = def.HeloDomain
	}
	if cfg.MailFrom == "" {
		cfg.MailFrom = def.MailFrom
	}
	if cfg.Port == "" {
		cfg.Port = def.Port
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = def.AttemptTimeout
	}
	if dial == nil {
		dial = (&net.Dialer{}).DialContext
	}
	if log == nil {
		l := logrus.New()
		l.Out = io.Discard
		log = l
	}
	return &SMTPProber{
		cfg:  cfg,
		dial: dial,
		gate: smtpsession.NewGate(cfg.MaxConnsPerHost),
		log:  log,
	}
}

// Config returns the effective configuration.
func (p *SMTPProber) Config() SMTPConfig {
	return p.cfg
}

// Probe walks hosts in order. Connection failures, timeouts, temporary
// replies and protocol errors move on to the next host; they never reach
// the caller. Running out of hosts yields AllServersFailed.
func (p *SMTPProber) Probe(ctx context.Context, addr string, hosts []types.MXRecord) ProbeOutcome {
	out := ProbeOutcome{}

	for cursor := 0; ; cursor++ {
		if cursor >= len(hosts) || ctx.Err() != nil {
			out.Code = types.CodeAllServersFailed
			out.Reason = types.ReasonAllServersFailed
			p.log.WithFields(logrus.Fields{
				"email":    addr,
				"attempts": out.Attempts,
				"state":    smtpsession.ExhaustedHosts.String(),
			}).Debug("smtp probe exhausted all hosts")
			return out
		}

		host := hosts[cursor].Host
		out.Attempts++
		state, code := p.attempt(ctx, addr, host, out.Attempts)
		metrics.SMTPAttempts.WithLabelValues(state.String()).Inc()

		switch state {
		case smtpsession.Accepted:
			out.Valid = true
			out.Code = types.CodeAccepted
			out.Reason = types.ReasonAccepted
			out.MXHost = host
			out.SMTPCode = code
			return out
		case smtpsession.Rejected:
			out.Code = types.CodeRejected
			out.Reason = types.ReasonRejected
			out.MXHost = host
			out.SMTPCode = code
			return out
		}
	}
}

// attempt runs one connect + exchange against host and returns the state it
// ended in: Accepted, Rejected or NextHost, with the deciding reply code.
func (p *SMTPProber) attempt(ctx context.Context, addr, host string, n int) (smtpsession.State, int) {
	log := p.log.WithFields(logrus.Fields{
		"email":   addr,
		"mx_host": host,
		"attempt": n,
	})
	fail := func(state smtpsession.State, err error) (smtpsession.State, int) {
		log.WithError(err).WithField("state", state.String()).Debug("smtp attempt failed, trying next host")
		return smtpsession.NextHost, 0
	}

	// Waiting for a slot does not count against the attempt budget.
	release, err := p.gate.Acquire(ctx, host)
	if err != nil {
		return fail(smtpsession.Idle, err)
	}
	defer release()

	actx, cancel := context.WithTimeout(ctx, p.cfg.AttemptTimeout)
	defer cancel()

	conn, err := p.dial(actx, "tcp", net.JoinHostPort(host, p.cfg.Port))
	if err != nil {
		return fail(smtpsession.Connecting, err)
	}
	defer func() { _ = conn.Close() }()
	stop := context.AfterFunc(actx, func() { _ = conn.Close() })
	defer stop()

	if err := smtpsession.SetBudget(actx, conn, p.cfg.AttemptTimeout); err != nil {
		return fail(smtpsession.Connecting, err)
	}

	session := smtpsession.Config{HeloDomain: p.cfg.HeloDomain, MailFrom: p.cfg.MailFrom}

	if p.cfg.Mode == ProbePipelined {
		transcript, err := smtpsession.Pipelined(conn, session, addr)
		if err != nil {
			return fail(smtpsession.Exchanging, err)
		}
		if smtpsession.AcceptedTranscript(transcript) {
			log.WithField("state", smtpsession.Accepted.String()).Debug("smtp transcript accepted")
			return smtpsession.Accepted, 250
		}
		log.WithField("state", smtpsession.Rejected.String()).Debug("smtp transcript rejected")
		return smtpsession.Rejected, 0
	}

	reply, err := smtpsession.Exchange(conn, session, addr)
	if err != nil {
		var se *smtpsession.StageError
		if errors.As(err, &se) {
			return fail(smtpsession.FailedAt(se.Stage), err)
		}
		return fail(smtpsession.Exchanging, err)
	}

	// Evaluating
	switch {
	case reply.Class() == 2 && reply.Stage == smtpsession.StageRcptTo:
		log.WithFields(logrus.Fields{"state": smtpsession.Accepted.String(), "smtp_code": reply.Code}).Debug("recipient accepted")
		return smtpsession.Accepted, reply.Code
	case reply.Class() == 5:
		log.WithFields(logrus.Fields{"state": smtpsession.Rejected.String(), "smtp_code": reply.Code}).Debug("recipient rejected")
		return smtpsession.Rejected, reply.Code
	default:
		log.WithFields(logrus.Fields{"state": smtpsession.NextHost.String(), "smtp_code": reply.Code}).Debug("temporary reply, trying next host")
		return smtpsession.NextHost, reply.Code
	}
}
