// Package smtpsession speaks the client side of a single SMTP verification
// exchange over an established connection: greeting, HELO, MAIL FROM and
// RCPT TO, without ever sending DATA.
package smtpsession

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

// Dialer opens the TCP connection to a mail exchanger. It is injectable for
// testing; *net.Dialer's DialContext satisfies it.
type Dialer func(ctx context.Context, network, address string) (net.Conn, error)

// Config is the envelope used for every exchange.
type Config struct {
	HeloDomain string
	MailFrom   string
}

// Reply is a parsed SMTP server reply. Stage records which command it
// answered.
type Reply struct {
	Stage   Stage
	Code    int
	Message string
}

// Class returns the first digit of the reply code (2, 4 or 5).
func (r Reply) Class() int {
	return r.Code / 100
}

// Stage identifies the step of the exchange a reply or error belongs to.
type Stage string

const (
	StageGreeting Stage = "greeting"
	StageHelo     Stage = "helo"
	StageMailFrom Stage = "mail_from"
	StageRcptTo   Stage = "rcpt_to"
)

// StageError is a protocol or I/O failure before a verdict could be read.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("smtp %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ErrUnexpectedReply is wrapped by a StageError when the server answered a
// command with a code that does not allow the exchange to continue.
var ErrUnexpectedReply = errors.New("unexpected reply")

// Exchange runs the strict, reply-by-reply dialogue on conn. It returns the
// RCPT TO reply, or the MAIL FROM reply when that one was a permanent (5xx)
// failure. Any other failure is returned as a *StageError. QUIT is sent
// best-effort; conn is not closed.
func Exchange(conn net.Conn, cfg Config, rcpt string) (Reply, error) {
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	code, msg, err := readReply(r)
	if err != nil {
		return Reply{}, &StageError{Stage: StageGreeting, Err: err}
	}
	if code != 220 {
		return Reply{}, &StageError{Stage: StageGreeting, Err: fmt.Errorf("%w: %d %s", ErrUnexpectedReply, code, msg)}
	}

	code, msg, err = command(r, w, "HELO "+cfg.HeloDomain)
	if err != nil {
		return Reply{}, &StageError{Stage: StageHelo, Err: err}
	}
	if code/100 != 2 {
		return Reply{}, &StageError{Stage: StageHelo, Err: fmt.Errorf("%w: %d %s", ErrUnexpectedReply, code, msg)}
	}

	code, msg, err = command(r, w, fmt.Sprintf("MAIL FROM:<%s>", cfg.MailFrom))
	if err != nil {
		return Reply{}, &StageError{Stage: StageMailFrom, Err: err}
	}
	switch code / 100 {
	case 2:
	case 5:
		quit(w)
		return Reply{Stage: StageMailFrom, Code: code, Message: msg}, nil
	default:
		return Reply{}, &StageError{Stage: StageMailFrom, Err: fmt.Errorf("%w: %d %s", ErrUnexpectedReply, code, msg)}
	}

	code, msg, err = command(r, w, fmt.Sprintf("RCPT TO:<%s>", rcpt))
	if err != nil {
		return Reply{}, &StageError{Stage: StageRcptTo, Err: err}
	}

	quit(w)
	return Reply{Stage: StageRcptTo, Code: code, Message: msg}, nil
}

// Pipelined writes HELO, MAIL FROM, RCPT TO and QUIT in one go and reads
// everything the server sends until it closes the connection. The caller
// bounds the read with a deadline on conn; hitting it is an error.
func Pipelined(conn net.Conn, cfg Config, rcpt string) (string, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HELO %s\r\n", cfg.HeloDomain)
	fmt.Fprintf(&buf, "MAIL FROM:<%s>\r\n", cfg.MailFrom)
	fmt.Fprintf(&buf, "RCPT TO:<%s>\r\n", rcpt)
	buf.WriteString("QUIT\r\n")

	if _, err := conn.Write(buf.Bytes()); err != nil {
		return "", fmt.Errorf("write pipelined commands: %w", err)
	}

	transcript, err := io.ReadAll(conn)
	if err != nil {
		return string(transcript), fmt.Errorf("read transcript: %w", err)
	}
	return string(transcript), nil
}

// AcceptedTranscript reports whether a pipelined transcript contains a 250
// reply anywhere.
func AcceptedTranscript(transcript string) bool {
	return strings.Contains(transcript, "250")
}

// SetBudget applies the attempt deadline to conn. A zero deadline from ctx
// falls back to d from now.
func SetBudget(ctx context.Context, conn net.Conn, d time.Duration) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(d)
	}
	return conn.SetDeadline(deadline)
}

// command sends an SMTP command and reads the response.
func command(r *bufio.Reader, w *bufio.Writer, cmd string) (int, string, error) {
	if _, err := w.WriteString(cmd + "\r\n"); err != nil {
		return 0, "", err
	}
	if err := w.Flush(); err != nil {
		return 0, "", err
	}
	return readReply(r)
}

// quit sends a QUIT command (best-effort, ignores errors).
func quit(w *bufio.Writer) {
	_, _ = w.WriteString("QUIT\r\n")
	_ = w.Flush()
}

// readReply reads a (possibly multi-line) SMTP response.
func readReply(r *bufio.Reader) (code int, full string, err error) {
	var lines []string
	for {
		line, readErr := r.ReadString('\n')
		if readErr != nil {
			return 0, "", fmt.Errorf("read SMTP response: %w", readErr)
		}
		line = strings.TrimRight(line, "\r\n")
		if len(line) < 3 {
			return 0, "", errors.New("SMTP response line too short")
		}
		lines = append(lines, line)
		// If the 4th character is not '-', this is the last line
		if len(line) < 4 || line[3] != '-' {
			break
		}
	}

	last := lines[len(lines)-1]
	if _, err := fmt.Sscanf(last[:3], "%d", &code); err != nil {
		return 0, "", fmt.Errorf("invalid SMTP response code %q: %w", last[:3], err)
	}
	return code, strings.Join(lines, " | "), nil
}
