package check

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	mdns "github.com/miekg/dns"
)

// NameserverLookup queries MX records directly from a fixed list of
// nameservers instead of the system resolver.
type NameserverLookup struct {
	nameservers []string
	retries     int
	client      *mdns.Client
}

// NewNameserverLookup creates a lookup against the given nameservers
// ("host" or "host:port", port 53 by default). With no nameservers it falls
// back to /etc/resolv.conf, then to public resolvers.
func NewNameserverLookup(nameservers []string, timeout time.Duration, retries int) *NameserverLookup {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	if len(nameservers) == 0 {
		nameservers = systemNameservers()
	}

	servers := make([]string, 0, len(nameservers))
	for _, s := range nameservers {
		if _, _, err := net.SplitHostPort(s); err != nil {
			s = net.JoinHostPort(s, "53")
		}
		servers = append(servers, s)
	}

	return &NameserverLookup{
		nameservers: servers,
		retries:     retries,
		client:      &mdns.Client{Timeout: timeout},
	}
}

func systemNameservers() []string {
	cfg, err := mdns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(cfg.Servers) == 0 {
		return []string{"8.8.8.8", "1.1.1.1"}
	}
	return cfg.Servers
}

// Nameservers returns the host:port list queried.
func (l *NameserverLookup) Nameservers() []string {
	return l.nameservers
}

// LookupMX implements MXLookuper. NXDOMAIN is reported as a *net.DNSError
// with IsNotFound set, like the system resolver does.
func (l *NameserverLookup) LookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	m := new(mdns.Msg)
	m.SetQuestion(mdns.Fqdn(name), mdns.TypeMX)
	m.RecursionDesired = true

	resp, server, err := l.exchange(ctx, m)
	if err != nil {
		return nil, err
	}
	if resp.Rcode == mdns.RcodeNameError {
		return nil, &net.DNSError{
			Err:        "no such host",
			Name:       strings.TrimSuffix(name, "."),
			Server:     server,
			IsNotFound: true,
		}
	}
	return mxFromAnswer(resp.Answer), nil
}

// NameExists asks for the SOA of name and reports whether the answer was
// NOERROR (true) or NXDOMAIN (false).
func (l *NameserverLookup) NameExists(ctx context.Context, name string) (bool, error) {
	m := new(mdns.Msg)
	m.SetQuestion(mdns.Fqdn(name), mdns.TypeSOA)
	m.RecursionDesired = true

	resp, _, err := l.exchange(ctx, m)
	if err != nil {
		return false, err
	}
	return resp.Rcode == mdns.RcodeSuccess, nil
}

// exchange sends m to each nameserver in turn, retries included, and
// returns the first NOERROR or NXDOMAIN response.
func (l *NameserverLookup) exchange(ctx context.Context, m *mdns.Msg) (*mdns.Msg, string, error) {
	var lastErr error
	for i := 0; i <= l.retries; i++ {
		for _, server := range l.nameservers {
			if err := ctx.Err(); err != nil {
				return nil, "", err
			}

			resp, _, err := l.client.ExchangeContext(ctx, m, server)
			if err != nil {
				lastErr = fmt.Errorf("dns query to %s failed: %w", server, err)
				continue
			}
			if resp.Rcode != mdns.RcodeSuccess && resp.Rcode != mdns.RcodeNameError {
				lastErr = fmt.Errorf("dns: %s from %s", mdns.RcodeToString[resp.Rcode], server)
				continue
			}
			return resp, server, nil
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("dns: no nameservers configured")
	}
	return nil, "", lastErr
}

func mxFromAnswer(answer []mdns.RR) []*net.MX {
	var records []*net.MX
	for _, rr := range answer {
		if mx, ok := rr.(*mdns.MX); ok {
			records = append(records, &net.MX{Host: mx.Mx, Pref: mx.Preference})
		}
	}
	return records
}
