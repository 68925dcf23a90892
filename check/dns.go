package check

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/optimode/mxverify/types"
)

var (
	// ErrNoMXRecords is returned when a domain has no usable mail exchanger,
	// including lookup failures and timeouts.
	ErrNoMXRecords = errors.New("no MX records found")

	// ErrDomainNotFound is returned when DNS reports that the domain does
	// not exist. It matches ErrNoMXRecords with errors.Is.
	ErrDomainNotFound = fmt.Errorf("%w: domain does not exist", ErrNoMXRecords)

	// ErrEmptyMXSet is returned when the domain exists but publishes no
	// usable MX record. It matches ErrNoMXRecords with errors.Is.
	ErrEmptyMXSet = fmt.Errorf("%w: empty answer", ErrNoMXRecords)
)

// DomainExists reports whether a ResolveMX error still proves that DNS
// knows the domain. Timeouts and server failures prove nothing.
func DomainExists(err error) bool {
	return err == nil || errors.Is(err, ErrEmptyMXSet)
}

// MXLookuper is the minimal resolver interface. *net.Resolver satisfies it.
type MXLookuper interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// NameChecker tells a domain that does not exist apart from one that
// exists without the queried record type.
type NameChecker interface {
	NameExists(ctx context.Context, name string) (bool, error)
}

// DNSConfig is the MX resolver configuration.
type DNSConfig struct {
	Timeout time.Duration
	// Confirm re-checks domains the lookup reported as not found. The system
	// resolver reports NODATA and NXDOMAIN alike, so it gets a NameserverLookup
	// over /etc/resolv.conf when Confirm is nil.
	Confirm NameChecker
}

// MXResolver resolves the mail exchangers of a domain, ordered by priority.
// Concurrent lookups for the same domain are deduplicated: only one query
// is in flight per domain, and all waiters receive its result.
type MXResolver struct {
	cfg    DNSConfig
	lookup MXLookuper
	group  singleflight.Group
}

// NewMXResolver creates a resolver. A nil lookup uses the system resolver.
func NewMXResolver(cfg DNSConfig, lookup MXLookuper) *MXResolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if lookup == nil {
		lookup = &net.Resolver{}
	}
	if _, ok := lookup.(*net.Resolver); ok && cfg.Confirm == nil {
		cfg.Confirm = NewNameserverLookup(nil, cfg.Timeout, 0)
	}
	return &MXResolver{cfg: cfg, lookup: lookup}
}

// ResolveMX returns the MX records of domain sorted ascending by priority.
// Records with equal priority keep the order the resolver returned them in.
// Any failure, including the resolver timeout, yields an error matching
// ErrNoMXRecords.
func (r *MXResolver) ResolveMX(ctx context.Context, domain string) ([]types.MXRecord, error) {
	v, err, _ := r.group.Do(domain, func() (any, error) {
		// A waiter's cancellation must not fail the lookup for the others.
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.Timeout)
		defer cancel()

		mx, err := r.lookup.LookupMX(lctx, domain)
		if err != nil {
			err = convertError(err)
			if errors.Is(err, ErrDomainNotFound) && r.cfg.Confirm != nil {
				if ok, cerr := r.cfg.Confirm.NameExists(lctx, domain); cerr == nil && ok {
					return nil, ErrEmptyMXSet
				}
			}
			return nil, err
		}

		records := make([]types.MXRecord, 0, len(mx))
		for _, m := range mx {
			host := strings.TrimSuffix(m.Host, ".")
			// "." is the RFC 7505 null MX: the domain accepts no mail.
			if host == "" {
				continue
			}
			records = append(records, types.MXRecord{Host: host, Priority: m.Pref})
		}
		if len(records) == 0 {
			return nil, ErrEmptyMXSet
		}

		sort.SliceStable(records, func(i, j int) bool {
			return records[i].Priority < records[j].Priority
		})
		return records, nil
	})
	if err != nil {
		return nil, err
	}

	// Every caller gets its own copy of the shared result.
	shared := v.([]types.MXRecord)
	out := make([]types.MXRecord, len(shared))
	copy(out, shared)
	return out, nil
}

// convertError maps resolver errors onto ErrNoMXRecords / ErrDomainNotFound.
func convertError(err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return ErrDomainNotFound
	}
	return fmt.Errorf("%w: %v", ErrNoMXRecords, err)
}
