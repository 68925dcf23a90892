package mxverify

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/optimode/mxverify/internal/metrics"
)

// ValidateBatch validates emails and splits the results into valid and
// invalid partitions, both in input order.
//
// Addresses are grouped in chunks of ChunkSize, and ChunksPerWave chunks
// form a wave. A wave runs with at most MaxInFlight validations at a time
// and must finish before the next one starts; Progress is reported after
// each wave. A cache failure cancels the remaining work and is returned.
func (v *Validator) ValidateBatch(ctx context.Context, emails []string, opts ...BatchOptions) (BatchReport, error) {
	if v.err != nil {
		return BatchReport{}, v.err
	}

	o := defaultBatchOptions()
	if len(opts) > 0 {
		o = opts[0].withDefaults()
	}

	start := time.Now()
	total := len(emails)
	waveSize := o.ChunkSize * o.ChunksPerWave
	waves := (total + waveSize - 1) / waveSize

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]Result, total)
	for wave, lo := 1, 0; lo < total; wave, lo = wave+1, lo+waveSize {
		hi := min(lo+waveSize, total)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.MaxInFlight)
		for i := lo; i < hi; i++ {
			g.Go(func() error {
				res, err := v.Validate(gctx, emails[i])
				if err != nil {
					return fmt.Errorf("validating %q: %w", emails[i], err)
				}
				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			v.log.WithError(err).WithField("wave", wave).Error("batch aborted")
			return BatchReport{}, err
		}
		metrics.BatchAddresses.Add(float64(hi - lo))

		p := Progress{
			Processed: hi,
			Total:     total,
			Percent:   min(100, hi*100/total),
			Wave:      wave,
			Waves:     waves,
		}
		v.log.WithFields(logrus.Fields{
			"processed": p.Processed,
			"total":     p.Total,
			"percent":   p.Percent,
		}).Info("batch progress")
		if o.Progress != nil {
			o.Progress(p)
		}
	}

	report := BatchReport{Total: total, Results: results}
	for _, r := range results {
		if r.Valid {
			report.Valid = append(report.Valid, r)
		} else {
			report.Invalid = append(report.Invalid, r)
		}
	}
	report.ValidCount = len(report.Valid)
	report.InvalidCount = len(report.Invalid)
	report.Elapsed = time.Since(start)
	return report, nil
}

// ReadAddresses reads one address per line from r. Lines are trimmed and
// blank lines skipped. It returns ErrEmptyInput when no address is left.
func ReadAddresses(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			out = append(out, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read addresses: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrEmptyInput
	}
	return out, nil
}
