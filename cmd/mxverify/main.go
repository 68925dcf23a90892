// Command mxverify validates one address or a file of addresses from the
// command line.
//
//	mxverify -email user@example.com
//	mxverify -in emails.txt -out results/
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/optimode/mxverify"
	"github.com/optimode/mxverify/config"
	"github.com/optimode/mxverify/export"
	"github.com/optimode/mxverify/internal/logging"
)

func main() {
	email := flag.String("email", "", "validate a single address")
	in := flag.String("in", "", "file with one address per line")
	out := flag.String("out", ".", "directory for valid.csv and invalid.csv")
	verbose := flag.Bool("v", false, "log progress")
	flag.Parse()

	if (*email == "") == (*in == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -email or -in is required")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*email, *in, *out, *verbose); err != nil {
		fmt.Fprintln(os.Stderr, "mxverify:", err)
		os.Exit(1)
	}
}

func run(email, in, out string, verbose bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level := "warn"
	if verbose {
		level = "info"
	}
	log, err := logging.New(logging.Options{Level: level, Out: os.Stderr})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	store, closeStore, err := cfg.OpenCache(ctx, log)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()
	v := cfg.Validator(store, log)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if email != "" {
		res, err := v.Validate(ctx, email)
		if err != nil {
			return err
		}
		return enc.Encode(res)
	}

	f, err := os.Open(in)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	emails, err := mxverify.ReadAddresses(f)
	if err != nil {
		return err
	}

	opts := cfg.Batch()
	opts.Progress = func(p mxverify.Progress) {
		log.WithFields(logrus.Fields{"wave": p.Wave, "waves": p.Waves}).Infof("%d%% done", p.Percent)
	}
	report, err := v.ValidateBatch(ctx, emails, opts)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(out, 0o755); err != nil {
		return err
	}
	if err := writeCSV(filepath.Join(out, "valid.csv"), report.Valid); err != nil {
		return err
	}
	if err := writeCSV(filepath.Join(out, "invalid.csv"), report.Invalid); err != nil {
		return err
	}
	return enc.Encode(map[string]any{
		"totalCount":         report.Total,
		"validCount":         report.ValidCount,
		"invalidCount":       report.InvalidCount,
		"timeElapsedSeconds": report.ElapsedSeconds(),
	})
}

func writeCSV(path string, results []mxverify.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteCSV(f, results); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
