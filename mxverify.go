// Package mxverify checks whether an email address is likely deliverable
// without sending mail: local syntax checks, MX resolution and a live SMTP
// recipient probe, with verdicts cached per address.
//
// Basic usage:
//
//	result, err := mxverify.New().Validate(ctx, "user@example.com")
//
// Configured pipeline:
//
//	v := mxverify.New().
//	    WithDNS(mxverify.DNSOptions{Timeout: 3 * time.Second}).
//	    WithSMTP(mxverify.SMTPOptions{
//	        HeloDomain: "myapp.com",
//	        MailFrom:   "verify@myapp.com",
//	    }).
//	    WithCache(store, mxverify.CacheOptions{TTL: time.Hour}).
//	    WithLogger(log)
//
//	report, err := v.ValidateBatch(ctx, addresses)
package mxverify

import "github.com/optimode/mxverify/types"

// Result is a re-export from the types package so that consumers
// don't need to import the types package directly.
type Result = types.ValidationResult

// CheckFlags is a re-export.
type CheckFlags = types.CheckFlags

// MXRecord is a re-export.
type MXRecord = types.MXRecord

// Reason codes re-exported.
const (
	CodeInvalidFormat    = types.CodeInvalidFormat
	CodeNoMXRecords      = types.CodeNoMXRecords
	CodeKnownProvider    = types.CodeKnownProvider
	CodeAccepted         = types.CodeAccepted
	CodeRejected         = types.CodeRejected
	CodeAllServersFailed = types.CodeAllServersFailed
	CodeUnexpectedError  = types.CodeUnexpectedError
)
