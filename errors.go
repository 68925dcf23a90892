package mxverify

import "errors"

var (
	// ErrCacheUnavailable is returned when the result cache cannot be read
	// or written. It aborts a batch.
	ErrCacheUnavailable = errors.New("mxverify: result cache unavailable")

	// ErrInvalidSMTPOptions is returned when WithSMTP is called
	// but HeloDomain or MailFrom is missing.
	ErrInvalidSMTPOptions = errors.New("mxverify: SMTPOptions requires HeloDomain and MailFrom")

	// ErrEmptyInput is returned when an address list contains no addresses.
	ErrEmptyInput = errors.New("mxverify: no addresses in input")
)
