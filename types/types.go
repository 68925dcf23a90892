// Package types contains the shared types for mxverify.
// This package does not import anything from other mxverify packages
// to avoid circular imports.
package types

// ReasonCode classifies the outcome of a validation.
type ReasonCode = string

const (
	CodeInvalidFormat    ReasonCode = "invalid_format"
	CodeNoMXRecords      ReasonCode = "no_mx_records"
	CodeKnownProvider    ReasonCode = "known_provider"
	CodeAccepted         ReasonCode = "accepted"
	CodeRejected         ReasonCode = "rejected"
	CodeAllServersFailed ReasonCode = "all_servers_failed"
	CodeUnexpectedError  ReasonCode = "unexpected_error"
)

// Human readable reasons placed in ValidationResult.Reason.
const (
	ReasonInvalidFormat     = "Invalid email format"
	ReasonInvalidLength     = "Email address exceeds length limits"
	ReasonInvalidCharacters = "Email address contains invalid characters"
	ReasonNoMXRecords       = "No MX records found"
	ReasonKnownProvider     = "Valid domain and MX records"
	ReasonAccepted          = "Valid SMTP response"
	ReasonRejected          = "Email rejected by server"
	ReasonAllServersFailed  = "All SMTP servers failed"
)

// MXRecord is a single mail exchanger of a domain.
// Host never carries a trailing dot.
type MXRecord struct {
	Host     string `json:"host"`
	Priority uint16 `json:"priority"`
}

// CheckFlags records which pipeline stages an address passed.
// Once a stage fails, the flags of later stages stay false.
type CheckFlags struct {
	Syntax     bool `json:"syntax"`
	Length     bool `json:"length"`
	Characters bool `json:"characters"`
	Domain     bool `json:"domain"`
	MX         bool `json:"mx"`
	SMTP       bool `json:"smtp"`
}

// ValidationResult is the verdict of the pipeline for one address.
// It is passed by value and never modified once produced.
type ValidationResult struct {
	Email    string     `json:"email"`
	Valid    bool       `json:"valid"`
	Reason   string     `json:"reason"`
	Code     ReasonCode `json:"code"`
	Checks   CheckFlags `json:"checks"`
	MXHost   string     `json:"mxHost,omitempty"`
	SMTPCode int        `json:"smtpCode,omitempty"`
}
