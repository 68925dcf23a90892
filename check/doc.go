// Package check contains the stages of the verification pipeline: the local
// syntax checks, MX resolution and the SMTP recipient probe.
// These types can be used directly, but the recommended approach is
// to use the builder API from the github.com/optimode/mxverify package.
package check
