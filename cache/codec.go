package cache

import (
	"github.com/tinylib/msgp/msgp"

	"github.com/optimode/mxverify/types"
)

// MarshalResult encodes r as a MessagePack map keyed by the JSON field names.
func MarshalResult(r types.ValidationResult) []byte {
	b := make([]byte, 0, 160)
	b = msgp.AppendMapHeader(b, 7)
	b = msgp.AppendString(b, "email")
	b = msgp.AppendString(b, r.Email)
	b = msgp.AppendString(b, "valid")
	b = msgp.AppendBool(b, r.Valid)
	b = msgp.AppendString(b, "reason")
	b = msgp.AppendString(b, r.Reason)
	b = msgp.AppendString(b, "code")
	b = msgp.AppendString(b, r.Code)
	b = msgp.AppendString(b, "checks")
	b = appendChecks(b, r.Checks)
	b = msgp.AppendString(b, "mxHost")
	b = msgp.AppendString(b, r.MXHost)
	b = msgp.AppendString(b, "smtpCode")
	b = msgp.AppendInt(b, r.SMTPCode)
	return b
}

func appendChecks(b []byte, c types.CheckFlags) []byte {
	b = msgp.AppendMapHeader(b, 6)
	b = msgp.AppendString(b, "syntax")
	b = msgp.AppendBool(b, c.Syntax)
	b = msgp.AppendString(b, "length")
	b = msgp.AppendBool(b, c.Length)
	b = msgp.AppendString(b, "characters")
	b = msgp.AppendBool(b, c.Characters)
	b = msgp.AppendString(b, "domain")
	b = msgp.AppendBool(b, c.Domain)
	b = msgp.AppendString(b, "mx")
	b = msgp.AppendBool(b, c.MX)
	b = msgp.AppendString(b, "smtp")
	b = msgp.AppendBool(b, c.SMTP)
	return b
}

// UnmarshalResult decodes a value written by MarshalResult. Unknown keys
// are skipped.
func UnmarshalResult(b []byte) (types.ValidationResult, error) {
	var r types.ValidationResult

	n, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return r, err
	}
	for ; n > 0; n-- {
		var key []byte
		key, b, err = msgp.ReadMapKeyZC(b)
		if err != nil {
			return r, err
		}
		switch msgp.UnsafeString(key) {
		case "email":
			r.Email, b, err = msgp.ReadStringBytes(b)
		case "valid":
			r.Valid, b, err = msgp.ReadBoolBytes(b)
		case "reason":
			r.Reason, b, err = msgp.ReadStringBytes(b)
		case "code":
			r.Code, b, err = msgp.ReadStringBytes(b)
		case "checks":
			r.Checks, b, err = readChecks(b)
		case "mxHost":
			r.MXHost, b, err = msgp.ReadStringBytes(b)
		case "smtpCode":
			r.SMTPCode, b, err = msgp.ReadIntBytes(b)
		default:
			b, err = msgp.Skip(b)
		}
		if err != nil {
			return r, err
		}
	}
	return r, nil
}

func readChecks(b []byte) (types.CheckFlags, []byte, error) {
	var c types.CheckFlags

	n, b, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return c, b, err
	}
	for ; n > 0; n-- {
		var key []byte
		key, b, err = msgp.ReadMapKeyZC(b)
		if err != nil {
			return c, b, err
		}
		switch msgp.UnsafeString(key) {
		case "syntax":
			c.Syntax, b, err = msgp.ReadBoolBytes(b)
		case "length":
			c.Length, b, err = msgp.ReadBoolBytes(b)
		case "characters":
			c.Characters, b, err = msgp.ReadBoolBytes(b)
		case "domain":
			c.Domain, b, err = msgp.ReadBoolBytes(b)
		case "mx":
			c.MX, b, err = msgp.ReadBoolBytes(b)
		case "smtp":
			c.SMTP, b, err = msgp.ReadBoolBytes(b)
		default:
			b, err = msgp.Skip(b)
		}
		if err != nil {
			return c, b, err
		}
	}
	return c, b, nil
}
