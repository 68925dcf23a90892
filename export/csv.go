// Package export renders validation results as CSV.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/optimode/mxverify/types"
)

// Header is the column layout of every CSV written by this package.
var Header = []string{
	"email",
	"valid",
	"reason",
	"checks.syntax",
	"checks.length",
	"checks.characters",
	"checks.domain",
	"checks.mx",
	"checks.smtp",
}

// WriteCSV writes the header followed by one row per result.
func WriteCSV(w io.Writer, results []types.ValidationResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range results {
		if err := cw.Write(Row(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Row returns the CSV fields of r in Header order.
func Row(r types.ValidationResult) []string {
	return []string{
		r.Email,
		strconv.FormatBool(r.Valid),
		r.Reason,
		strconv.FormatBool(r.Checks.Syntax),
		strconv.FormatBool(r.Checks.Length),
		strconv.FormatBool(r.Checks.Characters),
		strconv.FormatBool(r.Checks.Domain),
		strconv.FormatBool(r.Checks.MX),
		strconv.FormatBool(r.Checks.SMTP),
	}
}
