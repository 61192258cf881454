package xlsx

import (
	"strconv"
	"time"
)

// excelEpoch is Excel's day-zero under the 1900 date system (serial 1 is
// 1900-01-01, but Excel's leap-year bug treats 1900 as a leap year, so
// serial 60 is the nonexistent 1900-02-29; the conventional correction is
// to anchor at 1899-12-30 and add the serial number of days directly).
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// resolvedValue is the Go-typed value of one cell: string, float64, bool,
// time.Time, or nil for an empty cell.
func resolvedValue(c rawCell) any {
	if c.value == "" {
		return nil
	}
	if c.isBool {
		return c.value == "1"
	}
	if c.isDate {
		if serial, err := strconv.ParseFloat(c.value, 64); err == nil {
			days := int(serial)
			fraction := serial - float64(days)
			t := excelEpoch.AddDate(0, 0, days).Add(time.Duration(fraction*24*3600) * time.Second)
			return t
		}
	}
	if f, err := strconv.ParseFloat(c.value, 64); err == nil {
		return f
	}
	return c.value
}

// isBlank reports whether v is nil or an all-whitespace string.
func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		for _, r := range s {
			if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
				return false
			}
		}
		return true
	}
	return false
}

// isoDate formats a time.Time as a date-only ISO-8601 string.
func isoDate(t time.Time) string {
	return t.Format("2006-01-02")
}
