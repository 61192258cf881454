package transform

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/keiri-audit/engine/internal/blockerr"
)

// Period is a quarter's inclusive start date and exclusive end date, both
// formatted as ISO dates.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ComputeFiscalQuarter resolves the calendar start/end dates of quarter
// (e.g. "Q2") within a fiscal year that begins on startMonth, plus the
// canonical "<fiscalYear>_<quarter>" sheet label.
func ComputeFiscalQuarter(fiscalYear int, quarter string, startMonth int) (Period, string, error) {
	if startMonth < 1 || startMonth > 12 {
		startMonth = 1
	}
	quarterNum, err := parseQuarter(quarter)
	if err != nil {
		return Period{}, "", err
	}

	monthOffset := (quarterNum - 1) * 3
	startMonthRaw := startMonth + monthOffset
	startYear := fiscalYear + (startMonthRaw-1)/12
	startCalMonth := ((startMonthRaw - 1) % 12) + 1

	start := time.Date(startYear, time.Month(startCalMonth), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 3, 0)

	sheetName := fmt.Sprintf("%d_%s", fiscalYear, strings.ToUpper(quarter))
	return Period{Start: start.Format("2006-01-02"), End: end.Format("2006-01-02")}, sheetName, nil
}

func parseQuarter(quarter string) (int, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(quarter))
	trimmed = strings.TrimPrefix(trimmed, "Q")
	n, err := strconv.Atoi(trimmed)
	if err != nil || n < 1 || n > 4 {
		return 0, blockerr.NewInputError("quarter", "one of Q1, Q2, Q3, Q4", quarter)
	}
	return n, nil
}
