package cardimporter

import (
	"math"
	"strconv"
	"strings"
	"time"

	"k8s.io/klog"
)

const dateLayout = "2006-01-02"

// maxSerialDate is 9999-12-31, the last day a spreadsheet serial can express.
const maxSerialDate = 2958465

var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

var genericDateLayouts = []string{
	dateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02",
}

// NormalizeDate converts a spreadsheet date cell into YYYY-MM-DD. It accepts
// spreadsheet serial numbers, D-M-YYYY strings and a few ISO-like layouts, and
// returns "" when nothing matches.
func NormalizeDate(value string) string {
	value = strings.TrimSpace(value)

	if t, ok := parseSerialDate(value); ok {
		return t.Format(dateLayout)
	}

	if t, ok := parseDayMonthYear(value); ok {
		return t.Format(dateLayout)
	}

	for _, layout := range genericDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format(dateLayout)
		}
	}

	klog.Warningf("Unable to parse date %q\n", value)
	return ""
}

func parseSerialDate(value string) (time.Time, bool) {
	serial, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(serial) || math.IsInf(serial, 0) {
		return time.Time{}, false
	}

	if serial < 0 || serial > maxSerialDate {
		return time.Time{}, false
	}

	// the fraction is the time of day
	return serialEpoch.AddDate(0, 0, int(math.Floor(serial))), true
}

func parseDayMonthYear(value string) (time.Time, bool) {
	parts := strings.Split(value, "-")
	if len(parts) != 3 {
		return time.Time{}, false
	}

	day, ok := parseDigits(parts[0], 1, 2)
	if !ok {
		return time.Time{}, false
	}
	month, ok := parseDigits(parts[1], 1, 2)
	if !ok {
		return time.Time{}, false
	}
	year, ok := parseDigits(parts[2], 4, 4)
	if !ok {
		return time.Time{}, false
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes 31-02 into March
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return time.Time{}, false
	}

	return t, true
}

func parseDigits(s string, minLen, maxLen int) (int, bool) {
	if len(s) < minLen || len(s) > maxLen {
		return 0, false
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}

	n, err := strconv.Atoi(s)
	return n, err == nil
}
