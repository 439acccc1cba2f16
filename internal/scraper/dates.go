package scraper

import (
	"regexp"
	"strconv"
	"time"

	"github.com/kursadbilgin/notice-engine/internal/domain"
)

var datePattern = regexp.MustCompile(`\b(\d{1,2})[-/.](\d{1,2})[-/.](\d{2,4})\b`)

// parseDayMonthYear reads a D-M-Y date with a 2- or 4-digit year; 2-digit years are 20xx.
// ok is false for anything that is not a real calendar day.
func parseDayMonthYear(s string) (domain.Date, bool) {
	m := datePattern.FindStringSubmatch(s)
	if m == nil {
		return domain.Date{}, false
	}

	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	switch len(m[3]) {
	case 2:
		year += 2000
	case 4:
	default:
		return domain.Date{}, false
	}

	if month < 1 || month > 12 || day < 1 {
		return domain.Date{}, false
	}
	d := domain.NewDate(year, time.Month(month), day)
	if d.Day() != day || int(d.Month()) != month {
		return domain.Date{}, false
	}
	return d, true
}

// dateOrToday parses s and falls back to today's date when it is malformed.
func dateOrToday(s string, today domain.Date) domain.Date {
	if d, ok := parseDayMonthYear(s); ok {
		return d
	}
	return today
}
