package noticestore

import (
	"strconv"
	"time"

	"github.com/kursadbilgin/notice-engine/internal/categorizer"
	"github.com/kursadbilgin/notice-engine/internal/domain"
	"github.com/kursadbilgin/notice-engine/internal/scraper"
)

var sampleRows = []struct {
	title   string
	daysAgo int
}{
	{"Examination Routine for Semester Examinations", 1},
	{"Result of B.A./B.Sc. Semester Examinations Published", 4},
	{"Online Admission Notice for the Academic Session", 8},
	{"Kanyashree Prakalpa K2 Application - Last Date", 12},
	{"College will remain closed on account of Holiday", 20},
}

// SampleNotices is shown when neither a live scrape nor a fresh cache is available.
// Dates are relative to now so the list always looks current.
func SampleNotices(now time.Time) []domain.Notice {
	today := domain.DateOf(now)
	out := make([]domain.Notice, 0, len(sampleRows))
	for i, row := range sampleRows {
		n := domain.Notice{
			ID:    "sample-" + strconv.Itoa(i+1),
			Title: row.title,
			Date:  domain.Date{Time: today.AddDate(0, 0, -row.daysAgo)},
			URL:   scraper.DefaultSourceURL,
		}
		categorizer.Annotate(&n, now)
		out = append(out, n)
	}
	return out
}
