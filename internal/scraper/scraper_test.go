package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kursadbilgin/notice-engine/internal/domain"
)

func newTestScraper(t *testing.T, target string, transports []Transport, opts ...Option) *Scraper {
	t.Helper()

	now := func() time.Time { return time.Date(2024, time.March, 6, 9, 0, 0, 0, time.UTC) }
	s, err := NewScraper(target, NewFetcher(transports, WithMinPayload(10)), append([]Option{WithClock(now)}, opts...)...)
	if err != nil {
		t.Fatalf("NewScraper() error = %v", err)
	}
	return s
}

func TestScraperScrapeTableScenario(t *testing.T) {
	t.Parallel()

	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(tableFixture))
	}))
	defer source.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()

	target := source.URL + "/category/notice/"
	transports := NewTransports([]TransportSpec{
		{Name: "relay", Prefix: broken.URL + "/?u=", Encode: true},
		{Name: "direct"},
	}, nil)

	result := newTestScraper(t, target, transports).Scrape(context.Background())
	if !result.OK() {
		t.Fatalf("Scrape() status = %s, err = %v", result.Status, result.Err)
	}
	if result.Transport != "direct" || result.Parser != "table-row" {
		t.Fatalf("Scrape() via %s/%s, want direct/table-row", result.Transport, result.Parser)
	}
	if len(result.Notices) != 3 {
		t.Fatalf("notices = %d, want 3", len(result.Notices))
	}

	// the row dated today (malformed date) sorts first
	if result.Notices[0].ID != "notice-4" {
		t.Fatalf("first notice = %s, want notice-4", result.Notices[0].ID)
	}

	got := result.Notices[1]
	want := domain.Notice{
		ID:          "notice-1",
		Title:       "Examination Routine for Semester IV",
		Date:        domain.NewDate(2024, time.March, 5),
		URL:         target + "notice.pdf",
		IsNew:       true,
		IsImportant: true,
		Category:    domain.CategoryRoutine,
	}
	if got.ID != want.ID || got.Title != want.Title || got.URL != want.URL ||
		got.IsNew != want.IsNew || got.IsImportant != want.IsImportant || got.Category != want.Category {
		t.Fatalf("notice = %+v, want %+v", got, want)
	}
	if got.Date.String() != "2024-03-05" {
		t.Fatalf("date = %s, want 2024-03-05", got.Date)
	}

	holiday := result.Notices[2]
	if holiday.Category != domain.CategoryHoliday || holiday.IsNew || holiday.IsImportant {
		t.Fatalf("holiday notice = %+v, want non-new non-important holiday", holiday)
	}
}

func TestScraperNoDataWhenAllTransportsFail(t *testing.T) {
	t.Parallel()

	transports := []Transport{
		&fakeTransport{name: "a", fetchFn: func(context.Context, string) (string, error) {
			return "", errors.New("refused")
		}},
	}

	result := newTestScraper(t, "https://example.org/notices/", transports).Scrape(context.Background())
	if result.OK() {
		t.Fatal("Scrape() OK = true, want no data")
	}
	var exhausted *ExhaustedError
	if !errors.As(result.Err, &exhausted) {
		t.Fatalf("Err = %v, want ExhaustedError", result.Err)
	}
	if len(result.Notices) != 0 {
		t.Fatalf("notices = %d, want 0", len(result.Notices))
	}
}

func TestScraperNoDataWhenNothingExtracted(t *testing.T) {
	t.Parallel()

	transports := []Transport{
		&fakeTransport{name: "a", fetchFn: func(context.Context, string) (string, error) {
			return "<html><body>maintenance</body></html>", nil
		}},
	}

	result := newTestScraper(t, "https://example.org/notices/", transports).Scrape(context.Background())
	if result.Status != StatusNoData || !errors.Is(result.Err, ErrNothingExtracted) {
		t.Fatalf("Scrape() = %s / %v, want no_data / ErrNothingExtracted", result.Status, result.Err)
	}
	if result.Transport != "a" {
		t.Fatalf("Transport = %q, want a", result.Transport)
	}
}

func TestScraperCapsRows(t *testing.T) {
	t.Parallel()

	transports := []Transport{
		&fakeTransport{name: "a", fetchFn: func(context.Context, string) (string, error) {
			return tableFixture, nil
		}},
	}

	result := newTestScraper(t, DefaultSourceURL, transports, WithMaxRows(2)).Scrape(context.Background())
	if !result.OK() {
		t.Fatalf("Scrape() err = %v", result.Err)
	}
	if len(result.Notices) != 2 {
		t.Fatalf("notices = %d, want 2", len(result.Notices))
	}
	if result.Notices[0].ID != "notice-1" || result.Notices[1].ID != "notice-2" {
		t.Fatalf("ids = %s, %s; want first two rows sorted by date", result.Notices[0].ID, result.Notices[1].ID)
	}
}

func TestBuildNoticesPositionalIDsAndStableSort(t *testing.T) {
	t.Parallel()

	day := domain.NewDate(2024, time.January, 10)
	rows := []Row{
		{Title: "First general notice", Date: day, URL: "https://x/1.pdf"},
		{Title: "Newer notice", Date: domain.NewDate(2024, time.January, 11), URL: "https://x/2.pdf"},
		{Title: "Second general notice", Date: day, URL: "https://x/3.pdf"},
	}

	notices := BuildNotices(rows, time.Date(2024, time.January, 11, 0, 0, 0, 0, time.UTC))
	ids := []string{notices[0].ID, notices[1].ID, notices[2].ID}
	want := []string{"notice-2", "notice-1", "notice-3"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
}

func TestNewScraperValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewScraper(DefaultSourceURL, nil); err == nil {
		t.Fatal("NewScraper(nil fetcher) expected error")
	}
	if _, err := NewScraper("not a url", NewFetcher(nil)); err == nil {
		t.Fatal("NewScraper(invalid url) expected error")
	}
}
