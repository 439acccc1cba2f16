package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/kursadbilgin/notice-engine/internal/categorizer"
	"github.com/kursadbilgin/notice-engine/internal/domain"
	"go.uber.org/zap"
)

const (
	DefaultSourceURL = "https://galsimahavidyalaya.ac.in/category/notice/"
	DefaultMaxRows   = 50
)

var ErrNothingExtracted = errors.New("no notices could be extracted")

// Status tags a scrape Result.
type Status string

const (
	StatusOK     Status = "ok"
	StatusNoData Status = "no_data"
)

// Result is the outcome of one scrape. A NoData result carries the reason and no notices.
type Result struct {
	Status    Status
	Notices   []domain.Notice
	Transport string
	Parser    string
	Err       error
}

func (r Result) OK() bool { return r.Status == StatusOK }

// Source produces notices from the notice board.
type Source interface {
	Scrape(ctx context.Context) Result
}

// ResultRecorder receives one observation per completed scrape.
type ResultRecorder interface {
	IncScrapeResult(status string, parser string)
}

// Scraper fetches the notice board and turns it into annotated, date-sorted notices.
type Scraper struct {
	fetcher    *Fetcher
	strategies []ParseStrategy
	parser     *ParseChain
	target     string
	base       *url.URL
	maxRows    int
	now        func() time.Time
	recorder   ResultRecorder
	logger     *zap.Logger
}

type Option func(*Scraper)

func WithMaxRows(n int) Option {
	return func(s *Scraper) {
		if n > 0 {
			s.maxRows = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scraper) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Scraper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithResultRecorder(r ResultRecorder) Option {
	return func(s *Scraper) { s.recorder = r }
}

func WithParseStrategies(strategies []ParseStrategy) Option {
	return func(s *Scraper) {
		if len(strategies) > 0 {
			s.strategies = strategies
		}
	}
}

func NewScraper(target string, fetcher *Fetcher, opts ...Option) (*Scraper, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	base, err := url.ParseRequestURI(target)
	if err != nil {
		return nil, fmt.Errorf("invalid source url: %w", err)
	}

	s := &Scraper{
		fetcher:    fetcher,
		strategies: DefaultParseStrategies(),
		target:     target,
		base:       base,
		maxRows:    DefaultMaxRows,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.parser = NewParseChain(s.strategies, s.logger)
	return s, nil
}

// Scrape never fails past its boundary: every error comes back as a NoData result.
func (s *Scraper) Scrape(ctx context.Context) Result {
	result := s.scrape(ctx)
	if s.recorder != nil {
		s.recorder.IncScrapeResult(string(result.Status), result.Parser)
	}
	return result
}

func (s *Scraper) scrape(ctx context.Context) Result {
	payload, err := s.fetcher.Fetch(ctx, s.target)
	if err != nil {
		s.logger.Warn("notice source unreachable", zap.String("target", s.target), zap.Error(err))
		return Result{Status: StatusNoData, Err: err}
	}

	now := s.now()
	rows, strategy, ok := s.parser.Parse(NewInput(payload.Body, s.base, domain.DateOf(now)))
	if !ok {
		s.logger.Warn("no notices extracted",
			zap.String("transport", payload.Transport),
			zap.Int("payloadBytes", len(payload.Body)),
		)
		return Result{Status: StatusNoData, Transport: payload.Transport, Err: ErrNothingExtracted}
	}

	if len(rows) > s.maxRows {
		rows = rows[:s.maxRows]
	}
	notices := BuildNotices(rows, now)

	s.logger.Info("notices scraped",
		zap.String("transport", payload.Transport),
		zap.String("strategy", strategy),
		zap.Int("count", len(notices)),
	)
	return Result{Status: StatusOK, Notices: notices, Transport: payload.Transport, Parser: strategy}
}

// BuildNotices assigns ids, annotates each row and sorts newest first.
func BuildNotices(rows []Row, now time.Time) []domain.Notice {
	notices := make([]domain.Notice, 0, len(rows))
	for i, row := range rows {
		id := row.Serial
		if id == "" {
			id = fmt.Sprint(i + 1)
		}
		n := domain.Notice{
			ID:    "notice-" + id,
			Title: row.Title,
			Date:  row.Date,
			URL:   row.URL,
		}
		categorizer.Annotate(&n, now)
		notices = append(notices, n)
	}
	SortByDateDesc(notices)
	return notices
}

// SortByDateDesc orders newest first; equal dates keep their input order.
func SortByDateDesc(notices []domain.Notice) {
	sort.SliceStable(notices, func(i, j int) bool {
		return notices[i].Date.After(notices[j].Date.Time)
	})
}
