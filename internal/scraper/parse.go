package scraper

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/kursadbilgin/notice-engine/internal/domain"
	"go.uber.org/zap"
)

// Row is one extracted notice before categorization.
type Row struct {
	Serial string
	Date   domain.Date
	Title  string
	URL    string
}

// OutcomeKind tags a ParseOutcome.
type OutcomeKind int

const (
	OutcomeEmpty OutcomeKind = iota
	OutcomeMatched
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeMatched:
		return "matched"
	case OutcomeFailed:
		return "failed"
	default:
		return "empty"
	}
}

// ParseOutcome is the result of a single parse strategy.
type ParseOutcome struct {
	Kind OutcomeKind
	Rows []Row
	Err  error
}

func Matched(rows []Row) ParseOutcome {
	if len(rows) == 0 {
		return Empty()
	}
	return ParseOutcome{Kind: OutcomeMatched, Rows: rows}
}

func Empty() ParseOutcome { return ParseOutcome{Kind: OutcomeEmpty} }

func Failed(err error) ParseOutcome { return ParseOutcome{Kind: OutcomeFailed, Err: err} }

// Input is what every parse strategy sees. Doc is nil when the body is not parseable HTML.
type Input struct {
	Body  string
	Doc   *goquery.Document
	Base  *url.URL
	Today domain.Date
}

// NewInput parses body once for all strategies. base resolves relative links.
func NewInput(body string, base *url.URL, today domain.Date) Input {
	in := Input{Body: body, Base: base, Today: today}
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(body)); err == nil {
		in.Doc = doc
	}
	return in
}

// ParseStrategy is a named, pure extraction function.
type ParseStrategy struct {
	Name  string
	Parse func(Input) ParseOutcome
}

// ParseChain applies strategies in order and stops at the first match.
type ParseChain struct {
	strategies []ParseStrategy
	logger     *zap.Logger
}

func NewParseChain(strategies []ParseStrategy, logger *zap.Logger) *ParseChain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ParseChain{strategies: strategies, logger: logger}
}

// Parse returns the rows of the first matching strategy and its name.
// ok is false when every strategy came back empty or failed.
func (c *ParseChain) Parse(in Input) (rows []Row, strategy string, ok bool) {
	for _, s := range c.strategies {
		outcome := c.run(s, in)
		switch outcome.Kind {
		case OutcomeMatched:
			return outcome.Rows, s.Name, true
		case OutcomeFailed:
			c.logger.Warn("parse strategy failed",
				zap.String("strategy", s.Name),
				zap.Error(outcome.Err),
			)
		}
	}
	return nil, "", false
}

func (c *ParseChain) run(s ParseStrategy, in Input) (outcome ParseOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = Failed(panicError{value: r})
		}
	}()
	return s.Parse(in)
}

type panicError struct{ value any }

func (e panicError) Error() string { return fmt.Sprintf("parse strategy panicked: %v", e.value) }

var (
	spaceRun     = regexp.MustCompile(`\s+`)
	titleReplace = strings.NewReplacer(
		"\u2019", "'",
		"\u2018", "'",
		"\u2013", "-",
		"\u2014", "-",
		"\u00a0", " ",
	)
)

// cleanTitle decodes entities, folds typographic quotes and dashes to ASCII
// and collapses whitespace.
func cleanTitle(s string) string {
	s = html.UnescapeString(s)
	s = titleReplace.Replace(s)
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// resolveLink returns an absolute link for href, or "" when href is unusable.
func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		if !ref.IsAbs() {
			return ""
		}
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
