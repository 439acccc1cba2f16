package scraper

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/kursadbilgin/notice-engine/internal/domain"
	"github.com/mmcdole/gofeed"
)

// DefaultParseStrategies returns the extraction patterns in priority order.
func DefaultParseStrategies() []ParseStrategy {
	return []ParseStrategy{
		{Name: "table-row", Parse: parseTableRows},
		{Name: "markdown-table", Parse: parseMarkdownTable},
		{Name: "feed", Parse: parseFeed},
		{Name: "list-item", Parse: parseListItems},
		{Name: "article", Parse: parseArticles},
		{Name: "link-near-date", Parse: parseLinksNearDates},
		{Name: "document-links", Parse: parseDocumentLinks},
	}
}

var serialPattern = regexp.MustCompile(`^\d+$`)

// parseTableRows reads <tr> rows shaped as serial | date | title | link.
func parseTableRows(in Input) ParseOutcome {
	if in.Doc == nil {
		return Empty()
	}

	var rows []Row
	in.Doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("td")
		if cells.Length() < 4 {
			return
		}

		serial := strings.TrimSpace(cells.Eq(0).Text())
		if !serialPattern.MatchString(serial) {
			return
		}
		dateText := strings.TrimSpace(cells.Eq(1).Text())
		if !datePattern.MatchString(dateText) {
			return
		}
		title := cleanTitle(cells.Eq(2).Text())
		if title == "" {
			return
		}
		href, _ := cells.Eq(3).Find("a[href]").First().Attr("href")
		link := resolveLink(in.Base, href)
		if link == "" {
			return
		}

		rows = append(rows, Row{
			Serial: serial,
			Date:   dateOrToday(dateText, in.Today),
			Title:  title,
			URL:    link,
		})
	})
	return Matched(rows)
}

var (
	markdownRow  = regexp.MustCompile(`\|\s*(\d+)\s*\|\s*(\d{1,2}-\d{1,2}-\d{2,4})\s*\|\s*([^|\n]+?)\s*\|`)
	markdownLink = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^)\s]+)\)`)
	absoluteLink = regexp.MustCompile(`https?://[^\s)\]"'<>]+`)
)

// parseMarkdownTable reads "| serial | date | title |" rows as produced by
// readability proxies. The document link is guessed from the page's PDF links.
func parseMarkdownTable(in Input) ParseOutcome {
	matches := markdownRow.FindAllStringSubmatch(in.Body, -1)
	if len(matches) == 0 {
		return Empty()
	}

	var pdfLinks []string
	for _, link := range absoluteLink.FindAllString(in.Body, -1) {
		if strings.Contains(strings.ToLower(link), ".pdf") {
			pdfLinks = append(pdfLinks, link)
		}
	}

	fallback := ""
	if in.Base != nil {
		fallback = in.Base.String()
	}

	rows := make([]Row, 0, len(matches))
	for _, m := range matches {
		cell := m[3]
		link := ""
		if lm := markdownLink.FindStringSubmatch(cell); lm != nil {
			cell = lm[1]
			link = lm[2]
		}

		title := cleanTitle(cell)
		if len(title) < 5 || strings.Contains(strings.ToLower(title), "subject") {
			continue
		}
		if link == "" {
			link = matchPDFLink(title, pdfLinks)
		}
		if link == "" {
			link = fallback
		}

		rows = append(rows, Row{
			Serial: m[1],
			Date:   dateOrToday(m[2], in.Today),
			Title:  title,
			URL:    link,
		})
	}
	return Matched(rows)
}

// matchPDFLink picks the first link containing one of the title's first three
// words longer than three characters.
func matchPDFLink(title string, links []string) string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(title)) {
		if len(w) > 3 {
			words = append(words, w)
		}
		if len(words) == 3 {
			break
		}
	}
	if len(words) == 0 {
		return ""
	}

	for _, link := range links {
		lower := strings.ToLower(link)
		for _, w := range words {
			if strings.Contains(lower, w) {
				return link
			}
		}
	}
	return ""
}

func looksLikeFeed(body string) bool {
	head := strings.ToLower(strings.TrimSpace(body))
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.HasPrefix(head, "<?xml") || strings.Contains(head, "<rss") || strings.Contains(head, "<feed")
}

// parseFeed reads RSS/Atom payloads such as a category's /feed/ endpoint.
func parseFeed(in Input) ParseOutcome {
	if !looksLikeFeed(in.Body) {
		return Empty()
	}

	feed, err := gofeed.NewParser().ParseString(in.Body)
	if err != nil {
		return Failed(err)
	}

	rows := make([]Row, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		title := cleanTitle(item.Title)
		link := resolveLink(in.Base, item.Link)
		if title == "" || link == "" {
			continue
		}

		date := in.Today
		switch {
		case item.PublishedParsed != nil:
			date = domain.DateOf(*item.PublishedParsed)
		case item.UpdatedParsed != nil:
			date = domain.DateOf(*item.UpdatedParsed)
		}
		rows = append(rows, Row{Date: date, Title: title, URL: link})
	}
	return Matched(rows)
}

// parseListItems reads <li> elements carrying both a link and a date.
func parseListItems(in Input) ParseOutcome {
	if in.Doc == nil {
		return Empty()
	}

	var rows []Row
	in.Doc.Find("li").Each(func(_ int, li *goquery.Selection) {
		a := li.Find("a[href]").First()
		if a.Length() == 0 {
			return
		}
		text := li.Text()
		dateText := datePattern.FindString(text)
		if dateText == "" {
			return
		}
		href, _ := a.Attr("href")
		link := resolveLink(in.Base, href)
		if link == "" {
			return
		}
		title := cleanTitle(a.Text())
		if title == "" {
			title = cleanTitle(strings.Replace(text, dateText, "", 1))
		}
		if title == "" {
			return
		}

		rows = append(rows, Row{Date: dateOrToday(dateText, in.Today), Title: title, URL: link})
	})
	return Matched(rows)
}

// parseArticles reads blog-style <article> blocks. The date is optional.
func parseArticles(in Input) ParseOutcome {
	if in.Doc == nil {
		return Empty()
	}

	var rows []Row
	in.Doc.Find("article").Each(func(_ int, art *goquery.Selection) {
		a := art.Find("h1 a[href], h2 a[href], h3 a[href]").First()
		if a.Length() == 0 {
			a = art.Find("a[href]").First()
		}
		if a.Length() == 0 {
			return
		}
		href, _ := a.Attr("href")
		link := resolveLink(in.Base, href)
		if link == "" {
			return
		}
		title := cleanTitle(a.Text())
		if title == "" {
			title = cleanTitle(art.Find("h1, h2, h3").First().Text())
		}
		if title == "" {
			return
		}

		rows = append(rows, Row{Date: articleDate(art, in.Today), Title: title, URL: link})
	})
	return Matched(rows)
}

func articleDate(art *goquery.Selection, today domain.Date) domain.Date {
	if tm := art.Find("time").First(); tm.Length() > 0 {
		if dt, ok := tm.Attr("datetime"); ok && len(dt) >= 10 {
			if d, err := domain.ParseDate(dt[:10]); err == nil {
				return d
			}
		}
		if d, ok := parseDayMonthYear(tm.Text()); ok {
			return d
		}
	}
	return dateOrToday(art.Text(), today)
}

// parseLinksNearDates pairs any link with a date found in its parent or grandparent.
func parseLinksNearDates(in Input) ParseOutcome {
	if in.Doc == nil {
		return Empty()
	}

	seen := make(map[string]struct{})
	var rows []Row
	in.Doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		title := cleanTitle(a.Text())
		if len(title) < 5 {
			return
		}
		href, _ := a.Attr("href")
		link := resolveLink(in.Base, href)
		if link == "" {
			return
		}
		if _, dup := seen[link]; dup {
			return
		}

		dateText := datePattern.FindString(a.Parent().Text())
		if dateText == "" {
			dateText = datePattern.FindString(a.Parent().Parent().Text())
		}
		if dateText == "" {
			return
		}

		seen[link] = struct{}{}
		rows = append(rows, Row{Date: dateOrToday(dateText, in.Today), Title: title, URL: link})
	})
	return Matched(rows)
}

var documentLink = regexp.MustCompile(`(?i)https?://[^\s"'<>()]+\.(?:pdf|docx?|xlsx?|pptx?|jpe?g|png)\b`)

var filenameSeparators = regexp.MustCompile(`[-_+]+`)

// parseDocumentLinks is the last resort: every absolute document link, titled
// from its filename and dated today.
func parseDocumentLinks(in Input) ParseOutcome {
	seen := make(map[string]struct{})
	var rows []Row
	for _, link := range documentLink.FindAllString(in.Body, -1) {
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}

		title := titleFromFilename(link)
		if title == "" {
			continue
		}
		rows = append(rows, Row{Date: in.Today, Title: title, URL: link})
	}
	return Matched(rows)
}

func titleFromFilename(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	name = strings.TrimSuffix(name, path.Ext(name))
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return cleanTitle(filenameSeparators.ReplaceAllString(name, " "))
}
