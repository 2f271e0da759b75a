package calendar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const DefaultESolatURL = "https://www.e-solat.gov.my/index.php?pageId=26&siteId=24"

var (
	dateToken   = regexp.MustCompile(`\d{1,4}[/-]\d{1,2}[/-]\d{1,4}`)
	ramadanWord = regexp.MustCompile(`(?i)ramad(?:an|han)`)

	dateLayouts = []string{"2/1/2006", "2-1-2006", "2006-1-2"}
)

// ESolat scrapes the observance dates from the JAKIM e-Solat calendar page.
type ESolat struct {
	URL    string
	Client *http.Client
}

func NewESolat(url string, client *http.Client) *ESolat {
	if strings.TrimSpace(url) == "" {
		url = DefaultESolatURL
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	return &ESolat{URL: url, Client: client}
}

func (e *ESolat) FetchWindow(ctx context.Context, year int) (Range, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.URL, nil)
	if err != nil {
		return Range{}, err
	}
	req.Header.Set("User-Agent", "puasapush/1.0")
	req.Header.Set("Accept", "text/html")

	resp, err := e.Client.Do(req)
	if err != nil {
		return Range{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return Range{}, fmt.Errorf("e-solat: unexpected status %s", resp.Status)
	}

	r, err := ExtractWindow(io.LimitReader(resp.Body, 8<<20), year)
	if err != nil {
		return Range{}, err
	}
	r.Source = e.URL
	return r, nil
}

// ExtractWindow parses an e-Solat calendar page and returns the earliest and
// latest dates of the given year found on rows mentioning Ramadan. When no
// such row exists the text lines of the page mentioning Ramadan are scanned instead.
func ExtractWindow(r io.Reader, year int) (Range, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Range{}, fmt.Errorf("e-solat: parse html: %w", err)
	}

	var dates []Date
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		text := rowText(row)
		if ramadanWord.MatchString(text) {
			dates = append(dates, datesInYear(text, year)...)
		}
	})

	if len(dates) == 0 {
		doc.Find("body *").Each(func(_ int, s *goquery.Selection) {
			if s.Children().Length() > 0 {
				return
			}
			for _, line := range strings.Split(s.Text(), "\n") {
				if ramadanWord.MatchString(line) {
					dates = append(dates, datesInYear(line, year)...)
				}
			}
		})
	}

	if len(dates) == 0 {
		return Range{}, errors.New("e-solat: no observance dates found for year")
	}
	out := Range{Start: dates[0], End: dates[0]}
	for _, d := range dates[1:] {
		if d.Before(out.Start) {
			out.Start = d
		}
		if d.After(out.End) {
			out.End = d
		}
	}
	return out, nil
}

// rowText joins the cell texts of row with single spaces so adjacent numeric
// cells never merge into one token.
func rowText(row *goquery.Selection) string {
	cells := row.Find("td,th").Map(func(_ int, c *goquery.Selection) string {
		return strings.Join(strings.Fields(c.Text()), " ")
	})
	if len(cells) == 0 {
		return strings.Join(strings.Fields(row.Text()), " ")
	}
	return strings.Join(cells, " ")
}

func datesInYear(text string, year int) []Date {
	var out []Date
	for _, tok := range dateToken.FindAllString(text, -1) {
		for _, layout := range dateLayouts {
			t, err := time.Parse(layout, tok)
			if err != nil {
				continue
			}
			if t.Year() == year {
				out = append(out, DateOf(t))
			}
			break
		}
	}
	return out
}
