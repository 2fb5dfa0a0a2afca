package lyrics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Scrape failure modes, distinguishable with errors.Is.
var (
	ErrUnknownSite = errors.New("lyrics: site not supported")
	ErrBadStatus   = errors.New("lyrics: page fetch failed")
	ErrNoLyrics    = errors.New("lyrics: no lyric text on page")
)

const (
	scrapeUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	maxPageBytes    = 2 << 20
)

// Scraper extracts lyric text from the known lyric sites.
type Scraper struct {
	client *http.Client
}

// NewScraper creates a scraper with the given timeout.
func NewScraper(timeout time.Duration) *Scraper {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Scraper{client: &http.Client{Timeout: timeout}}
}

// Supports reports whether the URL points at a site the scraper knows.
func (s *Scraper) Supports(pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	return host == "azlyrics.com" || host == "miraikyun.com"
}

// Scrape fetches a page and extracts its lyric text using the site's
// selector. Unsupported hosts return ErrUnknownSite.
func (s *Scraper) Scrape(ctx context.Context, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", pageURL, err)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")

	var extract func(*goquery.Document) (string, error)
	switch host {
	case "azlyrics.com":
		extract = extractAZLyrics
	case "miraikyun.com":
		extract = extractMiraikyun
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownSite, host)
	}

	doc, err := s.fetch(ctx, pageURL)
	if err != nil {
		return "", err
	}
	return extract(doc)
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", scrapeUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("page fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrBadStatus, pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return doc, nil
}

// extractAZLyrics takes the class-less div inside the lyric column, the
// site's convention for the lyric body.
func extractAZLyrics(doc *goquery.Document) (string, error) {
	var text string
	doc.Find("div.col-xs-12.col-lg-8.text-center > div").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if _, hasClass := sel.Attr("class"); hasClass {
			return true
		}
		text = strings.TrimSpace(sel.Text())
		return text == ""
	})
	if text == "" {
		return "", ErrNoLyrics
	}
	return text, nil
}

// extractMiraikyun joins the entry-content paragraphs, one verse per
// paragraph.
func extractMiraikyun(doc *goquery.Document) (string, error) {
	var parts []string
	doc.Find("div.entry-content p").Each(func(_ int, sel *goquery.Selection) {
		if t := strings.TrimSpace(sel.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) == 0 {
		return "", ErrNoLyrics
	}
	return strings.Join(parts, "\n"), nil
}
