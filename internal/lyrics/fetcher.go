package lyrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starpy/songtutor/internal/store"
)

// Query identifies the song being looked up.
type Query struct {
	Title    string
	Artist   string
	Keywords string
	Language string
}

// Catalog is the slice of the store the fetcher needs.
type Catalog interface {
	SongByArtistTitle(ctx context.Context, artist, title string) (*store.Song, error)
	SongByKeyword(ctx context.Context, keyword string) (*store.Song, error)
	UpsertSong(ctx context.Context, song *store.Song) error
}

// PageScraper extracts lyric text from a result page.
type PageScraper interface {
	Supports(pageURL string) bool
	Scrape(ctx context.Context, pageURL string) (string, error)
}

// Fetcher resolves a song query to a catalog entry: catalog first, then web
// search plus scraping, persisting what it finds.
type Fetcher struct {
	catalog Catalog
	search  Searcher
	scraper PageScraper
	log     *slog.Logger
}

// NewFetcher creates a lyric fetcher.
func NewFetcher(catalog Catalog, search Searcher, scraper PageScraper, log *slog.Logger) *Fetcher {
	return &Fetcher{catalog: catalog, search: search, scraper: scraper, log: log}
}

// Resolve returns the song for a query, or ErrNotFound when no source has
// it. A successful scrape is stored, so repeating the query hits the
// catalog.
func (f *Fetcher) Resolve(ctx context.Context, q Query) (*store.Song, error) {
	if q.Artist != "" {
		if song, err := f.catalog.SongByArtistTitle(ctx, q.Artist, q.Title); err == nil {
			return song, nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	if q.Keywords != "" {
		if song, err := f.catalog.SongByKeyword(ctx, q.Keywords); err == nil {
			return song, nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	text, err := f.searchAndScrape(ctx, q)
	if err != nil {
		return nil, err
	}

	song := &store.Song{
		Title:          q.Title,
		Artist:         q.Artist,
		SearchKeywords: q.Keywords,
		Lyrics:         text,
		Language:       q.Language,
	}
	if err := f.catalog.UpsertSong(ctx, song); err != nil {
		return nil, fmt.Errorf("failed to store song: %w", err)
	}
	return song, nil
}

func (f *Fetcher) searchAndScrape(ctx context.Context, q Query) (string, error) {
	query := searchQuery(q)
	results, err := f.search.Search(ctx, query)
	if err != nil {
		return "", fmt.Errorf("lyric search failed: %w", err)
	}

	for _, r := range results {
		if !f.scraper.Supports(r.URL) {
			continue
		}
		text, err := f.scraper.Scrape(ctx, r.URL)
		if err != nil {
			f.log.Debug("scrape miss", "url", r.URL, "error", err)
			continue
		}
		if text != "" {
			return text, nil
		}
	}
	return "", ErrNotFound
}

// searchQuery builds the web query, steering results toward the sites the
// scraper can read.
func searchQuery(q Query) string {
	title := q.Title
	if title == "" {
		title = q.Keywords
	}
	var b strings.Builder
	fmt.Fprintf(&b, "lyrics of the song %s", title)
	if q.Artist != "" {
		fmt.Fprintf(&b, " by %s", q.Artist)
	}
	b.WriteString(" (prefer on AZlyrics.com or miraikyun.com)")
	return b.String()
}
