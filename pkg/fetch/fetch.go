// Package fetch retrieves remote feeds over HTTP and decodes them into a
// canonical shape for the sync pipeline.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
)

// ErrorKind classifies a fetch failure.
type ErrorKind string

const (
	KindRequest ErrorKind = "request"
	KindStatus  ErrorKind = "status"
	KindParse   ErrorKind = "parse"
	KindTimeout ErrorKind = "timeout"
)

// Error is returned for any failure while fetching or decoding a feed.
// Callers log it and skip the feed for the current cycle.
type Error struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// FetchedFeed is the decoded channel metadata plus its entries, in
// document order.
type FetchedFeed struct {
	Title       string
	SiteLink    string
	Description string
	Items       []FetchedItem
}

// FetchedItem is one normalized feed entry.
type FetchedItem struct {
	GUID        string
	Link        string
	Title       string
	Summary     string
	Content     string
	PublishedAt *time.Time
	UpdatedAt   *time.Time
}

// Fetcher retrieves feeds with a shared HTTP client and per-call timeout.
type Fetcher struct {
	client *http.Client
	parser *gofeed.Parser
}

// New creates a Fetcher. A zero timeout falls back to 30 seconds.
func New(timeout time.Duration) *Fetcher {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		parser: gofeed.NewParser(),
	}
}

// Fetch performs an HTTP GET on url and decodes the body. All failures
// resolve to a *Error; it never panics on malformed documents.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*FetchedFeed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Kind: KindRequest, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", "mercury/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		kind := KindRequest
		if isTimeout(err) {
			kind = KindTimeout
		}
		return nil, &Error{Kind: kind, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Kind: KindStatus, URL: url, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	parsed, err := f.parser.Parse(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, &Error{Kind: KindTimeout, URL: url, Err: err}
		}
		return nil, &Error{Kind: KindParse, URL: url, Err: err}
	}

	return convert(parsed), nil
}

func convert(parsed *gofeed.Feed) *FetchedFeed {
	ff := &FetchedFeed{
		Title:       parsed.Title,
		SiteLink:    parsed.Link,
		Description: parsed.Description,
		Items:       make([]FetchedItem, 0, len(parsed.Items)),
	}

	for _, entry := range parsed.Items {
		guid := entry.GUID
		if guid == "" {
			guid = entry.Link
		}
		if guid == "" {
			// No usable identity, nothing to reconcile against.
			continue
		}

		link := entry.Link
		if link == "" && len(entry.Links) > 0 {
			link = entry.Links[0]
		}

		ff.Items = append(ff.Items, FetchedItem{
			GUID:        guid,
			Link:        link,
			Title:       entry.Title,
			Summary:     entry.Description,
			Content:     entry.Content,
			PublishedAt: utcOrNil(entry.PublishedParsed),
			UpdatedAt:   utcOrNil(entry.UpdatedParsed),
		})
	}

	return ff
}

// utcOrNil keeps absent dates absent. Substituting time.Now here would make
// every re-fetch of the entry look like an update.
func utcOrNil(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
