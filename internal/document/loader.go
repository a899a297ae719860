package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

	fetchTimeout = 20 * time.Second
)

type SourceKind string

const (
	SourceInline SourceKind = "inline"
	SourceFile   SourceKind = "file"
	SourceURL    SourceKind = "url"
	SourceFeed   SourceKind = "feed"
)

// Source names where the document comes from. For SourceInline, Value is the
// text itself and an empty Value means Sample.
type Source struct {
	Kind  SourceKind
	Value string
}

type Loader struct {
	httpClient *http.Client
	feedParser *gofeed.Parser
	log        *slog.Logger
}

func NewLoader(httpClient *http.Client, log *slog.Logger) *Loader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: fetchTimeout}
	}
	if log == nil {
		log = slog.Default()
	}

	feedParser := gofeed.NewParser()
	feedParser.Client = httpClient
	feedParser.UserAgent = userAgent

	return &Loader{
		httpClient: httpClient,
		feedParser: feedParser,
		log:        log,
	}
}

func (l *Loader) Load(ctx context.Context, src Source) (string, error) {
	value := strings.TrimSpace(src.Value)

	switch src.Kind {
	case SourceInline, "":
		if value == "" {
			return Sample, nil
		}
		return src.Value, nil
	case SourceFile:
		data, err := os.ReadFile(value)
		if err != nil {
			return "", fmt.Errorf("read file: %w", err)
		}
		return string(data), nil
	case SourceURL:
		return l.loadPage(ctx, value)
	case SourceFeed:
		return l.loadFeedItem(ctx, value)
	default:
		return "", fmt.Errorf("unknown source kind %q", src.Kind)
	}
}

func (l *Loader) loadPage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := l.httpClient.Do(req) //nolint:gosec // user-provided URL
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			l.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"pageURL", pageURL)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("create document from reader: %w", err)
	}

	text := extractText(doc.Selection)
	if text == "" {
		return "", errors.New("page has no text")
	}

	l.log.InfoContext(ctx, "Document is loaded from page",
		"pageURL", pageURL,
		"length", len(text))

	return text, nil
}

func (l *Loader) loadFeedItem(ctx context.Context, feedURL string) (string, error) {
	parsed, err := l.feedParser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return "", fmt.Errorf("parse feed by URL %q: %w", feedURL, err)
	}

	item := newestItem(parsed.Items)
	if item == nil {
		return "", fmt.Errorf("feed %q has no items", feedURL)
	}

	body := item.Content
	if strings.TrimSpace(body) == "" {
		body = item.Description
	}

	text, err := htmlToText(body)
	if err != nil {
		return "", fmt.Errorf("convert item content: %w", err)
	}
	if text == "" {
		return "", fmt.Errorf("feed item %q has no text", item.Link)
	}

	l.log.InfoContext(ctx, "Document is loaded from feed",
		"feedURL", feedURL,
		"feedTitle", strings.TrimSpace(parsed.Title),
		"itemTitle", strings.TrimSpace(item.Title),
		"itemURL", strings.TrimSpace(item.Link))

	return text, nil
}

func newestItem(items []*gofeed.Item) *gofeed.Item {
	var (
		newest     *gofeed.Item
		newestTime time.Time
	)

	for _, item := range items {
		if item == nil {
			continue
		}

		var published time.Time
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			published = *item.UpdatedParsed
		}

		if newest == nil || published.After(newestTime) {
			newest = item
			newestTime = published
		}
	}

	return newest
}

func htmlToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("create document from reader: %w", err)
	}

	return extractText(doc.Selection), nil
}

// extractText prefers paragraphs of the main content element and falls back
// to its whole text.
func extractText(root *goquery.Selection) string {
	content := root.Find("article").First()
	if content.Length() == 0 {
		content = root.Find("main").First()
	}
	if content.Length() == 0 {
		content = root.Find("body").First()
	}
	if content.Length() == 0 {
		content = root
	}

	content.Find("script, style, noscript").Remove()

	var paragraphs []string
	content.Find("p").Each(func(_ int, s *goquery.Selection) {
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	if len(paragraphs) > 0 {
		return strings.Join(paragraphs, "\n")
	}

	return strings.Join(strings.Fields(content.Text()), " ")
}
