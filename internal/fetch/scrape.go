package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	readability "github.com/go-shiori/go-readability"

	"github.com/newsflow-io/newsflow/internal/model"
)

const maxScrapeBody = 4 << 20

// defaultSelectors is the ordered list of structural content-block selectors
// tried when a source declares none; first match wins.
var defaultSelectors = []string{
	"article",
	"main",
	"[role=main]",
	".article-content",
	".post-content",
	".entry-content",
	"#content",
}

// ScrapeFetcher extracts a single item from an HTML page via metadata tags
// and best-effort content selectors. Scraped items carry lower default trust.
type ScrapeFetcher struct {
	client *http.Client
}

func NewScrapeFetcher(client *http.Client) *ScrapeFetcher {
	return &ScrapeFetcher{client: client}
}

func (f *ScrapeFetcher) Type() model.SourceType { return model.SourceTypeScrape }

func (f *ScrapeFetcher) Fetch(ctx context.Context, src model.Source) ([]model.NormalizedContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, NewError(ErrUnknown, err)
	}
	req.Header.Set("User-Agent", "newsflow/1.0")
	for k, v := range src.Config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := doRequest(f.client, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxScrapeBody))
	if err != nil {
		return nil, NewError(Classify(err), err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, NewError(ErrParse, err)
	}

	item := model.NormalizedContent{
		Title:     pageTitle(doc),
		Summary:   metaContent(doc, "og:description", "twitter:description", "description"),
		ImageURL:  metaContent(doc, "og:image", "twitter:image"),
		Author:    metaContent(doc, "author", "article:author"),
		SourceURL: src.URL,
		Metadata:  map[string]any{"scraped": true},
	}

	if ts := metaContent(doc, "article:published_time", "og:published_time", "date"); ts != "" {
		if t, err := dateparse.ParseAny(ts); err == nil {
			item.PublishedAt = t.UTC()
		}
	}

	selectors := src.Config.Selectors
	if len(selectors) == 0 {
		selectors = defaultSelectors
	}
	item.Body = contentBlock(doc, selectors)
	if item.Body == "" {
		// Structural selectors missed; let readability pull the main text.
		if u, perr := url.Parse(src.URL); perr == nil {
			if article, rerr := readability.FromReader(bytes.NewReader(body), u); rerr == nil {
				item.Body = strings.TrimSpace(article.TextContent)
				if item.Title == "" {
					item.Title = article.Title
				}
			}
		}
	}

	if item.Title == "" && item.Body == "" {
		return nil, NewError(ErrParse, errors.New("no title or content block found"))
	}
	return []model.NormalizedContent{item}, nil
}

func pageTitle(doc *goquery.Document) string {
	if t := metaContent(doc, "og:title", "twitter:title"); t != "" {
		return t
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// metaContent returns the first non-empty content attribute among meta tags
// matched by property or name.
func metaContent(doc *goquery.Document, keys ...string) string {
	for _, key := range keys {
		sel := `meta[property="` + key + `"], meta[name="` + key + `"]`
		if v, ok := doc.Find(sel).First().Attr("content"); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func contentBlock(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if text := strings.TrimSpace(node.Text()); text != "" {
			return collapseWhitespace(text)
		}
	}
	return ""
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
