package fetch

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/newsflow-io/newsflow/internal/model"
)

// FeedFetcher parses RSS/Atom feeds; each entry becomes one item.
type FeedFetcher struct {
	client *http.Client
}

// NewFeedFetcher wires the shared HTTP client into a gofeed parser.
func NewFeedFetcher(client *http.Client) *FeedFetcher {
	return &FeedFetcher{client: client}
}

func (f *FeedFetcher) Type() model.SourceType { return model.SourceTypeFeed }

func (f *FeedFetcher) Fetch(ctx context.Context, src model.Source) ([]model.NormalizedContent, error) {
	parser := gofeed.NewParser()
	parser.Client = f.client

	feed, err := parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		var he gofeed.HTTPError
		if errors.As(err, &he) {
			return nil, StatusError(he.StatusCode, he.Status)
		}
		if cat := Classify(err); cat != ErrUnknown {
			return nil, NewError(cat, err)
		}
		// gofeed folds transport and XML failures into one error; a
		// reachable host with a bad payload is a parse problem.
		return nil, NewError(ErrParse, err)
	}

	items := make([]model.NormalizedContent, 0, len(feed.Items))
	for _, item := range feed.Items {
		items = append(items, normalizeFeedItem(item, feed.Title, src))
	}
	return items, nil
}

func normalizeFeedItem(item *gofeed.Item, feedTitle string, src model.Source) model.NormalizedContent {
	var publishedAt time.Time
	if item.PublishedParsed != nil {
		publishedAt = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		publishedAt = *item.UpdatedParsed
	}

	author := ""
	if item.Author != nil {
		author = item.Author.Name
	}

	summary := item.Description
	body := item.Content
	if body == "" {
		body = item.Description
	}

	imageURL := ""
	if item.Image != nil {
		imageURL = item.Image.URL
	}

	tags := make([]string, len(item.Categories))
	copy(tags, item.Categories)

	link := item.Link
	if link == "" {
		link = src.URL
	}

	return model.NormalizedContent{
		Title:       item.Title,
		Summary:     summary,
		Body:        body,
		SourceURL:   link,
		PublishedAt: publishedAt,
		Author:      author,
		ImageURL:    imageURL,
		Tags:        tags,
		Metadata: map[string]any{
			"guid":       item.GUID,
			"feed_title": feedTitle,
		},
	}
}
