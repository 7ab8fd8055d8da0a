package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/araddon/dateparse"

	"github.com/newsflow-io/newsflow/internal/model"
)

// maxAPIBody caps how much of an API response is read.
const maxAPIBody = 8 << 20

// APIFetcher calls a structured JSON endpoint and maps each element of the
// configured item array to a normalized content item.
type APIFetcher struct {
	client *http.Client
}

func NewAPIFetcher(client *http.Client) *APIFetcher {
	return &APIFetcher{client: client}
}

func (f *APIFetcher) Type() model.SourceType { return model.SourceTypeAPI }

func (f *APIFetcher) Fetch(ctx context.Context, src model.Source) ([]model.NormalizedContent, error) {
	req, err := buildAPIRequest(ctx, src)
	if err != nil {
		return nil, NewError(ErrUnknown, err)
	}

	resp, err := doRequest(f.client, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIBody))
	if err != nil {
		return nil, NewError(Classify(err), err)
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, NewError(ErrParse, fmt.Errorf("decode response: %w", err))
	}

	rawItems, err := locateItems(payload, src.Config.DataPath)
	if err != nil {
		return nil, NewError(ErrParse, err)
	}

	items := make([]model.NormalizedContent, 0, len(rawItems))
	for _, raw := range rawItems {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		items = append(items, normalizeAPIItem(obj, src))
	}
	return items, nil
}

func buildAPIRequest(ctx context.Context, src model.Source) (*http.Request, error) {
	method := strings.ToUpper(src.Config.Method)
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, src.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "newsflow/1.0")
	for k, v := range src.Config.Headers {
		req.Header.Set(k, v)
	}

	q := req.URL.Query()
	for k, v := range src.Config.QueryParams {
		q.Set(k, v)
	}

	cfg := src.Config
	switch cfg.AuthType {
	case model.AuthBearer:
		req.Header.Set("Authorization", "Bearer "+cfg.AuthToken)
	case model.AuthHeader:
		name := cfg.AuthParam
		if name == "" {
			name = "X-API-Key"
		}
		req.Header.Set(name, cfg.AuthToken)
	case model.AuthQuery:
		name := cfg.AuthParam
		if name == "" {
			name = "api_key"
		}
		q.Set(name, cfg.AuthToken)
	case model.AuthBasic:
		req.SetBasicAuth(cfg.BasicUser, cfg.AuthToken)
	}
	req.URL.RawQuery = q.Encode()

	return req, nil
}

// locateItems walks a dot-separated path into the decoded payload and
// returns the item array found there. An empty path expects the payload
// itself to be the array.
func locateItems(payload any, dataPath string) ([]any, error) {
	node := payload
	if dataPath != "" {
		for _, part := range strings.Split(dataPath, ".") {
			obj, ok := node.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("data path %q: %q is not an object", dataPath, part)
			}
			node, ok = obj[part]
			if !ok {
				return nil, fmt.Errorf("data path %q: missing key %q", dataPath, part)
			}
		}
	}
	arr, ok := node.([]any)
	if !ok {
		return nil, fmt.Errorf("data path %q does not resolve to an array", dataPath)
	}
	return arr, nil
}

func normalizeAPIItem(obj map[string]any, src model.Source) model.NormalizedContent {
	item := model.NormalizedContent{
		Title:     stringField(obj, "title", "headline", "name"),
		Summary:   stringField(obj, "summary", "description", "abstract"),
		Body:      stringField(obj, "body", "content", "text"),
		SourceURL: stringField(obj, "url", "link", "href"),
		Author:    stringField(obj, "author", "byline", "creator"),
		ImageURL:  stringField(obj, "image_url", "image", "urlToImage", "thumbnail"),
		Metadata:  map[string]any{"raw": obj},
	}
	if item.SourceURL == "" {
		item.SourceURL = src.URL
	}
	if ts := stringField(obj, "published_at", "publishedAt", "pub_date", "date"); ts != "" {
		if t, err := dateparse.ParseAny(ts); err == nil {
			item.PublishedAt = t.UTC()
		}
	}
	if tags, ok := obj["tags"].([]any); ok {
		for _, tag := range tags {
			if s, ok := tag.(string); ok {
				item.Tags = append(item.Tags, s)
			}
		}
	}
	return item
}

func stringField(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := obj[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
