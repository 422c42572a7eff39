// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package stac talks to a STAC catalog API: the root document, item
// search with pagination, friendly datetime expansion, saved-search
// files, and result rendering.
package stac

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pdiddy/scene-fetch/internal/httputil"
	"github.com/pdiddy/scene-fetch/pkg/types"
)

// Client queries one STAC catalog through the shared retrying session.
type Client struct {
	base    string
	session *httputil.Session
	logger  zerolog.Logger
}

// NewClient returns a client for the catalog rooted at base.
func NewClient(base string, session *httputil.Session, logger zerolog.Logger) *Client {
	return &Client{
		base:    strings.TrimRight(base, "/"),
		session: session,
		logger:  logger,
	}
}

// CatalogInfo is the subset of the catalog root document the client
// reports back.
type CatalogInfo struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Connect fetches the catalog root document. A catalog that cannot serve
// its root is treated as unavailable.
func (c *Client) Connect(ctx context.Context) (*CatalogInfo, error) {
	resp, err := c.session.Get(ctx, c.base)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog root: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog root returned HTTP %d: %s", resp.StatusCode, bodySnippet(resp.Body))
	}

	var info CatalogInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("parsing catalog root: %w", err)
	}

	c.logger.Debug().Str("catalog", info.ID).Str("title", info.Title).Msg("connected to catalog")
	return &info, nil
}

// SearchRequest holds the parameters for one item search. Datetime must
// already be expanded to a catalog interval (see ExpandDatetime).
type SearchRequest struct {
	Collections []string
	Datetime    string
	Intersects  interface{}
	PageSize    int
	MaxItems    int
}

// searchPage is one page of the search response FeatureCollection.
type searchPage struct {
	Features []types.Item `json:"features"`
	Links    []pageLink   `json:"links"`
}

// pageLink is a hypermedia link; POST next links may carry a body to
// merge into the original request.
type pageLink struct {
	Rel    string                 `json:"rel"`
	Href   string                 `json:"href"`
	Method string                 `json:"method,omitempty"`
	Body   map[string]interface{} `json:"body,omitempty"`
	Merge  bool                   `json:"merge,omitempty"`
}

// Search POSTs the request to the catalog and follows next links until
// the results are exhausted or MaxItems is reached. Items come back in
// catalog order.
func (c *Client) Search(ctx context.Context, req SearchRequest) ([]types.Item, error) {
	body := map[string]interface{}{}
	if len(req.Collections) > 0 {
		body["collections"] = req.Collections
	}
	if req.Datetime != "" {
		body["datetime"] = req.Datetime
	}
	if req.Intersects != nil {
		body["intersects"] = req.Intersects
	}
	if req.PageSize > 0 {
		body["limit"] = req.PageSize
	}

	searchURL := c.base + "/search"
	var items []types.Item

	for page := 1; ; page++ {
		result, err := c.postSearch(ctx, searchURL, body)
		if err != nil {
			return nil, err
		}
		items = append(items, result.Features...)
		c.logger.Debug().Int("page", page).Int("items", len(result.Features)).Msg("search page fetched")

		if req.MaxItems > 0 && len(items) >= req.MaxItems {
			items = items[:req.MaxItems]
			break
		}

		next := findLink(result.Links, "next")
		if next == nil {
			break
		}
		searchURL, body = nextRequest(searchURL, body, *next)
	}

	return items, nil
}

// postSearch issues one search POST and decodes the page.
func (c *Client) postSearch(ctx context.Context, url string, body map[string]interface{}) (*searchPage, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/geo+json")

	resp, err := c.session.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned HTTP %d: %s", resp.StatusCode, bodySnippet(resp.Body))
	}

	var page searchPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}
	return &page, nil
}

// nextRequest derives the URL and body for the page a next link points
// at. A merge link overlays its body onto the current request; a
// non-merge link replaces it.
func nextRequest(url string, body map[string]interface{}, next pageLink) (string, map[string]interface{}) {
	if next.Href != "" {
		url = next.Href
	}
	if next.Body == nil {
		return url, body
	}
	if !next.Merge {
		return url, next.Body
	}
	merged := make(map[string]interface{}, len(body)+len(next.Body))
	for k, v := range body {
		merged[k] = v
	}
	for k, v := range next.Body {
		merged[k] = v
	}
	return url, merged
}

func findLink(links []pageLink, rel string) *pageLink {
	for i := range links {
		if links[i].Rel == rel {
			return &links[i]
		}
	}
	return nil
}

// bodySnippet reads a short prefix of a response body for error messages.
func bodySnippet(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(data))
}
