// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sign resolves short-lived delegated-access tokens for asset
// URLs and probes asset sizes ahead of download.
package sign

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/scene-fetch/internal/httputil"
	"github.com/pdiddy/scene-fetch/pkg/types"
)

// expiryMargin is how long before a token lapses it stops being reused.
// Signing a large item mid-download with a nearly-dead token would fail
// the later assets.
const expiryMargin = time.Minute

// fallbackTTL caches a token whose expiry could not be parsed.
const fallbackTTL = 5 * time.Minute

// Signer fetches per-collection access tokens from the token service and
// rewrites asset URLs to carry them. Tokens are cached until shortly
// before expiry.
type Signer struct {
	base            string
	session         *httputil.Session
	logger          zerolog.Logger
	subscriptionKey string

	mu    sync.Mutex
	cache map[string]cachedToken
}

type cachedToken struct {
	token  string
	expiry time.Time
}

// tokenResponse matches the token service reply.
type tokenResponse struct {
	Token  string `json:"token"`
	Expiry string `json:"msft:expiry"`
}

// NewSigner returns a signer for the token service rooted at base. The
// subscription key is optional; when set it is sent with token requests
// for higher rate limits.
func NewSigner(base string, session *httputil.Session, logger zerolog.Logger, subscriptionKey string) *Signer {
	return &Signer{
		base:            strings.TrimRight(base, "/"),
		session:         session,
		logger:          logger,
		subscriptionKey: subscriptionKey,
		cache:           make(map[string]cachedToken),
	}
}

// Token returns a valid access token for the collection, fetching a new
// one only when the cached token is missing or about to expire.
func (s *Signer) Token(ctx context.Context, collection string) (string, error) {
	if collection == "" {
		return "", errors.New("collection required for signing")
	}

	s.mu.Lock()
	if tok, ok := s.cache[collection]; ok && time.Now().Before(tok.expiry.Add(-expiryMargin)) {
		s.mu.Unlock()
		return tok.token, nil
	}
	s.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+"/token/"+collection, nil)
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	if s.subscriptionKey != "" {
		req.Header.Set("Ocp-Apim-Subscription-Key", s.subscriptionKey)
	}

	resp, err := s.session.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("token request for %s: %w", collection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("token service returned HTTP %d for %s: %s",
			resp.StatusCode, collection, strings.TrimSpace(string(snippet)))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("parsing token response: %w", err)
	}
	if tr.Token == "" {
		return "", fmt.Errorf("token service returned no token for %s", collection)
	}

	expiry, err := time.Parse(time.RFC3339, tr.Expiry)
	if err != nil {
		s.logger.Warn().Str("collection", collection).Str("expiry", tr.Expiry).
			Msg("unparseable token expiry, using short cache lifetime")
		expiry = time.Now().Add(fallbackTTL)
	}

	s.mu.Lock()
	s.cache[collection] = cachedToken{token: tr.Token, expiry: expiry}
	s.mu.Unlock()

	s.logger.Debug().Str("collection", collection).Time("expiry", expiry).Msg("fetched access token")
	return tr.Token, nil
}

// SignItem returns a copy of the item with every asset href carrying the
// collection's access token. The input item is never modified, so its
// unsigned hrefs stay usable for output naming.
func (s *Signer) SignItem(ctx context.Context, item types.Item) (types.Item, error) {
	token, err := s.Token(ctx, item.Collection)
	if err != nil {
		return types.Item{}, err
	}

	signed := item
	signed.Assets = make(map[string]types.Asset, len(item.Assets))
	for key, asset := range item.Assets {
		asset.Href = signHref(asset.Href, token)
		signed.Assets[key] = asset
	}
	return signed, nil
}

// signHref appends the token query string to an asset URL.
func signHref(href, token string) string {
	if token == "" {
		return href
	}
	sep := "?"
	if strings.Contains(href, "?") {
		sep = "&"
	}
	return href + sep + token
}

// ProbeSize HEADs every asset and returns the summed Content-Length. A
// response without a Content-Length makes the aggregate impossible and
// is an error; the response status is not consulted here, the per-asset
// download surfaces real failures later.
func (s *Signer) ProbeSize(ctx context.Context, item types.Item) (int64, error) {
	var total int64
	for key, asset := range item.Assets {
		resp, err := s.session.Head(ctx, asset.Href)
		if err != nil {
			return 0, fmt.Errorf("probing asset %s: %w", key, err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.ContentLength < 0 {
			return 0, fmt.Errorf("asset %s: HEAD response carries no content length", key)
		}
		total += resp.ContentLength
	}
	return total, nil
}
