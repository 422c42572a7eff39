// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package planetary is the public client for finding and downloading
// satellite scenes from the Microsoft Planetary Computer.
//
// The client ties the catalog, signer, and downloader together around
// one stored search: Connect arms searching, Search fills the result
// table, and the download operations consume it by item id. A Client is
// built for a single catalog and is not safe for concurrent use.
package planetary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/pdiddy/scene-fetch/internal/acquire"
	"github.com/pdiddy/scene-fetch/internal/httputil"
	"github.com/pdiddy/scene-fetch/internal/ledger"
	"github.com/pdiddy/scene-fetch/internal/logging"
	"github.com/pdiddy/scene-fetch/internal/secrets"
	"github.com/pdiddy/scene-fetch/internal/sign"
	"github.com/pdiddy/scene-fetch/internal/stac"
	"github.com/pdiddy/scene-fetch/pkg/aoi"
	"github.com/pdiddy/scene-fetch/pkg/types"
)

// Precondition errors. Each is logged as a warning when the operation
// rejects, and none of them leave filesystem effects behind.
var (
	ErrNotConnected = errors.New("not connected to a catalog")
	ErrNoSearch     = errors.New("no search results available")
	ErrUnknownItem  = errors.New("item not in the current search")
	ErrNoOutputDir  = errors.New("output directory does not exist")
	ErrBadGeometry  = errors.New("invalid search geometry")
)

// Client searches a STAC catalog and downloads signed scene assets.
type Client struct {
	cfg     types.ClientConfig
	logger  zerolog.Logger
	session *httputil.Session
	catalog *stac.Client
	signer  *sign.Signer
	dl      *acquire.Downloader
	history *ledger.Ledger

	connected    bool
	lastSearch   *types.ResultTable
	lastReq      stac.SearchRequest
	lastSearchID int64
}

// New builds a client from cfg with defaults applied. It never fails
// and performs no network I/O; availability errors surface from
// Connect. Logs go to stderr at the configured level.
func New(cfg types.ClientConfig) *Client {
	cfg = cfg.WithDefaults()
	return NewWithLogger(cfg, logging.New(cfg.LogLevel, os.Stderr))
}

// NewWithLogger is New with an explicit logger, for tests and for
// embedding applications that own the log sink.
func NewWithLogger(cfg types.ClientConfig, logger zerolog.Logger) *Client {
	cfg = cfg.WithDefaults()
	if cfg.SubscriptionKey == "" {
		cfg.SubscriptionKey = secrets.SubscriptionKey(cfg.SecretsDir)
	}
	session := httputil.NewSession(cfg.HTTPConfig, cfg.Retry)
	signer := sign.NewSigner(cfg.SignerURL, session, logger, cfg.SubscriptionKey)

	c := &Client{
		cfg:     cfg,
		logger:  logger,
		session: session,
		catalog: stac.NewClient(cfg.CatalogURL, session, logger),
		signer:  signer,
		dl:      acquire.NewDownloader(session, signer, logger, cfg.ChunkSize),
	}

	if cfg.LedgerPath != "" {
		led, err := ledger.Open(cfg.LedgerPath)
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.LedgerPath).Msg("history ledger disabled")
		} else {
			c.history = led
		}
	}
	return c
}

// Open is New followed by Connect.
func Open(ctx context.Context, cfg types.ClientConfig) (*Client, error) {
	c := New(cfg)
	if err := c.Connect(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Connect fetches the catalog root document and arms searching.
func (c *Client) Connect(ctx context.Context) error {
	info, err := c.catalog.Connect(ctx)
	if err != nil {
		return err
	}
	c.connected = true
	c.logger.Info().Str("catalog", info.Title).Msg("connected to catalog")
	return nil
}

// Search queries the configured collections for items intersecting
// region between start and end (expanded per the datetime token rules)
// and stores the results as the client's current search. The stored
// table is replaced only on success; a failed search keeps the previous
// results usable.
//
// A zero region searches without a spatial filter. An explicitly
// provided but invalid region logs the diagnostic and returns a usage
// error wrapping ErrBadGeometry.
func (c *Client) Search(ctx context.Context, region aoi.Input, start, end string) (*types.ResultTable, error) {
	if !c.connected {
		c.logger.Warn().Msg("search requested before connecting to the catalog")
		return nil, ErrNotConnected
	}

	datetime, err := stac.ExpandDatetime(start, end)
	if err != nil {
		c.logger.Warn().Err(err).Msg("rejecting search date range")
		return nil, err
	}

	req := stac.SearchRequest{
		Collections: c.cfg.Collections,
		Datetime:    datetime,
		PageSize:    c.cfg.PageSize,
		MaxItems:    c.cfg.MaxItems,
	}

	if region.IsZero() {
		c.logger.Warn().Msg("no geometry provided, searching without a spatial filter")
	} else {
		geom, err := aoi.Build(region)
		if err != nil {
			c.logger.Warn().Err(err).Msg("rejecting search geometry")
			return nil, fmt.Errorf("%w: %v", ErrBadGeometry, err)
		}
		req.Intersects = geom
	}

	items, err := c.catalog.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	table := types.NewResultTable(items)
	c.lastSearch = table
	c.lastReq = req
	c.lastSearchID = 0
	c.logger.Info().Int("items", table.Len()).Str("datetime", datetime).Msg("search complete")

	c.recordSearch(req, table)
	return table, nil
}

// Results returns the current search table and whether one exists.
func (c *Client) Results() (*types.ResultTable, bool) {
	return c.lastSearch, c.lastSearch != nil
}

// RestoreSearch installs a previously saved result table as the current
// search, arming downloads without re-querying the catalog.
func (c *Client) RestoreSearch(table *types.ResultTable) {
	c.lastSearch = table
	c.lastReq = stac.SearchRequest{}
	c.lastSearchID = 0
}

// SaveSearch writes the current search and its results to a YAML file
// that RestoreSearch-based downloads can consume later.
func (c *Client) SaveSearch(path string) error {
	if c.lastSearch == nil {
		c.logger.Warn().Msg("save requested before any search")
		return ErrNoSearch
	}
	return stac.WriteSearchFile(path, c.lastReq, c.cfg.CatalogURL, c.lastSearch.Items())
}

// Download fetches every asset of one item from the current search into
// outDir. Preconditions are checked in order before anything touches
// disk: a prior search must exist (ErrNoSearch), the item must be in it
// (ErrUnknownItem), and outDir must be an existing directory
// (ErrNoOutputDir).
func (c *Client) Download(ctx context.Context, itemID, outDir string, progress types.ProgressFunc) (*types.DownloadResult, error) {
	item, err := c.downloadPreflight(itemID, outDir)
	if err != nil {
		return nil, err
	}

	result, err := c.dl.DownloadItem(ctx, item, outDir, progress)
	if err != nil {
		return result, err
	}
	c.recordDownload(result)
	return result, nil
}

// DownloadAll downloads every item of the current search in table
// order, exactly once each. Per-item failures are counted in the batch
// result and never abort the run; cancellation stops between items and
// propagates.
func (c *Client) DownloadAll(ctx context.Context, outDir string, progress types.ProgressFunc) (*types.BatchResult, error) {
	if c.lastSearch == nil {
		c.logger.Warn().Msg("download requested before any search")
		return nil, ErrNoSearch
	}
	if err := checkOutputDir(outDir); err != nil {
		c.logger.Warn().Str("dir", outDir).Msg("output directory missing")
		return nil, err
	}

	batch, batchErr := c.dl.DownloadBatch(ctx, c.lastSearch.Items(), outDir, progress)
	for i := range batch.Results {
		c.recordDownload(&batch.Results[i])
	}
	if batchErr != nil {
		return batch, batchErr
	}

	c.logger.Info().Int("downloaded", batch.Downloaded).Int("failed", batch.Failed).
		Msg("bulk download complete")
	return batch, nil
}

// Close releases the history database and idle connections.
func (c *Client) Close() error {
	c.session.Client().CloseIdleConnections()
	if c.history != nil {
		return c.history.Close()
	}
	return nil
}

func (c *Client) downloadPreflight(itemID, outDir string) (types.Item, error) {
	if c.lastSearch == nil {
		c.logger.Warn().Str("item", itemID).Msg("download requested before any search")
		return types.Item{}, ErrNoSearch
	}
	item, ok := c.lastSearch.Get(itemID)
	if !ok {
		c.logger.Warn().Str("item", itemID).Msg("item not in the current search")
		return types.Item{}, fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	if err := checkOutputDir(outDir); err != nil {
		c.logger.Warn().Str("dir", outDir).Msg("output directory missing")
		return types.Item{}, err
	}
	return item, nil
}

func checkOutputDir(outDir string) error {
	info, err := os.Stat(outDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNoOutputDir, outDir)
	}
	return nil
}

// recordSearch and recordDownload write history best-effort: ledger
// failures are warnings, and completed work stays recorded even when
// the caller's context has been cancelled.
func (c *Client) recordSearch(req stac.SearchRequest, table *types.ResultTable) {
	if c.history == nil {
		return
	}
	rec := ledger.SearchRecord{
		Catalog:     c.cfg.CatalogURL,
		Collections: req.Collections,
		Datetime:    req.Datetime,
		Items:       table.Len(),
	}
	if req.Intersects != nil {
		if data, err := json.Marshal(req.Intersects); err == nil {
			rec.Geometry = string(data)
		}
	}
	if err := c.history.RecordSearch(context.Background(), &rec); err != nil {
		c.logger.Warn().Err(err).Msg("could not record search in history ledger")
		return
	}
	c.lastSearchID = rec.ID
}

func (c *Client) recordDownload(result *types.DownloadResult) {
	if c.history == nil {
		return
	}
	rec := ledger.DownloadRecord{
		ItemID:   result.ItemID,
		Dir:      result.Dir,
		Assets:   result.Assets,
		Failed:   result.Failed,
		Bytes:    result.Bytes,
		SearchID: c.lastSearchID,
	}
	if err := c.history.RecordDownload(context.Background(), &rec); err != nil {
		c.logger.Warn().Err(err).Msg("could not record download in history ledger")
	}
}
