// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire streams signed catalog assets into per-scene
// directories.
package acquire

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/pdiddy/scene-fetch/internal/httputil"
	"github.com/pdiddy/scene-fetch/internal/sign"
	"github.com/pdiddy/scene-fetch/pkg/types"
)

// DirSuffix marks scene directories produced by this client, so a
// directory of mixed provenance stays legible.
const DirSuffix = ".PC"

const defaultChunkSize = 32 * 1024

// Downloader fetches item assets through the shared retrying session.
type Downloader struct {
	session   *httputil.Session
	signer    *sign.Signer
	logger    zerolog.Logger
	chunkSize int
}

// NewDownloader wires a downloader to the session and signer. A
// non-positive chunkSize gets the 32 KiB default.
func NewDownloader(session *httputil.Session, signer *sign.Signer, logger zerolog.Logger, chunkSize int) *Downloader {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &Downloader{
		session:   session,
		signer:    signer,
		logger:    logger,
		chunkSize: chunkSize,
	}
}

// DownloadItem downloads every asset of item into outDir/<id>.PC. The
// scene directory is destroyed and recreated first: a download is a
// fresh snapshot, stale files never survive. Signing or size-probe
// failures are fatal for the item; a failed asset logs an error and the
// remaining assets still download.
func (d *Downloader) DownloadItem(ctx context.Context, item types.Item, outDir string, progress types.ProgressFunc) (*types.DownloadResult, error) {
	sceneDir := filepath.Join(outDir, item.ID+DirSuffix)
	if err := os.RemoveAll(sceneDir); err != nil {
		return nil, fmt.Errorf("clearing scene directory %s: %w", sceneDir, err)
	}
	if err := os.MkdirAll(sceneDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating scene directory %s: %w", sceneDir, err)
	}

	signed, err := d.signer.SignItem(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("signing item %s: %w", item.ID, err)
	}
	total, err := d.signer.ProbeSize(ctx, signed)
	if err != nil {
		return nil, fmt.Errorf("probing size of item %s: %w", item.ID, err)
	}

	result := &types.DownloadResult{
		ItemID:     item.ID,
		Dir:        sceneDir,
		Assets:     len(item.Assets),
		TotalBytes: total,
	}
	d.logger.Info().Str("item", item.ID).Int("assets", len(item.Assets)).
		Int64("bytes", total).Msg("downloading item")

	for _, key := range sortedKeys(signed.Assets) {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		// Files are named after the unsigned href so the token query
		// string never leaks into the filesystem.
		name := assetFileName(item.Assets[key].Href, key)
		dest := filepath.Join(sceneDir, name)

		n, err := d.downloadAsset(ctx, signed.Assets[key].Href, dest, progress)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			d.logger.Error().Str("item", item.ID).Str("asset", key).Err(err).
				Msg("asset download failed")
			result.Failed++
			continue
		}
		result.Downloaded++
		result.Bytes += n
	}

	return result, nil
}

// DownloadBatch downloads items in order, exactly once each, continuing
// after per-item failures.
func (d *Downloader) DownloadBatch(ctx context.Context, items []types.Item, outDir string, progress types.ProgressFunc) (*types.BatchResult, error) {
	batch := &types.BatchResult{}
	for i, item := range items {
		if ctx.Err() != nil {
			return batch, ctx.Err()
		}
		d.logger.Info().Int("row", i+1).Int("total", len(items)).Str("item", item.ID).
			Msg("batch progress")

		result, err := d.DownloadItem(ctx, item, outDir, progress)
		if err != nil {
			if ctx.Err() != nil {
				return batch, ctx.Err()
			}
			d.logger.Error().Str("item", item.ID).Err(err).Msg("item download failed")
			batch.Failed++
			if result != nil {
				batch.Results = append(batch.Results, *result)
			}
			continue
		}

		batch.Results = append(batch.Results, *result)
		if result.Failed > 0 {
			batch.Failed++
		} else {
			batch.Downloaded++
		}
	}
	return batch, nil
}

// downloadAsset streams one asset to destPath through a temporary file,
// renaming only on success so a torn download never leaves a
// plausible-looking partial file.
func (d *Downloader) downloadAsset(ctx context.Context, href, destPath string, progress types.ProgressFunc) (int64, error) {
	resp, err := d.session.Get(ctx, href)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// The signed href carries the access token; report the status
		// without echoing the URL.
		return 0, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".fetch-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	written, copyErr := d.copyChunks(tmpFile, resp.Body, progress)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return written, fmt.Errorf("writing asset: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return written, fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return written, fmt.Errorf("renaming temp file: %w", err)
	}
	return written, nil
}

// copyChunks copies src to dst in chunkSize pieces, reporting each write
// to progress.
func (d *Downloader) copyChunks(dst io.Writer, src io.Reader, progress types.ProgressFunc) (int64, error) {
	buf := make([]byte, d.chunkSize)
	var written int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, werr
			}
			written += int64(n)
			if progress != nil {
				progress(int64(n))
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}

// assetFileName derives the output filename from the unsigned asset href,
// falling back to the asset key when the URL path has no usable base.
func assetFileName(href, key string) string {
	if u, err := url.Parse(href); err == nil {
		base := path.Base(u.Path)
		if base != "" && base != "." && base != "/" {
			return base
		}
	}
	return key
}

func sortedKeys(assets map[string]types.Asset) []string {
	keys := make([]string, 0, len(assets))
	for k := range assets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
