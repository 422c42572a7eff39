// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/scene-fetch/internal/httputil"
	"github.com/pdiddy/scene-fetch/internal/sign"
	"github.com/pdiddy/scene-fetch/pkg/types"
)

const tokenQuery = "st=2026-08-25&se=2026-08-26&sig=testsig"

// newAssetServer serves the token endpoint plus fake asset blobs whose
// content is "tile:" followed by the file name. A path ending in
// missing.tif returns 404 and one ending in cut.tif declares 100 bytes
// but sends only 10, so the read fails mid-stream.
func newAssetServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/token/"):
			collection := strings.TrimPrefix(r.URL.Path, "/token/")
			if collection != "sentinel-2-l2a" {
				http.Error(w, "collection not found", http.StatusNotFound)
				return
			}
			expiry := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
			fmt.Fprintf(w, `{"token":%q,"msft:expiry":%q}`, tokenQuery, expiry)
		case strings.HasSuffix(r.URL.Path, "/missing.tif"):
			http.Error(w, "no such blob", http.StatusNotFound)
		case strings.HasSuffix(r.URL.Path, "/cut.tif"):
			w.Header().Set("Content-Length", "100")
			if r.Method == http.MethodHead {
				return
			}
			fmt.Fprint(w, "0123456789")
		case strings.HasPrefix(r.URL.Path, "/assets/"):
			fmt.Fprintf(w, "tile:%s", path.Base(r.URL.Path))
		default:
			http.NotFound(w, r)
		}
	}))
}

func newTestDownloader(ts *httptest.Server) *Downloader {
	session := httputil.NewSessionWithClient(ts.Client(), types.RetryConfig{
		MaxRetries: 0,
		Backoff:    time.Millisecond,
	})
	signer := sign.NewSigner(ts.URL, session, zerolog.Nop(), "")
	return NewDownloader(session, signer, zerolog.Nop(), 0)
}

func testItem(tsURL, id string, assets map[string]string) types.Item {
	item := types.Item{
		ID:         id,
		Collection: "sentinel-2-l2a",
		Assets:     make(map[string]types.Asset, len(assets)),
	}
	for key, file := range assets {
		item.Assets[key] = types.Asset{Href: tsURL + "/assets/" + id + "/" + file}
	}
	return item
}

func TestAssetFileName(t *testing.T) {
	tests := []struct {
		name string
		href string
		key  string
		want string
	}{
		{"plain", "https://example.com/scenes/B02.tif", "B02", "B02.tif"},
		{"query ignored", "https://example.com/scenes/B02.tif?sv=1&sig=abc", "B02", "B02.tif"},
		{"no path", "https://example.com", "visual", "visual"},
		{"root path", "https://example.com/", "thumbnail", "thumbnail"},
		{"unparseable", "://nope", "metadata", "metadata"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := assetFileName(tt.href, tt.key)
			if got != tt.want {
				t.Errorf("assetFileName(%q, %q) = %q, want %q", tt.href, tt.key, got, tt.want)
			}
		})
	}
}

func TestCopyChunks(t *testing.T) {
	d := &Downloader{chunkSize: 4}
	var chunks []int64
	var dst bytes.Buffer

	n, err := d.copyChunks(&dst, strings.NewReader("0123456789"), func(n int64) {
		chunks = append(chunks, n)
	})
	if err != nil {
		t.Fatalf("copyChunks: %v", err)
	}
	if n != 10 {
		t.Errorf("written = %d, want 10", n)
	}
	if dst.String() != "0123456789" {
		t.Errorf("dst = %q, want %q", dst.String(), "0123456789")
	}
	want := []int64{4, 4, 2}
	if len(chunks) != len(want) {
		t.Fatalf("progress calls = %v, want %v", chunks, want)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d = %d, want %d", i, chunks[i], want[i])
		}
	}
}

func TestDownloadItem(t *testing.T) {
	ts := newAssetServer(t)
	defer ts.Close()
	dl := newTestDownloader(ts)

	item := testItem(ts.URL, "S2A-tile-001", map[string]string{
		"B02":    "B02.tif",
		"B03":    "B03.tif",
		"visual": "visual.tif",
	})
	outDir := t.TempDir()

	var progBytes int64
	result, err := dl.DownloadItem(context.Background(), item, outDir, func(n int64) {
		progBytes += n
	})
	if err != nil {
		t.Fatalf("DownloadItem: %v", err)
	}

	if result.ItemID != "S2A-tile-001" {
		t.Errorf("ItemID = %q, want %q", result.ItemID, "S2A-tile-001")
	}
	wantDir := filepath.Join(outDir, "S2A-tile-001.PC")
	if result.Dir != wantDir {
		t.Errorf("Dir = %q, want %q", result.Dir, wantDir)
	}
	if result.Assets != 3 || result.Downloaded != 3 || result.Failed != 0 {
		t.Errorf("counts = %d/%d/%d, want 3/3/0", result.Assets, result.Downloaded, result.Failed)
	}

	var wantBytes int64
	for _, file := range []string{"B02.tif", "B03.tif", "visual.tif"} {
		data, err := os.ReadFile(filepath.Join(wantDir, file))
		if err != nil {
			t.Fatalf("reading %s: %v", file, err)
		}
		want := "tile:" + file
		if string(data) != want {
			t.Errorf("%s content = %q, want %q", file, string(data), want)
		}
		wantBytes += int64(len(want))
	}
	if result.Bytes != wantBytes {
		t.Errorf("Bytes = %d, want %d", result.Bytes, wantBytes)
	}
	if result.TotalBytes != wantBytes {
		t.Errorf("TotalBytes = %d, want %d", result.TotalBytes, wantBytes)
	}
	if progBytes != wantBytes {
		t.Errorf("progress total = %d, want %d", progBytes, wantBytes)
	}

	// No temp files left behind.
	entries, err := os.ReadDir(wantDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".fetch-") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestDownloadItemRecreatesSceneDir(t *testing.T) {
	ts := newAssetServer(t)
	defer ts.Close()
	dl := newTestDownloader(ts)

	outDir := t.TempDir()
	sceneDir := filepath.Join(outDir, "S2A-tile-001.PC")
	if err := os.MkdirAll(sceneDir, 0o755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(sceneDir, "stale.tif")
	if err := os.WriteFile(stale, []byte("old run"), 0o644); err != nil {
		t.Fatal(err)
	}

	item := testItem(ts.URL, "S2A-tile-001", map[string]string{"B02": "B02.tif"})
	if _, err := dl.DownloadItem(context.Background(), item, outDir, nil); err != nil {
		t.Fatalf("DownloadItem: %v", err)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale file survived the re-download: %v", err)
	}
	if _, err := os.Stat(filepath.Join(sceneDir, "B02.tif")); err != nil {
		t.Errorf("fresh file missing: %v", err)
	}
}

func TestDownloadItemSignsRequests(t *testing.T) {
	var mu sync.Mutex
	var gets []string
	unsigned := false

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/token/") {
			expiry := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
			fmt.Fprintf(w, `{"token":%q,"msft:expiry":%q}`, tokenQuery, expiry)
			return
		}
		mu.Lock()
		if !strings.Contains(r.URL.RawQuery, "sig=testsig") {
			unsigned = true
		}
		if r.Method == http.MethodGet {
			gets = append(gets, path.Base(r.URL.Path))
		}
		mu.Unlock()
		fmt.Fprintf(w, "tile:%s", path.Base(r.URL.Path))
	}))
	defer ts.Close()

	dl := newTestDownloader(ts)
	item := testItem(ts.URL, "S2A-tile-001", map[string]string{
		"B03":    "B03.tif",
		"visual": "visual.tif",
		"B02":    "B02.tif",
	})

	if _, err := dl.DownloadItem(context.Background(), item, t.TempDir(), nil); err != nil {
		t.Fatalf("DownloadItem: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if unsigned {
		t.Error("asset request sent without the access token")
	}
	want := []string{"B02.tif", "B03.tif", "visual.tif"}
	if len(gets) != len(want) {
		t.Fatalf("GET order = %v, want %v", gets, want)
	}
	for i := range want {
		if gets[i] != want[i] {
			t.Errorf("GET %d = %q, want %q (assets must download in sorted key order)", i, gets[i], want[i])
		}
	}
}

func TestDownloadItemAssetFailure(t *testing.T) {
	ts := newAssetServer(t)
	defer ts.Close()
	dl := newTestDownloader(ts)

	item := testItem(ts.URL, "S2A-tile-002", map[string]string{
		"B02":    "B02.tif",
		"B03":    "missing.tif",
		"visual": "visual.tif",
	})
	outDir := t.TempDir()

	result, err := dl.DownloadItem(context.Background(), item, outDir, nil)
	if err != nil {
		t.Fatalf("DownloadItem should continue past a failed asset, got: %v", err)
	}
	if result.Downloaded != 2 || result.Failed != 1 {
		t.Errorf("Downloaded/Failed = %d/%d, want 2/1", result.Downloaded, result.Failed)
	}

	sceneDir := filepath.Join(outDir, "S2A-tile-002.PC")
	for _, file := range []string{"B02.tif", "visual.tif"} {
		if _, err := os.Stat(filepath.Join(sceneDir, file)); err != nil {
			t.Errorf("surviving asset %s missing: %v", file, err)
		}
	}
	if _, err := os.Stat(filepath.Join(sceneDir, "missing.tif")); !os.IsNotExist(err) {
		t.Errorf("failed asset should leave no file, stat: %v", err)
	}

	// The 404 body still carries a Content-Length, so the probe total
	// includes it alongside the two real assets.
	wantTotal := int64(len("tile:B02.tif") + len("no such blob\n") + len("tile:visual.tif"))
	if result.TotalBytes != wantTotal {
		t.Errorf("TotalBytes = %d, want %d", result.TotalBytes, wantTotal)
	}
	wantBytes := int64(len("tile:B02.tif") + len("tile:visual.tif"))
	if result.Bytes != wantBytes {
		t.Errorf("Bytes = %d, want %d", result.Bytes, wantBytes)
	}
}

func TestDownloadItemTruncatedAsset(t *testing.T) {
	ts := newAssetServer(t)
	defer ts.Close()
	dl := newTestDownloader(ts)

	item := testItem(ts.URL, "S2A-tile-003", map[string]string{"B02": "cut.tif"})
	outDir := t.TempDir()

	result, err := dl.DownloadItem(context.Background(), item, outDir, nil)
	if err != nil {
		t.Fatalf("DownloadItem: %v", err)
	}
	if result.Downloaded != 0 || result.Failed != 1 {
		t.Errorf("Downloaded/Failed = %d/%d, want 0/1", result.Downloaded, result.Failed)
	}
	if result.Bytes != 0 {
		t.Errorf("Bytes = %d, want 0 for a failed asset", result.Bytes)
	}

	// Neither a partial file nor its temp survives.
	entries, err := os.ReadDir(filepath.Join(outDir, "S2A-tile-003.PC"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("scene dir should be empty after truncated download, has %d entries", len(entries))
	}
}

func TestDownloadItemSigningError(t *testing.T) {
	var mu sync.Mutex
	assetCalls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/token/") {
			http.Error(w, "collection not found", http.StatusNotFound)
			return
		}
		mu.Lock()
		assetCalls++
		mu.Unlock()
		fmt.Fprint(w, "tile")
	}))
	defer ts.Close()
	dl := newTestDownloader(ts)

	item := testItem(ts.URL, "S2A-tile-004", map[string]string{"B02": "B02.tif"})
	item.Collection = "landsat-c2-l2"

	_, err := dl.DownloadItem(context.Background(), item, t.TempDir(), nil)
	if err == nil {
		t.Fatal("expected signing error")
	}
	if !strings.Contains(err.Error(), "signing item") {
		t.Errorf("error = %q, want signing failure", err.Error())
	}
	mu.Lock()
	defer mu.Unlock()
	if assetCalls != 0 {
		t.Errorf("asset requests = %d, want 0 when signing fails", assetCalls)
	}
}

func TestDownloadBatch(t *testing.T) {
	ts := newAssetServer(t)
	defer ts.Close()
	dl := newTestDownloader(ts)

	items := []types.Item{
		testItem(ts.URL, "item-a", map[string]string{"B02": "B02.tif"}),
		testItem(ts.URL, "item-b", map[string]string{"B02": "missing.tif"}),
		testItem(ts.URL, "item-c", map[string]string{"B02": "B02.tif"}),
	}
	outDir := t.TempDir()

	batch, err := dl.DownloadBatch(context.Background(), items, outDir, nil)
	if err != nil {
		t.Fatalf("DownloadBatch: %v", err)
	}
	if batch.Downloaded != 2 {
		t.Errorf("Downloaded = %d, want 2", batch.Downloaded)
	}
	if batch.Failed != 1 {
		t.Errorf("Failed = %d, want 1", batch.Failed)
	}
	if batch.Total() != 3 {
		t.Errorf("Total = %d, want 3", batch.Total())
	}
	if !batch.HasFailures() {
		t.Error("HasFailures should be true")
	}

	wantIDs := []string{"item-a", "item-b", "item-c"}
	if len(batch.Results) != len(wantIDs) {
		t.Fatalf("len(Results) = %d, want %d", len(batch.Results), len(wantIDs))
	}
	for i, id := range wantIDs {
		if batch.Results[i].ItemID != id {
			t.Errorf("Results[%d].ItemID = %q, want %q", i, batch.Results[i].ItemID, id)
		}
	}
}

func TestDownloadBatchFatalItem(t *testing.T) {
	ts := newAssetServer(t)
	defer ts.Close()
	dl := newTestDownloader(ts)

	bad := testItem(ts.URL, "item-b", map[string]string{"B02": "B02.tif"})
	bad.Collection = "landsat-c2-l2" // no token for this collection
	items := []types.Item{
		testItem(ts.URL, "item-a", map[string]string{"B02": "B02.tif"}),
		bad,
		testItem(ts.URL, "item-c", map[string]string{"B02": "B02.tif"}),
	}

	batch, err := dl.DownloadBatch(context.Background(), items, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("DownloadBatch: %v", err)
	}
	if batch.Downloaded != 2 || batch.Failed != 1 {
		t.Errorf("Downloaded/Failed = %d/%d, want 2/1", batch.Downloaded, batch.Failed)
	}
	// The fatal item never produced a result, the others still ran.
	if len(batch.Results) != 2 {
		t.Fatalf("len(Results) = %d, want 2", len(batch.Results))
	}
	if batch.Results[0].ItemID != "item-a" || batch.Results[1].ItemID != "item-c" {
		t.Errorf("Results = [%q, %q], want [item-a, item-c]",
			batch.Results[0].ItemID, batch.Results[1].ItemID)
	}
}

func TestDownloadBatchContextCancel(t *testing.T) {
	ts := newAssetServer(t)
	defer ts.Close()
	dl := newTestDownloader(ts)

	items := []types.Item{
		testItem(ts.URL, "item-1", map[string]string{"B02": "B02.tif", "B03": "B03.tif"}),
		testItem(ts.URL, "item-2", map[string]string{"B02": "B02.tif"}),
	}
	outDir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var once sync.Once
	progress := func(int64) { once.Do(cancel) }

	batch, err := dl.DownloadBatch(ctx, items, outDir, progress)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if batch.Downloaded != 0 {
		t.Errorf("Downloaded = %d, want 0", batch.Downloaded)
	}
	if _, statErr := os.Stat(filepath.Join(outDir, "item-2.PC")); !os.IsNotExist(statErr) {
		t.Errorf("second item should never start after cancellation, stat: %v", statErr)
	}
}
