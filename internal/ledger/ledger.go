// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records searches and downloads in a local SQLite
// database so past acquisition runs stay auditable.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Ledger manages the acquisition history database.
type Ledger struct {
	db *sql.DB
}

// SearchRecord is one catalog search as stored in the ledger.
type SearchRecord struct {
	ID          int64
	Timestamp   time.Time
	Catalog     string
	Collections []string
	Datetime    string
	Geometry    string
	Items       int
}

// DownloadRecord is one item download as stored in the ledger. SearchID
// links back to the search that produced the item; zero means the link
// is unknown.
type DownloadRecord struct {
	ID        int64
	Timestamp time.Time
	ItemID    string
	Dir       string
	Assets    int
	Failed    int
	Bytes     int64
	SearchID  int64
}

// Open opens or creates the ledger database at path, creating the
// parent directory and schema as needed.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	return l, nil
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS searches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			catalog TEXT,
			collections TEXT,
			datetime TEXT,
			geometry TEXT,
			items INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS downloads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts TEXT NOT NULL,
			item_id TEXT NOT NULL,
			dir TEXT,
			assets INTEGER,
			failed INTEGER,
			bytes INTEGER,
			search_id INTEGER REFERENCES searches(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_downloads_item_id ON downloads(item_id)`,
	}

	for _, stmt := range statements {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// RecordSearch inserts a search row and fills rec.ID and rec.Timestamp.
func (l *Ledger) RecordSearch(ctx context.Context, rec *SearchRecord) error {
	rec.Timestamp = time.Now().UTC()
	collectionsJSON, _ := json.Marshal(rec.Collections)

	res, err := l.db.ExecContext(ctx,
		`INSERT INTO searches (ts, catalog, collections, datetime, geometry, items)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.Format(time.RFC3339), rec.Catalog, string(collectionsJSON),
		rec.Datetime, rec.Geometry, rec.Items,
	)
	if err != nil {
		return fmt.Errorf("recording search: %w", err)
	}

	rec.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading search id: %w", err)
	}
	return nil
}

// RecordDownload inserts a download row and fills rec.ID and
// rec.Timestamp. A zero SearchID is stored as NULL.
func (l *Ledger) RecordDownload(ctx context.Context, rec *DownloadRecord) error {
	rec.Timestamp = time.Now().UTC()

	var searchID any
	if rec.SearchID != 0 {
		searchID = rec.SearchID
	}

	res, err := l.db.ExecContext(ctx,
		`INSERT INTO downloads (ts, item_id, dir, assets, failed, bytes, search_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp.Format(time.RFC3339), rec.ItemID, rec.Dir,
		rec.Assets, rec.Failed, rec.Bytes, searchID,
	)
	if err != nil {
		return fmt.Errorf("recording download: %w", err)
	}

	rec.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading download id: %w", err)
	}
	return nil
}

// History returns the most recent searches, newest first. A
// non-positive limit returns everything.
func (l *Ledger) History(ctx context.Context, limit int) ([]SearchRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT id, ts, catalog, collections, datetime, geometry, items
		 FROM searches ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying search history: %w", err)
	}
	defer rows.Close()

	var records []SearchRecord
	for rows.Next() {
		var (
			rec             SearchRecord
			ts              string
			collectionsJSON sql.NullString
		)
		if err := rows.Scan(&rec.ID, &ts, &rec.Catalog, &collectionsJSON,
			&rec.Datetime, &rec.Geometry, &rec.Items); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		rec.Timestamp, _ = time.Parse(time.RFC3339, ts)
		if collectionsJSON.Valid {
			json.Unmarshal([]byte(collectionsJSON.String), &rec.Collections)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Downloads returns the most recent downloads, newest first. A
// non-positive limit returns everything.
func (l *Ledger) Downloads(ctx context.Context, limit int) ([]DownloadRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT id, ts, item_id, dir, assets, failed, bytes, search_id
		 FROM downloads ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying download history: %w", err)
	}
	defer rows.Close()

	var records []DownloadRecord
	for rows.Next() {
		var (
			rec      DownloadRecord
			ts       string
			searchID sql.NullInt64
		)
		if err := rows.Scan(&rec.ID, &ts, &rec.ItemID, &rec.Dir,
			&rec.Assets, &rec.Failed, &rec.Bytes, &searchID); err != nil {
			return nil, fmt.Errorf("scanning download row: %w", err)
		}
		rec.Timestamp, _ = time.Parse(time.RFC3339, ts)
		if searchID.Valid {
			rec.SearchID = searchID.Int64
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// FormatHistory renders searches and downloads as a two-section text
// table for terminal display.
func FormatHistory(searches []SearchRecord, downloads []DownloadRecord) string {
	var b strings.Builder

	b.WriteString("Searches\n")
	if len(searches) == 0 {
		b.WriteString("  none recorded\n")
	} else {
		fmt.Fprintf(&b, "  %-4s %-20s %-24s %-42s %s\n", "ID", "When", "Collections", "Datetime", "Items")
		for _, rec := range searches {
			fmt.Fprintf(&b, "  %-4d %-20s %-24s %-42s %d\n",
				rec.ID, rec.Timestamp.Format("2006-01-02 15:04:05"),
				truncate(strings.Join(rec.Collections, ","), 24),
				truncate(rec.Datetime, 42), rec.Items)
		}
	}

	b.WriteString("\nDownloads\n")
	if len(downloads) == 0 {
		b.WriteString("  none recorded\n")
	} else {
		fmt.Fprintf(&b, "  %-4s %-20s %-50s %-7s %-7s %s\n", "ID", "When", "Item", "Assets", "Failed", "Bytes")
		for _, rec := range downloads {
			fmt.Fprintf(&b, "  %-4d %-20s %-50s %-7d %-7d %d\n",
				rec.ID, rec.Timestamp.Format("2006-01-02 15:04:05"),
				truncate(rec.ItemID, 50), rec.Assets, rec.Failed, rec.Bytes)
		}
	}

	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
