// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ResultTable is an ordered, id-keyed view over the items a search
// returned. Order is the catalog's result order; duplicate ids keep the
// first occurrence.
type ResultTable struct {
	order []string
	items map[string]Item
}

// NewResultTable builds a table from items in the given order.
func NewResultTable(items []Item) *ResultTable {
	t := &ResultTable{items: make(map[string]Item, len(items))}
	for _, it := range items {
		if _, dup := t.items[it.ID]; dup {
			continue
		}
		t.order = append(t.order, it.ID)
		t.items[it.ID] = it
	}
	return t
}

// Len returns the number of items in the table.
func (t *ResultTable) Len() int {
	return len(t.order)
}

// IDs returns the item ids in table order.
func (t *ResultTable) IDs() []string {
	ids := make([]string, len(t.order))
	copy(ids, t.order)
	return ids
}

// Get looks up an item by id.
func (t *ResultTable) Get(id string) (Item, bool) {
	it, ok := t.items[id]
	return it, ok
}

// Items returns the items in table order.
func (t *ResultTable) Items() []Item {
	items := make([]Item, 0, len(t.order))
	for _, id := range t.order {
		items = append(items, t.items[id])
	}
	return items
}

// ProgressFunc receives byte-count increments as asset chunks are written.
// A nil ProgressFunc disables reporting.
type ProgressFunc func(n int64)

// DownloadResult summarizes one item download.
type DownloadResult struct {
	// ItemID is the downloaded item's catalog id.
	ItemID string `json:"item_id" yaml:"item_id"`

	// Dir is the scene directory the assets were written to.
	Dir string `json:"dir" yaml:"dir"`

	// Assets is the number of assets the item carries.
	Assets int `json:"assets" yaml:"assets"`

	// Downloaded counts assets written successfully.
	Downloaded int `json:"downloaded" yaml:"downloaded"`

	// Failed counts assets that returned a terminal HTTP error.
	Failed int `json:"failed" yaml:"failed"`

	// Bytes is the number of payload bytes written to disk.
	Bytes int64 `json:"bytes" yaml:"bytes"`

	// TotalBytes is the expected size from the pre-download probe.
	TotalBytes int64 `json:"total_bytes" yaml:"total_bytes"`
}

// BatchResult aggregates the outcome of a bulk download run.
type BatchResult struct {
	// Results holds per-item outcomes in search order.
	Results []DownloadResult `json:"results" yaml:"results"`

	// Downloaded counts items whose assets all succeeded.
	Downloaded int `json:"downloaded" yaml:"downloaded"`

	// Failed counts items with at least one failed asset or a fatal error.
	Failed int `json:"failed" yaml:"failed"`
}

// Total returns the number of items processed.
func (b BatchResult) Total() int {
	return b.Downloaded + b.Failed
}

// HasFailures reports whether any item failed.
func (b BatchResult) HasFailures() bool {
	return b.Failed > 0
}
