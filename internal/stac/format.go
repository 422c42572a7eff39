// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stac

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/scene-fetch/pkg/types"
)

// FormatTable writes items as a human-readable table to w.
func FormatTable(items []types.Item, w io.Writer) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No items found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-56s  %-10s  %-6s  %s\n",
		"Row", "Item", "Date", "Cloud%", "Assets")
	fmt.Fprintln(w, strings.Repeat("-", 90))

	for i, it := range items {
		id := it.ID
		if len(id) > 56 {
			id = id[:53] + "..."
		}
		date := it.Datetime()
		if len(date) > 10 {
			date = date[:10]
		}
		cloud := ""
		if cc := it.CloudCover(); cc >= 0 {
			cloud = fmt.Sprintf("%.1f", cc)
		}
		fmt.Fprintf(w, "%-4d  %-56s  %-10s  %-6s  %d\n", i+1, id, date, cloud, len(it.Assets))
	}

	fmt.Fprintf(w, "\n%d items\n", len(items))
}

// FormatJSON writes items as indented JSON to w.
func FormatJSON(items []types.Item, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}
