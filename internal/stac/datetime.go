// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stac

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ExpandDatetime turns friendly date tokens into the catalog's interval
// form. A lone year, month, or day expands to the full span it names:
//
//	"2021"       -> "2021-01-01T00:00:00Z/2021-12-31T23:59:59Z"
//	"2021-06"    -> "2021-06-01T00:00:00Z/2021-06-30T23:59:59Z"
//	"2021-06-10" -> "2021-06-10T00:00:00Z/2021-06-10T23:59:59Z"
//
// Any other lone start (a full timestamp, an open interval) passes
// through verbatim. When end is given, start and end are joined with "/"
// untouched, matching what the operator typed.
func ExpandDatetime(start, end string) (string, error) {
	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)

	if start == "" {
		return "", errors.New("start date required")
	}
	if end != "" {
		return start + "/" + end, nil
	}

	if t, err := time.Parse("2006", start); err == nil {
		return fmt.Sprintf("%04d-01-01T00:00:00Z/%04d-12-31T23:59:59Z", t.Year(), t.Year()), nil
	}
	if t, err := time.Parse("2006-01", start); err == nil {
		last := t.AddDate(0, 1, -1) // last day of the month, leap-aware
		return t.Format("2006-01-02") + "T00:00:00Z/" + last.Format("2006-01-02") + "T23:59:59Z", nil
	}
	if t, err := time.Parse("2006-01-02", start); err == nil {
		day := t.Format("2006-01-02")
		return day + "T00:00:00Z/" + day + "T23:59:59Z", nil
	}

	return start, nil
}
