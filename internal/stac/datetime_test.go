// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stac

import "testing"

func TestExpandDatetime(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
		want  string
	}{
		{
			name:  "lone year",
			start: "2021",
			want:  "2021-01-01T00:00:00Z/2021-12-31T23:59:59Z",
		},
		{
			name:  "lone month",
			start: "2021-06",
			want:  "2021-06-01T00:00:00Z/2021-06-30T23:59:59Z",
		},
		{
			name:  "lone month leap february",
			start: "2024-02",
			want:  "2024-02-01T00:00:00Z/2024-02-29T23:59:59Z",
		},
		{
			name:  "lone day",
			start: "2021-06-10",
			want:  "2021-06-10T00:00:00Z/2021-06-10T23:59:59Z",
		},
		{
			name:  "full timestamp passes through",
			start: "2021-06-10T12:30:00Z",
			want:  "2021-06-10T12:30:00Z",
		},
		{
			name:  "explicit pair joined verbatim",
			start: "2021-06",
			end:   "2021-08",
			want:  "2021-06/2021-08",
		},
		{
			name:  "explicit pair with timestamps",
			start: "2021-06-01T00:00:00Z",
			end:   "2021-06-30T00:00:00Z",
			want:  "2021-06-01T00:00:00Z/2021-06-30T00:00:00Z",
		},
		{
			name:  "whitespace trimmed",
			start: " 2021 ",
			want:  "2021-01-01T00:00:00Z/2021-12-31T23:59:59Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandDatetime(tt.start, tt.end)
			if err != nil {
				t.Fatalf("ExpandDatetime(%q, %q): %v", tt.start, tt.end, err)
			}
			if got != tt.want {
				t.Errorf("ExpandDatetime(%q, %q) = %q, want %q", tt.start, tt.end, got, tt.want)
			}
		})
	}
}

func TestExpandDatetimeEmpty(t *testing.T) {
	if _, err := ExpandDatetime("", ""); err == nil {
		t.Error("ExpandDatetime with empty start succeeded, want error")
	}
	if _, err := ExpandDatetime("  ", "2021"); err == nil {
		t.Error("ExpandDatetime with blank start succeeded, want error")
	}
}
