// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/venicegeo/geojson-go/geojson"

	"github.com/pdiddy/scene-fetch/internal/stac"
	"github.com/pdiddy/scene-fetch/pkg/aoi"
	"github.com/pdiddy/scene-fetch/pkg/planetary"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the catalog for scenes over an area and date range",
	Long: `Search queries the STAC catalog for scenes intersecting an area of
interest within a date range. The area is a point (--point), a polygon
ring (--ring), or an AOI file (--aoi); with none of these the search
has no spatial filter.

Dates accept a year (2021), a month (2021-06), a day (2021-06-10), or a
full RFC 3339 timestamp. --date alone searches that span; add --end for
an explicit range.

Use --save to write the results to a file that download can consume
later without re-querying the catalog.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().String("point", "", "area of interest as a single \"lon,lat\" position")
	searchCmd.Flags().String("ring", "", "area of interest as a polygon ring \"lon,lat lon,lat ...\"")
	searchCmd.Flags().String("aoi", "", "area of interest file (YAML AOI or GeoJSON Point/Polygon)")
	searchCmd.Flags().String("date", "", "start of the date range (year, month, day, or timestamp)")
	searchCmd.Flags().String("end", "", "end of the date range (defaults to the start span)")
	searchCmd.Flags().StringSlice("collection", nil, "collection id(s) to search (default sentinel-2-l2a)")
	searchCmd.Flags().Int("max-items", 0, "maximum items to return (0 = no cap)")
	searchCmd.Flags().Bool("json", false, "output results as JSON")
	searchCmd.Flags().String("save", "", "write the search and its results to this file")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	region, err := regionFromFlags(cmd)
	if err != nil {
		return err
	}
	start, _ := cmd.Flags().GetString("date")
	end, _ := cmd.Flags().GetString("end")

	cfg := clientConfig()
	if collections, _ := cmd.Flags().GetStringSlice("collection"); len(collections) > 0 {
		cfg.Collections = collections
	}
	if maxItems, _ := cmd.Flags().GetInt("max-items"); maxItems > 0 {
		cfg.MaxItems = maxItems
	}

	client, err := planetary.Open(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	table, err := client.Search(cmd.Context(), region, start, end)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		if err := stac.FormatJSON(table.Items(), os.Stdout); err != nil {
			return err
		}
	} else {
		stac.FormatTable(table.Items(), os.Stdout)
	}

	if save, _ := cmd.Flags().GetString("save"); save != "" {
		if err := client.SaveSearch(save); err != nil {
			return err
		}
		fmt.Printf("Saved search to %s\n", save)
	}
	return nil
}

// regionFromFlags builds the area of interest from whichever area flag
// was provided. The area flags are mutually exclusive.
func regionFromFlags(cmd *cobra.Command) (aoi.Input, error) {
	point, _ := cmd.Flags().GetString("point")
	ring, _ := cmd.Flags().GetString("ring")
	aoiFile, _ := cmd.Flags().GetString("aoi")

	set := 0
	for _, v := range []string{point, ring, aoiFile} {
		if v != "" {
			set++
		}
	}
	if set > 1 {
		return aoi.Input{}, fmt.Errorf("--point, --ring, and --aoi are mutually exclusive")
	}

	switch {
	case point != "":
		c, err := parseLonLat(point)
		if err != nil {
			return aoi.Input{}, fmt.Errorf("--point: %w", err)
		}
		return aoi.Point(c.Lon, c.Lat), nil

	case ring != "":
		fields := strings.Fields(ring)
		coords := make([]aoi.Coordinate, len(fields))
		for i, f := range fields {
			c, err := parseLonLat(f)
			if err != nil {
				return aoi.Input{}, fmt.Errorf("--ring vertex %d: %w", i, err)
			}
			coords[i] = c
		}
		return aoi.Ring(coords...), nil

	case aoiFile != "":
		return regionFromFile(aoiFile)

	default:
		return aoi.Input{}, nil
	}
}

// regionFromFile loads an area of interest from a YAML AOI file or a
// GeoJSON geometry file, chosen by extension.
func regionFromFile(path string) (aoi.Input, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return aoi.ReadFile(path)
	default:
		gj, err := geojson.ParseFile(path)
		if err != nil {
			return aoi.Input{}, fmt.Errorf("reading AOI file: %w", err)
		}
		if f, ok := gj.(*geojson.Feature); ok {
			gj = f.Geometry
		}
		return aoi.Geometry(gj), nil
	}
}

// parseLonLat parses a "lon,lat" pair.
func parseLonLat(s string) (aoi.Coordinate, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return aoi.Coordinate{}, fmt.Errorf("%q is not a lon,lat pair", s)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return aoi.Coordinate{}, fmt.Errorf("bad longitude %q", parts[0])
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return aoi.Coordinate{}, fmt.Errorf("bad latitude %q", parts[1])
	}
	return aoi.Coordinate{Lon: lon, Lat: lat}, nil
}
