// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/scene-fetch/internal/stac"
	"github.com/pdiddy/scene-fetch/pkg/planetary"
	"github.com/pdiddy/scene-fetch/pkg/types"
)

var downloadCmd = &cobra.Command{
	Use:   "download [item-ids...]",
	Short: "Download scene assets from a saved search",
	Long: `Download fetches the assets of scenes found by a previous search. It
reads a search file written by search --save, so downloading needs no
catalog round trip. Each scene lands in its own directory under --dir;
an existing scene directory is replaced.

Name the items to fetch as arguments, or pass --all for every scene in
the search.`,
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().String("search", "", "search file written by search --save")
	downloadCmd.Flags().String("dir", "scenes", "directory that receives the scene directories")
	downloadCmd.Flags().Bool("all", false, "download every scene in the search")
	downloadCmd.Flags().Bool("quiet", false, "suppress byte-count progress output")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	searchPath, _ := cmd.Flags().GetString("search")
	if searchPath == "" {
		return fmt.Errorf("no search file: point --search at a file written by search --save")
	}
	all, _ := cmd.Flags().GetBool("all")
	if len(args) == 0 && !all {
		return fmt.Errorf("name the items to download, or pass --all for every scene")
	}
	outDir, _ := cmd.Flags().GetString("dir")
	quiet, _ := cmd.Flags().GetBool("quiet")

	sf, err := stac.ReadSearchFile(searchPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	client := planetary.New(clientConfig())
	defer client.Close()
	client.RestoreSearch(types.NewResultTable(sf.Results))

	progress := progressPrinter(quiet)

	if all {
		batch, err := client.DownloadAll(cmd.Context(), outDir, progress)
		clearProgress(quiet)
		if err != nil {
			return err
		}
		for _, r := range batch.Results {
			printResult(r)
		}
		fmt.Printf("\n%d of %d scene(s) downloaded\n", batch.Downloaded, batch.Total())
		if batch.HasFailures() {
			return fmt.Errorf("%d scene(s) failed", batch.Failed)
		}
		return nil
	}

	failed := 0
	for _, id := range args {
		result, err := client.Download(cmd.Context(), id, outDir, progress)
		clearProgress(quiet)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			fmt.Fprintf(os.Stderr, "%s: %v\n", id, err)
			failed++
			continue
		}
		printResult(*result)
		if result.Failed > 0 {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d scene(s) failed", failed)
	}
	return nil
}

// progressPrinter returns a progress callback that redraws a running
// byte count on stderr, or nil when quiet.
func progressPrinter(quiet bool) types.ProgressFunc {
	if quiet {
		return nil
	}
	var total int64
	return func(n int64) {
		total += n
		fmt.Fprintf(os.Stderr, "\r%-12s", formatBytes(total))
	}
}

// clearProgress erases the progress line before summary output.
func clearProgress(quiet bool) {
	if !quiet {
		fmt.Fprintf(os.Stderr, "\r%-12s\r", "")
	}
}

func printResult(r types.DownloadResult) {
	status := ""
	if r.Failed > 0 {
		status = fmt.Sprintf("  (%d failed)", r.Failed)
	}
	fmt.Printf("%s: %d/%d asset(s), %s -> %s%s\n",
		r.ItemID, r.Downloaded, r.Assets, formatBytes(r.Bytes), r.Dir, status)
}

// formatBytes renders a byte count with a binary unit suffix.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGT"[exp])
}
