package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/scene-fetch/internal/ledger"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded searches and downloads",
	Long: `History lists past searches and downloads from the local ledger
database, newest first. The ledger is written automatically by search
and download.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum rows per section")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	led, err := ledger.Open(clientConfig().LedgerPath)
	if err != nil {
		return err
	}
	defer led.Close()

	searches, err := led.History(cmd.Context(), limit)
	if err != nil {
		return err
	}
	downloads, err := led.Downloads(cmd.Context(), limit)
	if err != nil {
		return err
	}

	fmt.Print(ledger.FormatHistory(searches, downloads))
	return nil
}
