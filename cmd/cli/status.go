// Package cli provides command-line interface commands for the scandeck
// console. This file implements the console status command.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scandeck/scandeck/internal/store"
)

var statusOutputJSON bool

// statusCmd shows aggregate console statistics from a running daemon.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show console statistics",
	Long: `Show aggregate statistics from a running scandeck daemon: scan
counts, template catalog totals, and findings by severity.`,
	Run: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusOutputJSON, "json", false, "Output as JSON")
}

func runStatus(_ *cobra.Command, _ []string) {
	client, err := newClientOrExit()
	if err != nil {
		return
	}

	var stats store.Stats
	if err := client.Get("/stats", &stats); err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching stats: %v\n", err)
		os.Exit(1)
	}

	if statusOutputJSON {
		printJSON(stats)
		return
	}

	fmt.Println("Scandeck Console Status")
	fmt.Println("=======================")
	fmt.Printf("Scans:     %d total, %d active\n", stats.TotalScans, stats.ActiveScans)
	fmt.Printf("Templates: %d (%d official, %d custom)\n",
		stats.TotalTemplates, stats.OfficialTemplates, stats.CustomTemplates)
	fmt.Printf("Findings:  %d\n", stats.TotalFindings)
	for _, sev := range store.Severities {
		if count := stats.FindingsBySeverity[sev]; count > 0 {
			fmt.Printf("  %-8s %d\n", sev, count)
		}
	}
	fmt.Printf("Targets scanned: %d\n", stats.TargetsScanned)
}
