// Package cli provides command-line interface commands for the scandeck
// console. This file implements the findings triage commands.
package cli

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/scandeck/scandeck/internal/store"
)

var (
	// Findings command flags
	findingScanFilter     string
	findingSeverityFilter string
	findingFPFilter       string
	findingOutputJSON     bool
)

// findingsCmd represents the findings command.
var findingsCmd = &cobra.Command{
	Use:   "findings",
	Short: "Triage scan findings",
	Long:  `List findings, mark false positives, and attach notes.`,
	Example: `  scandeck findings list
  scandeck findings list --scan scan-001 --severity critical
  scandeck findings fp finding-001`,
}

var findingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List findings",
	Run:   runFindingsList,
}

var findingsFPCmd = &cobra.Command{
	Use:   "fp <finding-id>",
	Short: "Toggle the false-positive flag on a finding",
	Args:  cobra.ExactArgs(1),
	Run:   runFindingsFP,
}

var findingsNotesCmd = &cobra.Command{
	Use:   "notes <finding-id> <notes>",
	Short: "Set operator notes on a finding",
	Args:  cobra.ExactArgs(2),
	Run:   runFindingsNotes,
}

var findingsDeleteCmd = &cobra.Command{
	Use:   "delete <finding-id>...",
	Short: "Delete findings",
	Args:  cobra.MinimumNArgs(1),
	Run:   runFindingsDelete,
}

func init() {
	rootCmd.AddCommand(findingsCmd)
	findingsCmd.AddCommand(findingsListCmd)
	findingsCmd.AddCommand(findingsFPCmd)
	findingsCmd.AddCommand(findingsNotesCmd)
	findingsCmd.AddCommand(findingsDeleteCmd)

	findingsListCmd.Flags().StringVar(&findingScanFilter, "scan", "", "Filter by scan id")
	findingsListCmd.Flags().StringVar(&findingSeverityFilter, "severity", "", "Filter by severity")
	findingsListCmd.Flags().StringVar(&findingFPFilter, "false-positive", "", "Filter by false-positive flag (true, false)")
	findingsListCmd.Flags().BoolVar(&findingOutputJSON, "json", false, "Output as JSON")
}

// findingListResponse mirrors the paginated findings listing.
type findingListResponse struct {
	Data []*store.Finding `json:"data"`
}

func runFindingsList(_ *cobra.Command, _ []string) {
	client, err := newClientOrExit()
	if err != nil {
		return
	}

	endpoint := "/findings?page_size=100"
	if findingScanFilter != "" {
		endpoint += "&scan_id=" + findingScanFilter
	}
	if findingSeverityFilter != "" {
		endpoint += "&severity=" + findingSeverityFilter
	}
	if findingFPFilter != "" {
		endpoint += "&false_positive=" + findingFPFilter
	}

	var resp findingListResponse
	if err := client.Get(endpoint, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Error listing findings: %v\n", err)
		os.Exit(1)
	}

	if findingOutputJSON {
		printJSON(resp.Data)
		return
	}
	displayFindingsTable(resp.Data)
}

func runFindingsFP(_ *cobra.Command, args []string) {
	client, err := newClientOrExit()
	if err != nil {
		return
	}

	id := args[0]
	var finding store.Finding
	if err := client.Post("/findings/"+id+"/false-positive", nil, &finding); err != nil {
		fmt.Fprintf(os.Stderr, "Error toggling false positive: %v\n", err)
		os.Exit(1)
	}

	if finding.IsFalsePositive {
		fmt.Printf("Finding %s marked as false positive\n", id)
	} else {
		fmt.Printf("Finding %s unmarked as false positive\n", id)
	}
}

func runFindingsNotes(_ *cobra.Command, args []string) {
	client, err := newClientOrExit()
	if err != nil {
		return
	}

	id := args[0]
	payload := map[string]string{"notes": args[1]}
	var finding store.Finding
	if err := client.Put("/findings/"+id+"/notes", payload, &finding); err != nil {
		fmt.Fprintf(os.Stderr, "Error setting notes: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Notes updated on finding %s\n", id)
}

func runFindingsDelete(_ *cobra.Command, args []string) {
	client, err := newClientOrExit()
	if err != nil {
		return
	}

	var resp struct {
		Deleted int `json:"deleted"`
	}
	payload := map[string]interface{}{"ids": args}
	if err := client.Delete("/findings", payload, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Error deleting findings: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Deleted %d finding(s)\n", resp.Deleted)
}

// displayFindingsTable displays findings in a table format.
func displayFindingsTable(findings []*store.Finding) {
	if len(findings) == 0 {
		fmt.Println("No findings found")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Severity", "Template", "Target", "Scan", "FP")

	for _, f := range findings {
		fp := ""
		if f.IsFalsePositive {
			fp = "yes"
		}

		_ = table.Append([]string{
			f.ID,
			string(f.Severity),
			f.TemplateName,
			f.Target,
			f.ScanID,
			fp,
		})
	}

	_ = table.Render()
}
