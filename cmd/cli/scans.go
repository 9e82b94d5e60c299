// Package cli provides command-line interface commands for the scandeck
// console. This file implements the scan lifecycle commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/scandeck/scandeck/internal/store"
)

var (
	// Scan command flags
	scanStatusFilter string
	scanOutputJSON   bool
	scanName         string
	scanDescription  string
	scanTemplateIDs  []string
	scanTargetList   string
	scanConcurrency  int
	scanRateLimit    int
	scanTimeout      int
	scanRetries      int
	scanMinSeverity  string
)

// scansCmd represents the scans command.
var scansCmd = &cobra.Command{
	Use:   "scans",
	Short: "Manage scan jobs",
	Long: `List, create, and control scan jobs on a running scandeck daemon.
Lifecycle commands are guarded: a command against a scan in the wrong
state is acknowledged without effect.`,
	Example: `  scandeck scans list
  scandeck scans create --name "Web Audit" --templates CVE-2024-3400
  scandeck scans pause scan-001`,
}

var scansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scan jobs",
	Example: `  scandeck scans list
  scandeck scans list --status running
  scandeck scans list --json`,
	Run: runScansList,
}

var scansCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new scan job",
	Long: `Create a new scan job. The scan starts immediately when no other
scan is running, otherwise it joins the queue.`,
	Example: `  scandeck scans create --name "Web Audit"
  scandeck scans create --name "API Scan" --target-list tl-002 --rate-limit 300`,
	Run: runScansCreate,
}

var scansPauseCmd = &cobra.Command{
	Use:   "pause <scan-id>",
	Short: "Pause a running scan",
	Args:  cobra.ExactArgs(1),
	Run:   makeScanCommandRunner("pause"),
}

var scansResumeCmd = &cobra.Command{
	Use:   "resume <scan-id>",
	Short: "Resume a paused scan",
	Args:  cobra.ExactArgs(1),
	Run:   makeScanCommandRunner("resume"),
}

var scansStopCmd = &cobra.Command{
	Use:   "stop <scan-id>",
	Short: "Stop a running or paused scan",
	Args:  cobra.ExactArgs(1),
	Run:   makeScanCommandRunner("stop"),
}

var scansRestartCmd = &cobra.Command{
	Use:   "restart <scan-id>",
	Short: "Restart a scan from the beginning",
	Args:  cobra.ExactArgs(1),
	Run:   makeScanCommandRunner("restart"),
}

var scansDeleteCmd = &cobra.Command{
	Use:   "delete <scan-id>...",
	Short: "Delete scans and their findings",
	Args:  cobra.MinimumNArgs(1),
	Run:   runScansDelete,
}

func init() {
	rootCmd.AddCommand(scansCmd)
	scansCmd.AddCommand(scansListCmd)
	scansCmd.AddCommand(scansCreateCmd)
	scansCmd.AddCommand(scansPauseCmd)
	scansCmd.AddCommand(scansResumeCmd)
	scansCmd.AddCommand(scansStopCmd)
	scansCmd.AddCommand(scansRestartCmd)
	scansCmd.AddCommand(scansDeleteCmd)

	scansListCmd.Flags().StringVar(&scanStatusFilter, "status", "", "Filter by status (queued, running, paused, completed, stopped)")
	scansListCmd.Flags().BoolVar(&scanOutputJSON, "json", false, "Output as JSON")

	scansCreateCmd.Flags().StringVar(&scanName, "name", "", "Scan name (required)")
	scansCreateCmd.Flags().StringVar(&scanDescription, "description", "", "Scan description")
	scansCreateCmd.Flags().StringSliceVar(&scanTemplateIDs, "templates", nil, "Template ids to run")
	scansCreateCmd.Flags().StringVar(&scanTargetList, "target-list", "", "Target list id")
	scansCreateCmd.Flags().IntVar(&scanConcurrency, "concurrency", 0, "Concurrent template executions (1-100)")
	scansCreateCmd.Flags().IntVar(&scanRateLimit, "rate-limit", 0, "Requests per second limit (1-1000)")
	scansCreateCmd.Flags().IntVar(&scanTimeout, "timeout", 0, "Per-request timeout in seconds (1-60)")
	scansCreateCmd.Flags().IntVar(&scanRetries, "retries", 0, "Retry count (0-3)")
	scansCreateCmd.Flags().StringVar(&scanMinSeverity, "min-severity", "", "Minimum severity to report")
	_ = scansCreateCmd.MarkFlagRequired("name")
}

// scanListResponse mirrors the paginated scans listing.
type scanListResponse struct {
	Data []*store.Scan `json:"data"`
}

func runScansList(_ *cobra.Command, _ []string) {
	client, err := newClientOrExit()
	if err != nil {
		return
	}

	endpoint := "/scans?page_size=100"
	if scanStatusFilter != "" {
		endpoint += "&status=" + scanStatusFilter
	}

	var resp scanListResponse
	if err := client.Get(endpoint, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Error listing scans: %v\n", err)
		os.Exit(1)
	}

	if scanOutputJSON {
		printJSON(resp.Data)
		return
	}
	displayScansTable(resp.Data)
}

func runScansCreate(_ *cobra.Command, _ []string) {
	client, err := newClientOrExit()
	if err != nil {
		return
	}

	payload := map[string]interface{}{
		"name": scanName,
	}
	if scanDescription != "" {
		payload["description"] = scanDescription
	}
	if len(scanTemplateIDs) > 0 {
		payload["template_ids"] = scanTemplateIDs
	}
	if scanTargetList != "" {
		payload["target_list_id"] = scanTargetList
	}
	if scanConcurrency > 0 {
		payload["concurrency"] = scanConcurrency
	}
	if scanRateLimit > 0 {
		payload["rate_limit"] = scanRateLimit
	}
	if scanTimeout > 0 {
		payload["timeout"] = scanTimeout
	}
	if scanRetries > 0 {
		payload["retries"] = scanRetries
	}
	if scanMinSeverity != "" {
		payload["min_severity"] = scanMinSeverity
	}

	var scan store.Scan
	if err := client.Post("/scans", payload, &scan); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating scan: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Scan created: %s (%s)\n", scan.ID, scan.Status)
	if scan.Status == store.ScanQueued {
		fmt.Println("Another scan is running; this scan will start when the slot frees up.")
	}
}

// makeScanCommandRunner builds a runner for one of the guarded lifecycle
// commands.
func makeScanCommandRunner(command string) func(*cobra.Command, []string) {
	return func(_ *cobra.Command, args []string) {
		client, err := newClientOrExit()
		if err != nil {
			return
		}

		id := args[0]
		var resp struct {
			ScanID  string `json:"scan_id"`
			Command string `json:"command"`
			Applied bool   `json:"applied"`
		}
		if err := client.Post("/scans/"+id+"/"+command, nil, &resp); err != nil {
			fmt.Fprintf(os.Stderr, "Error sending %s command: %v\n", command, err)
			os.Exit(1)
		}

		if resp.Applied {
			fmt.Printf("Scan %s: %s applied\n", id, command)
		} else {
			fmt.Printf("Scan %s: %s had no effect (scan not in an eligible state)\n", id, command)
		}
	}
}

func runScansDelete(_ *cobra.Command, args []string) {
	client, err := newClientOrExit()
	if err != nil {
		return
	}

	var resp struct {
		Deleted int `json:"deleted"`
	}
	payload := map[string]interface{}{"ids": args}
	if err := client.Delete("/scans", payload, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Error deleting scans: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Deleted %d scan(s)\n", resp.Deleted)
}

// displayScansTable displays scans in a table format.
func displayScansTable(scans []*store.Scan) {
	if len(scans) == 0 {
		fmt.Println("No scans found")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Name", "Status", "Progress", "Findings", "Elapsed", "ETA")

	for _, scan := range scans {
		progress := fmt.Sprintf("%.1f%%", scan.Progress)
		eta := scan.EstimatedTimeRemaining
		if scan.Status != store.ScanRunning {
			eta = "-"
		}

		_ = table.Append([]string{
			scan.ID,
			scan.Name,
			string(scan.Status),
			progress,
			fmt.Sprintf("%d", scan.TotalFindings),
			scan.ElapsedTime,
			eta,
		})
	}

	_ = table.Render()
}

// newClientOrExit creates an API client or exits with an error message.
func newClientOrExit() (*APIClient, error) {
	client, err := NewAPIClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return client, nil
}

// printJSON writes a value as indented JSON to stdout.
func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(strings.TrimSpace(string(data)))
}
