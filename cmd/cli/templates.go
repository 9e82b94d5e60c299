// Package cli provides command-line interface commands for the scandeck
// console. This file implements the template catalog commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/scandeck/scandeck/internal/store"
)

var (
	// Template command flags
	templateSourceFilter   string
	templateStatusFilter   string
	templateSeverityFilter string
	templateSearchQuery    string
	templateOutputJSON     bool
)

// templatesCmd represents the templates command.
var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage the template catalog",
	Long: `List, upload, and validate detection templates on a running
scandeck daemon.`,
	Example: `  scandeck templates list
  scandeck templates upload my-template.yaml
  scandeck templates validate tmpl-001`,
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List templates",
	Example: `  scandeck templates list
  scandeck templates list --source custom --status not_validated
  scandeck templates list --search cve-2024`,
	Run: runTemplatesList,
}

var templatesUploadCmd = &cobra.Command{
	Use:   "upload <file>...",
	Short: "Upload template files to the catalog",
	Long: `Upload one or more template YAML files. Uploaded templates land in
the catalog as custom templates awaiting validation. A file that fails
to parse rejects the whole upload.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runTemplatesUpload,
}

var templatesValidateCmd = &cobra.Command{
	Use:   "validate <template-id>",
	Short: "Kick off validation for a template",
	Long: `Start a validation run for one template. The command returns
immediately; check the template status to see the verdict.`,
	Args: cobra.ExactArgs(1),
	Run:  runTemplatesValidate,
}

var templatesValidateCustomCmd = &cobra.Command{
	Use:   "validate-custom",
	Short: "Revalidate all custom templates",
	Run:   runTemplatesValidateCustom,
}

func init() {
	rootCmd.AddCommand(templatesCmd)
	templatesCmd.AddCommand(templatesListCmd)
	templatesCmd.AddCommand(templatesUploadCmd)
	templatesCmd.AddCommand(templatesValidateCmd)
	templatesCmd.AddCommand(templatesValidateCustomCmd)

	templatesListCmd.Flags().StringVar(&templateSourceFilter, "source", "", "Filter by source (official, custom)")
	templatesListCmd.Flags().StringVar(&templateStatusFilter, "status", "", "Filter by validation status")
	templatesListCmd.Flags().StringVar(&templateSeverityFilter, "severity", "", "Filter by severity")
	templatesListCmd.Flags().StringVar(&templateSearchQuery, "search", "", "Search name, id, and tags")
	templatesListCmd.Flags().BoolVar(&templateOutputJSON, "json", false, "Output as JSON")
}

// templateListResponse mirrors the paginated template listing.
type templateListResponse struct {
	Data []*store.Template `json:"data"`
}

func runTemplatesList(_ *cobra.Command, _ []string) {
	client, err := newClientOrExit()
	if err != nil {
		return
	}

	endpoint := "/templates?page_size=100"
	if templateSourceFilter != "" {
		endpoint += "&source=" + templateSourceFilter
	}
	if templateStatusFilter != "" {
		endpoint += "&status=" + templateStatusFilter
	}
	if templateSeverityFilter != "" {
		endpoint += "&severity=" + templateSeverityFilter
	}
	if templateSearchQuery != "" {
		endpoint += "&q=" + templateSearchQuery
	}

	var resp templateListResponse
	if err := client.Get(endpoint, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Error listing templates: %v\n", err)
		os.Exit(1)
	}

	if templateOutputJSON {
		printJSON(resp.Data)
		return
	}
	displayTemplatesTable(resp.Data)
}

func runTemplatesUpload(_ *cobra.Command, args []string) {
	client, err := newClientOrExit()
	if err != nil {
		return
	}

	files := make([]map[string]string, 0, len(args))
	for _, path := range args {
		// #nosec G304 - paths come from command line arguments
		content, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", path, err)
			os.Exit(1)
		}
		files = append(files, map[string]string{
			"filename": filepath.Base(path),
			"content":  string(content),
		})
	}

	var resp struct {
		Uploaded  int               `json:"uploaded"`
		Templates []*store.Template `json:"templates"`
	}
	if err := client.Post("/templates/upload", map[string]interface{}{"files": files}, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Error uploading templates: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Uploaded %d template(s):\n", resp.Uploaded)
	for _, tmpl := range resp.Templates {
		fmt.Printf("  %s  %s (%s)\n", tmpl.ID, tmpl.Name, tmpl.Severity)
	}
	fmt.Println("Run 'scandeck templates validate-custom' to validate them.")
}

func runTemplatesValidate(_ *cobra.Command, args []string) {
	client, err := newClientOrExit()
	if err != nil {
		return
	}

	id := args[0]
	var resp struct {
		TemplateID string `json:"template_id"`
		Status     string `json:"status"`
	}
	if err := client.Post("/templates/"+id+"/validate", nil, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting validation: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Validation started for %s\n", id)
}

func runTemplatesValidateCustom(_ *cobra.Command, _ []string) {
	client, err := newClientOrExit()
	if err != nil {
		return
	}

	if err := client.Post("/templates/validate-custom", nil, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting custom template sweep: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Custom template validation started")
}

// displayTemplatesTable displays templates in a table format.
func displayTemplatesTable(templates []*store.Template) {
	if len(templates) == 0 {
		fmt.Println("No templates found")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Template", "Severity", "Source", "Status", "Validated")

	for _, tmpl := range templates {
		validated := "Never"
		if tmpl.ValidatedAt != nil {
			validated = tmpl.ValidatedAt.Format("2006-01-02 15:04")
		}

		// Truncate long names so the table stays readable
		name := tmpl.Name
		if len(name) > 40 {
			name = name[:37] + "..."
		}

		_ = table.Append([]string{
			tmpl.TemplateID,
			name,
			string(tmpl.Severity),
			string(tmpl.Source),
			strings.ReplaceAll(string(tmpl.Status), "_", " "),
			validated,
		})
	}

	_ = table.Render()
}
