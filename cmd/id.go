package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var idFormat string

var idCmd = &cobra.Command{
	Use:   "id <file>...",
	Short: "Show the module identifiers of dependency files",
	Long: `Resolve each file through its package's browser field and print the
identifier it is registered under, together with the path it expands to and
whether it is the package entry point.

Examples:
  deppack id node_modules/a/index.js
  deppack id node_modules/a/lib/*.js --format json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runID,
}

func init() {
	rootCmd.AddCommand(idCmd)
	idCmd.Flags().StringVarP(&idFormat, "format", "f", "table", "Output format (table, json)")
}

// idRow is one resolved file.
type idRow struct {
	File     string `json:"file"`
	ID       string `json:"id"`
	Expanded string `json:"expanded"`
	Entry    bool   `json:"entry"`
}

func runID(cmd *cobra.Command, args []string) error {
	env, err := newEnvironment(afero.NewOsFs())
	if err != nil {
		return err
	}
	rows, err := resolveIDs(cmd, env, args)
	if err != nil {
		return err
	}
	return writeIDs(cmd.OutOrStdout(), idFormat, rows)
}

func resolveIDs(cmd *cobra.Command, env *environment, files []string) ([]idRow, error) {
	session, err := env.session()
	if err != nil {
		return nil, err
	}
	ctx := commandContext(cmd)
	rows := make([]idRow, 0, len(files))
	for _, f := range files {
		expanded, err := session.ExpandedFilePath(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		id, err := session.ModuleID(ctx, expanded)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		entry, err := session.IsEntryPoint(ctx, expanded)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}
		rows = append(rows, idRow{File: f, ID: id, Expanded: expanded, Entry: entry})
	}
	return rows, nil
}

func writeIDs(w io.Writer, format string, rows []idRow) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(rows)
	case "table":
		table := tablewriter.NewWriter(w)
		table.Header("File", "ID", "Expanded", "Entry")
		for _, r := range rows {
			entry := ""
			if r.Entry {
				entry = "yes"
			}
			if err := table.Append([]string{r.File, r.ID, r.Expanded, entry}); err != nil {
				return err
			}
		}
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s (supported: table, json)", format)
	}
}
