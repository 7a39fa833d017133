package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

type tableHandle struct {
	Name    string `json:"name"`
	Columns []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"columns"`
	RowCount int64 `json:"row_count"`
}

func newTablesCmd(client *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Manage loaded tables",
	}
	cmd.AddCommand(newTablesListCmd(client))
	cmd.AddCommand(newTablesDescribeCmd(client))
	cmd.AddCommand(newTablesExportCmd(client))
	cmd.AddCommand(newTablesDropCmd(client))
	return cmd
}

func newTablesListCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tables in the current execution mode",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var result struct {
				Tables []tableHandle `json:"tables"`
			}
			if err := client.Do(cmd.Context(), http.MethodGet, "/storage/tables", nil, &result); err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), result)
			}
			rows := make([][]string, 0, len(result.Tables))
			for _, t := range result.Tables {
				rows = append(rows, []string{t.Name, fmt.Sprintf("%d", len(t.Columns)), fmt.Sprintf("%d", t.RowCount)})
			}
			return printTable(cmd.OutOrStdout(), []string{"TABLE", "COLUMNS", "ROWS"}, rows)
		},
	}
}

func newTablesDescribeCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <table>",
		Short: "Show a table's schema and row count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var t tableHandle
			path := "/storage/tables/" + url.PathEscape(args[0])
			if err := client.Do(cmd.Context(), http.MethodGet, path, nil, &t); err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), t)
			}
			rows := make([][]string, 0, len(t.Columns))
			for _, c := range t.Columns {
				rows = append(rows, []string{c.Name, c.Type})
			}
			if err := printTable(cmd.OutOrStdout(), []string{"COLUMN", "TYPE"}, rows); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "(%d rows)\n", t.RowCount)
			return nil
		},
	}
}

func newTablesExportCmd(client *Client) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export <table>",
		Short: "Export a table as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/storage/tables/" + url.PathEscape(args[0]) + "/export"

			out := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close() //nolint:errcheck
				out = f
			}
			if err := client.Download(cmd.Context(), path, out); err != nil {
				return err
			}
			if outPath != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %s to %s\n", args[0], outPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "file", "f", "", "Write CSV to a file instead of stdout")
	return cmd
}

func newTablesDropCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "drop <table>",
		Short: "Drop a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/storage/tables/" + url.PathEscape(args[0])
			if err := client.Do(cmd.Context(), http.MethodDelete, path, nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Dropped %s\n", args[0])
			return nil
		},
	}
}
