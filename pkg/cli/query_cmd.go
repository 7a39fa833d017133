package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

type queryResult struct {
	Columns  []string        `json:"columns"`
	Rows     [][]interface{} `json:"rows"`
	RowCount int             `json:"row_count"`
}

func newQueryCmd(client *Client) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Execute a SQL statement",
		Args:  cobra.ExactArgs(1),
		Example: `  dataforge query "SELECT * FROM sales LIMIT 10"
  dataforge query --mode remote "SELECT count(*) FROM events"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result queryResult
			err := doWithMode(cmd.Context(), client, mode, http.MethodPost, "/execute/query",
				map[string]string{"sql": args[0]}, &result)
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), result)
			}

			rows := make([][]string, 0, len(result.Rows))
			for _, r := range result.Rows {
				cells := make([]string, len(r))
				for i, v := range r {
					cells[i] = formatCell(v)
				}
				rows = append(rows, cells)
			}
			if err := printTable(cmd.OutOrStdout(), result.Columns, rows); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "(%d rows)\n", result.RowCount)
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "Execution mode override (embedded, remote)")
	cmd.AddCommand(newHistoryCmd(client))
	return cmd
}

func newHistoryCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List recently executed statements",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var result struct {
				Items []struct {
					SQL        string    `json:"sql"`
					Mode       string    `json:"mode"`
					Status     string    `json:"status"`
					DurationMs int64     `json:"duration_ms"`
					RowCount   int64     `json:"row_count"`
					CreatedAt  time.Time `json:"created_at"`
				} `json:"items"`
				Total int64 `json:"total"`
			}
			if err := client.Do(cmd.Context(), http.MethodGet, "/execute/history", nil, &result); err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), result)
			}

			rows := make([][]string, 0, len(result.Items))
			for _, e := range result.Items {
				rows = append(rows, []string{
					e.CreatedAt.Format(time.RFC3339),
					e.Mode,
					e.Status,
					fmt.Sprintf("%dms", e.DurationMs),
					fmt.Sprintf("%d", e.RowCount),
					truncate(e.SQL, 60),
				})
			}
			return printTable(cmd.OutOrStdout(), []string{"WHEN", "MODE", "STATUS", "DURATION", "ROWS", "SQL"}, rows)
		},
	}
}

// doWithMode adds the execution-mode override header when mode is set.
func doWithMode(ctx context.Context, client *Client, mode, method, path string, body, out interface{}) error {
	if mode == "" {
		return client.Do(ctx, method, path, body, out)
	}
	// Temporarily wrap the transport to inject the header.
	orig := client.HTTP.Transport
	if orig == nil {
		orig = http.DefaultTransport
	}
	client.HTTP.Transport = headerTransport{base: orig, key: "X-Execution-Mode", value: mode}
	defer func() { client.HTTP.Transport = orig }()
	return client.Do(ctx, method, path, body, out)
}

type headerTransport struct {
	base       http.RoundTripper
	key, value string
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set(t.key, t.value)
	return t.base.RoundTrip(req)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
