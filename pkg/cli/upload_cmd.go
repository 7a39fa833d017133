package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newUploadCmd(client *Client) *cobra.Command {
	var table string

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a data file into a table",
		Long:  "Upload a CSV, JSON, Parquet, or Excel file. The table name is derived from the filename unless --table is given.",
		Args:  cobra.ExactArgs(1),
		Example: `  dataforge upload sales.csv
  dataforge upload data/metrics.parquet --table metrics_raw`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close() //nolint:errcheck

			var handle tableHandle
			err = client.UploadFile(cmd.Context(), "/storage/upload", "file",
				filepath.Base(args[0]), f, map[string]string{"table": table}, &handle)
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), handle)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %s (%d columns, %d rows)\n",
				handle.Name, len(handle.Columns), handle.RowCount)
			return nil
		},
	}

	cmd.Flags().StringVarP(&table, "table", "t", "", "Target table name")
	return cmd
}
