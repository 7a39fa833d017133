package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func newModeCmd(client *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mode [embedded|remote]",
		Short: "Show or set the persisted execution mode",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result struct {
				Mode string `json:"mode"`
			}

			if len(args) == 0 {
				if err := client.Do(cmd.Context(), http.MethodGet, "/execute/mode", nil, &result); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), result.Mode)
				return nil
			}

			err := client.Do(cmd.Context(), http.MethodPut, "/execute/mode",
				map[string]string{"mode": args[0]}, &result)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Execution mode set to %s\n", result.Mode)
			return nil
		},
	}
	return cmd
}
