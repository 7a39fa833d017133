package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"
)

type workflowView struct {
	Name         string  `json:"name"`
	ScheduleCron *string `json:"schedule_cron"`
	IsPaused     bool    `json:"is_paused"`
}

type runView struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	Trigger    string     `json:"trigger_type"`
	Error      *string    `json:"error"`
	StartedAt  *time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

func newWorkflowCmd(client *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workflow",
		Aliases: []string{"wf"},
		Short:   "Manage scheduled ETL workflows",
	}
	cmd.AddCommand(newWorkflowListCmd(client))
	cmd.AddCommand(newWorkflowTriggerCmd(client))
	cmd.AddCommand(newWorkflowRunsCmd(client))
	cmd.AddCommand(newWorkflowPauseCmd(client, true))
	cmd.AddCommand(newWorkflowPauseCmd(client, false))
	cmd.AddCommand(newWorkflowCancelCmd(client))
	return cmd
}

func newWorkflowListCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workflows",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var result struct {
				Items []workflowView `json:"items"`
				Total int64          `json:"total"`
			}
			if err := client.Do(cmd.Context(), http.MethodGet, "/workflows/", nil, &result); err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), result)
			}
			rows := make([][]string, 0, len(result.Items))
			for _, w := range result.Items {
				schedule := "-"
				if w.ScheduleCron != nil {
					schedule = *w.ScheduleCron
				}
				state := "active"
				if w.IsPaused {
					state = "paused"
				}
				rows = append(rows, []string{w.Name, schedule, state})
			}
			return printTable(cmd.OutOrStdout(), []string{"WORKFLOW", "SCHEDULE", "STATE"}, rows)
		},
	}
}

func newWorkflowTriggerCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "trigger <workflow>",
		Short: "Trigger a workflow run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var run runView
			path := "/workflows/" + url.PathEscape(args[0]) + "/trigger"
			if err := client.Do(cmd.Context(), http.MethodPost, path, nil, &run); err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), run)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run %s started (%s)\n", run.ID, run.Status)
			return nil
		},
	}
}

func newWorkflowRunsCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "runs <workflow>",
		Short: "List a workflow's runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result struct {
				Items []runView `json:"items"`
				Total int64     `json:"total"`
			}
			path := "/workflows/" + url.PathEscape(args[0]) + "/runs"
			if err := client.Do(cmd.Context(), http.MethodGet, path, nil, &result); err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), result)
			}
			rows := make([][]string, 0, len(result.Items))
			for _, r := range result.Items {
				errMsg := ""
				if r.Error != nil {
					errMsg = truncate(*r.Error, 40)
				}
				rows = append(rows, []string{
					r.ID, r.Status, r.Trigger, r.CreatedAt.Format(time.RFC3339), errMsg,
				})
			}
			return printTable(cmd.OutOrStdout(), []string{"RUN", "STATUS", "TRIGGER", "CREATED", "ERROR"}, rows)
		},
	}
}

func newWorkflowPauseCmd(client *Client, pause bool) *cobra.Command {
	use, short := "pause <workflow>", "Pause a workflow's schedule"
	if !pause {
		use, short = "resume <workflow>", "Resume a paused workflow"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/workflows/" + url.PathEscape(args[0]) + "/paused"
			body := map[string]bool{"is_paused": pause}
			if err := client.Do(cmd.Context(), http.MethodPut, path, body, nil); err != nil {
				return err
			}
			verb := "Paused"
			if !pause {
				verb = "Resumed"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, args[0])
			return nil
		},
	}
}

func newWorkflowCancelCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <run-id>",
		Short: "Cancel a pending or running workflow run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/workflows/runs/" + url.PathEscape(args[0]) + "/cancel"
			if err := client.Do(cmd.Context(), http.MethodPost, path, nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled run %s\n", args[0])
			return nil
		},
	}
}
