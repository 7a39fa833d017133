package cli

import (
	"fmt"
	"net/http"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type loginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      struct {
		Email string `json:"email"`
		Plan  string `json:"plan"`
	} `json:"user"`
}

func newAuthCmd(client *Client, profile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication commands",
	}
	cmd.AddCommand(newLoginCmd(client, profile))
	cmd.AddCommand(newWhoamiCmd(client))
	return cmd
}

func newLoginCmd(client *Client, profile *string) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the token to the active profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" {
				return fmt.Errorf("--email is required")
			}
			if password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				raw, err := term.ReadPassword(int(syscall.Stdin))
				fmt.Fprintln(cmd.ErrOrStderr())
				if err != nil {
					return fmt.Errorf("read password: %w", err)
				}
				password = string(raw)
			}

			var result loginResult
			err := client.Do(cmd.Context(), http.MethodPost, "/auth/login",
				map[string]string{"email": email, "password": password}, &result)
			if err != nil {
				return err
			}

			client.Token = result.Token
			if err := saveProfileToken(*profile, result.Token); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s plan), token valid until %s\n",
				result.User.Email, result.User.Plan, result.ExpiresAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")
	return cmd
}

func newWhoamiCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the authenticated account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var me map[string]interface{}
			if err := client.Do(cmd.Context(), http.MethodGet, "/auth/me", nil, &me); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), me)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%v (%v plan)\n", me["email"], me["plan"])
			return nil
		},
	}
}
