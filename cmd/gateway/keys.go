package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newKeysCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys",
		Long: `Manage API keys directly in the store, without going through the HTTP API.

A key's value is only printed when it is issued. Listing shows the display
name and a short preview.`,
	}

	cmd.AddCommand(newKeysIssueCmd(a))
	cmd.AddCommand(newKeysListCmd(a))
	cmd.AddCommand(newKeysRevokeCmd(a))

	return cmd
}

func newKeysIssueCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "issue <owner> <display-name>",
		Short: "Issue a new API key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore(a, s)

			key, err := a.newRegistry(s).Issue(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			cmd.Printf("API key for %s (%s), expires %s:\n", key.Owner, key.DisplayName, key.ExpiresAt.Format("2006-01-02 15:04 MST"))
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), key.Value)
			return nil
		},
	}
}

func newKeysListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list <owner>",
		Short: "List an owner's API keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore(a, s)

			items, err := a.newRegistry(s).List(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(items) == 0 {
				cmd.Printf("No API keys for %s\n", args[0])
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "DISPLAY NAME\tKEY")
			for _, item := range items {
				_, _ = fmt.Fprintf(w, "%s\t%s...\n", item.DisplayName, item.Preview)
			}
			return w.Flush()
		},
	}
}

func newKeysRevokeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <owner> <api-key>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore(a, s)

			if err := a.newRegistry(s).Revoke(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			cmd.Printf("API Key %s deleted successfully\n", args[1])
			return nil
		},
	}
}
