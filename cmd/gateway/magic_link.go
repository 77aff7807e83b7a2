package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMagicLinkCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "magic-link",
		Short: "Issue or inspect magic login links",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "issue <email>",
		Short: "Print a login link for email without sending it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			issuer, err := a.newIssuer()
			if err != nil {
				return err
			}
			link, err := issuer.Issue(args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), link.URL)
			cmd.Printf("expires %s\n", link.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "verify <token>",
		Short: "Check a token and print the email it was issued for",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			issuer, err := a.newIssuer()
			if err != nil {
				return err
			}
			email, err := issuer.Verify(args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), email)
			return nil
		},
	})

	return cmd
}
