package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/heartmarshall/safety-pulse/internal/app"
)

func tokenCommand() *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a reporter identity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var id uuid.UUID
			if subject != "" {
				parsed, err := uuid.Parse(subject)
				if err != nil {
					return fmt.Errorf("invalid --subject: %w", err)
				}
				id = parsed
			}

			token, id, err := app.IssueToken(cfg, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "subject: %s\ntoken: %s\n", id, token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "subject UUID (default: new random id)")
	return cmd
}
