package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-context-relay/internal/app"
	"github.com/tbourn/go-context-relay/internal/repo"
)

func newContextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Inspect or purge a user's durable context",
		Long:  "Operator access to the SQLite context store. The access allowlist does not apply.",
	}
	cmd.AddCommand(newContextLastCmd())
	cmd.AddCommand(newContextPurgeCmd())
	return cmd
}

func newContextLastCmd() *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "last",
		Short: "Print the user's most recent stored message",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				e, err := repo.LastContext(cmd.Context(), a.DB, userID)
				if errors.Is(err, repo.ErrNotFound) {
					fmt.Fprintf(cmd.OutOrStdout(), "no context for user %d\n", userID)
					return nil
				}
				if err != nil {
					return fmt.Errorf("read context: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "#%d user=%d\n%s\n", e.ID, e.UserID, e.Text)
				return nil
			})
		},
	}
	cmd.Flags().Int64VarP(&userID, "user", "u", 0, "user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newContextPurgeCmd() *cobra.Command {
	var userID int64

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every stored message of the user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				n, err := repo.PurgeContext(cmd.Context(), a.DB, userID)
				if err != nil {
					return fmt.Errorf("purge context: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "purged %d entries for user %d\n", n, userID)
				return nil
			})
		},
	}
	cmd.Flags().Int64VarP(&userID, "user", "u", 0, "user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// withApp opens the configured store for the duration of fn.
func withApp(fn func(a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(cfg, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
