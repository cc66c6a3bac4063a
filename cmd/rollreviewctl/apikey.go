package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/rollreview/internal/apikey"
	"github.com/kiranshivaraju/rollreview/internal/store"
	"github.com/spf13/cobra"
)

func newAPIKeyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys",
		Long:  `Create, list, and revoke the API keys clients use to call the RollReview API.`,
	}
	cmd.AddCommand(newAPIKeyCreateCmd(a), newAPIKeyListCmd(a), newAPIKeyRevokeCmd(a))
	return cmd
}

func newAPIKeyCreateCmd(a *app) *cobra.Command {
	var (
		name   string
		scopes []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new API key",
		Long:  `Create a new API key. The raw key is printed once and cannot be recovered.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, key, err := apikey.Generate(name, scopes)
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), func(st store.Store) error {
				if err := st.CreateAPIKey(cmd.Context(), key); err != nil {
					return fmt.Errorf("failed to create api key: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "API key created: ID %s, name '%s', scopes %s\n",
					key.ID, key.Name, strings.Join(key.Scopes, ","))
				fmt.Fprintf(out, "Key: %s\n", raw)
				fmt.Fprintln(out, "Store it now; it will not be shown again.")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key name, recorded as the editor of analysis changes")
	cmd.Flags().StringSliceVar(&scopes, "scopes", nil, "comma-separated scopes (default analysis:read)")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newAPIKeyListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active API keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(st store.Store) error {
				keys, err := st.ListAPIKeys(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list api keys: %w", err)
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tName\tPrefix\tScopes\tLast Used")
				fmt.Fprintln(w, "--\t----\t------\t------\t---------")
				for _, k := range keys {
					lastUsed := "never"
					if k.LastUsedAt != nil {
						lastUsed = k.LastUsedAt.UTC().Format("2006-01-02 15:04")
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
						k.ID, k.Name, k.KeyPrefix, strings.Join(k.Scopes, ","), lastUsed)
				}
				w.Flush()

				if len(keys) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "\nNo API keys found.")
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "\n%d key(s) found.\n", len(keys))
				}
				return nil
			})
		},
	}
}

func newAPIKeyRevokeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid key ID '%s': %w", args[0], err)
			}
			return a.withStore(cmd.Context(), func(st store.Store) error {
				if err := st.RevokeAPIKey(cmd.Context(), id); err != nil {
					if errors.Is(err, store.ErrNotFound) {
						return fmt.Errorf("api key %s not found", id)
					}
					return fmt.Errorf("failed to revoke api key: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "API key revoked: %s\n", id)
				return nil
			})
		},
	}
}
