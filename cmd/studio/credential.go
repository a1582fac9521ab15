package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"veostudio/internal/infra"
	"veostudio/internal/infra/credentials"
)

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage the API key stored in PostgreSQL",
}

var credentialSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store the Gemini API key",
	Long: `Store the Gemini API key used for video generation.

Examples:
  studio credential set --key AIza...
  GEMINI_API_KEY=AIza... studio credential set`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, _ := cmd.Flags().GetString("key")
		key = strings.TrimSpace(key)
		if key == "" {
			key = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
		}
		if key == "" {
			return fmt.Errorf("an API key is required via --key or GEMINI_API_KEY")
		}
		return withStore(cmd.Context(), func(ctx context.Context, store *credentials.Store) error {
			if err := store.SetAPIKey(ctx, key, credentials.SourceCLI); err != nil {
				return fmt.Errorf("persist api key: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key stored")
			return nil
		})
	},
}

var credentialClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, store *credentials.Store) error {
			if err := store.ClearAPIKey(ctx); err != nil {
				return fmt.Errorf("clear api key: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key cleared")
			return nil
		})
	},
}

var credentialStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether an API key is stored",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, store *credentials.Store) error {
			stored, ok, err := store.Describe(ctx)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "absent")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "present %s (source %s, updated %s)\n",
				maskKey(stored.Key), stored.Source, stored.UpdatedAt.Format(time.RFC3339))
			return nil
		})
	},
}

func init() {
	credentialSetCmd.Flags().String("key", "", "Gemini API key (falls back to GEMINI_API_KEY)")
	credentialCmd.AddCommand(credentialSetCmd, credentialClearCmd, credentialStatusCmd)
}

func withStore(ctx context.Context, fn func(context.Context, *credentials.Store) error) error {
	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	logger := infra.NewLogger("cli", os.Getenv("LOG_LEVEL")).With().Str("cmd", "credential").Logger()
	pool, err := infra.NewDBPool(ctx, dbURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))
	execCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.EnsureSchema(execCtx); err != nil {
		return err
	}
	return fn(execCtx, store)
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
