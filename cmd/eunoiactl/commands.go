package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/eunoia/backend/internal/config"
	"github.com/eunoia/backend/internal/database"
	"github.com/eunoia/backend/internal/middleware"
	"github.com/eunoia/backend/internal/service/logs"
	"github.com/eunoia/backend/internal/store/session"
)

type rootOptions struct {
	dbPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "eunoiactl",
		Short:         "Operate the Eunoia session database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path (default $DATABASE_PATH or data/eunoia.db)")

	rootCmd.AddCommand(newSessionsCmd(opts))
	rootCmd.AddCommand(newLogsCmd(opts))
	rootCmd.AddCommand(newTokenCmd())
	return rootCmd
}

func (o *rootOptions) open(ctx context.Context) (*sql.DB, error) {
	path := o.dbPath
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		path = cfg.Store.DatabasePath
	}
	return database.Open(ctx, path)
}

func (o *rootOptions) withStore(cmd *cobra.Command, fn func(ctx context.Context, store *session.SQLiteStore) error) error {
	ctx := cmd.Context()
	db, err := o.open(ctx)
	if err != nil {
		return err
	}
	store := session.NewSQLiteStore(db)
	defer store.Close()
	return fn(ctx, store)
}

func newSessionsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and expire chat sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <user-id>",
		Short: "Print the live session of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(ctx context.Context, store *session.SQLiteStore) error {
				current, err := store.Current(ctx, args[0])
				if errors.Is(err, session.ErrNotFound) {
					fmt.Fprintf(cmd.OutOrStdout(), "no session for %s\n", args[0])
					return nil
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), current)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <user-id>",
		Short: "Delete the live session of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd, func(ctx context.Context, store *session.SQLiteStore) error {
				if err := store.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted session for %s\n", args[0])
				return nil
			})
		},
	})

	var olderThan time.Duration
	sweep := &cobra.Command{
		Use:   "sweep",
		Short: "Delete sessions idle for longer than --older-than",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			return opts.withStore(cmd, func(ctx context.Context, store *session.SQLiteStore) error {
				cutoff := time.Now().UTC().Add(-olderThan)
				n, err := store.Sweep(ctx, cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d session(s) idle since %s\n", n, cutoff.Format(time.RFC3339))
				return nil
			})
		},
	}
	sweep.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "idle duration after which a session is removed")
	cmd.AddCommand(sweep)

	return cmd
}

func newLogsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Inspect activity logs",
	}

	var window time.Duration
	snapshot := &cobra.Command{
		Use:   "snapshot <user-id>",
		Short: "Print the log snapshot a new session would capture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			snap, err := logs.NewSQLProvider(db, window).Fetch(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), snap)
		},
	}
	snapshot.Flags().DurationVar(&window, "window", logs.DefaultWindow, "how far back to read logs")
	cmd.AddCommand(snapshot)

	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		ttl      time.Duration
		secret   string
		audience string
	)

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Sign a development bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				secret, audience = cfg.Auth.JWTSecret, firstNonEmpty(audience, cfg.Auth.Audience)
			}
			if secret == "" {
				return fmt.Errorf("no signing secret: pass --secret or set AUTH_JWT_SECRET")
			}

			token, err := middleware.NewJWTVerifier([]byte(secret), audience).Sign(args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	cmd.Flags().StringVar(&secret, "secret", "", "HS256 secret (default $AUTH_JWT_SECRET)")
	cmd.Flags().StringVar(&audience, "audience", "", "aud claim (default $AUTH_AUDIENCE)")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	out, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
