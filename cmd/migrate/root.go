// AngelaMos | 2026
// root.go

package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/smartscreen-ai/gateway/internal/migrations"
)

const pingTimeout = 10 * time.Second

type action func(ctx context.Context, db *sql.DB) error

var openDB = func(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close() //nolint:errcheck // cleanup on connection failure
		return nil, err
	}
	return db, nil
}

func NewRootCmd() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the gateway users schema",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(
		&databaseURL,
		"database-url",
		"",
		"postgres connection string (defaults to $DATABASE_URL)",
	)

	cmd.AddCommand(
		newActionCmd("up", "Apply all pending migrations", &databaseURL, migrations.Up),
		newActionCmd("down", "Roll back the latest migration", &databaseURL, migrations.Down),
		newActionCmd("status", "Show applied and pending migrations", &databaseURL, migrations.Status),
		newVersionCmd(&databaseURL),
	)

	return cmd
}

func newActionCmd(use, short string, databaseURL *string, run action) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd, *databaseURL, func(ctx context.Context, db *sql.DB) error {
				if err := run(ctx, db); err != nil {
					return oops.
						Code("MIGRATION_FAILED").
						With("command", use).
						Wrap(err)
				}
				cmd.Printf("migrate %s: done\n", use)
				return nil
			})
		},
	}
}

func newVersionCmd(databaseURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd, *databaseURL, func(ctx context.Context, db *sql.DB) error {
				v, err := migrations.Version(ctx, db)
				if err != nil {
					return oops.Code("MIGRATION_FAILED").With("command", "version").Wrap(err)
				}
				cmd.Printf("schema version: %d\n", v)
				return nil
			})
		},
	}
}

func withDB(cmd *cobra.Command, databaseURL string, fn action) error {
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		return oops.
			Code("CONFIG_INVALID").
			Errorf("--database-url or DATABASE_URL is required")
	}

	goose.SetLogger(log.New(cmd.OutOrStdout(), "", 0))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := openDB(ctx, databaseURL)
	if err != nil {
		return oops.
			Code("DB_CONNECT_FAILED").
			With("operation", "connect to database").
			Wrap(err)
	}
	defer db.Close() //nolint:errcheck // process exits right after

	return fn(ctx, db)
}
