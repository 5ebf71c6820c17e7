package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/agepath/placement-engine/config"
	"github.com/agepath/placement-engine/internal/infrastructure/persistence/postgres"
)

var errUsage = errors.New("usage: placement-engine migrate up|down|status")

// runMigrate manages the schema without starting the server.
func runMigrate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	steps := fs.Int("steps", 1, "number of migrations to roll back with down")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required to run migrations")
	}

	conn, err := connectDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	migrator := postgres.NewMigrator(conn)
	switch fs.Arg(0) {
	case "up":
		return migrator.Migrate(ctx)
	case "down":
		for i := 0; i < *steps; i++ {
			if err := migrator.Rollback(ctx); err != nil {
				return err
			}
		}
		return nil
	case "status":
		migrations, err := migrator.Status(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
		for _, m := range migrations {
			applied := "-"
			if m.IsApplied {
				applied = m.AppliedAt.UTC().Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%d\t%s\t%s\n", m.Version, m.Name, applied)
		}
		return w.Flush()
	default:
		return errUsage
	}
}
