package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"ffb.ae/internal/migrate"
	"ffb.ae/ops/migrations"
)

func (c *cli) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect schema migrations",
	}
	run := func(fn func(ctx context.Context, m *migrate.Manager, cmd *cobra.Command) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			return c.withDB(cmd, func(ctx context.Context, db *sql.DB) error {
				return fn(ctx, migrate.NewManager(db, migrations.SQL(), migrations.Seeds()), cmd)
			})
		}
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: run(func(ctx context.Context, m *migrate.Manager, cmd *cobra.Command) error {
				applied, err := m.Up(ctx)
				if err != nil {
					return err
				}
				return printList(cmd, "applied", applied)
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the latest migration",
			RunE: run(func(ctx context.Context, m *migrate.Manager, cmd *cobra.Command) error {
				name, err := m.Down(ctx)
				if errors.Is(err, migrate.ErrNothingApplied) {
					fmt.Fprintln(cmd.OutOrStdout(), "nothing to roll back")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rolled back %s\n", name)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Load seed data that has not been loaded yet",
			RunE: run(func(ctx context.Context, m *migrate.Manager, cmd *cobra.Command) error {
				applied, err := m.Seed(ctx)
				if err != nil {
					return err
				}
				return printList(cmd, "seeded", applied)
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "List applied migrations",
			RunE: run(func(ctx context.Context, m *migrate.Manager, cmd *cobra.Command) error {
				history, err := m.Status(ctx)
				if err != nil {
					return err
				}
				return printList(cmd, "applied", history)
			}),
		},
		&cobra.Command{
			Use:   "pending",
			Short: "List migrations that have not been applied",
			RunE: run(func(ctx context.Context, m *migrate.Manager, cmd *cobra.Command) error {
				pending, err := m.Pending(ctx)
				if err != nil {
					return err
				}
				return printList(cmd, "pending", pending)
			}),
		},
	)
	return cmd
}

func printList(cmd *cobra.Command, label string, items []string) error {
	out := cmd.OutOrStdout()
	if len(items) == 0 {
		_, err := fmt.Fprintf(out, "%s: none\n", label)
		return err
	}
	for _, item := range items {
		if _, err := fmt.Fprintf(out, "%s %s\n", label, item); err != nil {
			return err
		}
	}
	return nil
}
