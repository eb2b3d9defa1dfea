// Command ffbctl runs maintenance tasks against the site database.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ffb.ae/internal/config"
	"ffb.ae/internal/store/pg"
)

// opener connects to the database named by dsn.
type opener func(ctx context.Context, dsn string) (*sql.DB, error)

func openPG(ctx context.Context, dsn string) (*sql.DB, error) {
	return pg.Open(ctx, dsn, pg.DefaultPoolOptions())
}

type cli struct {
	open    opener
	dsn     string
	timeout time.Duration
	cost    int
	stdin   io.Reader
	now     func() time.Time
}

func main() {
	if err := newRootCmd(openPG, os.Stdin).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(open opener, stdin io.Reader) *cobra.Command {
	c := &cli{open: open, stdin: stdin, now: time.Now}
	root := &cobra.Command{
		Use:          "ffbctl",
		Short:        "Maintenance tasks for the ffb.ae site",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if c.dsn == "" {
				c.dsn = cfg.DatabaseURL
			}
			if c.cost == 0 {
				c.cost = cfg.Security.BcryptCost
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.dsn, "dsn", "", "PostgreSQL DSN (defaults to DATABASE_URL)")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", 30*time.Second, "overall timeout")

	root.AddCommand(c.migrateCmd(), c.userCmd(), c.purgeAttemptsCmd())
	return root
}

// withDB opens the database for the duration of fn.
func (c *cli) withDB(cmd *cobra.Command, fn func(ctx context.Context, db *sql.DB) error) error {
	if c.dsn == "" {
		return fmt.Errorf("missing DSN: pass --dsn or set DATABASE_URL")
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
	defer cancel()
	db, err := c.open(ctx, c.dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, db)
}
