package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ffb.ae/internal/auth"
	"ffb.ae/internal/guard"
)

const minPasswordLength = 12

func (c *cli) userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage back-office users",
	}

	var (
		email       string
		displayName string
		role        string
	)
	create := &cobra.Command{
		Use:   "create <username>",
		Short: "Create an admin user; the password is read from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := auth.Role(role)
			if !r.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			password, err := c.readPassword()
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(password, c.cost)
			if err != nil {
				return err
			}
			username := auth.NormalizeLogin(args[0])
			if displayName == "" {
				displayName = args[0]
			}
			u := &auth.User{
				Username:     username,
				Email:        auth.NormalizeLogin(email),
				PasswordHash: hash,
				DisplayName:  displayName,
				Role:         r,
				Active:       true,
			}
			return c.withDB(cmd, func(ctx context.Context, db *sql.DB) error {
				if err := auth.NewPGUserStore(db).Create(ctx, u); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d)\n", u.Username, u.ID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&email, "email", "", "email address")
	create.Flags().StringVar(&displayName, "name", "", "display name")
	create.Flags().StringVar(&role, "role", string(auth.RoleAdmin), "admin or staff")
	_ = create.MarkFlagRequired("email")

	passwd := &cobra.Command{
		Use:   "passwd <username>",
		Short: "Replace a user's password; the new password is read from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := c.readPassword()
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(password, c.cost)
			if err != nil {
				return err
			}
			return c.withDB(cmd, func(ctx context.Context, db *sql.DB) error {
				users := auth.NewPGUserStore(db)
				u, err := users.FindByLogin(ctx, args[0])
				if err != nil {
					return err
				}
				if err := users.UpdatePassword(ctx, u.ID, hash); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "password updated for %s\n", u.Username)
				return nil
			})
		},
	}

	cmd.AddCommand(create, passwd)
	return cmd
}

// readPassword takes the first line of stdin.
func (c *cli) readPassword() (string, error) {
	line, err := bufio.NewReader(c.stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.New("password must be supplied on stdin")
	}
	password := strings.TrimRight(line, "\r\n")
	if len(password) < minPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	return password, nil
}

func (c *cli) purgeAttemptsCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "purge-attempts",
		Short: "Delete expired failed-login records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withDB(cmd, func(ctx context.Context, db *sql.DB) error {
				n, err := guard.NewPGLockoutStore(db).Purge(ctx, c.now().Add(-olderThan))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "purged %d record(s)\n", n)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "keep records newer than this")
	return cmd
}
