package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shelfsync/shelfsync/internal/db"
	"github.com/shelfsync/shelfsync/internal/server/auth"
	"github.com/shelfsync/shelfsync/internal/server/housekeeping"
	"github.com/shelfsync/shelfsync/internal/server/store"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			closeLog, err := setupLogger(&cfg.Log)
			if err != nil {
				return err
			}
			defer closeLog()

			database, err := db.Open(&cfg.Database)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := db.Migrate(cmd.Context(), database); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
			return nil
		},
	}
}

func newPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Hard-delete tombstones older than the retention window once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			closeLog, err := setupLogger(&cfg.Log)
			if err != nil {
				return err
			}
			defer closeLog()

			database, err := db.Open(&cfg.Database)
			if err != nil {
				return err
			}
			defer database.Close()
			if err := db.Migrate(cmd.Context(), database); err != nil {
				return err
			}

			purger := housekeeping.NewPurger(store.New(database), cfg.Sync.TombstoneRetention, &cfg.Housekeeping)
			res, err := purger.RunOnce(cmd.Context())
			if errors.Is(err, housekeeping.ErrLocked) {
				return fmt.Errorf("%w (%s)", err, cfg.Housekeeping.LockFile)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "purged %s items, %s tags, %s collections older than %s\n",
				humanize.Comma(res.Items),
				humanize.Comma(res.Tags),
				humanize.Comma(res.Collections),
				cfg.Sync.TombstoneRetention,
			)
			return nil
		},
	}
}

func newTokenCmd() *cobra.Command {
	var (
		userID   string
		deviceID string
		email    string
		expiry   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if !cfg.Auth.Enabled {
				return errors.New("auth is disabled; requests are identified by the X-User-ID header")
			}
			if cmd.Flags().Changed("expiry") {
				cfg.Auth.AccessTokenExpiry = expiry
			}

			token, err := auth.NewAuthService(&cfg.Auth).IssueAccessToken(userID, auth.TokenOptions{
				Email:    email,
				DeviceID: deviceID,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, token)
			if cfg.Auth.AccessTokenExpiry > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", humanize.Time(time.Now().Add(cfg.Auth.AccessTokenExpiry)))
			} else {
				fmt.Fprintln(cmd.ErrOrStderr(), "never expires")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "User id written to the sub claim")
	cmd.Flags().StringVarP(&deviceID, "device", "d", "", "Bind the token to one device id")
	cmd.Flags().StringVarP(&email, "email", "e", "", "Optional email claim")
	cmd.Flags().DurationVar(&expiry, "expiry", 0, "Override auth.access_token_expiry (0 means never)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
