package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/phrazzld/tasks-api/internal/platform/migrations"
	"github.com/phrazzld/tasks-api/internal/service/auth"
	"github.com/spf13/cobra"
)

// serveCmd implements 'tasks-api serve'.
func serveCmd(load configLoader) *cobra.Command {
	var skipMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the digest scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := newApplication(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer app.cleanup()

			if !skipMigrations {
				if err := migrations.Up(ctx, app.db, cfg.Database.Driver, log); err != nil {
					return err
				}
			}

			return app.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply pending migrations on start")
	return cmd
}

// migrateCmd implements 'tasks-api migrate [up|down|status|version|reset]'.
func migrateCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate <" + strings.Join(migrations.Commands, "|") + ">",
		Short:     "Manage the database schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: migrations.Commands,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}

			db, closeDB, err := openDatabase(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeDB()

			return migrations.Run(cmd.Context(), db, cfg.Database.Driver, args[0], log)
		},
	}
}

// digestCmd implements 'tasks-api digest run'.
func digestCmd(load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Pending-task digest email",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Send the digests due this minute and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}

			app, err := newApplication(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer app.cleanup()

			sent, err := app.runDigestOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d digest(s) processed\n", sent)
			return nil
		},
	})
	return cmd
}

// tokenCmd implements 'tasks-api token <user-uuid>'. Account management lives
// outside this service; the command mints access tokens for local use.
func tokenCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "token <user-uuid>",
		Short: "Mint an access token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := uuid.Parse(args[0])
			if err != nil || userID == uuid.Nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}

			cfg, log, err := load()
			if err != nil {
				return err
			}

			jwtService, err := auth.NewJWTService(cfg.Auth)
			if err != nil {
				return fmt.Errorf("failed to initialize JWT service: %w", err)
			}

			token, err := jwtService.GenerateToken(context.Background(), userID)
			if err != nil {
				return err
			}

			log.Debug("access token minted", slog.String("user_id", userID.String()))
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}
