package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gokatarajesh/trivia-night/internal/auth"
	"github.com/gokatarajesh/trivia-night/internal/config"
	"github.com/gokatarajesh/trivia-night/internal/db/postgres"
)

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		dsn     string
		timeout time.Duration
	)

	root := &cobra.Command{
		Use:          "migrator",
		Short:        "Database and deployment helpers for trivia-night",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dsn, "dsn", "", "Postgres connection URL (defaults to PG_* environment variables)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Deadline for the whole command")

	migrate := func(command string) *cobra.Command {
		return &cobra.Command{
			Use:   command,
			Short: fmt.Sprintf("Run goose %s against the configured database", command),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				target, err := resolveDSN(dsn)
				if err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				defer cancel()

				if err := postgres.Migrate(ctx, target, command); err != nil {
					log.Error().Err(err).Str("command", command).Msg("migration failed")
					return err
				}
				log.Info().Str("command", command).Msg("migration finished")
				return nil
			},
		}
	}
	root.AddCommand(migrate(postgres.MigrateUp), migrate(postgres.MigrateDown), migrate(postgres.MigrateStatus))
	root.AddCommand(newHostKeyCmd())
	return root
}

func newHostKeyCmd() *cobra.Command {
	hostKey := &cobra.Command{
		Use:   "hostkey",
		Short: "Manage the host login key",
	}
	hostKey.AddCommand(&cobra.Command{
		Use:   "hash <key>",
		Short: "Print the bcrypt hash to put in HOST_KEY_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashHostKey(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	})
	return hostKey
}

func resolveDSN(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	var pg config.Postgres
	if err := env.Parse(&pg); err != nil {
		return "", fmt.Errorf("parse postgres env: %w", err)
	}
	if pg.User == "" || pg.Database == "" {
		return "", fmt.Errorf("PG_USER and PG_DATABASE are required when --dsn is not set")
	}
	return pg.DSN(), nil
}
