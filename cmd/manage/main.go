package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/interaction-tracker/internal/app"
	"github.com/spec-kit/interaction-tracker/internal/config"
	"github.com/spec-kit/interaction-tracker/internal/observability"
	"github.com/spec-kit/interaction-tracker/internal/persistence"
	apperrors "github.com/spec-kit/interaction-tracker/pkg/util"
)

var rootCmd = &cobra.Command{
	Use:           "manage",
	Short:         "Administrative tasks for the interaction tracker",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create a supervisor account",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStorage(cmd.Context(), func(ctx context.Context, cfg *config.Config, pg *persistence.Postgres, logger *zap.Logger) error {
			if cfg.Postgres.RunMigrations {
				if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
					return err
				}
			}
			creds, err := promptCredentials(bufio.NewReader(os.Stdin), cmd.OutOrStdout(), terminalSecret(os.Stdin))
			if err != nil {
				return err
			}
			services, err := app.NewServices(cfg, app.NewRepositories(pg), &persistence.Redis{}, logger)
			if err != nil {
				return err
			}
			user, err := services.Auth.CreateAdmin(ctx, creds.Username, creds.Password, creds.Confirm)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "supervisor %q created\n", user.Username)
			return nil
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStorage(cmd.Context(), func(ctx context.Context, cfg *config.Config, pg *persistence.Postgres, logger *zap.Logger) error {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(createAdminCmd, migrateCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withStorage loads configuration and a Postgres pool for the duration of fn.
// Management commands refuse to run against the in-memory store.
func withStorage(ctx context.Context, fn func(context.Context, *config.Config, *persistence.Postgres, *zap.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return err
	}
	if !pg.Enabled() {
		return errors.New("POSTGRES_DSN is required")
	}
	defer pg.Close()
	return fn(ctx, cfg, pg, logger)
}

// describe flattens validation details into a readable error.
func describe(err error) error {
	var de *apperrors.DomainError
	if !errors.As(err, &de) || len(de.Details) == 0 {
		return err
	}
	msg := de.Message
	for _, field := range []string{"username", "password", "password2"} {
		if detail, ok := de.Details[field]; ok {
			msg += fmt.Sprintf("; %s: %v", field, detail)
		}
	}
	return errors.New(msg)
}
