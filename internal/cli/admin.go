package cli

import (
	"errors"

	"quiz-eval-service/internal/app"
	"quiz-eval-service/internal/config"
	pgstore "quiz-eval-service/internal/infra/postgres"

	"github.com/spf13/cobra"
)

// NewCreateAdminCmd adds an administrator to the configured storage.
func NewCreateAdminCmd(configPath *string) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return errors.New("create-admin needs postgres; in-memory storage does not outlive the process")
			}
			log := newLogger(cfg)
			// Only the account tables are touched; the token store is not needed.
			db := pgstore.OpenDB(cfg.Postgres.URL)
			defer db.Close()

			accounts := app.NewAccountService(pgstore.NewStore(db), nil, cfg.Auth.BcryptCost, log)
			_, err = accounts.CreateAdmin(cmd.Context(), username, password)
			return err
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "admin username")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
