package cli

import (
	"os"

	"quiz-eval-service/internal/config"

	"github.com/spf13/cobra"
)

var (
	port       string
	configPath string
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "quiz-eval",
		Short:         "Multi-lingual quiz evaluation service",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return resolveConfig(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&port, "port", "", "port to listen on (overrides config and PORT)")
	cmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to YAML config (env CONFIG_PATH)")
	cmd.AddCommand(NewStartCmd(&configPath, &port))
	cmd.AddCommand(NewMigrateCmd(&configPath))
	cmd.AddCommand(NewCreateAdminCmd(&configPath))
	return cmd
}

const defaultConfigPath = "config/config.yaml"

// resolveConfig loads dotenv files first so CONFIG_PATH may come from .env.
// An explicit --config always wins.
func resolveConfig(cmd *cobra.Command, dotenv ...string) error {
	if err := config.LoadDotEnv(dotenv...); err != nil {
		return err
	}
	if f := cmd.Flag("config"); f != nil && f.Changed {
		return nil
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		configPath = env
	}
	return nil
}
