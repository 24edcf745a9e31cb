package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"trainingtracker/internal/config"
	"trainingtracker/internal/database"
)

// env is what every subcommand works against, opened once in the root's pre-run
type env struct {
	cfg *config.Config
	db  *database.DB
}

var current *env

var rootCmd = &cobra.Command{
	Use:           "trainctl",
	Short:         "Administer the training tracker database",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		if path, _ := cmd.Flags().GetString("db"); path != "" {
			if !strings.HasPrefix(cfg.DatabaseType, "sqlite") {
				cfg.DatabaseType = "sqlite"
			}
			cfg.DatabasePath = path
		}

		db, err := database.InitializeWithConfig(cfg)
		if err != nil {
			return fmt.Errorf("initialize database: %w", err)
		}

		// Run migrations to ensure schema is up to date
		if err := db.RunMigrations(cmd.Context(), cfg.MigrationsPath); err != nil {
			db.Close()
			return fmt.Errorf("run migrations: %w", err)
		}

		current = &env{cfg: cfg, db: db}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if current != nil {
			current.db.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to a SQLite database file (overrides DATABASE_TYPE and DB_PATH)")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(setCorrectAnswerCmd)
	rootCmd.AddCommand(policyCmd)
	rootCmd.AddCommand(quizStatsCmd)
	rootCmd.AddCommand(cacheCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}
