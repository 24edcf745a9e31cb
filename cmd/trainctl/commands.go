package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"trainingtracker/internal/cache"
	"trainingtracker/internal/repository"
	"trainingtracker/internal/service"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		// the root pre-run already migrated
		fmt.Fprintf(cmd.OutOrStdout(), "Migrations completed (type: %s)\n", current.cfg.DatabaseType)
		return nil
	},
}

var setCorrectAnswerCmd = &cobra.Command{
	Use:   "set-correct-answer",
	Short: "Mark one answer as the correct option of its question",
	Long: "Mark one answer as the correct option of its question. " +
		"Attempts already submitted keep the correctness recorded at submission.",
	RunE: func(cmd *cobra.Command, args []string) error {
		questionID, _ := cmd.Flags().GetInt64("question")
		answerID, _ := cmd.Flags().GetInt64("answer")

		catalog := service.NewCatalogService(repository.NewCatalogRepository(current.db))
		if err := catalog.SetCorrectAnswer(cmd.Context(), questionID, answerID); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Answer %d is now the correct option of question %d\n", answerID, questionID)
		return nil
	},
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Show or change attempt policy settings",
}

var passedRetakeCmd = &cobra.Command{
	Use:       "passed-retake [true|false]",
	Short:     "Show or set whether learners may retake a quiz they passed",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"true", "false"},
	RunE: func(cmd *cobra.Command, args []string) error {
		policy := newPolicyService()

		if len(args) == 1 {
			allowed, err := strconv.ParseBool(args[0])
			if err != nil {
				return fmt.Errorf("expected true or false, got %q", args[0])
			}
			if err := policy.SetAllowPassedRetake(cmd.Context(), allowed); err != nil {
				return err
			}
		}

		allowed, err := policy.AllowPassedRetake(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "allow_passed_retake=%t\n", allowed)
		return nil
	},
}

var quizStatsCmd = &cobra.Command{
	Use:   "quiz-stats",
	Short: "Summarize graded attempts of a quiz",
	RunE: func(cmd *cobra.Command, args []string) error {
		quizID, _ := cmd.Flags().GetInt64("quiz")

		catalogRepo := repository.NewCatalogRepository(current.db)
		progress := service.NewProgressService(catalogRepo, repository.NewProgressRepository(current.db))
		quizzes := service.NewQuizService(catalogRepo, repository.NewAttemptRepository(current.db), progress, newPolicyService())

		stats, err := quizzes.QuizStats(cmd.Context(), quizID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Quiz %d\n", stats.QuizID)
		fmt.Fprintf(out, "  Graded attempts: %d\n", stats.GradedAttempts)
		fmt.Fprintf(out, "  Passed attempts: %d\n", stats.PassedAttempts)
		fmt.Fprintf(out, "  Average score:   %.2f%%\n", stats.AverageScore)
		fmt.Fprintf(out, "  Pass rate:       %.2f%%\n", stats.PassRatePercent)
		return nil
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the redis catalog cache",
}

var invalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Drop cached catalog entries of a module after editing it",
	RunE: func(cmd *cobra.Command, args []string) error {
		moduleID, _ := cmd.Flags().GetInt64("module")
		if current.cfg.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is not set")
		}

		client, err := cache.Connect(cmd.Context(), current.cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()

		catalog := cache.NewCatalogCache(repository.NewCatalogRepository(current.db), client, current.cfg.CatalogCacheTTL)
		if err := catalog.InvalidateModule(cmd.Context(), moduleID); err != nil {
			return fmt.Errorf("invalidate module %d: %w", moduleID, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Invalidated cached catalog of module %d\n", moduleID)
		return nil
	},
}

func newPolicyService() *service.PolicyService {
	return service.NewPolicyService(repository.NewSettingsRepository(current.db), service.Policy{
		AllowPassedRetake: current.cfg.AllowPassedRetake,
		StaleAttemptAfter: current.cfg.StaleAttemptAfter,
	})
}

func init() {
	setCorrectAnswerCmd.Flags().Int64("question", 0, "Question ID")
	setCorrectAnswerCmd.Flags().Int64("answer", 0, "Answer ID")
	setCorrectAnswerCmd.MarkFlagRequired("question")
	setCorrectAnswerCmd.MarkFlagRequired("answer")

	policyCmd.AddCommand(passedRetakeCmd)

	quizStatsCmd.Flags().Int64("quiz", 0, "Quiz ID")
	quizStatsCmd.MarkFlagRequired("quiz")

	invalidateCmd.Flags().Int64("module", 0, "Module ID")
	invalidateCmd.MarkFlagRequired("module")
	cacheCmd.AddCommand(invalidateCmd)
}
