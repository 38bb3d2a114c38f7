package cli

import (
	"fmt"
	"sort"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"

	"quizroom-service/internal/infra/memory"
	"quizroom-service/internal/infra/postgres"
)

// NewQuizCmd groups catalog commands.
func NewQuizCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Manage the quiz catalog",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the built-in sample quizzes",
		RunE: func(cmd *cobra.Command, args []string) error {
			quizzes := memory.SampleQuizzes()
			ids := make([]string, 0, len(quizzes))
			for id := range quizzes {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d questions\n", id, quizzes[id].Title, len(quizzes[id].Questions))
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Copy the built-in sample quizzes into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}
			pool, err := pgxpool.Connect(cmd.Context(), cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			loader := postgres.NewQuizLoader(pool)
			for id, quiz := range memory.SampleQuizzes() {
				if err := loader.SaveQuiz(cmd.Context(), quiz); err != nil {
					return fmt.Errorf("seed %s: %w", id, err)
				}
				log.WithField("quiz_id", id).Info("quiz seeded")
			}
			return nil
		},
	})
	return cmd
}
