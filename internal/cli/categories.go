package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"trivia-quiz-service/internal/config"
	"trivia-quiz-service/internal/logger"
)

// NewCategoriesCmd prints the category catalog, optionally with question counts.
func NewCategoriesCmd(configPath *string) *cobra.Command {
	var withCounts bool
	var difficulty string

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List Open Trivia DB categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Env)
			if err != nil {
				return err
			}
			defer log.Sync()

			client := newOpenTDBClient(cfg, log)
			cats, err := client.Categories(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, cat := range cats {
				if !withCounts {
					fmt.Fprintf(out, "%-4s %s\n", cat.ID, cat.Name)
					continue
				}
				n, err := client.Count(cmd.Context(), cat.ID, difficulty)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-4s %-45s %d\n", cat.ID, cat.Name, n)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withCounts, "counts", false, "also print question counts")
	cmd.Flags().StringVar(&difficulty, "difficulty", "any", "difficulty used for --counts")
	return cmd
}
