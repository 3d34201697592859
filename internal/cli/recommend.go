package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/temcen/retouch/internal/engine"
	"github.com/temcen/retouch/internal/learning"
	"github.com/temcen/retouch/internal/validation"
	"github.com/temcen/retouch/pkg/models"
)

type recommendOptions struct {
	analysisPath string
	catalogPath  string
	profileID    string
	top          int
}

func newRecommendCommand() *cobra.Command {
	opts := &recommendOptions{}

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend enhancements for an analysis snapshot file",
		Long: `Recommend reads a JSON analysis snapshot and prints the recommendations of
one profile, or of every applicable profile when --profile is not set. No
learned preferences are applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRecommend(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.analysisPath, "analysis", "a", "", "JSON analysis snapshot file")
	cmd.Flags().StringVar(&opts.catalogPath, "catalog", "", "YAML catalog file (default: built-in catalog)")
	cmd.Flags().StringVarP(&opts.profileID, "profile", "p", "", "Profile id (default: all profiles)")
	cmd.Flags().IntVarP(&opts.top, "top", "n", 5, "Number of top-ranked recommendations per profile")
	_ = cmd.MarkFlagRequired("analysis")

	return cmd
}

func runRecommend(cmd *cobra.Command, opts *recommendOptions) error {
	if opts.top < 1 {
		return fmt.Errorf("--top must be at least 1, got %d", opts.top)
	}

	raw, err := os.ReadFile(opts.analysisPath)
	if err != nil {
		return fmt.Errorf("failed to read analysis: %w", err)
	}

	schemas, err := validation.NewDefaultSchemaValidator()
	if err != nil {
		return err
	}
	if result := schemas.ValidateAnalysisSnapshot(raw); !result.Valid {
		return fmt.Errorf("invalid analysis snapshot: %v", result.Errors[0])
	}

	var analysis models.AnalysisSnapshot
	if err := json.Unmarshal(raw, &analysis); err != nil {
		return fmt.Errorf("failed to decode analysis: %w", err)
	}

	catalog, err := loadCatalog(opts.catalogPath)
	if err != nil {
		return err
	}
	eng := engine.NewEngine(catalog)
	user := learning.NewUserLearningProfile("retouchctl")

	var sets []engine.RecommendationSet
	if opts.profileID != "" {
		set, err := eng.RecommendProfile(opts.profileID, &analysis, user)
		if err != nil {
			return err
		}
		sets = []engine.RecommendationSet{set}
	} else {
		sets = eng.RecommendAll(&analysis, user)
	}

	results := make([]models.ProfileRecommendations, 0, len(sets))
	for _, set := range sets {
		results = append(results, set.Result(opts.top))
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
