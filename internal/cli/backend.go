package cli

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/openai"

	"smartserve/internal/clock"
	"smartserve/internal/config"
	"smartserve/internal/feedback"
	"smartserve/internal/store"
	"smartserve/internal/store/fsstore"
)

// openStore opens the backend named by the configuration.
func openStore(ctx context.Context, cfg *config.Config, clk clock.Clock) (store.Store, error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite, config.DriverPostgres:
		return store.OpenGorm(cfg.Database.Driver, cfg.Database.DSN, clk)
	case config.DriverFirestore:
		return fsstore.Open(ctx, cfg.Database.ProjectID, cfg.Venue, clk)
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
}

// newInsighter builds the feedback insight generator.
func newInsighter(cfg *config.Config) (feedback.Insighter, error) {
	if cfg.Insights.Provider != config.InsightsOpenAI {
		return feedback.Heuristic{}, nil
	}

	opts := []openai.Option{
		openai.WithModel(cfg.Insights.Model),
		openai.WithToken(cfg.Insights.Token),
	}
	if cfg.Insights.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.Insights.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenAI client: %w", err)
	}
	return feedback.NewLLM(llm), nil
}
