package feedback

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"smartserve/internal/models"
)

type fakeModel struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, m := range messages {
		for _, p := range m.Parts {
			if text, ok := p.(llms.TextContent); ok {
				f.prompts = append(f.prompts, text.Text)
			}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestHeuristic(t *testing.T) {
	tests := []struct {
		name string
		fb   models.Feedback
		want string
	}{
		{"low food", models.Feedback{ServiceRating: 2, FoodRating: 3}, "Consistency Alert: Multiple low food ratings this hour. Check line 2."},
		{"low service", models.Feedback{ServiceRating: 3, FoodRating: 4}, "Operational Alert: Service speed flagged. Consider reassigning float staff."},
		{"cold", models.Feedback{ServiceRating: 5, FoodRating: 5, Comment: "Eggs were COLD"}, "Quality Control: Temperature complaints detected. Verify heat lamp function."},
		{"salt", models.Feedback{ServiceRating: 4, FoodRating: 4, Comment: "too salty"}, "Recipe Alert: Check seasoning levels on main station."},
		{"perfect", models.Feedback{ServiceRating: 5, FoodRating: 5}, "Positive Sentiment: Staff recognized for excellence. Consider reward."},
		{"nothing", models.Feedback{ServiceRating: 4, FoodRating: 5}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Heuristic{}.Insight(context.Background(), tt.fb)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLLM_UsesModelReply(t *testing.T) {
	model := &fakeModel{reply: "  Operational Alert: Table 4 waited too long.  "}
	gen := NewLLM(model)

	got, err := gen.Insight(context.Background(), models.Feedback{ServiceRating: 2, FoodRating: 5, Comment: "slow", ServerName: "John D."})
	require.NoError(t, err)
	assert.Equal(t, "Operational Alert: Table 4 waited too long.", got)
	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "service rating: 2/5")
	assert.Contains(t, model.prompts[0], "John D.")
}

func TestLLM_None(t *testing.T) {
	gen := NewLLM(&fakeModel{reply: "NONE"})
	got, err := gen.Insight(context.Background(), models.Feedback{ServiceRating: 1, FoodRating: 1})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLLM_FallsBackOnError(t *testing.T) {
	gen := NewLLM(&fakeModel{err: errors.New("rate limited")})
	got, err := gen.Insight(context.Background(), models.Feedback{ServiceRating: 5, FoodRating: 5})
	require.NoError(t, err)
	assert.Equal(t, "Positive Sentiment: Staff recognized for excellence. Consider reward.", got)

	gen = NewLLM(&fakeModel{reply: " "})
	got, err = gen.Insight(context.Background(), models.Feedback{ServiceRating: 5, FoodRating: 2})
	require.NoError(t, err)
	assert.Equal(t, "Consistency Alert: Multiple low food ratings this hour. Check line 2.", got)
}

func TestInsights(t *testing.T) {
	orders := []models.Order{
		{ID: "o1", Table: "4", Feedback: &models.Feedback{ServiceRating: 5, FoodRating: 5}},
		{ID: "o2", Table: "5"},
		{ID: "o3", Table: "6", Feedback: &models.Feedback{ServiceRating: 4, FoodRating: 5}},
	}

	got, err := Insights(context.Background(), Heuristic{}, orders)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "o1", got[0].OrderID)
	assert.Equal(t, "4", got[0].Table)
}
