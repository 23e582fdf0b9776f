package feedback

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"smartserve/internal/models"
)

// Insighter turns one feedback record into an operations hint. An empty
// string means there is nothing worth flagging.
type Insighter interface {
	Insight(ctx context.Context, fb models.Feedback) (string, error)
}

// Heuristic flags low scores and common complaint words.
type Heuristic struct{}

// Insight implements Insighter. The first matching rule wins.
func (Heuristic) Insight(_ context.Context, fb models.Feedback) (string, error) {
	comment := strings.ToLower(fb.Comment)
	switch {
	case fb.FoodRating <= 3:
		return "Consistency Alert: Multiple low food ratings this hour. Check line 2.", nil
	case fb.ServiceRating <= 3:
		return "Operational Alert: Service speed flagged. Consider reassigning float staff.", nil
	case strings.Contains(comment, "cold"):
		return "Quality Control: Temperature complaints detected. Verify heat lamp function.", nil
	case strings.Contains(comment, "salt"):
		return "Recipe Alert: Check seasoning levels on main station.", nil
	case fb.FoodRating == 5 && fb.ServiceRating == 5:
		return "Positive Sentiment: Staff recognized for excellence. Consider reward.", nil
	}
	return "", nil
}

const insightPrompt = `You are the operations assistant of a busy restaurant.
A guest left this feedback:
- service rating: %d/5
- food rating: %d/5
- server: %s
- chef: %s
- comment: %q

Reply with a single short actionable insight for the floor manager, starting
with a category such as "Operational Alert:" or "Quality Control:". Reply with
NONE if nothing needs attention.`

// LLM asks a language model for the insight and falls back to the heuristics
// when the model fails or answers nothing usable.
type LLM struct {
	model    llms.Model
	fallback Insighter
	opts     []llms.CallOption
}

// NewLLM creates an LLM insighter over model.
func NewLLM(model llms.Model, opts ...llms.CallOption) *LLM {
	if len(opts) == 0 {
		opts = []llms.CallOption{llms.WithTemperature(0.2), llms.WithMaxTokens(80)}
	}
	return &LLM{model: model, fallback: Heuristic{}, opts: opts}
}

// Insight implements Insighter.
func (l *LLM) Insight(ctx context.Context, fb models.Feedback) (string, error) {
	prompt := fmt.Sprintf(insightPrompt, fb.ServiceRating, fb.FoodRating, fb.ServerName, fb.PreparerName, fb.Comment)

	resp, err := l.model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, l.opts...)
	if err != nil {
		log.Printf("insight model failed, using heuristics: %v", err)
		return l.fallback.Insight(ctx, fb)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return l.fallback.Insight(ctx, fb)
	}

	text := strings.TrimSpace(resp.Choices[0].Content)
	if text == "" {
		return l.fallback.Insight(ctx, fb)
	}
	if strings.EqualFold(text, "none") {
		return "", nil
	}
	return text, nil
}

// OrderInsight pairs an order with the insight for its feedback.
type OrderInsight struct {
	OrderID string `json:"orderId"`
	Table   string `json:"table"`
	Insight string `json:"insight"`
}

// Insights runs gen over every order with feedback and keeps the non-empty
// results.
func Insights(ctx context.Context, gen Insighter, orders []models.Order) ([]OrderInsight, error) {
	out := make([]OrderInsight, 0)
	for i := range orders {
		o := &orders[i]
		if o.Feedback == nil {
			continue
		}
		text, err := gen.Insight(ctx, *o.Feedback)
		if err != nil {
			return nil, fmt.Errorf("insight for order %s: %w", o.ID, err)
		}
		if text != "" {
			out = append(out, OrderInsight{OrderID: o.ID, Table: o.Table, Insight: text})
		}
	}
	return out, nil
}
