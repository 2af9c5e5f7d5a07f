package advisory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// openAIAdvisor implements the Advisor interface using OpenAI
type openAIAdvisor struct {
	client *openai.Client
	model  string
	now    func() time.Time
}

// NewAdvisor creates a new OpenAI-backed Advisor. baseURL overrides the API
// endpoint when non-empty.
func NewAdvisor(apiKey, model, baseURL string) Advisor {
	if apiKey == "" {
		return &openAIAdvisor{client: nil, model: model, now: time.Now}
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &openAIAdvisor{
		client: openai.NewClientWithConfig(config),
		model:  model,
		now:    time.Now,
	}
}

// Advise asks the model for guidance with structured output
func (a *openAIAdvisor) Advise(ctx context.Context, summary RouteSummary) (Advisory, error) {
	if a.client == nil {
		return Advisory{}, errors.New("OpenAI client not initialized - missing API key")
	}

	input, err := json.Marshal(summary)
	if err != nil {
		return Advisory{}, fmt.Errorf("failed to encode route summary: %w", err)
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: SystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: "Write an advisory for this trip:\n" + string(input),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type:       openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &AdvisorySchema,
		},
		Temperature: 0.3,
		MaxTokens:   600,
	})
	if err != nil {
		return Advisory{}, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return Advisory{}, errors.New("no response from OpenAI API")
	}

	var advisory Advisory
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &advisory); err != nil {
		return Advisory{}, fmt.Errorf("failed to parse OpenAI JSON response: %w", err)
	}

	if !isValidRecommendation(advisory.Recommendation) {
		advisory.Recommendation = defaultRecommendation(summary.Rating)
	}
	if advisory.CondensedSummary == "" || len(advisory.CondensedSummary) > 120 {
		advisory.CondensedSummary = CondensedSummary(summary)
	}
	advisory.GeneratedAt = a.now().UTC()

	return advisory, nil
}

// HealthCheck verifies OpenAI API connectivity
func (a *openAIAdvisor) HealthCheck(ctx context.Context) error {
	if a.client == nil {
		return errors.New("OpenAI client not initialized")
	}

	_, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: "Test",
			},
		},
		MaxTokens: 1,
	})
	if err != nil {
		return fmt.Errorf("OpenAI API health check failed: %w", err)
	}

	return nil
}

// CondensedSummary builds a one-line summary without calling the model
func CondensedSummary(summary RouteSummary) string {
	var b strings.Builder
	switch {
	case summary.HazardCount > 0:
		fmt.Fprintf(&b, "Hazards at %d camera", summary.HazardCount)
		if summary.HazardCount > 1 {
			b.WriteString("s")
		}
		if len(summary.Hazards) > 0 {
			fmt.Fprintf(&b, " incl. %s (%s)", summary.Hazards[0].Name, summary.Hazards[0].Condition)
		}
	case summary.Rating == "caution":
		fmt.Fprintf(&b, "Marginal conditions at %d of %d cameras", summary.CautionCount, summary.CautionCount+summary.SafeCount)
	case summary.Rating == "safe":
		b.WriteString("Cameras along the route show good conditions")
	default:
		b.WriteString("No camera coverage, conditions unknown")
	}
	if summary.Degraded {
		b.WriteString("; straight-line estimate only")
	}
	b.WriteString(".")

	s := b.String()
	if len(s) > 120 {
		s = s[:117] + "..."
	}
	return s
}

func defaultRecommendation(rating string) string {
	switch rating {
	case "hazardous":
		return "delay_travel"
	case "caution", "unknown":
		return "proceed_with_caution"
	default:
		return "proceed"
	}
}

// isValidRecommendation validates recommendation enum values
func isValidRecommendation(r string) bool {
	for _, valid := range []string{"proceed", "proceed_with_caution", "delay_travel", "avoid"} {
		if r == valid {
			return true
		}
	}
	return false
}
