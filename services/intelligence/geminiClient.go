// File: services/intelligence/geminiClient.go
package intelligence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"calbook/models"

	genai "github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Generator produces raw model output for a prompt.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// GeminiClient answers prompts with JSON matching the intent schema.
type GeminiClient struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiClient(ctx context.Context, apiKey, modelName string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = intentSchema
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemInstruction)}}
	return &GeminiClient{client: client, model: model}, nil
}

func (g *GeminiClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrNoCandidates
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if textPart, ok := part.(genai.Text); ok {
			sb.WriteString(string(textPart))
		}
	}
	return sb.String(), nil
}

func (g *GeminiClient) Close() error {
	return g.client.Close()
}

const systemInstruction = `You extract calendar booking details from one user message.
Resolve relative dates ("tomorrow", "next Tuesday") against the provided current time and timezone.
Dates are YYYY-MM-DD. A single day has only "from". Times are 24-hour HH:MM.
Use "period" for vague times (morning, afternoon, evening).
"slotOrdinal" is the 1-based number of an offered slot the user picked.
"signal" is confirm, deny or cancel when the user says so ("try again" is confirm), otherwise omit it.
Omit every field the message does not state. Never guess.`

var intentSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"date": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"from": {Type: genai.TypeString, Description: "YYYY-MM-DD"},
				"to":   {Type: genai.TypeString, Description: "YYYY-MM-DD, inclusive"},
			},
			Required: []string{"from"},
		},
		"time": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"exact":  {Type: genai.TypeString, Description: "HH:MM"},
				"period": {Type: genai.TypeString, Enum: []string{"morning", "afternoon", "evening"}},
			},
		},
		"durationMinutes": {Type: genai.TypeInteger},
		"slotOrdinal":     {Type: genai.TypeInteger},
		"signal":          {Type: genai.TypeString, Enum: []string{"confirm", "deny", "cancel"}},
		"title":           {Type: genai.TypeString},
	},
}

// LLMExtractor prompts a Generator with the session context and parses the
// JSON it returns.
type LLMExtractor struct {
	gen    Generator
	logger *zap.Logger
}

func NewLLMExtractor(gen Generator, logger *zap.Logger) *LLMExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMExtractor{gen: gen, logger: logger}
}

func (e *LLMExtractor) Extract(ctx context.Context, utterance string, sc models.SessionContext) (models.StructuredIntent, error) {
	raw, err := e.gen.GenerateContent(ctx, buildPrompt(utterance, sc))
	if err != nil {
		return models.StructuredIntent{}, err
	}
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "```"), "```")
	var in models.StructuredIntent
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		e.logger.Warn("unparseable extractor output", zap.String("raw", raw), zap.Error(err))
		return models.StructuredIntent{}, fmt.Errorf("decode intent: %w", err)
	}
	return in, nil
}

// buildPrompt renders the session context the model needs to resolve
// relative dates and slot references.
func buildPrompt(utterance string, sc models.SessionContext) string {
	now := sc.Now.In(locationOf(sc.Timezone))
	var sb strings.Builder
	fmt.Fprintf(&sb, "Current time: %s (%s), timezone %s.\n", now.Format("2006-01-02 15:04"), now.Weekday(), sc.Timezone)
	fmt.Fprintf(&sb, "Conversation phase: %s.\n", sc.Phase)
	if r := sc.Request; r.HasDate() || r.ExactTime != "" || r.Duration > 0 {
		fmt.Fprintf(&sb, "Known so far: date %s..%s, time %q, period %q, duration %d minutes.\n",
			r.FromDate, r.ToDate, r.ExactTime, r.DayPeriod, int(r.Duration.Minutes()))
	}
	if len(sc.Offered) > 0 {
		sb.WriteString("Offered slots:\n")
		for _, s := range sc.Offered {
			fmt.Fprintf(&sb, "%d. %s\n", s.Rank, s.Label)
		}
	}
	if sc.Pending != nil {
		fmt.Fprintf(&sb, "Awaiting confirmation of: %s\n", sc.Pending.String())
	}
	for _, t := range sc.History {
		fmt.Fprintf(&sb, "%s: %s\n", t.Role, t.Text)
	}
	fmt.Fprintf(&sb, "User message: %s\n", utterance)
	return sb.String()
}
