package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

// Agent extracts trading intent from free-form user messages through a chat
// completion model. It never sizes or places trades; it only reads meaning.
type Agent struct {
	sdk    *openai.Client
	model  string
	logger *slog.Logger
}

// Config holds the model settings for the agent.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// New creates an Agent from the given model configuration.
func New(cfg Config, logger *slog.Logger) (*Agent, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("agent: api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("agent: model is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{
		Timeout: cfg.Timeout + 5*time.Second,
	}

	return &Agent{
		sdk:    openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: logger.With(slog.String("component", "agent")),
	}, nil
}

// ExtractIntent asks the model whether the message expresses a directional
// view on a real-world event, and if so how strongly held it is.
func (a *Agent) ExtractIntent(ctx context.Context, message string) (domain.Intent, error) {
	resp, err := a.sdk.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: intentSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
		Temperature: 0,
	})
	if err != nil {
		return domain.Intent{}, fmt.Errorf("agent: chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return domain.Intent{}, fmt.Errorf("agent: empty completion response")
	}

	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	intent, err := parseIntent(raw)
	if err != nil {
		a.logger.Error("failed to parse model output",
			slog.Any("error", err),
			slog.String("raw", raw))
		return domain.Intent{}, err
	}

	a.logger.Info("intent extracted",
		slog.Bool("has_intent", intent.HasTradingIntent),
		slog.String("topic", intent.Topic),
		slog.String("side", string(intent.Side)),
		slog.Float64("conviction", intent.Conviction))

	return intent, nil
}

// parseIntent decodes the model output into an Intent, tolerating prose or
// code fences around the JSON object.
func parseIntent(content string) (domain.Intent, error) {
	payload, err := extractJSON(content)
	if err != nil {
		return domain.Intent{}, err
	}

	var intent domain.Intent
	if err := json.Unmarshal(payload, &intent); err != nil {
		return domain.Intent{}, fmt.Errorf("agent: decode intent: %w", err)
	}

	if err := validateIntent(&intent); err != nil {
		return domain.Intent{}, err
	}

	return intent, nil
}

func validateIntent(intent *domain.Intent) error {
	if !intent.HasTradingIntent {
		return nil
	}
	if intent.Conviction < 0 || intent.Conviction > 1 {
		return fmt.Errorf("agent: conviction %.2f out of range [0,1]", intent.Conviction)
	}
	if !intent.Side.Valid() {
		return fmt.Errorf("agent: invalid side %q", intent.Side)
	}
	if intent.Topic == "" {
		return fmt.Errorf("agent: trading intent without a topic")
	}
	return nil
}

// extractJSON returns the outermost JSON object embedded in the content.
func extractJSON(content string) ([]byte, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("agent: no JSON object in model output")
	}
	return []byte(content[start : end+1]), nil
}
