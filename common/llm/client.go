package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	defaultStructuredModel     = "gpt-4o-mini"
	defaultStructuredMaxTokens = 1000
)

// ErrTruncated is returned when the model stopped at the token limit before
// finishing its JSON document.
var ErrTruncated = errors.New("structured response truncated at max tokens")

// Client returns JSON conforming to a strict schema. It backs the summarizer,
// whose output must be machine readable.
type Client interface {
	Chat(ctx context.Context, req Request, result any) (*Response, error)
	Model() string
}

type Request struct {
	SystemPrompt string
	UserPrompt   string
	SchemaName   string
	Schema       any
	MaxTokens    int
	Temperature  *float64 // nil = model default, explicit 0 = deterministic
}

type Response struct {
	PromptTokens     int
	CompletionTokens int
}

type structuredClient struct {
	api   openai.Client
	model string
}

// New creates a structured-output client on the OpenAI API. Other providers
// are rejected because only OpenAI enforces strict json_schema responses.
func New(cfg Config) (Client, error) {
	switch {
	case cfg.APIKey == "":
		return nil, fmt.Errorf("API key is required")
	case cfg.Provider != "" && cfg.Provider != ProviderOpenAI:
		return nil, fmt.Errorf("structured output requires the %s provider, got %s", ProviderOpenAI, cfg.Provider)
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = defaultStructuredModel
	}
	return &structuredClient{api: openai.NewClient(opts...), model: model}, nil
}

func (c *structuredClient) Model() string {
	return c.model
}

// Chat decodes the model's JSON into result. Pass a *json.RawMessage to keep
// the payload for your own validation.
func (c *structuredClient) Chat(ctx context.Context, req Request, result any) (*Response, error) {
	start := time.Now()
	resp, err := c.api.Chat.Completions.New(ctx, c.params(req))
	if err != nil {
		return nil, fmt.Errorf("openai chat (%s): %w", req.SchemaName, err)
	}
	usage := &Response{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}

	slog.DebugContext(ctx, "structured completion finished",
		"model", c.model,
		"schema", req.SchemaName,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", usage.PromptTokens,
		"completion_tokens", usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return usage, fmt.Errorf("openai chat (%s): no choices in response", req.SchemaName)
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return usage, fmt.Errorf("openai chat (%s): model refused: %s", req.SchemaName, choice.Message.Refusal)
	}
	if choice.FinishReason == "length" {
		return usage, fmt.Errorf("openai chat (%s): %w", req.SchemaName, ErrTruncated)
	}

	if err := json.Unmarshal([]byte(choice.Message.Content), result); err != nil {
		return usage, fmt.Errorf("decoding %s response: %w", req.SchemaName, err)
	}
	return usage, nil
}

func (c *structuredClient) params(req Request) openai.ChatCompletionNewParams {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultStructuredMaxTokens
	}

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(req.UserPrompt),
		},
		MaxTokens: openai.Int(int64(maxTokens)),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.SchemaName,
					Schema: req.Schema,
					Strict: openai.Bool(true),
				},
			},
		},
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	return params
}
