package llm

import (
	"context"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/sashabaranov/go-openai"

	"github.com/D0nald-Chump/Finagent-v1/internal/core"
	"github.com/D0nald-Chump/Finagent-v1/internal/tokens"
)

var loadEnvOnce sync.Once

// loadEnv reads a .env file if one is present so OPENAI_API_KEY works
// without exporting it. Missing files are fine.
func loadEnv() {
	loadEnvOnce.Do(func() {
		_ = godotenv.Load()
	})
}

// OpenAICaller calls the OpenAI chat completions API.
type OpenAICaller struct {
	client *openai.Client
}

// NewOpenAICaller creates a caller for the given API key.
func NewOpenAICaller(apiKey string) *OpenAICaller {
	return &OpenAICaller{client: openai.NewClient(apiKey)}
}

// OpenAICallerFromEnv creates a caller from OPENAI_API_KEY (after loading a
// .env file if present). Returns ErrProviderUnavailable when no key is set.
func OpenAICallerFromEnv() (*OpenAICaller, error) {
	loadEnv()
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, core.ErrProviderUnavailable("OPENAI_API_KEY is not set")
	}
	return NewOpenAICaller(apiKey), nil
}

// Complete executes the request against the OpenAI API. Transport and API
// errors are reported as provider-unavailable so the caller can fall back.
func (c *OpenAICaller) Complete(ctx context.Context, req Request) (Completion, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
	})
	if err != nil {
		return Completion{}, core.ErrProviderUnavailable("openai chat completion failed").WithCause(err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, core.ErrProviderUnavailable("openai returned no choices")
	}

	completion := Completion{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}
	// Some gateways omit usage; estimate rather than report zero.
	if completion.PromptTokens == 0 {
		completion.PromptTokens = tokens.Count(req.System + "\n" + req.User)
	}
	if completion.CompletionTokens == 0 {
		completion.CompletionTokens = tokens.Count(completion.Text)
	}
	return completion, nil
}
