package llm

import (
	"context"
	"errors"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

// Completer is the minimal completion contract the generator needs. It is
// satisfied by AnthropicClient in production and by fakes in tests.
type Completer interface {
	// Complete sends one system+user prompt pair and returns the model's
	// text response.
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// AnthropicClient calls the Anthropic Messages API with bounded exponential
// retry on transient failures. Credentials come from the environment
// (ANTHROPIC_API_KEY), which is how the official SDK resolves them.
type AnthropicClient struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	timeout   time.Duration
	maxTries  uint
}

// NewAnthropicClient constructs a client for the given model. timeout bounds
// each Complete call end to end, including retries; maxTries caps the number
// of API attempts per call.
func NewAnthropicClient(model string, maxTokens int64, timeout time.Duration, maxTries uint) *AnthropicClient {
	if maxTries == 0 {
		maxTries = 1
	}
	return &AnthropicClient{
		client:    anthropic.NewClient(),
		model:     anthropic.Model(model),
		maxTokens: maxTokens,
		timeout:   timeout,
		maxTries:  maxTries,
	}
}

// Model returns the configured model identifier, for response metadata.
func (c *AnthropicClient) Model() string { return string(c.model) }

// Complete implements Completer against the Messages API.
func (c *AnthropicClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	log := zerolog.Ctx(ctx)
	attempt := 0
	start := time.Now()

	text, err := backoff.Retry(ctx, func() (string, error) {
		attempt++
		if attempt > 1 {
			log.Warn().Int("attempt", attempt).Msg("retrying model call")
		}
		msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
			Model:     c.model,
			MaxTokens: c.maxTokens,
			System: []anthropic.TextBlockParam{
				{Type: "text", Text: systemPrompt},
			},
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
			},
		})
		if err != nil {
			return "", err
		}
		for _, block := range msg.Content {
			if block.Type == "text" {
				return block.Text, nil
			}
		}
		return "", backoff.Permanent(errors.New("no text content in model response"))
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(c.maxTries))

	if err != nil {
		log.Error().Err(err).Dur("duration", time.Since(start)).Msg("model call failed")
		return "", err
	}
	log.Debug().Dur("duration", time.Since(start)).Int("attempts", attempt).Msg("model call completed")
	return text, nil
}
