package compose

import (
	"context"
	"errors"
	"os"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const systemPrompt = "You are a Facility Operations Manager writing plain-text WhatsApp status reports. Never use emojis or code blocks."

// DefaultModel is used when REPORT_MODEL is unset.
const DefaultModel = anthropic.ModelClaudeSonnet4_20250514

var ErrMissingCredential = errors.New("ANTHROPIC_API_KEY not configured")

// TextGenerator turns a composed prompt into report text.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type AnthropicClientCreator func(apiKey string) AnthropicMessager

func defaultAnthropicCreator(apiKey string) AnthropicMessager {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &c.Messages
}

var newAnthropicClient AnthropicClientCreator = defaultAnthropicCreator

// AnthropicGenerator calls the Anthropic Messages API.
type AnthropicGenerator struct {
	messages AnthropicMessager
	model    anthropic.Model
}

func NewAnthropicGenerator(messages AnthropicMessager, model string) *AnthropicGenerator {
	m := anthropic.Model(strings.TrimSpace(model))
	if m == "" {
		m = DefaultModel
	}
	return &AnthropicGenerator{messages: messages, model: m}
}

// NewAnthropicGeneratorWithKey builds a generator for apiKey. An empty key
// is ErrMissingCredential.
func NewAnthropicGeneratorWithKey(apiKey, model string) (*AnthropicGenerator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrMissingCredential
	}
	return NewAnthropicGenerator(newAnthropicClient(apiKey), model), nil
}

// NewAnthropicGeneratorFromEnv reads ANTHROPIC_API_KEY and REPORT_MODEL.
func NewAnthropicGeneratorFromEnv() (*AnthropicGenerator, error) {
	return NewAnthropicGeneratorWithKey(os.Getenv("ANTHROPIC_API_KEY"), os.Getenv("REPORT_MODEL"))
}

func (a *AnthropicGenerator) Model() string { return string(a.model) }

func (a *AnthropicGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:       a.model,
		MaxTokens:   2048,
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(0.2),
	})
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String(), nil
}
