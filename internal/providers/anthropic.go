package providers

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider generates completions through the Anthropic SDK.
type AnthropicProvider struct {
	alias   string
	model   string
	timeout time.Duration
	client  anthropic.Client
	hasKey  bool
}

func NewAnthropicProvider(alias string, timeout time.Duration) *AnthropicProvider {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	apiKey := resolveAnthropicKey(alias)
	model := strings.TrimSpace(os.Getenv("DOCUCHAT_ANTHROPIC_MODEL"))
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	return &AnthropicProvider{
		alias:   alias,
		model:   model,
		timeout: timeout,
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		hasKey:  apiKey != "",
	}
}

func (a *AnthropicProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "anthropic", Model: a.model, Key: a.alias}
	if !a.hasKey {
		return GenerateResponse{}, info, fmt.Errorf("anthropic key missing for alias %q", a.alias)
	}
	prompt := req.Prompt
	if len(req.Context) > 0 {
		prompt = prompt + "\n\nContext:\n" + strings.Join(req.Context, "\n\n")
	}
	messages := make([]anthropic.MessageParam, 0, len(req.History)+1)
	for _, m := range req.History {
		switch m.Role {
		case "assistant":
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)))

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	resp, err := a.client.Messages.New(callCtx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 2048,
		System: []anthropic.TextBlockParam{
			{Text: "You are a knowledge-base assistant. Answer strictly from the provided context."},
		},
		Messages: messages,
	})
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("anthropic generate request failed: %w", err)
	}
	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return GenerateResponse{}, info, fmt.Errorf("anthropic returned empty content")
	}
	return GenerateResponse{Text: text.String()}, info, nil
}

func resolveAnthropicKey(alias string) string {
	if alias != "" {
		k := os.Getenv("DOCUCHAT_ANTHROPIC_KEY_" + sanitizeEnvToken(alias))
		if k != "" {
			return k
		}
	}
	return os.Getenv("ANTHROPIC_API_KEY")
}
