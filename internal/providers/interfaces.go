package providers

import "context"

type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Key   string `json:"key"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type GenerateRequest struct {
	Operation string    `json:"operation"`
	Prompt    string    `json:"prompt"`
	Context   []string  `json:"context"`
	History   []Message `json:"history,omitempty"`
}

type GenerateResponse struct {
	Text string `json:"text"`
}

type EmbedRequest struct {
	Operation string   `json:"operation"`
	Inputs    []string `json:"inputs"`
	Dimension int      `json:"dimension"`
}

// Guard categories form a closed set; each carries its own threshold.
type GuardCategory string

const (
	GuardJailbreak GuardCategory = "jailbreak"
	GuardPII       GuardCategory = "pii"
)

type EvaluateRequest struct {
	Text      string        `json:"text"`
	Category  GuardCategory `json:"category"`
	Threshold float64       `json:"threshold"`
}

type EvaluateResponse struct {
	Flagged  bool          `json:"flagged"`
	Score    float64       `json:"score"`
	Category GuardCategory `json:"category"`
}

type LLMProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error)
}

type EmbeddingProvider interface {
	Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error)
}

// GuardrailProvider scores text against a policy category. Evaluations must
// behave as pure functions of (text, category, threshold) so turns replay
// identically under test.
type GuardrailProvider interface {
	Evaluate(ctx context.Context, req EvaluateRequest) (EvaluateResponse, ProviderInfo, error)
}
