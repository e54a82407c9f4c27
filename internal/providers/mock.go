package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

type MockProvider struct {
	dim int
}

func NewMockProvider(dim int) *MockProvider {
	if dim <= 0 {
		dim = 1536
	}
	return &MockProvider{dim: dim}
}

func (m *MockProvider) Embed(ctx context.Context, req EmbedRequest) ([][]float32, ProviderInfo, error) {
	_ = ctx
	dim := req.Dimension
	if dim <= 0 {
		dim = m.dim
	}
	vectors := make([][]float32, 0, len(req.Inputs))
	for _, input := range req.Inputs {
		vectors = append(vectors, deterministicVector(input, dim))
	}
	return vectors, ProviderInfo{Name: "mock", Model: fmt.Sprintf("mock-embed-%d", dim), Key: "mock"}, nil
}

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	_ = ctx
	info := ProviderInfo{Name: "mock", Model: "mock-llm-v1", Key: "mock"}
	op := strings.ToLower(req.Operation)
	if strings.Contains(op, "paraphrase") {
		builder := strings.Builder{}
		for i := 1; i <= 3; i++ {
			builder.WriteString("Variant ")
			builder.WriteString(strconv.Itoa(i))
			builder.WriteString(": ")
			builder.WriteString(req.Prompt)
			builder.WriteString("\n")
		}
		return GenerateResponse{Text: builder.String()}, info, nil
	}
	if strings.Contains(op, "answer") {
		builder := strings.Builder{}
		builder.WriteString("Deterministic answer based on retrieved evidence.")
		for i := range req.Context {
			builder.WriteString(" [C")
			builder.WriteString(strconv.Itoa(i + 1))
			builder.WriteString("]")
		}
		return GenerateResponse{Text: builder.String()}, info, nil
	}
	return GenerateResponse{Text: "Mock response."}, info, nil
}

// Evaluate scores by marker substrings so guard behavior is reproducible in
// tests: known-bad markers score 0.99, everything else scores 0.
func (m *MockProvider) Evaluate(ctx context.Context, req EvaluateRequest) (EvaluateResponse, ProviderInfo, error) {
	_ = ctx
	info := ProviderInfo{Name: "mock", Model: "mock-guard-v1", Key: "mock"}
	text := strings.ToLower(req.Text)
	score := 0.0
	for _, marker := range guardMarkers[req.Category] {
		if strings.Contains(text, marker) {
			score = 0.99
			break
		}
	}
	return EvaluateResponse{
		Flagged:  score >= req.Threshold,
		Score:    score,
		Category: req.Category,
	}, info, nil
}

var guardMarkers = map[GuardCategory][]string{
	GuardJailbreak: {"ignore previous instructions", "ignore all previous instructions", "jailbreak", "disregard your rules"},
	GuardPII:       {"ssn", "social security", "credit card number", "passport number"},
}

func deterministicVector(input string, dim int) []float32 {
	vec := make([]float32, dim)
	seed := []byte(input)
	if len(seed) == 0 {
		seed = []byte("empty")
	}
	for i := 0; i < dim; i++ {
		h := sha256.Sum256(append(seed, byte(i%251)))
		u := binary.BigEndian.Uint32(h[:4])
		v := float32(u%2000)/1000.0 - 1.0
		vec[i] = v
	}
	return normalize(vec)
}

func normalize(v []float32) []float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	inv := float32(1.0 / (float64(sum) + 1e-9))
	for i := range v {
		v[i] *= inv
	}
	return v
}
