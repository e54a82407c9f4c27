package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPGuardrailProvider delegates scoring to a guardrail sidecar service
// (jailbreak and PII validators run there). The sidecar returns a raw score
// in [0,1]; the flagged decision is applied here from the request threshold.
type HTTPGuardrailProvider struct {
	baseURL string
	client  *http.Client
}

func NewHTTPGuardrailProvider(baseURL string, timeout time.Duration) *HTTPGuardrailProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPGuardrailProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (g *HTTPGuardrailProvider) Evaluate(ctx context.Context, req EvaluateRequest) (EvaluateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "guardrail-http", Model: string(req.Category)}
	if g.baseURL == "" {
		return EvaluateResponse{}, info, fmt.Errorf("guardrail url not configured")
	}
	payload, _ := json.Marshal(map[string]any{
		"text":     req.Text,
		"category": req.Category,
	})
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/evaluate", bytes.NewReader(payload))
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return EvaluateResponse{}, info, fmt.Errorf("guardrail request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return EvaluateResponse{}, info, fmt.Errorf("guardrail error %d: %s", resp.StatusCode, string(body))
	}
	var parsed struct {
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return EvaluateResponse{}, info, fmt.Errorf("decode guardrail response: %w", err)
	}
	if parsed.Score < 0 || parsed.Score > 1 {
		return EvaluateResponse{}, info, fmt.Errorf("guardrail score out of range: %f", parsed.Score)
	}
	return EvaluateResponse{
		Flagged:  parsed.Score >= req.Threshold,
		Score:    parsed.Score,
		Category: req.Category,
	}, info, nil
}
