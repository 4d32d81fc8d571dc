package llmport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	anthropicURL     = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
)

// AnthropicPort implements Port against the Anthropic Messages API,
// paced by a token-bucket limiter (spec §4.12, §9 "LLM vendor SDKs" out of
// scope for anything beyond this one narrow call).
type AnthropicPort struct {
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewAnthropicPort returns nil when apiKey is empty — LLM features disabled,
// the agent loop falls back to canned lines for every call.
func NewAnthropicPort(apiKey string, callsPerMinute int) *AnthropicPort {
	if apiKey == "" {
		return nil
	}
	if callsPerMinute <= 0 {
		callsPerMinute = 20
	}
	return &AnthropicPort{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(float64(callsPerMinute)/60.0), callsPerMinute),
	}
}

type anthropicRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	Messages    []apiMsg  `json:"messages"`
}

type apiMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *AnthropicPort) Call(ctx context.Context, modelSpec string, messages []Message, temperature float64) (CallResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return CallResult{}, fmt.Errorf("llm rate limiter: %w", err)
	}

	var system string
	msgs := make([]apiMsg, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		msgs = append(msgs, apiMsg{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(anthropicRequest{
		Model: modelSpec, MaxTokens: 512, System: system, Temperature: temperature, Messages: msgs,
	})
	if err != nil {
		return CallResult{}, fmt.Errorf("marshal llm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicURL, bytes.NewReader(body))
	if err != nil {
		return CallResult{}, fmt.Errorf("build llm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return CallResult{}, fmt.Errorf("llm call: %w", err)
	}
	defer resp.Body.Close()
	latency := time.Since(start).Milliseconds()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return CallResult{}, fmt.Errorf("read llm response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return CallResult{}, fmt.Errorf("llm error %d: %s", resp.StatusCode, string(respBody))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return CallResult{}, fmt.Errorf("unmarshal llm response: %w", err)
	}
	if len(apiResp.Content) == 0 {
		return CallResult{}, fmt.Errorf("empty llm response")
	}

	slog.Debug("llm call completed",
		"model", modelSpec, "input_tokens", apiResp.Usage.InputTokens,
		"output_tokens", apiResp.Usage.OutputTokens, "latency_ms", latency)

	return CallResult{
		Content:      apiResp.Content[0].Text,
		InputTokens:  apiResp.Usage.InputTokens,
		OutputTokens: apiResp.Usage.OutputTokens,
		LatencyMs:    latency,
	}, nil
}
