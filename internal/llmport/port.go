// Package llmport is the narrow interface the core consumes for language-
// model calls: a single Call/CalculateCost contract, JSON repair for
// strict-JSON prompts, and canned per-archetype fallback strings.
package llmport

import (
	"context"
)

// Message is one chat turn (spec §4.12 "messages").
type Message struct {
	Role    string
	Content string
}

// CallResult is the raw shape the port returns before JSON repair.
type CallResult struct {
	Content      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
}

// Port is the capability the core consumes; implementations wrap a vendor
// SDK/HTTP call behind this single method (spec §1 "LLM vendor SDKs" is
// out of scope — only this contract is).
type Port interface {
	Call(ctx context.Context, modelSpec string, messages []Message, temperature float64) (CallResult, error)
}

// Client pairs a Port with the registry and the archetype fallback table,
// and performs JSON repair on every structured response (spec §4.12).
type Client struct {
	port     Port
	registry *Registry
}

func New(port Port, registry *Registry) *Client {
	return &Client{port: port, registry: registry}
}

// StructuredCall issues one call and returns repaired JSON text, falling
// back to a canned archetype line after repair still fails.
func (c *Client) StructuredCall(ctx context.Context, modelSpec string, messages []Message, temperature float64, archetype string) (json string, cost Cost, usedFallback bool, err error) {
	if c.port == nil {
		return FallbackLine(archetype), Cost{Model: "fallback"}, true, nil
	}
	res, callErr := c.port.Call(ctx, modelSpec, messages, temperature)
	if callErr != nil {
		return FallbackLine(archetype), Cost{Model: "fallback"}, true, nil
	}
	repaired, ok := RepairJSON(res.Content)
	if !ok {
		return FallbackLine(archetype), Cost{Model: "fallback"}, true, nil
	}
	cost = c.registry.CalculateCost(modelSpec, res.InputTokens, res.OutputTokens, res.LatencyMs)
	return repaired, cost, false, nil
}
