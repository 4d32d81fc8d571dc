package llmport

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ModelSpec describes one entry in the model registry (spec §4.12).
type ModelSpec struct {
	ID               string  `yaml:"id"`
	Provider         string  `yaml:"provider"`
	ModelName        string  `yaml:"modelName"`
	InputCentsPer1k  float64 `yaml:"inputCentsPer1k"`
	OutputCentsPer1k float64 `yaml:"outputCentsPer1k"`
	MaxTokens        int     `yaml:"maxTokens"`
	SupportsJSONMode bool    `yaml:"supportsJsonMode"`
}

// Registry maps model id → ModelSpec.
type Registry struct {
	models map[string]ModelSpec
}

// defaultCatalog is embedded so the core runs without an external config
// file; LoadRegistryYAML overlays or replaces entries from YAML.
var defaultCatalog = []ModelSpec{
	{ID: "haiku", Provider: "anthropic", ModelName: "claude-haiku-4-5", InputCentsPer1k: 0.08, OutputCentsPer1k: 0.4, MaxTokens: 1024, SupportsJSONMode: true},
	{ID: "sonnet", Provider: "anthropic", ModelName: "claude-sonnet-4-5", InputCentsPer1k: 0.3, OutputCentsPer1k: 1.5, MaxTokens: 2048, SupportsJSONMode: true},
	{ID: "fallback", Provider: "none", ModelName: "canned", InputCentsPer1k: 0, OutputCentsPer1k: 0, MaxTokens: 0, SupportsJSONMode: false},
}

func NewRegistry() *Registry {
	r := &Registry{models: make(map[string]ModelSpec, len(defaultCatalog))}
	for _, m := range defaultCatalog {
		r.models[m.ID] = m
	}
	return r
}

// LoadRegistryYAML parses a `models: [...]` YAML document and merges it
// into the registry, overriding any id already present.
func (r *Registry) LoadRegistryYAML(data []byte) error {
	var doc struct {
		Models []ModelSpec `yaml:"models"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse model registry: %w", err)
	}
	for _, m := range doc.Models {
		r.models[m.ID] = m
	}
	return nil
}

func (r *Registry) Get(id string) (ModelSpec, bool) {
	m, ok := r.models[id]
	return m, ok
}

// Cost is the result of calculateCost (spec §4.12).
type Cost struct {
	CostCents float64
	Model     string
	LatencyMs int64
}

// CalculateCost prices a completed call against the registry entry for
// modelID; unknown ids price at zero rather than erroring, so a
// mis-entered model id degrades gracefully instead of blocking a tick.
func (r *Registry) CalculateCost(modelID string, inputTokens, outputTokens int, latencyMs int64) Cost {
	spec, ok := r.models[modelID]
	if !ok {
		return Cost{Model: modelID, LatencyMs: latencyMs}
	}
	cents := float64(inputTokens)/1000*spec.InputCentsPer1k + float64(outputTokens)/1000*spec.OutputCentsPer1k
	return Cost{CostCents: cents, Model: spec.ModelName, LatencyMs: latencyMs}
}
