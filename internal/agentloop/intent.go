package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/townforge/arena/internal/goals"
	"github.com/townforge/arena/internal/llmport"
	"github.com/townforge/arena/internal/store"
)

// VoiceEntry is one archetype's personality line, the YAML-overridable unit
// of a VoiceCatalog.
type VoiceEntry struct {
	Archetype store.Archetype `yaml:"archetype"`
	Voice     string          `yaml:"voice"`
}

// VoiceCatalog is the per-archetype personality-line catalog used to build
// C10's system prompt (spec §4.10 step 3). Grounded on llmport.Registry's
// defaultCatalog-plus-YAML-overlay shape.
type VoiceCatalog struct {
	voices map[store.Archetype]string
}

var defaultVoices = []VoiceEntry{
	{Archetype: store.ArchetypeShark, Voice: "aggressive, opportunistic, always probing for an edge"},
	{Archetype: store.ArchetypeRock, Voice: "cautious, conservative, protects its bankroll"},
	{Archetype: store.ArchetypeChameleon, Voice: "adaptive, mirrors whatever strategy seems to be winning"},
	{Archetype: store.ArchetypeDegen, Voice: "impulsive, high-variance, loves a big swing"},
	{Archetype: store.ArchetypeGrinder, Voice: "methodical, patient, favors steady incremental gains"},
}

// NewVoiceCatalog seeds the catalog from the built-in defaults so the loop
// runs without an external config file; LoadYAML overlays or replaces
// entries from an operator-supplied file.
func NewVoiceCatalog() *VoiceCatalog {
	c := &VoiceCatalog{voices: make(map[store.Archetype]string, len(defaultVoices))}
	for _, v := range defaultVoices {
		c.voices[v.Archetype] = v.Voice
	}
	return c
}

// LoadYAML parses a `voices: [...]` document and merges it into the
// catalog, overriding any archetype already present.
func (c *VoiceCatalog) LoadYAML(data []byte) error {
	var doc struct {
		Voices []VoiceEntry `yaml:"voices"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse archetype voice catalog: %w", err)
	}
	for _, v := range doc.Voices {
		c.voices[v.Archetype] = v.Voice
	}
	return nil
}

func (c *VoiceCatalog) get(a store.Archetype) string {
	if v, ok := c.voices[a]; ok {
		return v
	}
	return "unpredictable, no fixed playstyle"
}

// actionCatalog is the closed set of action types the agent loop will
// execute, one-to-one with the operator-command intent set (spec §4.8 /
// §4.10 step 4 "closed action catalog").
var actionCatalog = []string{
	string(store.IntentClaimPlot), string(store.IntentStartBuild), string(store.IntentDoWork),
	string(store.IntentCompleteBuild), string(store.IntentBuyArena), string(store.IntentSellArena),
	string(store.IntentPlayArena), string(store.IntentTransferArena), string(store.IntentBuySkill),
	string(store.IntentRest), store.IntentTrade.ExpectedActionType(),
	string(store.IntentCrewRaid), string(store.IntentCrewDefend), string(store.IntentCrewFarm), string(store.IntentCrewTrade),
}

// maxReasoningChars enforces the port contract's reasoning length cap
// (spec §4.10 step 4 "reasoning ≤ 500 chars").
const maxReasoningChars = 500

// intentResult is the structured decision the LLM port returns for one
// tick (spec §4.10 step 4).
type intentResult struct {
	ActionType string          `json:"actionType"`
	Params     json.RawMessage `json:"params"`
	Reasoning  string          `json:"reasoning"`
}

// decideIntent either short-circuits on an OVERRIDE command or calls the
// LLM port with the full observation/goal/command/scratchpad context
// (spec §4.10 steps 3-4).
func (svc *Service) decideIntent(ctx context.Context, obs *Observation, goalPrompt []goals.PromptLine, accepted *store.AgentCommand) (intentResult, llmport.Cost) {
	if accepted != nil && accepted.Mode == store.ModeOverride {
		return intentResult{
			ActionType: accepted.Intent.ExpectedActionType(),
			Params:     json.RawMessage(accepted.Params),
			Reasoning:  "operator OVERRIDE command",
		}, llmport.Cost{}
	}

	messages := []llmport.Message{
		{Role: "system", Content: svc.archetypeLoopPrompt(obs.Agent.Archetype)},
		{Role: "user", Content: buildPrompt(obs, goalPrompt, accepted)},
	}
	raw, cost, usedFallback, err := svc.llm.StructuredCall(ctx, obs.Agent.Model, messages, 0.7, string(obs.Agent.Archetype))
	if err != nil || usedFallback {
		return intentResult{ActionType: string(store.IntentRest), Reasoning: "LLM unavailable, resting"}, cost
	}

	var decision intentResult
	if jErr := json.Unmarshal([]byte(raw), &decision); jErr != nil || !validActionType(decision.ActionType) {
		return intentResult{ActionType: string(store.IntentRest), Reasoning: "could not parse a valid action, resting"}, cost
	}
	if len(decision.Reasoning) > maxReasoningChars {
		decision.Reasoning = decision.Reasoning[:maxReasoningChars]
	}
	return decision, cost
}

func validActionType(a string) bool {
	for _, c := range actionCatalog {
		if c == a {
			return true
		}
	}
	return false
}

func (svc *Service) archetypeLoopPrompt(a store.Archetype) string {
	voice := svc.voices.get(a)
	return fmt.Sprintf(
		"You are a %s archetype agent living in a shared town. Personality: %s. "+
			"Choose exactly one action for this tick from the closed catalog: %s. "+
			"Respond with strict JSON {\"actionType\":\"...\",\"params\":{...},\"reasoning\":\"<=500 chars\"}.",
		a, voice, strings.Join(actionCatalog, ", "))
}

// buildPrompt renders the observation, goal prompt block, and any accepted
// non-OVERRIDE command into the user turn (spec §4.10 step 4).
func buildPrompt(obs *Observation, goalPrompt []goals.PromptLine, accepted *store.AgentCommand) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tick %d. Bankroll %d, reserve %d, health %d, elo %d, inMatch=%v.\n",
		obs.Tick, obs.Agent.Bankroll, obs.Agent.ReserveBalance, obs.Agent.Health, obs.Agent.Elo, obs.Agent.IsInMatch)
	fmt.Fprintf(&b, "Own plots: %d (available to claim: %d).\n", len(obs.OwnPlots), len(obs.AvailablePlots))
	fmt.Fprintf(&b, "Pool: reserve=%d arena=%d feeBps=%d.\n", obs.Pool.ReserveBalance, obs.Pool.ArenaBalance, obs.Pool.FeeBps)

	if len(goalPrompt) > 0 {
		b.WriteString("Goals:\n")
		for _, g := range goalPrompt {
			fmt.Fprintf(&b, "  [%s] %s progress=%d/%d\n", g.Horizon, g.TemplateKey, g.Progress, g.Target)
		}
	}
	if accepted != nil {
		fmt.Fprintf(&b, "Accepted command (%s): intent=%s params=%s\n", accepted.Mode, accepted.Intent, accepted.Params)
	}
	if obs.Agent.Scratchpad != "" {
		fmt.Fprintf(&b, "Recent scratchpad:\n%s\n", obs.Agent.Scratchpad)
	}
	if len(obs.Peers) > 0 {
		b.WriteString("Peers: ")
		for i, p := range obs.Peers {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s(%s)", p.Name, p.Archetype)
		}
		b.WriteString("\n")
	}
	return b.String()
}
