// Package conversation generates short two-party chat exchanges between
// agents and applies their economic/social side effects (spec §4.5).
package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"lukechampine.com/blake3"

	"github.com/townforge/arena/internal/corefail"
	"github.com/townforge/arena/internal/llmport"
	"github.com/townforge/arena/internal/social"
	"github.com/townforge/arena/internal/store"
)

const (
	shortLineCount = 4
	longLineCount  = 6
	richBondFrac   = 0.04
	tipMin, tipMax = 1, 50
	beefTaxFrac    = 0.015
	taxMin, taxMax = 1, 20
)

// EconomicIntent classifies the evaluator's read on what the chat was
// actually about (spec §4.5 step 4).
type EconomicIntent string

const (
	IntentTip    EconomicIntent = "TIP"
	IntentCollab EconomicIntent = "COLLAB"
	IntentHustle EconomicIntent = "HUSTLE"
	IntentFlex   EconomicIntent = "FLEX"
	IntentNone   EconomicIntent = "NONE"
)

type evalResult struct {
	Outcome        social.Outcome `json:"outcome"`
	Delta          int            `json:"delta"`
	EconomicIntent EconomicIntent `json:"economicIntent"`
	Summary        string         `json:"summary"`
}

// Result is what RunConversation returns to the caller (the agent loop, for
// its prompt/emit step).
type Result struct {
	Transcript []string
	Eval       evalResult
	TipPaid    int64
	TaxPaid    int64
}

type Service struct {
	store  *store.Store
	social *social.Service
	llm    *llmport.Client
}

func New(st *store.Store, soc *social.Service, llm *llmport.Client) *Service {
	return &Service{store: st, social: soc, llm: llm}
}

// RunConversation drives a bounded chat between a and b and applies the
// resulting relationship/economic side effects (spec §4.5).
func (svc *Service) RunConversation(ctx context.Context, townID, a, b string, nowUnixSec int64) (*Result, error) {
	rel, err := svc.social.GetRelationship(ctx, a, b)
	if err != nil {
		return nil, err
	}
	if rel != nil && nowUnixSec*1000-rel.LastInteractionAt < 45_000 {
		return nil, corefail.New(corefail.Cooldown, "conversation cooldown active between %s and %s", a, b)
	}

	agentA, err := svc.store.GetAgent(ctx, a)
	if err != nil {
		return nil, err
	}
	agentB, err := svc.store.GetAgent(ctx, b)
	if err != nil {
		return nil, err
	}

	lineCount := shortLineCount
	interactions := 0
	if rel != nil {
		interactions = rel.Interactions
	}
	if (rel != nil && rel.Status != store.RelNeutral) || interactions >= 3 {
		lineCount = longLineCount
	}

	seed := beatSeed(townID, a, b, nowUnixSec)
	transcript := svc.generateTranscript(ctx, agentA, agentB, lineCount, seed)
	result := svc.evaluate(ctx, agentA.Archetype, transcript)

	var r *Result
	err = svc.store.Transaction(ctx, func(tx *store.Tx) error {
		if _, sErr := social.ApplyTx(tx, a, b, result.Outcome, result.Delta); sErr != nil {
			return sErr
		}

		var tip, tax int64
		switch result.Outcome {
		case social.OutcomeBond:
			tip = applyTip(tx, agentA, agentB)
		case social.OutcomeBeef:
			tax = applyTax(tx, agentA, agentB)
		}

		meta, mErr := json.Marshal(map[string]any{
			"participants":   []string{a, b},
			"transcript":     transcript,
			"outcome":        result.Outcome,
			"economicIntent": result.EconomicIntent,
			"summary":        result.Summary,
			"tip":            tip,
			"tax":            tax,
		})
		if mErr != nil {
			return corefail.Wrap(corefail.Internal, mErr, "marshal chat event metadata")
		}
		if err := tx.InsertTownEvent(&store.TownEvent{
			TownID: townID, Kind: "AGENT_CHAT", Metadata: string(meta),
		}); err != nil {
			return err
		}
		r = &Result{Transcript: transcript, Eval: result, TipPaid: tip, TaxPaid: tax}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// beatSeed derives a deterministic conversational seed from (townId, a, b,
// floor(now/300s)) so repeated calls within the same 5-minute beat window
// reproduce the same opener (spec §4.5 step 2).
func beatSeed(townID, a, b string, nowUnixSec int64) uint64 {
	beat := nowUnixSec / 300
	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}
	h := blake3.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%d", townID, lo, hi, beat)))
	var seed uint64
	for i := 0; i < 8; i++ {
		seed = seed<<8 | uint64(h[i])
	}
	return seed
}

func (svc *Service) generateTranscript(ctx context.Context, a, b *store.Agent, lineCount int, seed uint64) []string {
	var lines []string
	speakers := [2]*store.Agent{a, b}
	for i := 0; i < lineCount; i++ {
		speaker := speakers[i%2]
		lines = append(lines, svc.oneLine(ctx, speaker, lines, seed, i))
	}
	return lines
}

func (svc *Service) oneLine(ctx context.Context, speaker *store.Agent, transcript []string, seed uint64, turn int) string {
	messages := []llmport.Message{
		{Role: "system", Content: fmt.Sprintf(
			"You are %s, a %s archetype agent in a shared town. Speak one short in-character line (<=160 chars) continuing the conversation below. Respond with JSON {\"line\":\"...\"}.",
			speaker.Name, speaker.Archetype)},
		{Role: "user", Content: fmt.Sprintf("Seed: %d\nTranscript so far:\n%s", seed, strings.Join(transcript, "\n"))},
	}
	raw, _, usedFallback, err := svc.llm.StructuredCall(ctx, speaker.Model, messages, 0.9, string(speaker.Archetype))
	if err != nil || usedFallback {
		return fallbackLine(speaker.Archetype, turn)
	}
	var parsed struct {
		Line string `json:"line"`
	}
	if jErr := json.Unmarshal([]byte(raw), &parsed); jErr != nil || parsed.Line == "" {
		return fallbackLine(speaker.Archetype, turn)
	}
	return parsed.Line
}

func fallbackLine(archetype store.Archetype, turn int) string {
	return fmt.Sprintf("(%s nods thoughtfully — turn %d)", archetype, turn)
}

// evaluate runs the single EVAL prompt over the full transcript, falling
// back to a neutral read on any parse failure.
func (svc *Service) evaluate(ctx context.Context, archetype store.Archetype, transcript []string) evalResult {
	messages := []llmport.Message{
		{Role: "system", Content: "Classify the following two-party conversation. Respond with JSON: " +
			`{"outcome":"NEUTRAL|BOND|BEEF","delta":-7..7,"economicIntent":"TIP|COLLAB|HUSTLE|FLEX|NONE","summary":"one sentence"}`},
		{Role: "user", Content: strings.Join(transcript, "\n")},
	}
	raw, _, usedFallback, err := svc.llm.StructuredCall(ctx, "haiku", messages, 0.2, string(archetype))
	if err != nil || usedFallback {
		return evalResult{Outcome: social.OutcomeNeutral, EconomicIntent: IntentNone, Summary: "No strong signal in this exchange."}
	}
	var ev evalResult
	if jErr := json.Unmarshal([]byte(raw), &ev); jErr != nil {
		return evalResult{Outcome: social.OutcomeNeutral, EconomicIntent: IntentNone, Summary: "No strong signal in this exchange."}
	}
	if ev.Delta > 7 {
		ev.Delta = 7
	}
	if ev.Delta < -7 {
		ev.Delta = -7
	}
	return ev
}

// applyTip moves the BOND tip from whichever party is richer to the other,
// gated so the tipper can always afford it (spec §4.5 step 5).
func applyTip(tx *store.Tx, a, b *store.Agent) int64 {
	richer, poorer := a, b
	if b.Bankroll > a.Bankroll {
		richer, poorer = b, a
	}
	tip := clampI64(poorer.Bankroll*richBondFrac100/100, tipMin, tipMax)
	if richer.Bankroll < 2*tip {
		return 0
	}
	_ = tx.AdjustBankroll(richer.ID, -tip)
	_ = tx.AdjustBankroll(poorer.ID, tip)
	return tip
}

// applyTax debits a symmetric BEEF tax from both parties into the arena fee
// pool (spec §4.5 step 5).
func applyTax(tx *store.Tx, a, b *store.Agent) int64 {
	total := int64(0)
	for _, ag := range []*store.Agent{a, b} {
		tax := clampI64(ag.Bankroll*beefTaxFrac1000/1000, taxMin, taxMax)
		_ = tx.AdjustBankroll(ag.ID, -tax)
		total += tax
	}
	if total > 0 {
		_ = tx.InsertLedgerRow("cumulativeFeesArena", total, "conversation beef tax")
		if pool, err := tx.GetPool(); err == nil {
			pool.CumulativeFeesArena += total
			_ = tx.UpdatePool(pool)
		}
	}
	return total
}

const richBondFrac100 = int64(richBondFrac * 100)
const beefTaxFrac1000 = int64(beefTaxFrac * 1000)

func clampI64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
