// Package external implements the bearer-token external-agent adapter
// (spec §4.13): map an opaque access token (or, when explicitly enabled, a
// legacy api-key) to an agent id, then share C10's validate/execute/
// memory-emit tail for that agent's submitted action. Grounded on the
// teacher's internal/api/ratelimit.go per-caller token-bucket idiom,
// adapted from per-IP buckets to per-agent-id buckets guarding the same
// LLM-adjacent resource external actions consume.
package external

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/townforge/arena/internal/agentloop"
	"github.com/townforge/arena/internal/corefail"
	"github.com/townforge/arena/internal/store"
)

// Adapter maps bearer tokens to agent ids and runs submitted external
// actions through the shared C10 tail.
type Adapter struct {
	store  *store.Store
	loop   *agentloop.Service
	townID string

	// AllowLegacyAPIKey enables falling back to the agent's plain api_key
	// as a bearer token when no separate access-token scheme is in use
	// (spec §4.13 "opaque access token, or legacy api-key when explicitly
	// enabled").
	AllowLegacyAPIKey bool

	limiter *rateLimiter
}

// New builds an Adapter for one town.
func New(st *store.Store, loop *agentloop.Service, townID string) *Adapter {
	return &Adapter{
		store:   st,
		loop:    loop,
		townID:  townID,
		limiter: newRateLimiter(30, time.Minute),
	}
}

// Authenticate maps a bearer token to an agent id (spec §4.13
// "authenticate(token) -> agentId?"). Accepts a raw token or an
// "Authorization: Bearer <token>" header value.
func (a *Adapter) Authenticate(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	token = strings.TrimPrefix(token, "Bearer ")
	token = strings.TrimPrefix(token, "bearer ")
	if token == "" {
		return "", corefail.New(corefail.Validation, "missing bearer token")
	}

	agent, err := a.store.GetAgentByAccessToken(ctx, token)
	switch {
	case err == nil:
		// primary scheme: opaque access token.
	case corefail.KindOf(err) == corefail.NotFound && a.AllowLegacyAPIKey:
		agent, err = a.store.GetAgentByAPIKey(ctx, token)
		if err != nil {
			return "", err
		}
	case corefail.KindOf(err) == corefail.NotFound:
		return "", corefail.New(corefail.Precondition, "no agent for access token, and legacy api-key authentication is disabled")
	default:
		return "", err
	}
	if !agent.IsExternal {
		return "", corefail.New(corefail.Precondition, "agent %s is not registered as external", agent.ID)
	}
	return agent.ID, nil
}

// SubmitAction authenticates the caller, rate-limits per agent id, and
// routes the action through the shared C10 execution tail (spec §4.13).
func (a *Adapter) SubmitAction(ctx context.Context, token string, tick uint64, actionType string, params json.RawMessage, reasoning string) (*agentloop.TickResult, error) {
	agentID, err := a.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	if !a.limiter.Allow(agentID) {
		return nil, corefail.New(corefail.Cooldown, "agent %s is submitting actions too frequently", agentID)
	}
	return a.loop.SubmitExternalAction(ctx, a.townID, agentID, tick, actionType, params, reasoning)
}

// rateLimiter is a per-agent sliding-window token bucket (teacher's
// api.RateLimiter generalized from per-IP to per-agent-id keys).
type rateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	maxRate int
	window  time.Duration
}

type bucket struct {
	tokens    int
	lastReset time.Time
}

func newRateLimiter(maxRate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{buckets: make(map[string]*bucket), maxRate: maxRate, window: window}
	go func() {
		for {
			time.Sleep(time.Hour)
			rl.cleanup()
		}
	}()
	return rl
}

// cleanup drops buckets idle long enough that they'll never be revisited,
// so long-running processes don't accumulate one entry per agent forever
// (teacher's api.RateLimiter.cleanup).
func (rl *rateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := time.Now()
	for key, b := range rl.buckets {
		if now.Sub(b.lastReset) > 2*rl.window {
			delete(rl.buckets, key)
		}
	}
}

func (rl *rateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	now := time.Now()
	if !ok || now.Sub(b.lastReset) >= rl.window {
		rl.buckets[key] = &bucket{tokens: rl.maxRate - 1, lastReset: now}
		return true
	}
	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}
