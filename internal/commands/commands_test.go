package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/townforge/arena/internal/corefail"
	"github.com/townforge/arena/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func seedAgent(t *testing.T, st *store.Store, id string) {
	t.Helper()
	require.NoError(t, st.CreateAgent(context.Background(), &store.Agent{ID: id, Name: id}))
}

func TestCreateCommand_RejectsUnknownIntent(t *testing.T) {
	st := newTestStore(t)
	seedAgent(t, st, "a1")
	svc := New(st)
	_, err := svc.CreateCommand(context.Background(), CreateCommandRequest{
		AgentID: "a1", Mode: store.ModeSuggest, Intent: store.Intent("FLY_TO_MOON"),
	})
	assert.Equal(t, corefail.Validation, corefail.KindOf(err))
}

func TestCreateCommand_RejectsUnknownAgent(t *testing.T) {
	st := newTestStore(t)
	svc := New(st)
	_, err := svc.CreateCommand(context.Background(), CreateCommandRequest{
		AgentID: "ghost", Mode: store.ModeSuggest, Intent: store.IntentRest,
	})
	assert.Error(t, err)
}

func TestCreateCommand_StrongModeRequiresVerifiedIssuer(t *testing.T) {
	st := newTestStore(t)
	seedAgent(t, st, "a1")
	svc := New(st)
	_, err := svc.CreateCommand(context.Background(), CreateCommandRequest{
		AgentID: "a1", Mode: store.ModeStrong, Intent: store.IntentRest,
	})
	assert.Equal(t, corefail.Validation, corefail.KindOf(err))
}

func TestCreateCommand_DefaultsPriorityFromMode(t *testing.T) {
	st := newTestStore(t)
	seedAgent(t, st, "a1")
	svc := New(st)
	cmd, err := svc.CreateCommand(context.Background(), CreateCommandRequest{
		AgentID: "a1", Mode: store.ModeSuggest, Intent: store.IntentRest,
	})
	require.NoError(t, err)
	assert.Equal(t, store.BasePriority(store.ModeSuggest), cmd.Priority)
	assert.Equal(t, store.CommandQueued, cmd.Status)
}

func TestAcceptNextCommand_PicksHighestPriorityQueued(t *testing.T) {
	st := newTestStore(t)
	seedAgent(t, st, "a1")
	svc := New(st)
	ctx := context.Background()

	_, err := svc.CreateCommand(ctx, CreateCommandRequest{AgentID: "a1", Mode: store.ModeSuggest, Intent: store.IntentRest, CreatedTick: 1})
	require.NoError(t, err)
	issuer := "tg-1"
	strong, err := svc.CreateCommand(ctx, CreateCommandRequest{
		AgentID: "a1", Mode: store.ModeStrong, Intent: store.IntentDoWork,
		IssuerTelegramUserID: &issuer, CreatedTick: 1,
	})
	require.NoError(t, err)

	accepted, err := svc.AcceptNextCommand(ctx, "a1", 2)
	require.NoError(t, err)
	require.NotNil(t, accepted)
	assert.Equal(t, strong.ID, accepted.ID)
	assert.Equal(t, store.CommandAccepted, accepted.Status)
}

func TestAcceptNextCommand_NoneEligibleReturnsNil(t *testing.T) {
	st := newTestStore(t)
	seedAgent(t, st, "a1")
	svc := New(st)
	accepted, err := svc.AcceptNextCommand(context.Background(), "a1", 1)
	require.NoError(t, err)
	assert.Nil(t, accepted)
}

func TestMarkExecuted_TransitionsFromAccepted(t *testing.T) {
	st := newTestStore(t)
	seedAgent(t, st, "a1")
	svc := New(st)
	ctx := context.Background()

	cmd, err := svc.CreateCommand(ctx, CreateCommandRequest{AgentID: "a1", Mode: store.ModeSuggest, Intent: store.IntentRest, CreatedTick: 1})
	require.NoError(t, err)
	accepted, err := svc.AcceptNextCommand(ctx, "a1", 1)
	require.NoError(t, err)
	require.Equal(t, cmd.ID, accepted.ID)

	require.NoError(t, svc.MarkExecuted(ctx, cmd.ID, "rested successfully"))
	got, err := st.GetCommand(ctx, cmd.ID)
	require.NoError(t, err)
	assert.Equal(t, store.CommandExecuted, got.Status)
}

func TestExpireQueuedCommands_ExpiresPastTTL(t *testing.T) {
	st := newTestStore(t)
	seedAgent(t, st, "a1")
	svc := New(st)
	ctx := context.Background()

	ttl := uint64(5)
	cmd, err := svc.CreateCommand(ctx, CreateCommandRequest{
		AgentID: "a1", Mode: store.ModeSuggest, Intent: store.IntentRest,
		CreatedTick: 1, ExpiresInTicks: &ttl,
	})
	require.NoError(t, err)

	require.NoError(t, svc.ExpireQueuedCommands(ctx, "a1", 100))
	got, err := st.GetCommand(ctx, cmd.ID)
	require.NoError(t, err)
	assert.Equal(t, store.CommandExpired, got.Status)
}

func TestCancelCommand_RejectsWrongIssuer(t *testing.T) {
	st := newTestStore(t)
	seedAgent(t, st, "a1")
	svc := New(st)
	ctx := context.Background()

	issuer := "tg-owner"
	cmd, err := svc.CreateCommand(ctx, CreateCommandRequest{
		AgentID: "a1", Mode: store.ModeStrong, Intent: store.IntentRest, IssuerTelegramUserID: &issuer, CreatedTick: 1,
	})
	require.NoError(t, err)

	stranger := "tg-stranger"
	err = svc.CancelCommand(ctx, cmd.ID, &stranger, "not yours")
	assert.Equal(t, corefail.Precondition, corefail.KindOf(err))
}

func TestCancelCommand_OwnerCancelsSuccessfully(t *testing.T) {
	st := newTestStore(t)
	seedAgent(t, st, "a1")
	svc := New(st)
	ctx := context.Background()

	issuer := "tg-owner"
	cmd, err := svc.CreateCommand(ctx, CreateCommandRequest{
		AgentID: "a1", Mode: store.ModeStrong, Intent: store.IntentRest, IssuerTelegramUserID: &issuer, CreatedTick: 1,
	})
	require.NoError(t, err)

	require.NoError(t, svc.CancelCommand(ctx, cmd.ID, &issuer, "changed mind"))
	got, err := st.GetCommand(ctx, cmd.ID)
	require.NoError(t, err)
	assert.Equal(t, store.CommandCancelled, got.Status)
}
