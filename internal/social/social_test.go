package social

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

// expireCooldown backdates a pair's last-interaction timestamp so a second
// ApplyTx call in the same test doesn't trip the 45s cooldown.
func expireCooldown(t *testing.T, st *store.Store, a, b string) {
	t.Helper()
	err := st.Transaction(context.Background(), func(tx *store.Tx) error {
		rel, err := tx.GetRelationship(a, b)
		if err != nil {
			return err
		}
		rel.LastInteractionAt = 0
		return tx.UpsertRelationship(rel)
	})
	require.NoError(t, err)
}

func TestClamp_Bounds(t *testing.T) {
	assert.Equal(t, scoreMin, clamp(-100, scoreMin, scoreMax))
	assert.Equal(t, scoreMax, clamp(100, scoreMin, scoreMax))
	assert.Equal(t, 5, clamp(5, scoreMin, scoreMax))
}

func TestUpsertInteraction_SelfRejected(t *testing.T) {
	st := newTestStore(t)
	svc := New(st)
	_, err := svc.UpsertInteraction(context.Background(), "a1", "a1", OutcomeBond, 5)
	assert.Equal(t, corefail.Validation, corefail.KindOf(err))
}

func TestUpsertInteraction_DeltaClampedToRange(t *testing.T) {
	st := newTestStore(t)
	svc := New(st)
	res, err := svc.UpsertInteraction(context.Background(), "a1", "a2", OutcomeBond, 999)
	require.NoError(t, err)
	assert.Equal(t, deltaMax, res.Relationship.Score)
}

func TestUpsertInteraction_NeutralToFriendTransition(t *testing.T) {
	st := newTestStore(t)
	svc := New(st)
	ctx := context.Background()

	res, err := svc.UpsertInteraction(ctx, "a1", "a2", OutcomeBond, 7)
	require.NoError(t, err)
	assert.Equal(t, store.RelNeutral, res.Relationship.Status)

	expireCooldown(t, st, "a1", "a2")

	res, err = svc.UpsertInteraction(ctx, "a1", "a2", OutcomeBond, 7)
	require.NoError(t, err)
	assert.Equal(t, store.RelFriend, res.Relationship.Status)
	assert.True(t, res.StatusChanged)
}

func TestUpsertInteraction_CooldownBlocksImmediateRepeat(t *testing.T) {
	st := newTestStore(t)
	svc := New(st)
	ctx := context.Background()

	_, err := svc.UpsertInteraction(ctx, "a1", "a2", OutcomeBond, 5)
	require.NoError(t, err)

	_, err = svc.UpsertInteraction(ctx, "a1", "a2", OutcomeBond, 5)
	assert.Equal(t, corefail.Cooldown, corefail.KindOf(err))
}

func TestUpsertInteraction_FriendCapEnforced(t *testing.T) {
	st := newTestStore(t)
	svc := New(st)
	ctx := context.Background()

	bondToFriend := func(a, b string) {
		_, err := svc.UpsertInteraction(ctx, a, b, OutcomeBond, deltaMax)
		require.NoError(t, err)
		expireCooldown(t, st, a, b)
		_, err = svc.UpsertInteraction(ctx, a, b, OutcomeBond, deltaMax)
		require.NoError(t, err)
	}
	bondToFriend("hub", "f1")
	bondToFriend("hub", "f2")

	_, err := svc.UpsertInteraction(ctx, "hub", "f3", OutcomeBond, deltaMax)
	require.NoError(t, err)
	expireCooldown(t, st, "hub", "f3")

	res, err := svc.UpsertInteraction(ctx, "hub", "f3", OutcomeBond, deltaMax)
	require.NoError(t, err)
	assert.True(t, res.FriendCapHit)
	assert.Equal(t, store.RelNeutral, res.Relationship.Status)
}

func TestUpsertInteraction_FriendToNeutralOnBeef(t *testing.T) {
	st := newTestStore(t)
	svc := New(st)
	ctx := context.Background()

	// 5 + 5 = 10 reaches FRIEND; a -7 BEEF then drops the score to 3 (< 4).
	_, err := svc.UpsertInteraction(ctx, "a1", "a2", OutcomeBond, 5)
	require.NoError(t, err)
	expireCooldown(t, st, "a1", "a2")
	res, err := svc.UpsertInteraction(ctx, "a1", "a2", OutcomeBond, 5)
	require.NoError(t, err)
	require.Equal(t, store.RelFriend, res.Relationship.Status)

	expireCooldown(t, st, "a1", "a2")
	res, err = svc.UpsertInteraction(ctx, "a1", "a2", OutcomeBeef, deltaMin)
	require.NoError(t, err)
	assert.Equal(t, store.RelNeutral, res.Relationship.Status)
}

func TestGetRelationship_UnknownPairReturnsNilNotError(t *testing.T) {
	st := newTestStore(t)
	svc := New(st)
	rel, err := svc.GetRelationship(context.Background(), "x", "y")
	require.NoError(t, err)
	assert.Nil(t, rel)
}

func TestListFriends_ReturnsOnlyFriendStatus(t *testing.T) {
	st := newTestStore(t)
	svc := New(st)
	ctx := context.Background()

	_, err := svc.UpsertInteraction(ctx, "hub", "f1", OutcomeBond, deltaMax)
	require.NoError(t, err)
	expireCooldown(t, st, "hub", "f1")
	_, err = svc.UpsertInteraction(ctx, "hub", "f1", OutcomeBond, deltaMax)
	require.NoError(t, err)

	friends, err := svc.ListFriends(ctx, "hub")
	require.NoError(t, err)
	assert.Contains(t, friends, "f1")
}
