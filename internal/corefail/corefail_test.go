package corefail

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_FormatsMessage(t *testing.T) {
	err := New(Validation, "wager %d exceeds bankroll %d", 500, 200)
	assert.EqualError(t, err, "VALIDATION: wager 500 exceeds bankroll 200")
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(Internal, cause, "write failed")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
}

func TestErrorIs_MatchesSentinel(t *testing.T) {
	err := New(Conflict, "match already joined")
	assert.ErrorIs(t, err, ConflictErr)
	assert.False(t, errors.Is(err, ExpiredErr))
}

func TestKindOf_NonTaxonomyErrorIsInternal(t *testing.T) {
	assert.Equal(t, Internal, KindOf(errors.New("boom")))
}

func TestKindOf_ExtractsKind(t *testing.T) {
	err := New(NotFound, "agent %s not found", "a1")
	assert.Equal(t, NotFound, KindOf(err))
}

func TestAsPayload_TaxonomyError(t *testing.T) {
	err := New(Precondition, "match not open")
	p := AsPayload(err)
	assert.Equal(t, "PRECONDITION", p.Code)
	assert.Equal(t, "match not open", p.Error)
}

func TestAsPayload_PlainError(t *testing.T) {
	p := AsPayload(errors.New("unexpected"))
	assert.Equal(t, "INTERNAL", p.Code)
	assert.Equal(t, "unexpected", p.Error)
}
