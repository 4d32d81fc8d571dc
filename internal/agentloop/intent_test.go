package agentloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/townforge/arena/internal/store"
)

func TestVoiceCatalog_DefaultsCoverEveryArchetype(t *testing.T) {
	c := NewVoiceCatalog()
	for _, a := range []store.Archetype{
		store.ArchetypeShark, store.ArchetypeRock, store.ArchetypeChameleon,
		store.ArchetypeDegen, store.ArchetypeGrinder,
	} {
		assert.NotEmpty(t, c.get(a))
	}
}

func TestVoiceCatalog_UnknownArchetypeFallsBack(t *testing.T) {
	c := NewVoiceCatalog()
	assert.Equal(t, "unpredictable, no fixed playstyle", c.get(store.Archetype("GHOST")))
}

func TestVoiceCatalog_LoadYAMLOverridesDefault(t *testing.T) {
	c := NewVoiceCatalog()
	err := c.LoadYAML([]byte(`
voices:
  - archetype: SHARK
    voice: "ruthless and silent"
`))
	require.NoError(t, err)
	assert.Equal(t, "ruthless and silent", c.get(store.ArchetypeShark))
	// Untouched archetypes keep their default.
	assert.Equal(t, "cautious, conservative, protects its bankroll", c.get(store.ArchetypeRock))
}

func TestVoiceCatalog_LoadYAMLRejectsMalformedDocument(t *testing.T) {
	c := NewVoiceCatalog()
	err := c.LoadYAML([]byte("not: [valid: yaml: at all"))
	assert.Error(t, err)
}
