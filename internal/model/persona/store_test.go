package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	seed := Seed()
	store := NewMemoryStore(append(seed, Persona{ID: DefaultID, Name: "重复"}))

	list := store.List()
	require.Len(t, list, len(seed))
	assert.Equal(t, DefaultID, list[0].ID)

	p, ok := store.FindByID(DefaultID)
	require.True(t, ok)
	assert.NotEqual(t, "重复", p.Name)

	_, ok = store.FindByID("missing")
	assert.False(t, ok)

	list[0].Name = "改动"
	p, _ = store.FindByID(DefaultID)
	assert.NotEqual(t, "改动", p.Name)
}

func TestResolve(t *testing.T) {
	store := NewMemoryStore(Seed())

	assert.Equal(t, "cbt-coach", Resolve(store, "cbt-coach").ID)
	assert.Equal(t, DefaultID, Resolve(store, "missing").ID)
	assert.Nil(t, Resolve(NewMemoryStore(nil), "missing"))
	assert.Nil(t, Resolve(nil, DefaultID))
}
