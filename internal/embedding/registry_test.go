package embedding_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"vektor/apps/embedder/internal/embedding"
)

func TestRegistry_Resolve(t *testing.T) {
	def := new(MockEmbedder)
	other := new(MockEmbedder)

	reg := embedding.NewRegistry("default-model")
	reg.Register("default-model", def)
	reg.Register("other-model", other)

	t.Run("ExactMatch", func(t *testing.T) {
		name, e, err := reg.Resolve("other-model")
		require.NoError(t, err)
		assert.Equal(t, "other-model", name)
		assert.Same(t, other, e)
	})

	t.Run("EmptyUsesDefault", func(t *testing.T) {
		name, e, err := reg.Resolve("")
		require.NoError(t, err)
		assert.Equal(t, "default-model", name)
		assert.Same(t, def, e)
	})

	t.Run("UnknownFallsBack", func(t *testing.T) {
		name, _, err := reg.Resolve("missing-model")
		require.NoError(t, err)
		assert.Equal(t, "default-model", name)
	})
}

func TestRegistry_NoDefaultRegistered(t *testing.T) {
	reg := embedding.NewRegistry("default-model")
	_, _, err := reg.Resolve("anything")
	assert.ErrorIs(t, err, embedding.ErrUnknownModel)
}
