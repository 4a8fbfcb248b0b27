package strategy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cr0sh/grasshopper/internal/engine"
)

func TestRegistryRegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	fn := func(*engine.Ctx) error { return nil }

	r.Register(" Maker ", fn)
	r.Register("taker", fn)
	r.Register("", fn)

	require.Equal(t, []string{"maker", "taker"}, r.Names())

	_, ok := r.Resolve("MAKER")
	require.True(t, ok)
	_, ok = r.Resolve("missing")
	require.False(t, ok)
}
