package ids

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_ProducesDistinctValidIdentifiers(t *testing.T) {
	a := New()
	b := New()
	require.NotEqual(t, a, b)
	require.True(t, Valid(a))
	require.True(t, Valid(b))
}

func TestValid_RejectsMalformedInput(t *testing.T) {
	require.False(t, Valid(""))
	require.False(t, Valid("not-a-uuid"))
	require.False(t, Valid("sess-1"))
}
