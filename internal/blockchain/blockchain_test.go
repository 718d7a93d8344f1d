package blockchain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const raw = "0:584ee61b2dff0837116d0fcb5078d93964bcbe9c05fd6a141b1bfca5d6a43e18"

func TestNormalizeAddress(t *testing.T) {
	normalized, err := NormalizeAddress("  " + strings.ToUpper(raw) + " ")
	require.NoError(t, err)
	require.Equal(t, raw, normalized)

	human, err := HumanAddress(raw)
	require.NoError(t, err)
	require.NotEqual(t, raw, human)

	normalized, err = NormalizeAddress(human)
	require.NoError(t, err)
	require.Equal(t, raw, normalized)

	for _, invalid := range []string{"", "0:zz", "not an address"} {
		_, err := NormalizeAddress(invalid)
		require.Error(t, err, invalid)
	}
}

func TestNormalizeAll(t *testing.T) {
	addresses := []string{strings.ToUpper(raw), raw}
	require.NoError(t, NormalizeAll(addresses))
	require.Equal(t, []string{raw, raw}, addresses)

	require.Error(t, NormalizeAll([]string{raw, "bad"}))
}
