package selector

import (
	"errors"
	"testing"

	"raffled/internal/storage"

	"github.com/stretchr/testify/require"
)

func TestParseSeed(t *testing.T) {
	seed, err := ParseSeed("0x2a")
	require.NoError(t, err)
	require.Equal(t, byte(0x2a), seed[31])
	require.Equal(t, "000000000000000000000000000000000000000000000000000000000000002a", seed.String())

	again, err := ParseSeed(seed.String())
	require.NoError(t, err)
	require.Equal(t, seed, again)

	for _, bad := range []string{"", "0x", "zz", "0x" + seed.String() + "00"} {
		_, err := ParseSeed(bad)
		require.True(t, errors.Is(err, ErrInvalidSeed), bad)
	}
}

func TestWinningIndexVectors(t *testing.T) {
	seed, err := ParseSeed("2a")
	require.NoError(t, err)

	tests := []struct {
		slot uint32
		sold uint64
		want uint64
	}{
		{slot: 1, sold: 100, want: 20},
		{slot: 2, sold: 100, want: 11},
		{slot: 3, sold: 100, want: 64},
		{slot: 4, sold: 100, want: 40},
		{slot: 5, sold: 100, want: 73},
		{slot: 3, sold: 7, want: 4},
		{slot: 4, sold: 7, want: 6},
		{slot: 1, sold: 1, want: 0},
	}
	for _, test := range tests {
		got, err := WinningIndex(seed, test.slot, test.sold)
		require.NoError(t, err)
		require.Equal(t, test.want, got, "slot %d sold %d", test.slot, test.sold)
	}

	_, err = WinningIndex(seed, 1, 0)
	require.True(t, errors.Is(err, ErrNoTickets))
}

func purchases() []*storage.Purchase {
	return []*storage.Purchase{
		{Buyer: "alice", FirstSequence: 1, Count: 20},
		{Buyer: "bob", FirstSequence: 21, Count: 30},
		{Buyer: "carol", FirstSequence: 51, Count: 50},
	}
}

func TestOwnerAtBoundaries(t *testing.T) {
	index, err := NewIndex(purchases())
	require.NoError(t, err)
	require.Equal(t, uint64(100), index.Total())

	tests := map[uint64]string{
		0:  "alice",
		19: "alice",
		20: "bob",
		49: "bob",
		50: "carol",
		99: "carol",
	}
	for position, want := range tests {
		got, err := index.OwnerAt(position)
		require.NoError(t, err)
		require.Equal(t, want, got, "position %d", position)
	}

	_, err = index.OwnerAt(100)
	require.True(t, errors.Is(err, ErrOutOfRange))
}

func TestWinnersAreDeterministic(t *testing.T) {
	seed, err := ParseSeed("2a")
	require.NoError(t, err)

	want := map[uint32]string{1: "bob", 2: "alice", 3: "carol", 4: "bob", 5: "carol"}
	for run := 0; run < 2; run++ {
		index, err := NewIndex(purchases())
		require.NoError(t, err)
		for slot, owner := range want {
			got, sequence, err := index.Winner(seed, slot)
			require.NoError(t, err)
			require.Equal(t, owner, got, "slot %d", slot)
			require.GreaterOrEqual(t, sequence, uint64(1))
			require.LessOrEqual(t, sequence, uint64(100))
		}
	}
}

func TestNewIndexRejectsGaps(t *testing.T) {
	_, err := NewIndex([]*storage.Purchase{
		{Buyer: "alice", FirstSequence: 1, Count: 2},
		{Buyer: "bob", FirstSequence: 4, Count: 1},
	})
	require.True(t, errors.Is(err, ErrGap))

	index, err := NewIndex(nil)
	require.NoError(t, err)
	_, _, err = index.Winner(Seed{}, 1)
	require.True(t, errors.Is(err, ErrNoTickets))
}
