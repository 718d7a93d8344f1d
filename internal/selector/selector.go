package selector

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"raffled/internal/storage"

	"golang.org/x/crypto/sha3"
)

var (
	ErrNoTickets   = errors.New("selector: no tickets sold")
	ErrGap         = errors.New("selector: purchase log is not contiguous")
	ErrInvalidSeed = errors.New("selector: invalid seed")
	ErrOutOfRange  = errors.New("selector: ticket index out of range")
)

type Seed [32]byte

// ParseSeed accepts up to 64 hex digits with an optional 0x prefix. Shorter
// values are read as big-endian numbers.
func ParseSeed(value string) (Seed, error) {
	var seed Seed
	value = strings.TrimPrefix(strings.TrimPrefix(value, "0x"), "0X")
	if value == "" || len(value) > 64 {
		return seed, fmt.Errorf("%w: %q", ErrInvalidSeed, value)
	}
	if len(value)%2 == 1 {
		value = "0" + value
	}
	raw, err := hex.DecodeString(value)
	if err != nil {
		return seed, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	copy(seed[len(seed)-len(raw):], raw)
	return seed, nil
}

func (s Seed) String() string {
	return hex.EncodeToString(s[:])
}

// WinningIndex derives the zero-based winning ticket index of a slot as
// keccak256(seed ++ uint256(slotIndex)) mod ticketsSold.
func WinningIndex(seed Seed, slotIndex uint32, ticketsSold uint64) (uint64, error) {
	if ticketsSold == 0 {
		return 0, ErrNoTickets
	}

	var slot [32]byte
	binary.BigEndian.PutUint32(slot[28:], slotIndex)

	hash := sha3.NewLegacyKeccak256()
	hash.Write(seed[:])
	hash.Write(slot[:])

	value := new(big.Int).SetBytes(hash.Sum(nil))
	value.Mod(value, new(big.Int).SetUint64(ticketsSold))
	return value.Uint64(), nil
}

// Index maps ticket positions to buyers through cumulative purchase ranges.
type Index struct {
	ends   []uint64
	owners []string
}

func NewIndex(purchases []*storage.Purchase) (*Index, error) {
	index := &Index{
		ends:   make([]uint64, 0, len(purchases)),
		owners: make([]string, 0, len(purchases)),
	}

	var total uint64
	for _, purchase := range purchases {
		if purchase.FirstSequence != total+1 {
			return nil, fmt.Errorf("%w: expected sequence %d, got %d", ErrGap, total+1, purchase.FirstSequence)
		}
		total += purchase.Count
		index.ends = append(index.ends, total)
		index.owners = append(index.owners, purchase.Buyer)
	}
	return index, nil
}

func (i *Index) Total() uint64 {
	if len(i.ends) == 0 {
		return 0
	}
	return i.ends[len(i.ends)-1]
}

// OwnerAt returns the buyer of the ticket at zero-based position.
func (i *Index) OwnerAt(position uint64) (string, error) {
	if position >= i.Total() {
		return "", fmt.Errorf("%w: %d of %d", ErrOutOfRange, position, i.Total())
	}
	k := sort.Search(len(i.ends), func(k int) bool {
		return i.ends[k] > position
	})
	return i.owners[k], nil
}

// Winner returns the winning address and ticket sequence for a slot.
func (i *Index) Winner(seed Seed, slotIndex uint32) (string, uint64, error) {
	position, err := WinningIndex(seed, slotIndex, i.Total())
	if err != nil {
		return "", 0, err
	}
	owner, err := i.OwnerAt(position)
	if err != nil {
		return "", 0, err
	}
	return owner, position + 1, nil
}
