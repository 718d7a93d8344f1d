package randomness

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"errors"

	"raffled/internal/selector"
)

// Source supplies the seed that fulfills a randomness request.
type Source interface {
	Seed(ctx context.Context, requestID string) (selector.Seed, error)
}

type CryptoSource struct{}

func (CryptoSource) Seed(ctx context.Context, _ string) (selector.Seed, error) {
	var seed selector.Seed
	if err := ctx.Err(); err != nil {
		return seed, err
	}
	_, err := rand.Read(seed[:])
	return seed, err
}

// HashSource derives seeds as HMAC-SHA512(secret, requestID) truncated to 32
// bytes. Publishing the secret after settlement lets anyone recompute them.
type HashSource struct {
	Secret []byte
}

func (s HashSource) Seed(ctx context.Context, requestID string) (selector.Seed, error) {
	var seed selector.Seed
	if err := ctx.Err(); err != nil {
		return seed, err
	}
	if len(s.Secret) == 0 {
		return seed, errors.New("randomness: empty secret")
	}
	h := hmac.New(sha512.New, s.Secret)
	h.Write([]byte(requestID))
	copy(seed[:], h.Sum(nil))
	return seed, nil
}

type FixedSource struct {
	Value selector.Seed
}

func (s FixedSource) Seed(ctx context.Context, _ string) (selector.Seed, error) {
	return s.Value, ctx.Err()
}

// New returns the source named by kind: "crypto" (default) or "hash".
func New(kind string, secret string) (Source, error) {
	switch kind {
	case "", "crypto":
		return CryptoSource{}, nil
	case "hash":
		return HashSource{Secret: []byte(secret)}, nil
	default:
		return nil, errors.New("randomness: unknown source " + kind)
	}
}
