package royalty

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"raffled/internal/logger"

	"github.com/patrickmn/go-cache"
	"github.com/tonkeeper/tonapi-go"
	"github.com/tonkeeper/tongo/boc"
	"github.com/tonkeeper/tongo/tlb"
	"github.com/tonkeeper/tongo/ton"
	"go.uber.org/zap"
)

const royaltyParamsMethod = "royalty_params"

var ErrInvalidRoyaltyParams = errors.New("royalty: invalid royalty_params output")

type Func[T any] func() (T, error)

func infinityRateLimitRetry[T any](
	ctx context.Context,
	fn Func[T],
) (T, error) {
	for {
		result, err := fn()
		if err != nil {
			var e *tonapi.ErrorStatusCode
			if errors.As(err, &e) && e.StatusCode == 429 {
				select {
				case <-ctx.Done():
					return result, ctx.Err()
				case <-time.After(500 * time.Millisecond):
				}
				continue
			}
		}

		return result, err
	}
}

// TonapiRegistry reads the collection-level royalty of an NFT contract by
// running its royalty_params get-method through tonapi. The standard defines
// one royalty per collection, so tokenID does not change the answer.
type TonapiRegistry struct {
	client *tonapi.Client
	cache  *cache.Cache
}

func NewTonapiRegistry(token string) (*TonapiRegistry, error) {
	logger.Debug("royalty registry initialization: tonapi client...")

	client, err := tonapi.NewClient(tonapi.TonApiURL, tonapi.WithToken(token))
	if err != nil {
		return nil, err
	}

	logger.Debug("royalty registry initialization: tonapi client... done")
	return &TonapiRegistry{
		client: client,
		cache:  cache.New(5*time.Minute, 10*time.Minute),
	}, nil
}

func (r *TonapiRegistry) RoyaltySplitFor(ctx context.Context, contract string, _ string) ([]Split, error) {
	if cached, ok := r.cache.Get(contract); ok {
		return append([]Split(nil), cached.([]Split)...), nil
	}

	accountID, err := ton.ParseAccountID(contract)
	if err != nil {
		return nil, fmt.Errorf("royalty: invalid contract address %q: %w", contract, err)
	}

	result, err := infinityRateLimitRetry(ctx,
		func() (*tonapi.MethodExecutionResult, error) {
			return r.client.ExecGetMethodForBlockchainAccount(ctx, tonapi.ExecGetMethodForBlockchainAccountParams{
				AccountID:  accountID.ToRaw(),
				MethodName: royaltyParamsMethod,
				Args:       make([]string, 0),
			})
		})
	if err != nil {
		logger.Debug("royalty registry: royalty_params failed", zap.String("contract", contract), zap.Error(err))
		return nil, err
	}

	splits, err := splitsFromStack(result.GetStack())
	if err != nil {
		return nil, err
	}

	r.cache.Set(contract, splits, cache.DefaultExpiration)
	return append([]Split(nil), splits...), nil
}

// splitsFromStack converts (numerator, denominator, destination) into a split
// expressed in basis points of the sale price.
func splitsFromStack(stack []tonapi.TvmStackRecord) ([]Split, error) {
	if len(stack) < 3 {
		return nil, fmt.Errorf("%w: %d stack entries", ErrInvalidRoyaltyParams, len(stack))
	}

	numeratorString, ok := stack[0].GetNum().Get()
	if !ok {
		return nil, ErrInvalidRoyaltyParams
	}
	numerator, err := parseStackNumber(numeratorString)
	if err != nil {
		return nil, err
	}

	denominatorString, ok := stack[1].GetNum().Get()
	if !ok {
		return nil, ErrInvalidRoyaltyParams
	}
	denominator, err := parseStackNumber(denominatorString)
	if err != nil {
		return nil, err
	}

	if numerator == 0 || denominator == 0 {
		return nil, nil
	}

	destinationString, ok := stack[2].GetCell().Get()
	if !ok {
		return nil, ErrInvalidRoyaltyParams
	}

	destination, err := decodeAddress(destinationString)
	if err != nil {
		return nil, err
	}

	bps := numerator * 10_000 / denominator
	if bps == 0 {
		return nil, nil
	}
	return []Split{{Recipient: destination, Bps: uint32(bps)}}, nil
}

func parseStackNumber(value string) (uint64, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(value, "0x"), "0X")
	number, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: number %q", ErrInvalidRoyaltyParams, value)
	}
	return number, nil
}

func decodeAddress(cellHex string) (string, error) {
	cells, err := boc.DeserializeBocHex(cellHex)
	if err != nil || len(cells) == 0 {
		return "", fmt.Errorf("%w: destination boc", ErrInvalidRoyaltyParams)
	}

	var address tlb.MsgAddress
	if err := tlb.Unmarshal(cells[0], &address); err != nil {
		return "", fmt.Errorf("%w: destination address: %v", ErrInvalidRoyaltyParams, err)
	}

	accountID, err := ton.AccountIDFromTlb(address)
	if accountID == nil || err != nil {
		return "", fmt.Errorf("%w: destination account", ErrInvalidRoyaltyParams)
	}
	return accountID.ToRaw(), nil
}
