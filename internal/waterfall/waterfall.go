package waterfall

import (
	"errors"
	"fmt"

	"raffled/internal/storage"

	"github.com/shopspring/decimal"
)

const (
	BasisPoints       uint32 = 10_000
	RoyaltyReserveBps uint32 = 1_500
)

var (
	ErrInvalidSplits = errors.New("waterfall: invalid payment splits")
	ErrInvalidFee    = errors.New("waterfall: invalid platform fee")
)

type Payout struct {
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
}

type Breakdown struct {
	Revenue          decimal.Decimal `json:"revenue"`
	RoyaltyReserve   decimal.Decimal `json:"royalty_reserve"`
	PlatformFee      decimal.Decimal `json:"platform_fee"`
	SplitsTotal      decimal.Decimal `json:"splits_total"`
	Splits           []Payout        `json:"splits"`
	RafflerRemainder decimal.Decimal `json:"raffler_remainder"`
}

// mulDiv returns amount*numerator/denominator truncated toward zero.
func mulDiv(amount decimal.Decimal, numerator uint32, denominator uint32) decimal.Decimal {
	if denominator == 0 {
		return decimal.Zero
	}
	q, _ := amount.Mul(decimal.NewFromInt(int64(numerator))).QuoRem(decimal.NewFromInt(int64(denominator)), 0)
	return q
}

func ValidateSplits(splits []storage.PaymentSplit) error {
	var total uint32
	for _, split := range splits {
		if split.Recipient == "" {
			return fmt.Errorf("%w: empty recipient", ErrInvalidSplits)
		}
		if split.Bps == 0 || split.Bps > BasisPoints {
			return fmt.Errorf("%w: %d bps for %s", ErrInvalidSplits, split.Bps, split.Recipient)
		}
		total += split.Bps
		if total > BasisPoints {
			return fmt.Errorf("%w: splits sum above %d bps", ErrInvalidSplits, BasisPoints)
		}
	}
	return nil
}

func SplitsBps(splits []storage.PaymentSplit) uint32 {
	var total uint32
	for _, split := range splits {
		total += split.Bps
	}
	return total
}

// Compute splits the captured revenue of a raffle in the fixed order: royalty
// reserve, platform fee, payment splits, raffler remainder. Truncation dust of
// every step lands in the remainder.
func Compute(price decimal.Decimal, sold uint64, feeBps uint32, splits []storage.PaymentSplit) (*Breakdown, error) {
	if feeBps > BasisPoints {
		return nil, fmt.Errorf("%w: %d bps", ErrInvalidFee, feeBps)
	}
	if err := ValidateSplits(splits); err != nil {
		return nil, err
	}

	revenue := price.Mul(decimal.NewFromInt(int64(sold)))
	reserve := mulDiv(revenue, RoyaltyReserveBps, BasisPoints)
	fee := mulDiv(revenue.Sub(reserve), feeBps, BasisPoints)
	residual := revenue.Sub(reserve).Sub(fee)

	splitsBps := SplitsBps(splits)
	splitsTotal := mulDiv(residual, splitsBps, BasisPoints)

	breakdown := &Breakdown{
		Revenue:        revenue,
		RoyaltyReserve: reserve,
		PlatformFee:    fee,
		SplitsTotal:    splitsTotal,
		Splits:         make([]Payout, 0, len(splits)),
	}

	paid := decimal.Zero
	for _, split := range splits {
		amount := mulDiv(splitsTotal, split.Bps, splitsBps)
		paid = paid.Add(amount)
		breakdown.Splits = append(breakdown.Splits, Payout{
			Recipient: split.Recipient,
			Amount:    amount,
		})
	}
	breakdown.RafflerRemainder = residual.Sub(paid)

	return breakdown, nil
}

// NFTShare is the part of the royalty reserve attributed to one deposited NFT.
func NFTShare(reserve decimal.Decimal, depositedNFTs uint64) decimal.Decimal {
	if depositedNFTs == 0 {
		return decimal.Zero
	}
	q, _ := reserve.QuoRem(decimal.NewFromInt(int64(depositedNFTs)), 0)
	return q
}

// RoyaltyPayout scales an NFT share by a creator's cut of the reserve rate.
func RoyaltyPayout(share decimal.Decimal, bps uint32) decimal.Decimal {
	return mulDiv(share, bps, RoyaltyReserveBps)
}
