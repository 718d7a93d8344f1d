package raffle

import (
	"testing"

	"raffled/internal/ledger"
	"raffled/internal/royalty"
	"raffled/internal/storage"
	"raffled/internal/vault"

	"github.com/stretchr/testify/require"
)

const (
	splitA   = "0:5a"
	splitB   = "0:5b"
	creatorA = "0:ca"
	creatorB = "0:cb"
)

func unsafeRandomness(config *storage.ContractConfig) {
	config.UnsafeRandomness = true
}

func withFee(bps uint32) func(*storage.ContractConfig) {
	return func(config *storage.ContractConfig) {
		config.PlatformFeeBps = bps
	}
}

// settle sells all 100 tickets of a raffle at price 3 and finalizes it with a
// fixed seed.
func settle(h *harness, config Config, deposits []SlotDeposit) uint64 {
	id := h.create(config)
	if len(deposits) > 0 {
		require.NoError(h.t, h.engine.DepositNFTsToRaffle(h.ctx, owner, id, deposits))
	}

	h.clock.now = 100
	for _, buyer := range []string{alice, bob, carol, dave, erin} {
		h.fund(buyer, 60)
		h.buy(buyer, id, 20)
	}

	h.clock.now = 500
	value := seed(h.t)
	_, err := h.engine.FinalizeRaffle(h.ctx, dao, id, &value)
	require.NoError(h.t, err)
	return id
}

func TestRevenueWithoutFee(t *testing.T) {
	h := newHarness(t, unsafeRandomness)
	id := h.create(baseConfig())
	_, err := h.engine.DistributeCapturedRaffleRevenue(h.ctx, owner, id)
	requireKind(t, err, ErrNotFinalized)

	id = settle(h, baseConfig(), nil)

	breakdown, err := h.engine.DistributeCapturedRaffleRevenue(h.ctx, alice, id)
	require.NoError(t, err)
	requireAmount(t, 300, breakdown.Revenue)
	requireAmount(t, 45, breakdown.RoyaltyReserve)
	requireAmount(t, 0, breakdown.PlatformFee)
	requireAmount(t, 255, breakdown.RafflerRemainder)

	requireAmount(t, 255, h.balance(ledger.Native, owner))
	requireAmount(t, 45, h.balance(ledger.Native, h.engine.Custody()))

	_, err = h.engine.DistributeCapturedRaffleRevenue(h.ctx, owner, id)
	requireKind(t, err, ErrAlreadyDistributed)
	requireAmount(t, 255, h.balance(ledger.Native, owner))

	state, err := h.engine.GetRaffleState(id)
	require.NoError(t, err)
	require.Equal(t, StateRevenueDistributed, state.State)
	require.True(t, state.Escrow.IsZero())
	requireAmount(t, 45, state.RoyaltyReserve)

	_, err = h.engine.DistributeRoyalties(h.ctx, alice, ledger.Native)
	requireKind(t, err, ErrNothingToDistribute)
}

func TestRevenueWithFee(t *testing.T) {
	h := newHarness(t, unsafeRandomness, withFee(1000))
	id := settle(h, baseConfig(), nil)

	breakdown, err := h.engine.DistributeCapturedRaffleRevenue(h.ctx, owner, id)
	require.NoError(t, err)
	requireAmount(t, 25, breakdown.PlatformFee)
	requireAmount(t, 230, breakdown.RafflerRemainder)
	requireAmount(t, 230, h.balance(ledger.Native, owner))

	accrued, err := h.engine.FeesAccrued(ledger.Native)
	require.NoError(t, err)
	requireAmount(t, 25, accrued)

	amount, err := h.engine.DistributeRoyalties(h.ctx, alice, ledger.Native)
	require.NoError(t, err)
	requireAmount(t, 25, amount)
	requireAmount(t, 25, h.balance(ledger.Native, dao))
	requireAmount(t, 45, h.balance(ledger.Native, h.engine.Custody()))

	_, err = h.engine.DistributeRoyalties(h.ctx, alice, ledger.Native)
	requireKind(t, err, ErrNothingToDistribute)
}

func TestRevenueChargesCurrentFee(t *testing.T) {
	h := newHarness(t, unsafeRandomness)
	id := h.create(baseConfig())
	require.NoError(t, h.engine.SetRaffleConfigValue(h.ctx, dao, ConfigPlatformFeeBps, 1000))

	h.clock.now = 100
	for _, buyer := range []string{alice, bob, carol, dave, erin} {
		h.fund(buyer, 60)
		h.buy(buyer, id, 20)
	}
	h.clock.now = 500
	value := seed(t)
	_, err := h.engine.FinalizeRaffle(h.ctx, dao, id, &value)
	require.NoError(t, err)

	breakdown, err := h.engine.DistributeCapturedRaffleRevenue(h.ctx, owner, id)
	require.NoError(t, err)
	requireAmount(t, 25, breakdown.PlatformFee)
	requireAmount(t, 230, h.balance(ledger.Native, owner))

	accrued, err := h.engine.FeesAccrued(ledger.Native)
	require.NoError(t, err)
	requireAmount(t, 25, accrued)

	// distributed raffles keep the fee they paid
	require.NoError(t, h.engine.SetRaffleConfigValue(h.ctx, dao, ConfigPlatformFeeBps, 0))
	config, err := h.engine.GetRaffleConfig(id)
	require.NoError(t, err)
	require.Equal(t, uint32(1000), config.PlatformFeeBps)
}

func TestRevenueWithPaymentSplits(t *testing.T) {
	h := newHarness(t, unsafeRandomness, withFee(1000))
	config := baseConfig()
	config.PaymentSplits = []storage.PaymentSplit{
		{Recipient: splitA, Bps: 5000},
		{Recipient: splitB, Bps: 2500},
	}
	id := settle(h, config, nil)

	breakdown, err := h.engine.DistributeCapturedRaffleRevenue(h.ctx, owner, id)
	require.NoError(t, err)
	requireAmount(t, 172, breakdown.SplitsTotal)
	requireAmount(t, 59, breakdown.RafflerRemainder)

	requireAmount(t, 114, h.balance(ledger.Native, splitA))
	requireAmount(t, 57, h.balance(ledger.Native, splitB))
	requireAmount(t, 59, h.balance(ledger.Native, owner))
	requireAmount(t, 45+25, h.balance(ledger.Native, h.engine.Custody()))
}

func TestSecondarySaleFees(t *testing.T) {
	h := newHarness(t, unsafeRandomness)
	h.registry.SetContract(nft, []royalty.Split{{Recipient: creatorA, Bps: 1000}})
	h.registry.SetToken(nft, "2", []royalty.Split{{Recipient: creatorB, Bps: 500}})

	registered := h.mintNFTs(owner, nft, 1, 2)
	unregistered := h.mintNFTs(owner, nft2, 1)
	id := settle(h, baseConfig(), []SlotDeposit{
		{Slot: 1, Items: registered},
		{Slot: 2, Items: unregistered},
	})

	_, err := h.engine.DistributeSecondarySaleFees(h.ctx, alice, id, 1, 2)
	requireKind(t, err, ErrRevenueNotCaptured)

	_, err = h.engine.DistributeCapturedRaffleRevenue(h.ctx, owner, id)
	require.NoError(t, err)

	_, err = h.engine.DistributeSecondarySaleFees(h.ctx, alice, id, 1, 0)
	requireKind(t, err, ErrInvalidCount)
	_, err = h.engine.DistributeSecondarySaleFees(h.ctx, alice, id, 11, 1)
	requireKind(t, err, ErrInvalidSlots)

	// 45 reserved over 3 NFTs: 15 each, paid pro rata of the 15% reserve rate.
	paid, err := h.engine.DistributeSecondarySaleFees(h.ctx, alice, id, 1, 5)
	require.NoError(t, err)
	requireAmount(t, 15, paid)
	requireAmount(t, 10, h.balance(ledger.Native, creatorA))
	requireAmount(t, 5, h.balance(ledger.Native, creatorB))

	_, err = h.engine.DistributeSecondarySaleFees(h.ctx, alice, id, 1, 1)
	requireKind(t, err, ErrRoyaltiesSettled)

	// a royalty above the reserve rate is skipped and its share kept
	h.registry.SetContract(nft2, []royalty.Split{{Recipient: creatorA, Bps: 2000}})
	paid, err = h.engine.DistributeSecondarySaleFees(h.ctx, alice, id, 2, 1)
	require.NoError(t, err)
	requireAmount(t, 0, paid)
	requireAmount(t, 10, h.balance(ledger.Native, creatorA))

	_, err = h.engine.DistributeSecondarySaleFees(h.ctx, alice, id, 2, 1)
	requireKind(t, err, ErrRoyaltiesSettled)

	info, err := h.engine.GetSlotInfo(id, 1)
	require.NoError(t, err)
	require.Equal(t, uint32(2), info.RoyaltiesDistributed)

	state, err := h.engine.GetRaffleState(id)
	require.NoError(t, err)
	requireAmount(t, 15, state.RoyaltiesPaid)
	requireAmount(t, 30, h.balance(ledger.Native, h.engine.Custody()))
}

func TestBatchDepositIsAtomic(t *testing.T) {
	h := newHarness(t)
	first := h.create(baseConfig())
	second := h.create(baseConfig())
	items := h.mintNFTs(owner, nft, 1, 2)

	err := h.engine.BatchDepositToRaffle(h.ctx, owner, []RaffleDeposit{
		{RaffleID: first, Slots: []SlotDeposit{{Slot: 1, Items: items[:1]}}},
		{RaffleID: second, Slots: []SlotDeposit{{Slot: 11, Items: items[1:]}}},
	})
	requireKind(t, err, ErrValidation)

	holder, err := h.engine.NFTOwner(nft, "1")
	require.NoError(t, err)
	require.Equal(t, owner, holder)

	require.NoError(t, h.engine.BatchDepositToRaffle(h.ctx, owner, []RaffleDeposit{
		{RaffleID: first, Slots: []SlotDeposit{{Slot: 1, Items: items[:1]}}},
		{RaffleID: second, Slots: []SlotDeposit{{Slot: 10, Items: items[1:]}}},
	}))

	holder, err = h.engine.NFTOwner(nft, "2")
	require.NoError(t, err)
	require.Equal(t, h.engine.Custody(), holder)

	deposited, err := h.engine.GetDepositedNftsInSlot(second, 10)
	require.NoError(t, err)
	require.Equal(t, []DepositedNFT{{Depositor: owner, Contract: nft, TokenID: "2"}}, deposited)

	requireKind(t, h.engine.DepositERC721(h.ctx, alice, first, 2, []vault.Item{{Contract: nft, TokenID: "1"}}), ErrUnauthorized)
}
