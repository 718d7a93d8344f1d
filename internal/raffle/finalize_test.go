package raffle

import (
	"testing"

	"raffled/internal/selector"
	"raffled/internal/storage"
	"raffled/internal/tickets"
	"raffled/internal/vault"

	"github.com/stretchr/testify/require"
)

// soldOut sells 20 tickets to each of five buyers and deposits six NFTs
// across slots 1 to 5, two of them in slot 2.
func soldOut(h *harness) (uint64, []vault.Item) {
	id := h.create(baseConfig())

	items := h.mintNFTs(owner, nft, 1, 2, 3, 4, 5, 6)
	require.NoError(h.t, h.engine.DepositNFTsToRaffle(h.ctx, owner, id, []SlotDeposit{
		{Slot: 1, Items: items[0:1]},
		{Slot: 2, Items: items[1:3]},
		{Slot: 3, Items: items[3:4]},
		{Slot: 4, Items: items[4:5]},
		{Slot: 5, Items: items[5:6]},
	}))

	h.clock.now = 100
	for _, buyer := range []string{alice, bob, carol, dave, erin} {
		h.fund(buyer, 60)
		h.buy(buyer, id, 20)
	}
	return id, items
}

func seed(t *testing.T) selector.Seed {
	value, err := selector.ParseSeed("2a")
	require.NoError(t, err)
	return value
}

func requireWinners(t *testing.T, id uint64, result *Finalization) {
	t.Helper()
	require.False(t, result.Failed)
	require.Equal(t, seed(t).String(), result.Seed)
	require.Equal(t, []SlotWinner{
		{Slot: 1, Winner: bob, TicketID: tickets.ID(id, 21)},
		{Slot: 2, Winner: alice, TicketID: tickets.ID(id, 12)},
		{Slot: 3, Winner: dave, TicketID: tickets.ID(id, 65)},
		{Slot: 4, Winner: carol, TicketID: tickets.ID(id, 41)},
		{Slot: 5, Winner: dave, TicketID: tickets.ID(id, 74)},
	}, result.Winners)
}

func TestFinalizeWithRequestedRandomness(t *testing.T) {
	h := newHarness(t)
	id, items := soldOut(h)

	h.clock.now = 499
	_, err := h.engine.RequestRandomness(h.ctx, alice, id)
	requireKind(t, err, ErrSaleNotClosed)
	_, err = h.engine.FinalizeRaffle(h.ctx, alice, id, nil)
	requireKind(t, err, ErrSaleNotClosed)

	h.clock.now = 500
	_, err = h.engine.FinalizeRaffle(h.ctx, alice, id, nil)
	requireKind(t, err, ErrSeedUnavailable)

	requestID, err := h.engine.RequestRandomness(h.ctx, alice, id)
	require.NoError(t, err)
	require.NotEmpty(t, requestID)
	_, err = h.engine.RequestRandomness(h.ctx, bob, id)
	requireKind(t, err, ErrAlreadyRequested)

	_, err = h.engine.FinalizeRaffle(h.ctx, alice, id, nil)
	requireKind(t, err, ErrSeedUnavailable)

	requireKind(t, h.engine.FulfillRandomness(h.ctx, alice, requestID, seed(t)), ErrUnauthorized)
	requireKind(t, h.engine.FulfillRandomness(h.ctx, dao, "unknown", seed(t)), ErrUnknownRequest)
	require.NoError(t, h.engine.FulfillRandomness(h.ctx, dao, requestID, seed(t)))
	requireKind(t, h.engine.FulfillRandomness(h.ctx, dao, requestID, seed(t)), ErrAlreadyFulfilled)

	request, err := h.engine.GetRandomnessRequest(id)
	require.NoError(t, err)
	require.True(t, request.Fulfilled)
	require.Equal(t, requestID, request.RequestID)
	require.Equal(t, int64(500), request.FulfilledAt)

	result, err := h.engine.FinalizeRaffle(h.ctx, erin, id, nil)
	require.NoError(t, err)
	requireWinners(t, id, result)

	_, err = h.engine.FinalizeRaffle(h.ctx, erin, id, nil)
	requireKind(t, err, ErrAlreadyFinalized)

	state, err := h.engine.GetRaffleState(id)
	require.NoError(t, err)
	require.Equal(t, StateFinalizedSuccess, state.State)

	winner, err := h.engine.GetSlotWinner(id, 2)
	require.NoError(t, err)
	require.Equal(t, alice, winner)
	winner, err = h.engine.GetSlotWinner(id, 6)
	require.NoError(t, err)
	require.Empty(t, winner)
	_, err = h.engine.GetSlotWinner(id, 11)
	requireKind(t, err, ErrInvalidSlots)

	more := h.mintNFTs(owner, nft, 7)
	requireKind(t, h.engine.DepositERC721(h.ctx, owner, id, 6, more), ErrRaffleFinalized)
	_, err = h.engine.WithdrawDepositedERC721(h.ctx, owner, id, 1, 1)
	requireKind(t, err, ErrWithdrawUnavailable)
	_, err = h.engine.RefundRaffleTickets(h.ctx, alice, id, []uint64{tickets.ID(id, 1)})
	requireKind(t, err, ErrRefundUnavailable)

	requireKind(t, h.engine.ClaimERC721Rewards(h.ctx, bob, id, 2, 1), ErrUnauthorized)
	requireKind(t, h.engine.ClaimERC721Rewards(h.ctx, alice, id, 6, 1), ErrValidation)
	require.NoError(t, h.engine.ClaimERC721Rewards(h.ctx, alice, id, 2, 1))
	require.NoError(t, h.engine.ClaimERC721Rewards(h.ctx, alice, id, 2, 1))
	requireKind(t, h.engine.ClaimERC721Rewards(h.ctx, alice, id, 2, 1), ErrDoubleAction)

	for _, item := range items[1:3] {
		holder, err := h.engine.NFTOwner(item.Contract, item.TokenID)
		require.NoError(t, err)
		require.Equal(t, alice, holder)
	}

	info, err := h.engine.GetSlotInfo(id, 2)
	require.NoError(t, err)
	require.Equal(t, uint32(2), info.DepositCount)
	require.Equal(t, uint32(2), info.ClaimedCount)

	deposited, err := h.engine.GetDepositedNftsInSlot(id, 2)
	require.NoError(t, err)
	require.Len(t, deposited, 2)
	for _, deposit := range deposited {
		require.True(t, deposit.Claimed)
		require.Equal(t, owner, deposit.Depositor)
	}

	require.NoError(t, h.engine.ClaimERC721Rewards(h.ctx, dave, id, 3, 1))
	require.NoError(t, h.engine.ClaimERC721Rewards(h.ctx, dave, id, 5, 1))

	state, err = h.engine.GetRaffleState(id)
	require.NoError(t, err)
	require.Equal(t, uint64(6), state.DepositedNFTCount)
	require.Equal(t, uint64(4), state.WithdrawnNFTCount)
	require.Equal(t, uint32(5), state.SlotsWithNFTs)
}

func TestFinalizeWithExplicitSeed(t *testing.T) {
	h := newHarness(t)
	id, _ := soldOut(h)
	value := seed(t)

	h.clock.now = 600
	_, err := h.engine.FinalizeRaffle(h.ctx, dao, id, &value)
	requireKind(t, err, ErrUnsafeSeed)

	requireKind(t, h.engine.SetUnsafeRandomness(h.ctx, alice, true), ErrUnauthorized)
	require.NoError(t, h.engine.SetUnsafeRandomness(h.ctx, dao, true))

	_, err = h.engine.FinalizeRaffle(h.ctx, alice, id, &value)
	requireKind(t, err, ErrNotDAO)

	result, err := h.engine.FinalizeRaffle(h.ctx, dao, id, &value)
	require.NoError(t, err)
	requireWinners(t, id, result)

	request, err := h.engine.GetRandomnessRequest(id)
	require.NoError(t, err)
	require.True(t, request.Fulfilled)
	require.Equal(t, value.String(), request.Seed)
}

func TestFinalizeWithoutDeposits(t *testing.T) {
	h := newHarness(t, func(config *storage.ContractConfig) {
		config.UnsafeRandomness = true
	})
	id := h.create(baseConfig())
	h.clock.now = 100
	h.fund(alice, 30)
	h.buy(alice, id, 10)

	h.clock.now = 500
	value := seed(t)
	result, err := h.engine.FinalizeRaffle(h.ctx, dao, id, &value)
	require.NoError(t, err)
	require.False(t, result.Failed)
	require.Empty(t, result.Winners)

	requireKind(t, h.engine.CancelRaffle(h.ctx, owner, id), ErrRaffleFinalized)
}

func TestCanceledRaffleCannotFinalize(t *testing.T) {
	h := newHarness(t)
	id := h.create(baseConfig())
	require.NoError(t, h.engine.CancelRaffle(h.ctx, owner, id))

	h.clock.now = 500
	_, err := h.engine.FinalizeRaffle(h.ctx, owner, id, nil)
	requireKind(t, err, ErrRaffleCanceled)
	_, err = h.engine.RequestRandomness(h.ctx, owner, id)
	requireKind(t, err, ErrRaffleCanceled)
}
