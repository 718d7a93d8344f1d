package raffle

import (
	"testing"

	"raffled/internal/ledger"
	"raffled/internal/tickets"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestPurchaseWindow(t *testing.T) {
	h := newHarness(t)
	id := h.create(baseConfig())
	h.fund(alice, 100)

	h.clock.now = 99
	_, err := h.engine.BuyRaffleTickets(h.ctx, alice, id, 1, d(3))
	requireKind(t, err, ErrValidation)

	h.clock.now = 100
	require.Equal(t, tickets.ID(id, 1), h.buy(alice, id, 1))

	h.clock.now = 499
	require.Equal(t, tickets.ID(id, 2), h.buy(alice, id, 2))

	h.clock.now = 500
	_, err = h.engine.BuyRaffleTickets(h.ctx, alice, id, 1, d(3))
	requireKind(t, err, ErrValidation)

	owner, err := h.engine.TicketOwnerOf(tickets.ID(id, 3))
	require.NoError(t, err)
	require.Equal(t, alice, owner)

	balance, err := h.engine.TicketBalanceOf(id, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(3), balance)

	requireAmount(t, 91, h.balance(ledger.Native, alice))
	requireAmount(t, 9, h.balance(ledger.Native, h.engine.Custody()))

	state, err := h.engine.GetRaffleState(id)
	require.NoError(t, err)
	require.Equal(t, uint64(3), state.TicketsSold)
	requireAmount(t, 9, state.Escrow)
}

func TestPurchaseLimits(t *testing.T) {
	h := newHarness(t)
	config := baseConfig()
	config.MaxTicketCount = 5
	config.MinTicketCount = 1
	id := h.create(config)
	h.fund(alice, 1000)
	h.clock.now = 100

	_, err := h.engine.BuyRaffleTickets(h.ctx, alice, id, 0, decimal.Zero)
	requireKind(t, err, ErrInvalidCount)

	_, err = h.engine.BuyRaffleTickets(h.ctx, alice, id, 51, d(153))
	requireKind(t, err, ErrBulkLimit)

	_, err = h.engine.BuyRaffleTickets(h.ctx, alice, id, 2, d(5))
	requireKind(t, err, ErrEconomic)

	_, err = h.engine.BuyRaffleTickets(h.ctx, bob, id, 1, d(3))
	requireKind(t, err, ErrEconomic)

	_, err = h.engine.BuyRaffleTickets(h.ctx, "", id, 1, d(3))
	requireKind(t, err, ErrUnauthorized)

	h.buy(alice, id, 4)
	_, err = h.engine.BuyRaffleTickets(h.ctx, alice, id, 2, d(6))
	requireKind(t, err, ErrSoldOut)
	h.buy(alice, id, 1)

	_, err = h.engine.BuyRaffleTickets(h.ctx, alice, id, 1, d(3))
	requireKind(t, err, ErrSoldOut)

	state, err := h.engine.GetRaffleState(id)
	require.NoError(t, err)
	require.Equal(t, uint64(5), state.TicketsSold)
	requireAmount(t, 15, state.Escrow)
	requireAmount(t, 985, h.balance(ledger.Native, alice))
}

func TestTokenPurchase(t *testing.T) {
	h := newHarness(t)
	config := baseConfig()
	config.Currency = token
	id := h.create(config)
	require.NoError(t, h.engine.Fund(h.ctx, dao, token, alice, d(30)))
	h.clock.now = 100

	_, err := h.engine.BuyRaffleTickets(h.ctx, alice, id, 3, decimal.Zero)
	requireKind(t, err, ErrEconomic)

	require.NoError(t, h.engine.Approve(h.ctx, alice, token, d(9)))
	requireKind(t, h.engine.Approve(h.ctx, alice, ledger.Native, d(9)), ErrValidation)

	_, err = h.engine.BuyRaffleTickets(h.ctx, alice, id, 3, d(9))
	requireKind(t, err, ErrUnexpectedValue)

	first, err := h.engine.BuyRaffleTickets(h.ctx, alice, id, 3, decimal.Zero)
	require.NoError(t, err)
	require.Equal(t, tickets.ID(id, 1), first)

	requireAmount(t, 21, h.balance(token, alice))
	requireAmount(t, 9, h.balance(token, h.engine.Custody()))
	requireAmount(t, 0, h.balance(ledger.Native, h.engine.Custody()))

	_, err = h.engine.BuyRaffleTickets(h.ctx, alice, id, 1, decimal.Zero)
	requireKind(t, err, ErrEconomic)
}

func TestAllowList(t *testing.T) {
	h := newHarness(t)
	id := h.create(baseConfig())
	for _, buyer := range []string{alice, bob, carol} {
		h.fund(buyer, 30)
	}

	entries := []AllowListEntry{{Address: alice, Allowance: 2}, {Address: carol, Allowance: 3}}
	requireKind(t, h.engine.SetAllowList(h.ctx, bob, id, entries), ErrUnauthorized)
	require.NoError(t, h.engine.SetAllowList(h.ctx, owner, id, entries))

	_, err := h.engine.ToggleAllowList(h.ctx, alice, id)
	requireKind(t, err, ErrUnauthorized)
	enabled, err := h.engine.ToggleAllowList(h.ctx, owner, id)
	require.NoError(t, err)
	require.True(t, enabled)

	h.clock.now = 100
	h.buy(alice, id, 2)
	_, err = h.engine.BuyRaffleTickets(h.ctx, alice, id, 1, d(3))
	requireKind(t, err, ErrNotAllowListed)
	_, err = h.engine.BuyRaffleTickets(h.ctx, bob, id, 1, d(3))
	requireKind(t, err, ErrNotAllowListed)

	// A failed payment leaves the allowance untouched.
	_, err = h.engine.BuyRaffleTickets(h.ctx, carol, id, 3, d(8))
	requireKind(t, err, ErrEconomic)
	allowance, err := h.engine.GetAllowList(id, carol)
	require.NoError(t, err)
	require.Equal(t, uint64(3), allowance)

	h.buy(carol, id, 3)
	allowance, err = h.engine.GetAllowList(id, carol)
	require.NoError(t, err)
	require.Equal(t, uint64(0), allowance)

	enabled, err = h.engine.ToggleAllowList(h.ctx, owner, id)
	require.NoError(t, err)
	require.False(t, enabled)
	h.buy(bob, id, 1)

	h.clock.now = 500
	requireKind(t, h.engine.SetAllowList(h.ctx, owner, id, entries), ErrSaleClosed)
}

func TestRefunds(t *testing.T) {
	h := newHarness(t)
	id := h.create(baseConfig())
	h.fund(alice, 30)
	h.fund(bob, 30)
	h.clock.now = 100

	h.buy(alice, id, 3)
	bobFirst := h.buy(bob, id, 1)

	_, err := h.engine.RefundRaffleTickets(h.ctx, alice, id, []uint64{tickets.ID(id, 1)})
	requireKind(t, err, ErrRefundUnavailable)

	require.NoError(t, h.engine.CancelRaffle(h.ctx, owner, id))

	_, err = h.engine.RefundRaffleTickets(h.ctx, bob, id, []uint64{tickets.ID(id, 1)})
	requireKind(t, err, ErrUnauthorized)

	_, err = h.engine.RefundRaffleTickets(h.ctx, alice, id, nil)
	requireKind(t, err, ErrInvalidCount)

	_, err = h.engine.RefundRaffleTickets(h.ctx, alice, id, []uint64{tickets.ID(id, 1), tickets.ID(id, 1)})
	requireKind(t, err, ErrDoubleAction)

	_, err = h.engine.RefundRaffleTickets(h.ctx, alice, id, []uint64{tickets.ID(id+1, 1)})
	requireKind(t, err, ErrValidation)

	refund, err := h.engine.RefundRaffleTickets(h.ctx, alice, id, []uint64{tickets.ID(id, 1), tickets.ID(id, 2)})
	require.NoError(t, err)
	requireAmount(t, 6, refund)
	requireAmount(t, 27, h.balance(ledger.Native, alice))

	_, err = h.engine.RefundRaffleTickets(h.ctx, alice, id, []uint64{tickets.ID(id, 1)})
	requireKind(t, err, ErrDoubleAction)

	// One foreign ticket rejects the whole batch.
	_, err = h.engine.RefundRaffleTickets(h.ctx, alice, id, []uint64{tickets.ID(id, 3), bobFirst})
	requireKind(t, err, ErrUnauthorized)
	balance, err := h.engine.TicketBalanceOf(id, alice)
	require.NoError(t, err)
	require.Equal(t, uint64(1), balance)

	_, err = h.engine.TicketOwnerOf(tickets.ID(id, 1))
	require.Error(t, err)

	state, err := h.engine.GetRaffleState(id)
	require.NoError(t, err)
	require.Equal(t, uint64(2), state.TicketsRefunded)
	requireAmount(t, 6, state.Escrow)
}

func TestFailedRaffleUnwinds(t *testing.T) {
	h := newHarness(t)
	id := h.create(baseConfig())
	h.fund(alice, 30)

	items := h.mintNFTs(owner, nft, 1, 2, 3)
	require.NoError(t, h.engine.DepositERC721(h.ctx, owner, id, 1, items))

	_, err := h.engine.WithdrawDepositedERC721(h.ctx, owner, id, 1, 3)
	requireKind(t, err, ErrWithdrawUnavailable)

	h.clock.now = 100
	h.buy(alice, id, 5)

	h.clock.now = 500
	result, err := h.engine.FinalizeRaffle(h.ctx, bob, id, nil)
	require.NoError(t, err)
	require.True(t, result.Failed)
	require.Empty(t, result.Winners)

	state, err := h.engine.GetRaffleState(id)
	require.NoError(t, err)
	require.Equal(t, StateFinalizedFailed, state.State)
	require.False(t, state.Canceled)

	_, err = h.engine.DistributeCapturedRaffleRevenue(h.ctx, owner, id)
	requireKind(t, err, ErrRaffleFailed)

	refund, err := h.engine.RefundRaffleTickets(h.ctx, alice, id, []uint64{tickets.ID(id, 1), tickets.ID(id, 2), tickets.ID(id, 3), tickets.ID(id, 4), tickets.ID(id, 5)})
	require.NoError(t, err)
	requireAmount(t, 15, refund)
	requireAmount(t, 30, h.balance(ledger.Native, alice))

	_, err = h.engine.WithdrawDepositedERC721(h.ctx, alice, id, 1, 3)
	requireKind(t, err, ErrValidation)

	withdrawn, err := h.engine.WithdrawDepositedERC721(h.ctx, owner, id, 1, 2)
	require.NoError(t, err)
	require.Equal(t, uint32(2), withdrawn)
	withdrawn, err = h.engine.WithdrawDepositedERC721(h.ctx, owner, id, 1, 5)
	require.NoError(t, err)
	require.Equal(t, uint32(1), withdrawn)
	_, err = h.engine.WithdrawDepositedERC721(h.ctx, owner, id, 1, 1)
	requireKind(t, err, ErrValidation)

	for _, item := range items {
		holder, err := h.engine.NFTOwner(item.Contract, item.TokenID)
		require.NoError(t, err)
		require.Equal(t, owner, holder)
	}

	state, err = h.engine.GetRaffleState(id)
	require.NoError(t, err)
	require.Equal(t, uint64(3), state.WithdrawnNFTCount)
	require.True(t, state.Escrow.IsZero())
}
