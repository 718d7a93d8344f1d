package raffle

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"raffled/internal/ledger"
	"raffled/internal/royalty"
	"raffled/internal/storage"
	"raffled/internal/vault"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	dao   = "0:d0"
	owner = "0:01"
	alice = "0:a1"
	bob   = "0:b1"
	carol = "0:c1"
	dave  = "0:d1"
	erin  = "0:e1"
	token = "0:77"
	nft   = "0:aa"
	nft2  = "0:ab"
)

type clock struct {
	now int64
}

func (c *clock) Now() time.Time {
	return time.Unix(c.now, 0)
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	engine   *Engine
	clock    *clock
	registry *royalty.StaticRegistry
}

func newHarness(t *testing.T, configure ...func(*storage.ContractConfig)) *harness {
	defaults := storage.ContractConfig{
		DAOAddress:          dao,
		SupportedCurrencies: []string{token},
	}
	for _, fn := range configure {
		fn(&defaults)
	}

	c := &clock{now: 0}
	registry := royalty.NewStaticRegistry()
	engine, err := New(context.Background(), storage.NewMemoryStorage(), registry, defaults, WithClock(c.Now))
	require.NoError(t, err)

	return &harness{
		t:        t,
		ctx:      context.Background(),
		engine:   engine,
		clock:    c,
		registry: registry,
	}
}

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func baseConfig() Config {
	return Config{
		StartTime:      100,
		EndTime:        500,
		MaxTicketCount: 1000,
		MinTicketCount: 10,
		TicketPrice:    d(3),
		TotalSlots:     10,
		Name:           "genesis",
	}
}

func (h *harness) create(config Config) uint64 {
	id, err := h.engine.CreateRaffle(h.ctx, owner, config)
	require.NoError(h.t, err)
	return id
}

func (h *harness) fund(address string, amount int64) {
	require.NoError(h.t, h.engine.Fund(h.ctx, dao, ledger.Native, address, d(amount)))
}

func (h *harness) buy(buyer string, id uint64, count uint64) uint64 {
	first, err := h.engine.BuyRaffleTickets(h.ctx, buyer, id, count, d(3).Mul(d(int64(count))))
	require.NoError(h.t, err)
	return first
}

func (h *harness) mintNFTs(to string, contract string, ids ...int) []vault.Item {
	items := make([]vault.Item, 0, len(ids))
	for _, id := range ids {
		tokenID := fmt.Sprint(id)
		require.NoError(h.t, h.engine.MintNFT(h.ctx, dao, contract, tokenID, to))
		items = append(items, vault.Item{Contract: contract, TokenID: tokenID})
	}
	return items
}

func (h *harness) balance(currency string, address string) decimal.Decimal {
	balance, err := h.engine.BalanceOf(currency, address)
	require.NoError(h.t, err)
	return balance
}

func requireKind(t *testing.T, err error, kind error) {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, kind), "expected %v, got %v", kind, err)
}

func requireAmount(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	require.True(t, got.Equal(d(want)), "got %s want %d", got, want)
}

func TestNewRequiresDAO(t *testing.T) {
	_, err := New(context.Background(), storage.NewMemoryStorage(), nil, storage.ContractConfig{})
	requireKind(t, err, ErrValidation)
}

func TestNewKeepsPersistedConfig(t *testing.T) {
	s := storage.NewMemoryStorage()
	_, err := New(context.Background(), s, nil, storage.ContractConfig{DAOAddress: dao, PlatformFeeBps: 100})
	require.NoError(t, err)

	engine, err := New(context.Background(), s, nil, storage.ContractConfig{DAOAddress: alice, PlatformFeeBps: 900})
	require.NoError(t, err)

	config, err := engine.GetContractConfig()
	require.NoError(t, err)
	require.Equal(t, dao, config.DAOAddress)
	require.Equal(t, uint32(100), config.PlatformFeeBps)
	require.Equal(t, DefaultMaxNumberSlots, config.MaxNumberSlots)
	require.Equal(t, DefaultMaxBulkPurchase, config.MaxBulkPurchase)
	require.Equal(t, DefaultNFTSlotLimit, config.NFTSlotLimit)
}

func TestCreateRaffleValidation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		mutate func(*Config)
		kind   error
	}{
		{name: "empty window", mutate: func(c *Config) { c.EndTime = c.StartTime }, kind: ErrInvalidWindow},
		{name: "no slots", mutate: func(c *Config) { c.TotalSlots = 0 }, kind: ErrInvalidSlots},
		{name: "too many slots", mutate: func(c *Config) { c.TotalSlots = 2001 }, kind: ErrInvalidSlots},
		{name: "no tickets", mutate: func(c *Config) { c.MaxTicketCount = 0 }, kind: ErrInvalidTicketCount},
		{name: "sequence space", mutate: func(c *Config) { c.MaxTicketCount = 10_000_000 }, kind: ErrInvalidTicketCount},
		{name: "min above max", mutate: func(c *Config) { c.MinTicketCount = 1001 }, kind: ErrInvalidTicketCount},
		{name: "zero price", mutate: func(c *Config) { c.TicketPrice = decimal.Zero }, kind: ErrInvalidPrice},
		{name: "fractional price", mutate: func(c *Config) { c.TicketPrice = decimal.RequireFromString("1.5") }, kind: ErrInvalidPrice},
		{name: "unknown token", mutate: func(c *Config) { c.Currency = "0:99" }, kind: ErrUnsupportedCurrency},
		{name: "splits above 100%", mutate: func(c *Config) {
			c.PaymentSplits = []storage.PaymentSplit{{Recipient: alice, Bps: 6000}, {Recipient: bob, Bps: 4001}}
		}, kind: ErrValidation},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			config := baseConfig()
			test.mutate(&config)
			_, err := h.engine.CreateRaffle(h.ctx, owner, config)
			requireKind(t, err, test.kind)
		})
	}

	_, err := h.engine.CreateRaffle(h.ctx, "", baseConfig())
	requireKind(t, err, ErrUnauthorized)

	require.Equal(t, uint64(1), h.create(baseConfig()))
	tokenConfig := baseConfig()
	tokenConfig.Currency = token
	tokenConfig.PaymentSplits = []storage.PaymentSplit{{Recipient: alice, Bps: 2500}}
	require.Equal(t, uint64(2), h.create(tokenConfig))

	config, err := h.engine.GetRaffleConfig(2)
	require.NoError(t, err)
	require.Equal(t, owner, config.Owner)
	require.Equal(t, token, config.Currency)
	require.Equal(t, tokenConfig.PaymentSplits, config.PaymentSplits)

	native, err := h.engine.GetRaffleConfig(1)
	require.NoError(t, err)
	require.Equal(t, ledger.Native, native.Currency)

	contract, err := h.engine.GetContractConfig()
	require.NoError(t, err)
	require.Equal(t, uint64(2), contract.RaffleCount)

	_, err = h.engine.GetRaffleConfig(3)
	require.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestReconfigureRaffle(t *testing.T) {
	h := newHarness(t)
	id := h.create(baseConfig())

	updated := baseConfig()
	updated.TicketPrice = d(5)
	updated.Name = "renamed"

	requireKind(t, h.engine.ReconfigureRaffle(h.ctx, alice, id, updated), ErrUnauthorized)
	require.NoError(t, h.engine.ReconfigureRaffle(h.ctx, owner, id, updated))

	config, err := h.engine.GetRaffleConfig(id)
	require.NoError(t, err)
	require.Equal(t, "renamed", config.Name)
	require.True(t, config.TicketPrice.Equal(d(5)))

	items := h.mintNFTs(alice, nft, 1)
	require.NoError(t, h.engine.DepositERC721(h.ctx, alice, id, 8, items))
	shrunk := baseConfig()
	shrunk.TotalSlots = 5
	requireKind(t, h.engine.ReconfigureRaffle(h.ctx, owner, id, shrunk), ErrDepositsOutsideSlots)

	h.clock.now = 100
	requireKind(t, h.engine.ReconfigureRaffle(h.ctx, owner, id, updated), ErrSaleStarted)
}

func TestCancelRaffle(t *testing.T) {
	h := newHarness(t)
	id := h.create(baseConfig())

	requireKind(t, h.engine.CancelRaffle(h.ctx, alice, id), ErrUnauthorized)
	require.NoError(t, h.engine.CancelRaffle(h.ctx, owner, id))
	requireKind(t, h.engine.CancelRaffle(h.ctx, owner, id), ErrDoubleAction)

	state, err := h.engine.GetRaffleState(id)
	require.NoError(t, err)
	require.Equal(t, StateCanceled, state.State)

	h.clock.now = 200
	h.fund(alice, 3)
	_, err = h.engine.BuyRaffleTickets(h.ctx, alice, id, 1, d(3))
	requireKind(t, err, ErrRaffleCanceled)
}

func TestStates(t *testing.T) {
	h := newHarness(t)
	id := h.create(baseConfig())

	expect := func(want State) {
		t.Helper()
		state, err := h.engine.GetRaffleState(id)
		require.NoError(t, err)
		require.Equal(t, want, state.State)
	}

	expect(StateCreated)
	h.clock.now = 100
	expect(StateOpen)
	h.clock.now = 500
	expect(StateSaleClosed)

	_, err := h.engine.FinalizeRaffle(h.ctx, alice, id, nil)
	require.NoError(t, err)
	expect(StateFinalizedFailed)
}

func TestContractConfigOperations(t *testing.T) {
	h := newHarness(t)

	requireKind(t, h.engine.SetRaffleConfigValue(h.ctx, alice, ConfigMaxBulkPurchase, 2), ErrUnauthorized)
	requireKind(t, h.engine.SetRaffleConfigValue(h.ctx, dao, 4, 2), ErrInvalidConfigIndex)
	requireKind(t, h.engine.SetRaffleConfigValue(h.ctx, dao, ConfigPlatformFeeBps, 10_001), ErrInvalidConfigValue)
	requireKind(t, h.engine.SetRaffleConfigValue(h.ctx, dao, ConfigNFTSlotLimit, 0), ErrInvalidConfigValue)

	require.NoError(t, h.engine.SetRaffleConfigValue(h.ctx, dao, ConfigMaxNumberSlots, 20))
	require.NoError(t, h.engine.SetRaffleConfigValue(h.ctx, dao, ConfigMaxBulkPurchase, 2))
	require.NoError(t, h.engine.SetRaffleConfigValue(h.ctx, dao, ConfigNFTSlotLimit, 1))
	require.NoError(t, h.engine.SetRaffleConfigValue(h.ctx, dao, ConfigPlatformFeeBps, 250))

	config, err := h.engine.GetContractConfig()
	require.NoError(t, err)
	require.Equal(t, uint32(20), config.MaxNumberSlots)
	require.Equal(t, uint32(2), config.MaxBulkPurchase)
	require.Equal(t, uint32(1), config.NFTSlotLimit)
	require.Equal(t, uint32(250), config.PlatformFeeBps)
	require.False(t, config.DAOInitialized)

	tooWide := baseConfig()
	tooWide.TotalSlots = 21
	_, err = h.engine.CreateRaffle(h.ctx, owner, tooWide)
	requireKind(t, err, ErrInvalidSlots)

	id := h.create(baseConfig())
	h.clock.now = 100
	h.fund(alice, 9)
	_, err = h.engine.BuyRaffleTickets(h.ctx, alice, id, 3, d(9))
	requireKind(t, err, ErrBulkLimit)

	items := h.mintNFTs(alice, nft, 1, 2)
	requireKind(t, h.engine.DepositERC721(h.ctx, alice, id, 1, items), ErrValidation)

	requireKind(t, h.engine.TransferDAOOwnership(h.ctx, alice, bob), ErrUnauthorized)
	require.NoError(t, h.engine.TransferDAOOwnership(h.ctx, dao, bob))
	config, err = h.engine.GetContractConfig()
	require.NoError(t, err)
	require.Equal(t, bob, config.DAOAddress)
	require.True(t, config.DAOInitialized)
	requireKind(t, h.engine.SetRaffleConfigValue(h.ctx, dao, ConfigMaxBulkPurchase, 5), ErrUnauthorized)

	require.NoError(t, h.engine.SetSupportedCurrency(h.ctx, bob, "0:88", true))
	require.NoError(t, h.engine.SetSupportedCurrency(h.ctx, bob, token, false))
	requireKind(t, h.engine.SetSupportedCurrency(h.ctx, bob, ledger.Native, true), ErrUnsupportedCurrency)
	config, err = h.engine.GetContractConfig()
	require.NoError(t, err)
	require.Equal(t, []string{"0:88"}, config.SupportedCurrencies)
}
