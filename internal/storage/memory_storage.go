package storage

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
)

type slotKey struct {
	raffleID  uint64
	slotIndex uint32
}

type allowKey struct {
	raffleID uint64
	address  string
}

type balanceKey struct {
	currency string
	address  string
}

type allowanceKey struct {
	currency string
	owner    string
	spender  string
}

type nftKey struct {
	contract string
	tokenID  string
}

type memoryState struct {
	config     *ContractConfig
	raffles    map[uint64]Raffle
	slots      map[slotKey]Slot
	deposits   map[uint64]Deposit
	tickets    map[uint64]Ticket
	purchases  map[uint64]Purchase
	allowList  map[allowKey]AllowListEntry
	requests   map[uint64]RandomnessRequest
	balances   map[balanceKey]decimal.Decimal
	allowances map[allowanceKey]decimal.Decimal
	nftOwners  map[nftKey]string
	fees       map[string]decimal.Decimal

	nextDepositID  uint64
	nextPurchaseID uint64
}

func newMemoryState() *memoryState {
	return &memoryState{
		raffles:    make(map[uint64]Raffle),
		slots:      make(map[slotKey]Slot),
		deposits:   make(map[uint64]Deposit),
		tickets:    make(map[uint64]Ticket),
		purchases:  make(map[uint64]Purchase),
		allowList:  make(map[allowKey]AllowListEntry),
		requests:   make(map[uint64]RandomnessRequest),
		balances:   make(map[balanceKey]decimal.Decimal),
		allowances: make(map[allowanceKey]decimal.Decimal),
		nftOwners:  make(map[nftKey]string),
		fees:       make(map[string]decimal.Decimal),
	}
}

func (m *memoryState) clone() *memoryState {
	c := newMemoryState()
	if m.config != nil {
		c.config = copyConfig(m.config)
	}
	for k, v := range m.raffles {
		c.raffles[k] = copyRaffle(v)
	}
	for k, v := range m.slots {
		c.slots[k] = v
	}
	for k, v := range m.deposits {
		c.deposits[k] = v
	}
	for k, v := range m.tickets {
		c.tickets[k] = v
	}
	for k, v := range m.purchases {
		c.purchases[k] = v
	}
	for k, v := range m.allowList {
		c.allowList[k] = v
	}
	for k, v := range m.requests {
		c.requests[k] = v
	}
	for k, v := range m.balances {
		c.balances[k] = v
	}
	for k, v := range m.allowances {
		c.allowances[k] = v
	}
	for k, v := range m.nftOwners {
		c.nftOwners[k] = v
	}
	for k, v := range m.fees {
		c.fees[k] = v
	}
	c.nextDepositID = m.nextDepositID
	c.nextPurchaseID = m.nextPurchaseID
	return c
}

func copyConfig(config *ContractConfig) *ContractConfig {
	c := *config
	c.SupportedCurrencies = append([]string(nil), config.SupportedCurrencies...)
	return &c
}

func copyRaffle(raffle Raffle) Raffle {
	raffle.PaymentSplits = append([]PaymentSplit(nil), raffle.PaymentSplits...)
	return raffle
}

// MemoryStorage keeps every record in process memory. It is not safe for
// concurrent use; callers serialize access.
type MemoryStorage struct {
	state *memoryState
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		state: newMemoryState(),
	}
}

func (s *MemoryStorage) Atomic(ctx context.Context, fn func(Storage) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.state.clone()
	if err := fn(s); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

func (s *MemoryStorage) GetContractConfig() (*ContractConfig, error) {
	if s.state.config == nil {
		return nil, ErrNotFound
	}
	return copyConfig(s.state.config), nil
}

func (s *MemoryStorage) UpdateContractConfig(config *ContractConfig) error {
	config.ID = 1
	s.state.config = copyConfig(config)
	return nil
}

func (s *MemoryStorage) GetRaffle(id uint64) (*Raffle, error) {
	raffle, ok := s.state.raffles[id]
	if !ok {
		return nil, ErrNotFound
	}
	raffle = copyRaffle(raffle)
	return &raffle, nil
}

func (s *MemoryStorage) GetRafflesPendingSettlement(now int64, limit int) ([]*Raffle, error) {
	var raffles []*Raffle
	for _, raffle := range s.state.raffles {
		if !settlementPending(&raffle, now) {
			continue
		}
		r := copyRaffle(raffle)
		raffles = append(raffles, &r)
	}
	sort.Slice(raffles, func(i, j int) bool {
		return raffles[i].ID < raffles[j].ID
	})
	if limit > 0 && len(raffles) > limit {
		raffles = raffles[:limit]
	}
	return raffles, nil
}

func (s *MemoryStorage) UpdateRaffle(raffle *Raffle) error {
	s.state.raffles[raffle.ID] = copyRaffle(*raffle)
	return nil
}

func (s *MemoryStorage) GetSlot(raffleID uint64, slotIndex uint32) (*Slot, error) {
	slot, ok := s.state.slots[slotKey{raffleID, slotIndex}]
	if !ok {
		return &Slot{RaffleID: raffleID, SlotIndex: slotIndex}, nil
	}
	return &slot, nil
}

func (s *MemoryStorage) GetSlotsWithDeposits(raffleID uint64) ([]*Slot, error) {
	var slots []*Slot
	for key, slot := range s.state.slots {
		if key.raffleID != raffleID || slot.DepositCount == 0 {
			continue
		}
		slot := slot
		slots = append(slots, &slot)
	}
	sort.Slice(slots, func(i, j int) bool {
		return slots[i].SlotIndex < slots[j].SlotIndex
	})
	return slots, nil
}

func (s *MemoryStorage) UpdateSlot(slot *Slot) error {
	s.state.slots[slotKey{slot.RaffleID, slot.SlotIndex}] = *slot
	return nil
}

func (s *MemoryStorage) GetDeposits(raffleID uint64, slotIndex uint32) ([]*Deposit, error) {
	var deposits []*Deposit
	for _, deposit := range s.state.deposits {
		if deposit.RaffleID != raffleID || deposit.SlotIndex != slotIndex {
			continue
		}
		deposit := deposit
		deposits = append(deposits, &deposit)
	}
	sort.Slice(deposits, func(i, j int) bool {
		return deposits[i].Position < deposits[j].Position
	})
	return deposits, nil
}

func (s *MemoryStorage) CreateDeposits(deposits []*Deposit) error {
	for _, deposit := range deposits {
		s.state.nextDepositID++
		deposit.ID = s.state.nextDepositID
		s.state.deposits[deposit.ID] = *deposit
	}
	return nil
}

func (s *MemoryStorage) UpdateDeposits(deposits []*Deposit) error {
	for _, deposit := range deposits {
		s.state.deposits[deposit.ID] = *deposit
	}
	return nil
}

func (s *MemoryStorage) GetTicket(id uint64) (*Ticket, error) {
	ticket, ok := s.state.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &ticket, nil
}

func (s *MemoryStorage) CountTicketsByOwner(raffleID uint64, owner string) (uint64, error) {
	var count uint64
	for _, ticket := range s.state.tickets {
		if ticket.RaffleID == raffleID && ticket.Owner == owner && !ticket.Burned {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStorage) CreateTickets(tickets []*Ticket) error {
	for _, ticket := range tickets {
		s.state.tickets[ticket.ID] = *ticket
	}
	return nil
}

func (s *MemoryStorage) UpdateTickets(tickets []*Ticket) error {
	return s.CreateTickets(tickets)
}

func (s *MemoryStorage) GetPurchases(raffleID uint64) ([]*Purchase, error) {
	var purchases []*Purchase
	for _, purchase := range s.state.purchases {
		if purchase.RaffleID != raffleID {
			continue
		}
		purchase := purchase
		purchases = append(purchases, &purchase)
	}
	sort.Slice(purchases, func(i, j int) bool {
		return purchases[i].FirstSequence < purchases[j].FirstSequence
	})
	return purchases, nil
}

func (s *MemoryStorage) CreatePurchase(purchase *Purchase) error {
	s.state.nextPurchaseID++
	purchase.ID = s.state.nextPurchaseID
	s.state.purchases[purchase.ID] = *purchase
	return nil
}

func (s *MemoryStorage) GetAllowListEntry(raffleID uint64, address string) (*AllowListEntry, error) {
	entry, ok := s.state.allowList[allowKey{raffleID, address}]
	if !ok {
		return &AllowListEntry{RaffleID: raffleID, Address: address}, nil
	}
	return &entry, nil
}

func (s *MemoryStorage) UpdateAllowListEntries(entries []*AllowListEntry) error {
	for _, entry := range entries {
		s.state.allowList[allowKey{entry.RaffleID, entry.Address}] = *entry
	}
	return nil
}

func (s *MemoryStorage) GetRandomnessRequest(raffleID uint64) (*RandomnessRequest, error) {
	request, ok := s.state.requests[raffleID]
	if !ok {
		return nil, ErrNotFound
	}
	return &request, nil
}

func (s *MemoryStorage) GetRandomnessRequestByID(requestID string) (*RandomnessRequest, error) {
	for _, request := range s.state.requests {
		if request.RequestID == requestID {
			return &request, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStorage) UpdateRandomnessRequest(request *RandomnessRequest) error {
	s.state.requests[request.RaffleID] = *request
	return nil
}

func (s *MemoryStorage) GetBalance(currency string, address string) (decimal.Decimal, error) {
	amount, ok := s.state.balances[balanceKey{currency, address}]
	if !ok {
		return decimal.Zero, nil
	}
	return amount, nil
}

func (s *MemoryStorage) UpdateBalance(balance *Balance) error {
	s.state.balances[balanceKey{balance.Currency, balance.Address}] = balance.Amount
	return nil
}

func (s *MemoryStorage) GetTokenAllowance(currency string, owner string, spender string) (decimal.Decimal, error) {
	amount, ok := s.state.allowances[allowanceKey{currency, owner, spender}]
	if !ok {
		return decimal.Zero, nil
	}
	return amount, nil
}

func (s *MemoryStorage) UpdateTokenAllowance(allowance *TokenAllowance) error {
	s.state.allowances[allowanceKey{allowance.Currency, allowance.Owner, allowance.Spender}] = allowance.Amount
	return nil
}

func (s *MemoryStorage) GetNFTOwner(contract string, tokenID string) (string, error) {
	owner, ok := s.state.nftOwners[nftKey{contract, tokenID}]
	if !ok {
		return "", ErrNotFound
	}
	return owner, nil
}

func (s *MemoryStorage) UpdateNFTOwner(owner *NFTOwner) error {
	s.state.nftOwners[nftKey{owner.Contract, owner.TokenID}] = owner.Owner
	return nil
}

func (s *MemoryStorage) GetFeeAccrual(currency string) (decimal.Decimal, error) {
	amount, ok := s.state.fees[currency]
	if !ok {
		return decimal.Zero, nil
	}
	return amount, nil
}

func (s *MemoryStorage) UpdateFeeAccrual(accrual *FeeAccrual) error {
	s.state.fees[accrual.Currency] = accrual.Amount
	return nil
}
