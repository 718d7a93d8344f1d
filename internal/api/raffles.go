package api

import (
	"net/http"

	"raffled/internal/raffle"
	"raffled/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type splitRequest struct {
	Recipient string `json:"recipient" binding:"required"`
	Bps       uint32 `json:"bps" binding:"required"`
}

type raffleRequest struct {
	Currency       string          `json:"currency"`
	StartTime      int64           `json:"start_time" binding:"required"`
	EndTime        int64           `json:"end_time" binding:"required"`
	MaxTicketCount uint64          `json:"max_ticket_count" binding:"required"`
	MinTicketCount uint64          `json:"min_ticket_count"`
	TicketPrice    decimal.Decimal `json:"ticket_price"`
	TotalSlots     uint32          `json:"total_slots" binding:"required"`
	Name           string          `json:"name"`
	PaymentSplits  []splitRequest  `json:"payment_splits" binding:"omitempty,dive"`
}

func (r *raffleRequest) config(c *gin.Context) (raffle.Config, bool) {
	currency, ok := parseCurrency(c, r.Currency)
	if !ok {
		return raffle.Config{}, false
	}

	splits := make([]storage.PaymentSplit, 0, len(r.PaymentSplits))
	for _, split := range r.PaymentSplits {
		recipient, ok := parseAddress(c, split.Recipient)
		if !ok {
			return raffle.Config{}, false
		}
		splits = append(splits, storage.PaymentSplit{Recipient: recipient, Bps: split.Bps})
	}

	return raffle.Config{
		Currency:       currency,
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		MaxTicketCount: r.MaxTicketCount,
		MinTicketCount: r.MinTicketCount,
		TicketPrice:    r.TicketPrice,
		TotalSlots:     r.TotalSlots,
		Name:           r.Name,
		PaymentSplits:  splits,
	}, true
}

func (h *Handler) CreateRaffle(c *gin.Context) {
	var request raffleRequest
	if !bind(c, &request) {
		return
	}
	config, ok := request.config(c)
	if !ok {
		return
	}

	id, err := h.engine.CreateRaffle(c.Request.Context(), caller(c), config)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) ReconfigureRaffle(c *gin.Context) {
	id, ok := raffleID(c)
	if !ok {
		return
	}
	var request raffleRequest
	if !bind(c, &request) {
		return
	}
	config, ok := request.config(c)
	if !ok {
		return
	}

	if err := h.engine.ReconfigureRaffle(c.Request.Context(), caller(c), id, config); err != nil {
		fail(c, err)
		return
	}
	respondOK(c)
}

func (h *Handler) CancelRaffle(c *gin.Context) {
	id, ok := raffleID(c)
	if !ok {
		return
	}
	if err := h.engine.CancelRaffle(c.Request.Context(), caller(c), id); err != nil {
		fail(c, err)
		return
	}
	respondOK(c)
}

type allowListRequest struct {
	Entries []raffle.AllowListEntry `json:"entries" binding:"required,min=1,dive"`
}

func (h *Handler) SetAllowList(c *gin.Context) {
	id, ok := raffleID(c)
	if !ok {
		return
	}
	var request allowListRequest
	if !bind(c, &request) {
		return
	}
	for i := range request.Entries {
		if request.Entries[i].Address, ok = parseAddress(c, request.Entries[i].Address); !ok {
			return
		}
	}

	if err := h.engine.SetAllowList(c.Request.Context(), caller(c), id, request.Entries); err != nil {
		fail(c, err)
		return
	}
	respondOK(c)
}

func (h *Handler) ToggleAllowList(c *gin.Context) {
	id, ok := raffleID(c)
	if !ok {
		return
	}
	enabled, err := h.engine.ToggleAllowList(c.Request.Context(), caller(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"allow_list_enabled": enabled})
}

func (h *Handler) GetAllowList(c *gin.Context) {
	id, ok := raffleID(c)
	if !ok {
		return
	}
	account, ok := parseAddress(c, c.Param("address"))
	if !ok {
		return
	}
	allowance, err := h.engine.GetAllowList(id, account)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, raffle.AllowListEntry{Address: account, Allowance: allowance})
}

func (h *Handler) GetRaffleState(c *gin.Context) {
	id, ok := raffleID(c)
	if !ok {
		return
	}
	state, err := h.engine.GetRaffleState(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *Handler) GetRaffleConfig(c *gin.Context) {
	id, ok := raffleID(c)
	if !ok {
		return
	}
	config, err := h.engine.GetRaffleConfig(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, config)
}
