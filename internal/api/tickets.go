package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type buyRequest struct {
	Count uint64          `json:"count" binding:"required"`
	Value decimal.Decimal `json:"value"`
}

func (h *Handler) BuyTickets(c *gin.Context) {
	id, ok := raffleID(c)
	if !ok {
		return
	}
	var request buyRequest
	if !bind(c, &request) {
		return
	}

	first, err := h.engine.BuyRaffleTickets(c.Request.Context(), caller(c), id, request.Count, request.Value)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"first_ticket_id": first, "count": request.Count})
}

type refundRequest struct {
	TicketIDs []uint64 `json:"ticket_ids" binding:"required,min=1"`
}

func (h *Handler) RefundTickets(c *gin.Context) {
	id, ok := raffleID(c)
	if !ok {
		return
	}
	var request refundRequest
	if !bind(c, &request) {
		return
	}

	refund, err := h.engine.RefundRaffleTickets(c.Request.Context(), caller(c), id, request.TicketIDs)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refunded": refund})
}

func (h *Handler) TicketOwner(c *gin.Context) {
	ticketID, ok := uintParam(c, "ticketId", 64)
	if !ok {
		return
	}
	owner, err := h.engine.TicketOwnerOf(ticketID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket_id": ticketID, "owner": owner})
}

func (h *Handler) TicketBalance(c *gin.Context) {
	id, ok := raffleID(c)
	if !ok {
		return
	}
	owner, ok := parseAddress(c, c.Param("address"))
	if !ok {
		return
	}
	balance, err := h.engine.TicketBalanceOf(id, owner)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"owner": owner, "balance": balance})
}
