package api

import (
	"net/http"

	"raffled/internal/raffle"

	"github.com/gin-gonic/gin"
)

type depositRequest struct {
	Slots []raffle.SlotDeposit `json:"slots" binding:"required,min=1,dive"`
}

type batchDepositRequest struct {
	Raffles []raffle.RaffleDeposit `json:"raffles" binding:"required,min=1,dive"`
}

type countRequest struct {
	Count uint32 `json:"count" binding:"required"`
}

// normalizeSlots rewrites every collection address to its raw form.
func normalizeSlots(c *gin.Context, slots []raffle.SlotDeposit) bool {
	for i := range slots {
		for j := range slots[i].Items {
			contract, ok := parseAddress(c, slots[i].Items[j].Contract)
			if !ok {
				return false
			}
			slots[i].Items[j].Contract = contract
		}
	}
	return true
}

func (h *Handler) DepositNFTs(c *gin.Context) {
	id, ok := raffleID(c)
	if !ok {
		return
	}
	var request depositRequest
	if !bind(c, &request) {
		return
	}
	if !normalizeSlots(c, request.Slots) {
		return
	}

	if err := h.engine.DepositNFTsToRaffle(c.Request.Context(), caller(c), id, request.Slots); err != nil {
		fail(c, err)
		return
	}
	respondOK(c)
}

func (h *Handler) BatchDeposit(c *gin.Context) {
	var request batchDepositRequest
	if !bind(c, &request) {
		return
	}
	for _, deposit := range request.Raffles {
		if !normalizeSlots(c, deposit.Slots) {
			return
		}
	}

	if err := h.engine.BatchDepositToRaffle(c.Request.Context(), caller(c), request.Raffles); err != nil {
		fail(c, err)
		return
	}
	respondOK(c)
}

func (h *Handler) WithdrawNFTs(c *gin.Context) {
	id, slot, ok := raffleSlot(c)
	if !ok {
		return
	}
	var request countRequest
	if !bind(c, &request) {
		return
	}

	withdrawn, err := h.engine.WithdrawDepositedERC721(c.Request.Context(), caller(c), id, slot, request.Count)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawn": withdrawn})
}

func (h *Handler) ClaimNFTs(c *gin.Context) {
	id, slot, ok := raffleSlot(c)
	if !ok {
		return
	}
	var request countRequest
	if !bind(c, &request) {
		return
	}

	if err := h.engine.ClaimERC721Rewards(c.Request.Context(), caller(c), id, slot, request.Count); err != nil {
		fail(c, err)
		return
	}
	respondOK(c)
}

func (h *Handler) GetSlotInfo(c *gin.Context) {
	id, slot, ok := raffleSlot(c)
	if !ok {
		return
	}
	info, err := h.engine.GetSlotInfo(id, slot)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handler) GetSlotWinner(c *gin.Context) {
	id, slot, ok := raffleSlot(c)
	if !ok {
		return
	}
	winner, err := h.engine.GetSlotWinner(id, slot)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"raffle_id": id, "slot": slot, "winner": winner})
}

func (h *Handler) GetDepositedNFTs(c *gin.Context) {
	id, slot, ok := raffleSlot(c)
	if !ok {
		return
	}
	nfts, err := h.engine.GetDepositedNftsInSlot(id, slot)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, nfts)
}
