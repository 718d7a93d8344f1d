package api

import (
	"net/http"
	"strconv"

	"raffled/internal/api/response"
	"raffled/internal/selector"

	"github.com/gin-gonic/gin"
)

type seedRequest struct {
	Seed string `json:"seed" binding:"required"`
}

type finalizeRequest struct {
	Seed string `json:"seed"`
}

func (h *Handler) RequestRandomness(c *gin.Context) {
	id, ok := raffleID(c)
	if !ok {
		return
	}
	requestID, err := h.engine.RequestRandomness(c.Request.Context(), caller(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"request_id": requestID})
}

func (h *Handler) GetRandomnessRequest(c *gin.Context) {
	id, ok := raffleID(c)
	if !ok {
		return
	}
	request, err := h.engine.GetRandomnessRequest(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}

func (h *Handler) FulfillRandomness(c *gin.Context) {
	var request seedRequest
	if !bind(c, &request) {
		return
	}
	seed, err := selector.ParseSeed(request.Seed)
	if err != nil {
		badRequest(c, err)
		return
	}

	if err := h.engine.FulfillRandomness(c.Request.Context(), caller(c), c.Param("requestId"), seed); err != nil {
		fail(c, err)
		return
	}
	respondOK(c)
}

// FinalizeRaffle accepts an empty body; a seed is only honored when unsafe
// randomness is enabled.
func (h *Handler) FinalizeRaffle(c *gin.Context) {
	id, ok := raffleID(c)
	if !ok {
		return
	}

	var seed *selector.Seed
	if c.Request.ContentLength != 0 {
		var request finalizeRequest
		if !bind(c, &request) {
			return
		}
		if request.Seed != "" {
			parsed, err := selector.ParseSeed(request.Seed)
			if err != nil {
				badRequest(c, err)
				return
			}
			seed = &parsed
		}
	}

	finalization, err := h.engine.FinalizeRaffle(c.Request.Context(), caller(c), id, seed)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, finalization)
}

func (h *Handler) DistributeRevenue(c *gin.Context) {
	id, ok := raffleID(c)
	if !ok {
		return
	}
	breakdown, err := h.engine.DistributeCapturedRaffleRevenue(c.Request.Context(), caller(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, breakdown)
}

func (h *Handler) DistributeRoyalties(c *gin.Context) {
	currency, ok := parseCurrency(c, c.Param("currency"))
	if !ok {
		return
	}
	paid, err := h.engine.DistributeRoyalties(c.Request.Context(), caller(c), currency)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"currency": currency, "paid": paid})
}

func (h *Handler) DistributeSecondarySaleFees(c *gin.Context) {
	id, slot, ok := raffleSlot(c)
	if !ok {
		return
	}
	var request countRequest
	if !bind(c, &request) {
		return
	}

	paid, err := h.engine.DistributeSecondarySaleFees(c.Request.Context(), caller(c), id, slot, request.Count)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"paid": paid})
}

func (h *Handler) PendingSettlement(c *gin.Context) {
	limit := 0
	if value := c.Query("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, response.Error("invalid limit", http.StatusBadRequest))
			return
		}
		limit = parsed
	}

	raffles, err := h.engine.PendingSettlement(limit)
	if err != nil {
		fail(c, err)
		return
	}
	ids := make([]uint64, 0, len(raffles))
	for _, raffle := range raffles {
		ids = append(ids, raffle.ID)
	}
	c.JSON(http.StatusOK, gin.H{"raffles": ids})
}
