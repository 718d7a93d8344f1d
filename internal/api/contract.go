package api

import (
	"net/http"

	"raffled/internal/blockchain"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type contractConfigResponse struct {
	DAOAddress          string   `json:"dao_address"`
	RaffleCount         uint64   `json:"raffle_count"`
	MaxNumberSlots      uint32   `json:"max_number_slots"`
	MaxBulkPurchase     uint32   `json:"max_bulk_purchase"`
	NFTSlotLimit        uint32   `json:"nft_slot_limit"`
	PlatformFeeBps      uint32   `json:"platform_fee_bps"`
	UnsafeRandomness    bool     `json:"unsafe_randomness"`
	SupportedCurrencies []string `json:"supported_currencies"`
	Custody             string   `json:"custody"`
}

func (h *Handler) GetContractConfig(c *gin.Context) {
	config, err := h.engine.GetContractConfig()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, contractConfigResponse{
		DAOAddress:          config.DAOAddress,
		RaffleCount:         config.RaffleCount,
		MaxNumberSlots:      config.MaxNumberSlots,
		MaxBulkPurchase:     config.MaxBulkPurchase,
		NFTSlotLimit:        config.NFTSlotLimit,
		PlatformFeeBps:      config.PlatformFeeBps,
		UnsafeRandomness:    config.UnsafeRandomness,
		SupportedCurrencies: config.SupportedCurrencies,
		Custody:             h.engine.Custody(),
	})
}

type configValueRequest struct {
	Value *uint32 `json:"value" binding:"required"`
}

func (h *Handler) SetConfigValue(c *gin.Context) {
	index, ok := uintParam(c, "index", 8)
	if !ok {
		return
	}
	var request configValueRequest
	if !bind(c, &request) {
		return
	}

	if err := h.engine.SetRaffleConfigValue(c.Request.Context(), caller(c), uint8(index), *request.Value); err != nil {
		fail(c, err)
		return
	}
	respondOK(c)
}

type addressRequest struct {
	Address string `json:"address" binding:"required"`
}

func (h *Handler) TransferDAOOwnership(c *gin.Context) {
	var request addressRequest
	if !bind(c, &request) {
		return
	}
	owner, ok := parseAddress(c, request.Address)
	if !ok {
		return
	}

	if err := h.engine.TransferDAOOwnership(c.Request.Context(), caller(c), owner); err != nil {
		fail(c, err)
		return
	}
	respondOK(c)
}

type toggleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (h *Handler) SetSupportedCurrency(c *gin.Context) {
	currency, ok := parseAddress(c, c.Param("currency"))
	if !ok {
		return
	}
	var request toggleRequest
	if !bind(c, &request) {
		return
	}

	if err := h.engine.SetSupportedCurrency(c.Request.Context(), caller(c), currency, *request.Enabled); err != nil {
		fail(c, err)
		return
	}
	respondOK(c)
}

func (h *Handler) SetUnsafeRandomness(c *gin.Context) {
	var request toggleRequest
	if !bind(c, &request) {
		return
	}
	if err := h.engine.SetUnsafeRandomness(c.Request.Context(), caller(c), *request.Enabled); err != nil {
		fail(c, err)
		return
	}
	respondOK(c)
}

type mintRequest struct {
	Currency string          `json:"currency"`
	To       string          `json:"to" binding:"required"`
	Amount   decimal.Decimal `json:"amount"`
}

func (h *Handler) Mint(c *gin.Context) {
	var request mintRequest
	if !bind(c, &request) {
		return
	}
	currency, ok := parseCurrency(c, request.Currency)
	if !ok {
		return
	}
	to, ok := parseAddress(c, request.To)
	if !ok {
		return
	}

	if err := h.engine.Fund(c.Request.Context(), caller(c), currency, to, request.Amount); err != nil {
		fail(c, err)
		return
	}
	respondOK(c)
}

type mintNFTRequest struct {
	Contract string `json:"contract" binding:"required"`
	TokenID  string `json:"token_id" binding:"required"`
	To       string `json:"to" binding:"required"`
}

func (h *Handler) MintNFT(c *gin.Context) {
	var request mintNFTRequest
	if !bind(c, &request) {
		return
	}
	contract, ok := parseAddress(c, request.Contract)
	if !ok {
		return
	}
	to, ok := parseAddress(c, request.To)
	if !ok {
		return
	}

	if err := h.engine.MintNFT(c.Request.Context(), caller(c), contract, request.TokenID, to); err != nil {
		fail(c, err)
		return
	}
	respondOK(c)
}

type approveRequest struct {
	Currency string          `json:"currency" binding:"required"`
	Amount   decimal.Decimal `json:"amount"`
}

func (h *Handler) Approve(c *gin.Context) {
	var request approveRequest
	if !bind(c, &request) {
		return
	}
	currency, ok := parseCurrency(c, request.Currency)
	if !ok {
		return
	}

	if err := h.engine.Approve(c.Request.Context(), caller(c), currency, request.Amount); err != nil {
		fail(c, err)
		return
	}
	respondOK(c)
}

func (h *Handler) Balance(c *gin.Context) {
	currency, ok := parseCurrency(c, c.Param("currency"))
	if !ok {
		return
	}
	account, ok := parseAddress(c, c.Param("address"))
	if !ok {
		return
	}
	balance, err := h.engine.BalanceOf(currency, account)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"currency": currency, "address": account, "balance": balance})
}

func (h *Handler) FeesAccrued(c *gin.Context) {
	currency, ok := parseCurrency(c, c.Param("currency"))
	if !ok {
		return
	}
	fees, err := h.engine.FeesAccrued(currency)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"currency": currency, "fees": fees})
}

func (h *Handler) NFTOwner(c *gin.Context) {
	contract, ok := parseAddress(c, c.Param("contract"))
	if !ok {
		return
	}
	tokenID := c.Param("tokenId")
	owner, err := h.engine.NFTOwner(contract, tokenID)
	if err != nil {
		fail(c, err)
		return
	}
	payload := gin.H{"contract": contract, "token_id": tokenID, "owner": owner}
	if human, err := blockchain.HumanAddress(owner); err == nil {
		payload["owner_human"] = human
	}
	c.JSON(http.StatusOK, payload)
}
