package api

import (
	"errors"
	"net/http"
	"strconv"

	"raffled/internal/api/response"
	"raffled/internal/blockchain"
	"raffled/internal/ledger"
	"raffled/internal/logger"
	"raffled/internal/raffle"
	"raffled/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Handler exposes the raffle engine over HTTP.
type Handler struct {
	engine *raffle.Engine
}

func NewHandler(engine *raffle.Engine) *Handler {
	return &Handler{engine: engine}
}

// NewRouter builds a gin engine with the middleware stack and every route.
func NewRouter(engine *raffle.Engine) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), Logger(), Caller())
	NewHandler(engine).RegisterRoutes(router)
	return router
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	raffles := router.Group("/raffles")
	raffles.POST("", h.CreateRaffle)
	raffles.GET("/:id", h.GetRaffleState)
	raffles.GET("/:id/config", h.GetRaffleConfig)
	raffles.PUT("/:id", h.ReconfigureRaffle)
	raffles.POST("/:id/cancel", h.CancelRaffle)
	raffles.PUT("/:id/allow-list", h.SetAllowList)
	raffles.POST("/:id/allow-list/toggle", h.ToggleAllowList)
	raffles.GET("/:id/allow-list/:address", h.GetAllowList)
	raffles.POST("/:id/tickets", h.BuyTickets)
	raffles.POST("/:id/tickets/refund", h.RefundTickets)
	raffles.GET("/:id/tickets/:address", h.TicketBalance)
	raffles.POST("/:id/deposits", h.DepositNFTs)
	raffles.GET("/:id/slots/:slot", h.GetSlotInfo)
	raffles.GET("/:id/slots/:slot/winner", h.GetSlotWinner)
	raffles.GET("/:id/slots/:slot/nfts", h.GetDepositedNFTs)
	raffles.POST("/:id/slots/:slot/withdraw", h.WithdrawNFTs)
	raffles.POST("/:id/slots/:slot/claim", h.ClaimNFTs)
	raffles.POST("/:id/slots/:slot/royalties/distribute", h.DistributeSecondarySaleFees)
	raffles.POST("/:id/randomness", h.RequestRandomness)
	raffles.GET("/:id/randomness", h.GetRandomnessRequest)
	raffles.POST("/:id/finalize", h.FinalizeRaffle)
	raffles.POST("/:id/revenue/distribute", h.DistributeRevenue)

	router.POST("/deposits", h.BatchDeposit)
	router.POST("/randomness/:requestId/fulfill", h.FulfillRandomness)
	router.POST("/royalties/:currency/distribute", h.DistributeRoyalties)
	router.GET("/tickets/:ticketId", h.TicketOwner)
	router.GET("/settlements/pending", h.PendingSettlement)

	config := router.Group("/config")
	config.GET("", h.GetContractConfig)
	config.PUT("/values/:index", h.SetConfigValue)
	config.POST("/dao-owner", h.TransferDAOOwnership)
	config.PUT("/currencies/:currency", h.SetSupportedCurrency)
	config.PUT("/unsafe-randomness", h.SetUnsafeRandomness)

	router.POST("/ledger/mint", h.Mint)
	router.POST("/ledger/nfts", h.MintNFT)
	router.POST("/ledger/approve", h.Approve)
	router.GET("/balances/:currency/:address", h.Balance)
	router.GET("/fees/:currency", h.FeesAccrued)
	router.GET("/nfts/:contract/:tokenId", h.NFTOwner)
}

func status(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, raffle.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, raffle.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, raffle.ErrEconomic):
		return http.StatusPaymentRequired
	case errors.Is(err, raffle.ErrDoubleAction):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	code := status(err)
	if code == http.StatusInternalServerError {
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(code, response.Error(err.Error(), code))
}

func badRequest(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		c.AbortWithStatusJSON(http.StatusBadRequest, response.ValidationError(validationErrs))
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, response.Error(err.Error(), http.StatusBadRequest))
}

func bind(c *gin.Context, request any) bool {
	if err := c.ShouldBindJSON(request); err != nil {
		badRequest(c, err)
		return false
	}
	return true
}

func uintParam(c *gin.Context, name string, bits int) (uint64, bool) {
	value, err := strconv.ParseUint(c.Param(name), 10, bits)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, response.Error("invalid "+name, http.StatusBadRequest))
		return 0, false
	}
	return value, true
}

func raffleID(c *gin.Context) (uint64, bool) {
	return uintParam(c, "id", 64)
}

func raffleSlot(c *gin.Context) (uint64, uint32, bool) {
	id, ok := raffleID(c)
	if !ok {
		return 0, 0, false
	}
	slot, ok := uintParam(c, "slot", 32)
	if !ok {
		return 0, 0, false
	}
	return id, uint32(slot), true
}

func parseAddress(c *gin.Context, value string) (string, bool) {
	raw, err := blockchain.NormalizeAddress(value)
	if err != nil {
		badRequest(c, err)
		return "", false
	}
	return raw, true
}

// parseCurrency accepts the native coin sentinel or a token address.
func parseCurrency(c *gin.Context, value string) (string, bool) {
	if value == "" || value == ledger.Native {
		return ledger.Native, true
	}
	return parseAddress(c, value)
}

func respondOK(c *gin.Context) {
	c.JSON(http.StatusOK, response.OK())
}
