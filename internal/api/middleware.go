package api

import (
	"net/http"
	"time"

	"raffled/internal/api/response"
	"raffled/internal/blockchain"
	"raffled/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	HeaderCaller    = "X-Caller-Address"
	HeaderRequestID = "X-Request-ID"

	callerKey    = "caller"
	requestIDKey = "request_id"
)

// RequestID tags every request with an id, reusing the one sent by the client.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.String("caller", c.GetString(callerKey)),
			zap.String("request id", c.GetString(requestIDKey)),
			zap.Duration("duration", time.Since(started)),
		)
	}
}

// Caller resolves the acting account from the X-Caller-Address header. A
// missing header leaves the caller empty; operations that need one reject it.
func Caller() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(HeaderCaller)
		if header == "" {
			c.Next()
			return
		}

		address, err := blockchain.NormalizeAddress(header)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, response.Error(err.Error(), http.StatusBadRequest))
			return
		}
		c.Set(callerKey, address)
		c.Next()
	}
}

func caller(c *gin.Context) string {
	return c.GetString(callerKey)
}
