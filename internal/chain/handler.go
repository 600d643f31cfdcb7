package chain

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"samudra-ledger/registry-backend/pkg/apperrors"
)

type Handler struct {
	client Client
	logger *zap.Logger
}

func NewHandler(client Client, logger *zap.Logger) *Handler {
	return &Handler{client: client, logger: logger}
}

// RegisterRoutes registers the public transaction lookup.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/transactions/:hash", h.getTransaction)
}

func (h *Handler) getTransaction(c *gin.Context) {
	tx, err := h.client.Get(c.Request.Context(), c.Param("hash"))
	if err != nil {
		if !apperrors.Is(err, apperrors.KindNotFound) {
			h.logger.Error("Failed to get transaction", zap.String("hash", c.Param("hash")), zap.Error(err))
		}
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.Message(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}
