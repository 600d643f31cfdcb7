package stats

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"samudra-ledger/registry-backend/pkg/apperrors"
)

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes mounts the public routes; router must not require auth.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/public/stats", h.publicStats)
}

func (h *Handler) publicStats(c *gin.Context) {
	stats, err := h.service.Public(c.Request.Context())
	if err != nil {
		h.logger.Error("Public stats error", zap.Error(err))
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.Message(err)})
		return
	}
	c.JSON(http.StatusOK, stats)
}
