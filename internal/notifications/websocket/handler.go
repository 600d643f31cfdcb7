package websocket

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"samudra-ledger/registry-backend/internal/auth"
)

type Handler struct {
	manager *Manager
	logger  *zap.Logger
}

func NewHandler(manager *Manager, logger *zap.Logger) *Handler {
	return &Handler{manager: manager, logger: logger}
}

// RegisterRoutes expects router to carry authentication middleware; browsers
// pass the token as ?token=.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/ws", h.subscribe)
}

func (h *Handler) subscribe(c *gin.Context) {
	identity, _ := auth.IdentityFrom(c)
	if _, err := h.manager.HandleConnection(c.Writer, c.Request, identity.UserID, string(identity.Role)); err != nil {
		// the upgrader has already written the HTTP error
		h.logger.Warn("Websocket upgrade failed", zap.String("user_id", identity.UserID), zap.Error(err))
	}
}
