package payments

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"samudra-ledger/registry-backend/internal/auth"
	"samudra-ledger/registry-backend/pkg/apperrors"
)

type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes expects router to carry authentication middleware.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	checkout := router.Group("/payments", auth.RequireRole(auth.RoleBuyer))
	{
		checkout.POST("/session", h.createSession)
		checkout.POST("/verify", h.verifySession)
	}
	router.GET("/payouts/manager", auth.RequireRole(auth.RoleProjectManager), h.managerPayouts)
}

func (h *Handler) createSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Credit ID is required"})
		return
	}
	identity, _ := auth.IdentityFrom(c)

	session, err := h.service.CreateSession(c.Request.Context(), identity.UserID, req.CreditID)
	if err != nil {
		h.logger.Error("Failed to create payment session", zap.String("credit_id", req.CreditID), zap.Error(err))
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.Message(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"sessionId":       session.ID,
		"paymentIntentId": session.PaymentIntentID,
		"checkoutUrl":     session.CheckoutURL,
		"amount":          session.PriceInINR,
		"currency":        CurrencyINR,
	})
}

func (h *Handler) verifySession(c *gin.Context) {
	var req VerifySessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Session ID is required"})
		return
	}
	identity, _ := auth.IdentityFrom(c)

	verification, session, err := h.service.VerifySession(c.Request.Context(), identity.UserID, req.SessionID)
	if err != nil {
		h.logger.Error("Failed to verify payment", zap.String("session_id", req.SessionID), zap.Error(err))
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.Message(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "verification": verification, "session": session})
}

func (h *Handler) managerPayouts(c *gin.Context) {
	identity, _ := auth.IdentityFrom(c)

	payouts, total, err := h.service.ManagerPayouts(c.Request.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("Failed to get payouts", zap.String("manager_id", identity.UserID), zap.Error(err))
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.Message(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payouts": payouts, "totalPayout": total})
}
