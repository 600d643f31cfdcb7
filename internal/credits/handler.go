package credits

import (
	"fmt"
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
	credits := router.Group("/credits", auth.RequireRole(auth.RoleBuyer))
	{
		credits.GET("/available", h.available)
		credits.GET("/owned", h.owned)
		credits.POST("/purchase", h.purchase)
		credits.POST("/retire", h.retire)
		credits.GET("/retirements", h.retirements)
		credits.GET("/retirements/:id/certificate", h.certificate)
	}
}

func (h *Handler) respondError(c *gin.Context, msg string, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, zap.Error(err))
	} else {
		h.logger.Info(msg, zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": apperrors.Message(err)})
}

func (h *Handler) available(c *gin.Context) {
	list, err := h.service.Available(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to get available credits", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"availableCredits": list})
}

func (h *Handler) owned(c *gin.Context) {
	identity, _ := auth.IdentityFrom(c)
	list, err := h.service.Owned(c.Request.Context(), identity.UserID)
	if err != nil {
		h.respondError(c, "Failed to get owned credits", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ownedCredits": list})
}

func (h *Handler) purchase(c *gin.Context) {
	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Credit ID and payment data are required"})
		return
	}
	identity, _ := auth.IdentityFrom(c)

	credit, err := h.service.Purchase(c.Request.Context(), identity.UserID, &req)
	if err != nil {
		h.respondError(c, "Credit purchase failed", err)
		return
	}
	c.JSON(http.StatusOK, PurchaseResponse{
		Success:   true,
		Message:   "Credit purchased and payment processed successfully",
		CreditID:  credit.ID,
		PaymentID: credit.PaymentID,
	})
}

func (h *Handler) retire(c *gin.Context) {
	var req RetireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Credit ID and reason are required"})
		return
	}
	identity, _ := auth.IdentityFrom(c)

	r, err := h.service.Retire(c.Request.Context(), identity.UserID, &req)
	if err != nil {
		h.respondError(c, "Credit retirement failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Credit retired successfully",
		"retirement": RetirementSummary{
			ID:            r.ID,
			CreditID:      r.CreditID,
			Amount:        r.Amount,
			Reason:        r.Reason,
			RetiredAt:     r.RetiredAt,
			OnChainTxHash: r.OnChainTxHash,
		},
	})
}

func (h *Handler) retirements(c *gin.Context) {
	identity, _ := auth.IdentityFrom(c)
	list, err := h.service.Retirements(c.Request.Context(), identity.UserID)
	if err != nil {
		h.respondError(c, "Failed to get retirements", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"retirements": list})
}

func (h *Handler) certificate(c *gin.Context) {
	identity, _ := auth.IdentityFrom(c)
	doc, retirement, err := h.service.Certificate(c.Request.Context(), identity.UserID, c.Param("id"))
	if err != nil {
		h.respondError(c, "Failed to render certificate", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, certificateNumber(retirement.ID)))
	c.Data(http.StatusOK, "application/pdf", doc)
}
