package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"samudra-ledger/registry-backend/pkg/apperrors"
)

// Handler serves the public account endpoints.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers the unauthenticated account routes.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/signup", h.signup)
	router.POST("/login", h.login)
	router.POST("/check-nccr-eligibility", h.checkEligibility)
}

func (h *Handler) signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	resp, err := h.service.Signup(c.Request.Context(), &req)
	if err != nil {
		h.logger.Warn("Signup failed", zap.String("email", req.Email), zap.Error(err))
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.Message(err)})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	resp, err := h.service.Login(c.Request.Context(), &req)
	if err != nil {
		h.logger.Warn("Login failed", zap.String("email", req.Email), zap.Error(err))
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.Message(err)})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) checkEligibility(c *gin.Context) {
	var req EligibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to check eligibility"})
		return
	}
	c.JSON(http.StatusOK, h.service.CheckEligibility(req.Email))
}
