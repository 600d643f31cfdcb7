package verification

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
	ml := router.Group("/ml", auth.RequireRole(auth.RoleNCCRVerifier))
	{
		ml.POST("/verify-project", h.verifyProject)
		ml.GET("/verification/:projectId", h.getVerification)
	}
}

// verifyProject handles POST /ml/verify-project
func (h *Handler) verifyProject(c *gin.Context) {
	var req VerifyProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	identity, _ := auth.IdentityFrom(c)

	v, err := h.service.VerifyProject(c.Request.Context(), req.ProjectID, req.ProjectData, identity.UserID)
	if err != nil {
		h.logger.Error("ML verification failed", zap.String("project_id", req.ProjectID), zap.Error(err))
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.Message(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "verification": v})
}

// getVerification handles GET /ml/verification/:projectId
func (h *Handler) getVerification(c *gin.Context) {
	v, err := h.service.GetVerification(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.Message(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"verification": v})
}
