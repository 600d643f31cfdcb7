package registry

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

func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/registry/export", auth.RequireRole(auth.RoleNCCRVerifier), h.export)
}

// GET /registry/export?format=csv|xlsx&dataset=credits|projects
func (h *Handler) export(c *gin.Context) {
	format, ok := ParseFormat(c.Query("format"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid format: must be csv or xlsx"})
		return
	}

	data, filename, err := h.service.Export(c.Request.Context(), format, c.Query("dataset"))
	if err != nil {
		if apperrors.HTTPStatus(err) >= http.StatusInternalServerError {
			h.logger.Error("Registry export failed", zap.Error(err))
		}
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.Message(err)})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, format.ContentType(), data)
}
