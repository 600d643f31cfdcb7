package projects

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
	projects := router.Group("/projects")
	{
		managers := projects.Group("", auth.RequireRole(auth.RoleProjectManager))
		managers.POST("", h.createProject)
		managers.GET("/manager", h.managerProjects)
		managers.DELETE("/:id", h.deleteProject)

		projects.GET("/all", auth.RequireRole(auth.RoleNCCRVerifier), h.allProjects)
	}
}

func (h *Handler) respondError(c *gin.Context, msg string, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, zap.Error(err))
	} else {
		h.logger.Debug(msg, zap.Error(err))
	}
	c.JSON(status, gin.H{"error": apperrors.Message(err)})
}

func (h *Handler) createProject(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	identity, _ := auth.IdentityFrom(c)

	project, err := h.service.CreateProject(c.Request.Context(), identity, &req)
	if err != nil {
		h.respondError(c, "Project registration failed", err)
		return
	}
	c.JSON(http.StatusOK, CreateProjectResponse{ProjectID: project.ID, Project: project})
}

func (h *Handler) managerProjects(c *gin.Context) {
	identity, _ := auth.IdentityFrom(c)
	projects, err := h.service.ManagerProjects(c.Request.Context(), identity.UserID)
	if err != nil {
		h.respondError(c, "Failed to get manager projects", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (h *Handler) allProjects(c *gin.Context) {
	projects, err := h.service.AllProjects(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to get projects", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (h *Handler) deleteProject(c *gin.Context) {
	identity, _ := auth.IdentityFrom(c)
	if err := h.service.DeleteProject(c.Request.Context(), c.Param("id"), identity.UserID); err != nil {
		h.respondError(c, "Project deletion failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Project deleted successfully"})
}
