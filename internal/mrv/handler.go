package mrv

import (
	"fmt"
	"io"
	"mime/multipart"
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
	mrv := router.Group("/mrv")
	{
		managers := mrv.Group("", auth.RequireRole(auth.RoleProjectManager))
		managers.POST("/upload", h.uploadFiles)
		managers.POST("", h.submitMRV)

		verifiers := mrv.Group("", auth.RequireRole(auth.RoleNCCRVerifier))
		verifiers.GET("/pending", h.pendingMRV)
		verifiers.POST("/:id/approve", h.decide)
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

func fileUpload(fh *multipart.FileHeader) FileUpload {
	return FileUpload{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// uploadFiles handles POST /mrv/upload (multipart: files, projectId)
func (h *Handler) uploadFiles(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form"})
		return
	}
	projectID := c.PostForm("projectId")
	uploads := make([]FileUpload, 0, len(form.File["files"]))
	for _, fh := range form.File["files"] {
		uploads = append(uploads, fileUpload(fh))
	}
	identity, _ := auth.IdentityFrom(c)

	files, err := h.service.UploadFiles(c.Request.Context(), identity.UserID, projectID, uploads)
	if err != nil {
		h.respondError(c, "File upload failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"files":   files,
		"message": fmt.Sprintf("Successfully uploaded %d files", len(files)),
	})
}

func (h *Handler) submitMRV(c *gin.Context) {
	var req CreateMRVRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	identity, _ := auth.IdentityFrom(c)

	m, err := h.service.SubmitMRV(c.Request.Context(), identity.UserID, &req)
	if err != nil {
		h.respondError(c, "MRV submission failed", err)
		return
	}
	c.JSON(http.StatusOK, SubmitResponse{MRVID: m.ID, MRVData: m})
}

func (h *Handler) pendingMRV(c *gin.Context) {
	pending, err := h.service.PendingMRV(c.Request.Context())
	if err != nil {
		h.respondError(c, "Failed to get pending MRV", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pendingMrv": pending})
}

// decide handles POST /mrv/:id/approve
func (h *Handler) decide(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	identity, _ := auth.IdentityFrom(c)

	decision, err := h.service.Decide(c.Request.Context(), identity.UserID, c.Param("id"), req.Approved, req.Notes)
	if err != nil {
		h.respondError(c, "MRV approval failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "mrvData": decision.MRV})
}
