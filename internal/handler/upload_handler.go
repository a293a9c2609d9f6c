package handler

import (
	"net/http"

	"vibelink/internal/services"
	"vibelink/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// UploadHandler issues presigned attachment uploads.
type UploadHandler struct {
	service *services.AttachmentService
}

func NewUploadHandler(service *services.AttachmentService) *UploadHandler {
	return &UploadHandler{service: service}
}

// Presign returns a direct-upload URL for one attachment.
func (h *UploadHandler) Presign(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	var req httpdto.PresignUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	res, err := h.service.CreatePresignedUpload(c.Request.Context(), userID, services.PresignInput{
		FileName:    req.FileName,
		ContentType: req.ContentType,
		FileSize:    req.FileSize,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.PresignUploadResponse{
		UploadURL: res.UploadURL,
		FileURL:   res.FileURL,
		Headers:   res.Headers,
		Key:       res.Key,
	}))
}
