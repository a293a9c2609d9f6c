package handler

import (
	"net/http"
	"time"

	"vibelink/internal/services"
	"vibelink/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UserHandler handles user settings, blocks, and presence endpoints.
type UserHandler struct {
	service *services.UserService
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// GetSettings returns the requester's settings.
func (h *UserHandler) GetSettings(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	settings, err := h.service.GetSettings(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.SettingsDTO{
		ShowOnlineStatus: settings.ShowOnlineStatus,
		NotifyMessages:   settings.NotifyMessages,
		NotifyCalls:      settings.NotifyCalls,
	}))
}

// UpdateSettings partially updates the requester's settings.
func (h *UserHandler) UpdateSettings(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	var req httpdto.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	settings, err := h.service.GetSettings(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	if req.ShowOnlineStatus != nil {
		settings.ShowOnlineStatus = *req.ShowOnlineStatus
	}
	if req.NotifyMessages != nil {
		settings.NotifyMessages = *req.NotifyMessages
	}
	if req.NotifyCalls != nil {
		settings.NotifyCalls = *req.NotifyCalls
	}
	settings.UserID = userID

	if err := h.service.UpdateSettings(c.Request.Context(), settings); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.SettingsDTO{
		ShowOnlineStatus: settings.ShowOnlineStatus,
		NotifyMessages:   settings.NotifyMessages,
		NotifyCalls:      settings.NotifyCalls,
	}))
}

// Block blocks another user.
func (h *UserHandler) Block(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	var req httpdto.BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	blockedID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid user id", "INVALID_REQUEST"))
		return
	}

	if err := h.service.Block(c.Request.Context(), userID, blockedID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

// Unblock removes a block.
func (h *UserHandler) Unblock(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	blockedID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid user id", "INVALID_REQUEST"))
		return
	}

	if err := h.service.Unblock(c.Request.Context(), userID, blockedID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

// Presence returns one user's visible status as seen by the requester.
func (h *UserHandler) Presence(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	targetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid user id", "INVALID_REQUEST"))
		return
	}

	info, err := h.service.Presence(c.Request.Context(), userID, targetID)
	if err != nil {
		writeError(c, err)
		return
	}

	dto := httpdto.PresenceDTO{
		UserID:   info.UserID.String(),
		IsOnline: info.IsOnline,
	}
	if info.LastSeen != nil {
		dto.LastSeen = info.LastSeen.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(dto))
}
