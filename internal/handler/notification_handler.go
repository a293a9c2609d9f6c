package handler

import (
	"net/http"
	"time"

	"vibelink/internal/services"
	"vibelink/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// NotificationHandler handles notification HTTP endpoints.
type NotificationHandler struct {
	service *services.NotificationService
}

func NewNotificationHandler(service *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// List returns the requester's notifications, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	page, limit := pagination(c)

	items, total, err := h.service.GetForRecipient(c.Request.Context(), userID, page, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	dtos := make([]httpdto.NotificationDTO, len(items))
	for i, n := range items {
		dto := httpdto.NotificationDTO{
			ID:        n.ID.String(),
			SenderID:  n.SenderID.String(),
			Kind:      n.Kind,
			Message:   n.Message,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt.Format(time.RFC3339),
		}
		if n.EntityID.Valid {
			dto.EntityID = n.EntityID.UUID.String()
		}
		if n.EntityType.Valid {
			dto.EntityType = n.EntityType.String
		}
		dtos[i] = dto
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.NotificationsResponse{
		Notifications: dtos,
		Total:         total,
		Page:          page,
		Limit:         limit,
	}))
}

// MarkAllRead marks every notification for the requester read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	if err := h.service.MarkAllRead(c.Request.Context(), userID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}
