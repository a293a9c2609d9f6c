package handler

import (
	"net/http"
	"strconv"
	"time"

	"vibelink/internal/domain/conversation"
	"vibelink/internal/services"
	"vibelink/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ConversationHandler handles conversation HTTP endpoints.
type ConversationHandler struct {
	service *services.ConversationService
}

func NewConversationHandler(service *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// List returns the requester's conversations, most recent first.
func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	page, limit := pagination(c)

	convs, total, err := h.service.GetUserConversations(c.Request.Context(), userID, page, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	dtos := make([]httpdto.ConversationDTO, len(convs))
	for i, conv := range convs {
		dtos[i] = toConversationDTO(conv)
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ConversationsResponse{
		Conversations: dtos,
		Total:         total,
		Page:          page,
		Limit:         limit,
	}))
}

// Create creates a direct or group conversation.
func (h *ConversationHandler) Create(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	var req httpdto.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	memberIDs := make([]uuid.UUID, 0, len(req.ParticipantIDs))
	for _, raw := range req.ParticipantIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid participant id", "INVALID_REQUEST"))
			return
		}
		memberIDs = append(memberIDs, id)
	}

	var conv conversation.Conversation
	var err error
	if req.Type == conversation.TypeGroup {
		conv, err = h.service.CreateGroup(c.Request.Context(), userID, req.Name, memberIDs)
	} else {
		if len(memberIDs) != 1 {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("direct conversation needs exactly one other participant", "INVALID_REQUEST"))
			return
		}
		conv, err = h.service.GetOrCreateDirect(c.Request.Context(), userID, memberIDs[0])
	}
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(toConversationDTO(conv)))
}

// Pinned lists a conversation's pinned messages in pin order.
func (h *ConversationHandler) Pinned(c *gin.Context) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid conversation id", "INVALID_REQUEST"))
		return
	}

	isParticipant, err := h.service.IsParticipant(c.Request.Context(), conversationID, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !isParticipant {
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse("forbidden", "FORBIDDEN"))
		return
	}

	pinned, err := h.service.GetPinnedMessages(c.Request.Context(), conversationID)
	if err != nil {
		writeError(c, err)
		return
	}

	dtos := make([]httpdto.PinnedMessageDTO, len(pinned))
	for i, p := range pinned {
		dtos[i] = httpdto.PinnedMessageDTO{
			ConversationID: p.ConversationID.String(),
			MessageID:      p.MessageID.String(),
			PinnedBy:       p.PinnedBy.String(),
			PinnedAt:       p.PinnedAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(dtos))
}

func toConversationDTO(conv conversation.Conversation) httpdto.ConversationDTO {
	dto := httpdto.ConversationDTO{
		ID:        conv.ID.String(),
		Type:      conv.Type,
		CreatedBy: conv.CreatedBy.String(),
		CreatedAt: conv.CreatedAt.Format(time.RFC3339),
		UpdatedAt: conv.UpdatedAt.Format(time.RFC3339),
	}
	if conv.Name.Valid {
		dto.Name = conv.Name.String
	}
	if conv.LastMessageID.Valid {
		dto.LastMessageID = conv.LastMessageID.UUID.String()
	}
	return dto
}

func pagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
