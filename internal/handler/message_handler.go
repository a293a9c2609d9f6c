package handler

import (
	"net/http"
	"time"

	"vibelink/internal/domain/message"
	"vibelink/internal/services"
	"vibelink/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MessageHandler handles message HTTP endpoints. The same delivery
// engine backs both this surface and the realtime connection, so a
// message sent here still fans out live.
type MessageHandler struct {
	service *services.MessageService
}

func NewMessageHandler(service *services.MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

// List returns a conversation's messages, newest page first.
func (h *MessageHandler) List(c *gin.Context) {
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

	page, limit := pagination(c)

	msgs, err := h.service.GetConversationMessages(c.Request.Context(), conversationID, userID, page, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	dtos := make([]httpdto.MessageDTO, len(msgs))
	for i, msg := range msgs {
		dtos[i] = toMessageDTO(msg)
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MessagesResponse{
		Messages: dtos,
		Page:     page,
		Limit:    limit,
	}))
}

// Send persists and fans out one message over HTTP.
func (h *MessageHandler) Send(c *gin.Context) {
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

	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	in := services.SendMessageInput{
		ConversationID: conversationID,
		SenderID:       userID,
		Content:        req.Content,
		Type:           req.Type,
		FileURL:        req.FileURL,
		FileName:       req.FileName,
	}
	if req.ReplyToID != "" {
		id, err := uuid.Parse(req.ReplyToID)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid reply_to_id", "INVALID_REQUEST"))
			return
		}
		in.ReplyToID = uuid.NullUUID{UUID: id, Valid: true}
	}
	if req.PostID != "" {
		id, err := uuid.Parse(req.PostID)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid post_id", "INVALID_REQUEST"))
			return
		}
		in.PostID = uuid.NullUUID{UUID: id, Valid: true}
	}

	msg, err := h.service.SendMessage(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(toMessageDTO(msg)))
}

// MarkRead marks every unread message in the conversation read.
func (h *MessageHandler) MarkRead(c *gin.Context) {
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

	markedIDs, err := h.service.MarkRead(c.Request.Context(), conversationID, userID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(map[string]any{
		"marked_count": len(markedIDs),
	}))
}

func toMessageDTO(msg message.Message) httpdto.MessageDTO {
	dto := httpdto.MessageDTO{
		ID:             msg.ID.String(),
		ConversationID: msg.ConversationID.String(),
		SenderID:       msg.SenderID.String(),
		Type:           msg.Type,
		Content:        msg.Content,
		Edited:         msg.Edited,
		CreatedAt:      msg.CreatedAt.Format(time.RFC3339),
	}
	if msg.CallStatus.Valid {
		dto.CallStatus = msg.CallStatus.String
	}
	if msg.FileURL.Valid {
		dto.FileURL = msg.FileURL.String
	}
	if msg.FileName.Valid {
		dto.FileName = msg.FileName.String
	}
	if msg.PostID.Valid {
		dto.PostID = msg.PostID.UUID.String()
	}
	if msg.ReplyToID.Valid {
		dto.ReplyToID = msg.ReplyToID.UUID.String()
	}
	if msg.EditedAt.Valid {
		dto.EditedAt = msg.EditedAt.Time.Format(time.RFC3339)
	}
	return dto
}
