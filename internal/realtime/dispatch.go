package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vibelink/internal/events"
	"vibelink/internal/services"
	vibelink_errors "vibelink/pkg/errors"
)

const dispatchTimeout = 10 * time.Second

type conversationPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
}

type sendMessagePayload struct {
	ConversationID uuid.UUID     `json:"conversation_id"`
	Content        string        `json:"content"`
	Type           string        `json:"type,omitempty"`
	FileURL        string        `json:"file_url,omitempty"`
	FileName       string        `json:"file_name,omitempty"`
	ReplyToID      uuid.NullUUID `json:"reply_to_id,omitempty"`
	PostID         uuid.NullUUID `json:"post_id,omitempty"`
	TempID         string        `json:"temp_id,omitempty"`
}

type editMessagePayload struct {
	MessageID uuid.UUID `json:"message_id"`
	Content   string    `json:"content"`
}

type messagePayload struct {
	MessageID uuid.UUID `json:"message_id"`
}

type reactionPayload struct {
	MessageID uuid.UUID `json:"message_id"`
	Emoji     string    `json:"emoji"`
	Name      string    `json:"name,omitempty"`
}

type pinPayload struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	MessageID      uuid.UUID `json:"message_id"`
}

type callPayload struct {
	CallID   string    `json:"call_id,omitempty"`
	ToUserID uuid.UUID `json:"to_user_id"`
	IsVideo  bool      `json:"is_video,omitempty"`
}

// handleMessage routes one inbound frame. Validation and authorization
// live in the services; this layer only decodes, rate-limits, and
// reports failures back on the same connection.
func (c *Client) handleMessage(raw []byte) error {
	var env events.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.Send(events.EventMessageError, map[string]any{"error": "malformed message"})
		return err
	}

	if !c.rateLimiter.Allow(env.Type) {
		c.logger.Warn("rate limit exceeded", c.userID, c.clientID, zap.String("msg_type", env.Type))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	switch env.Type {
	case events.EventHeartbeat:
		return c.handleHeartbeat()
	case events.EventUserOnline:
		return c.handleUserOnline()
	case events.EventUserOffline:
		return c.handleUserOffline(ctx)

	case events.EventJoinConversation:
		return c.handleJoinConversation(ctx, env.Payload)
	case events.EventLeaveConversation:
		return c.handleLeaveConversation(env.Payload)

	case events.EventSendMessage:
		return c.handleSendMessage(ctx, env.Payload)
	case events.EventEditMessage:
		return c.handleEditMessage(ctx, env.Payload)
	case events.EventDeleteMessage:
		return c.handleDeleteMessage(ctx, env.Payload)
	case events.EventAddReaction:
		return c.handleAddReaction(ctx, env.Payload)
	case events.EventRemoveReaction:
		return c.handleRemoveReaction(ctx, env.Payload)
	case events.EventMarkRead:
		return c.handleMarkRead(ctx, env.Payload)
	case events.EventPinMessage:
		return c.handlePin(ctx, env.Payload, true)
	case events.EventUnpinMessage:
		return c.handlePin(ctx, env.Payload, false)

	case events.EventTyping:
		return c.handleTyping(ctx, env.Payload, true)
	case events.EventStopTyping:
		return c.handleTyping(ctx, env.Payload, false)

	case events.EventCallRequest:
		return c.handleCallRequest(ctx, env.Payload)
	case events.EventCallAccept, events.EventCallDecline, events.EventCallEnd,
		events.EventCallTimeout, events.EventCallFailed:
		return c.handleCallTransition(ctx, env.Type, env.Payload)
	case events.EventOffer, events.EventAnswer, events.EventICECandidate:
		return c.handleSignalRelay(ctx, env.Type, env.Payload)

	default:
		c.logger.Warn("unknown message type", c.userID, c.clientID, zap.String("msg_type", env.Type))
		return nil
	}
}

func (c *Client) handleHeartbeat() error {
	if c.hub.presence != nil {
		c.hub.presence.Heartbeat(c.userID)
	}
	return nil
}

func (c *Client) handleUserOnline() error {
	if c.hub.presence != nil {
		c.hub.presence.Register(c.userID)
	}
	return nil
}

func (c *Client) handleUserOffline(ctx context.Context) error {
	if c.hub.presence != nil {
		c.hub.presence.SetExplicitOffline(ctx, c.userID)
	}
	return nil
}

// handleJoinConversation joins the room without a membership check.
// Room membership only scopes broadcasts; sends are authorized in the
// message service.
func (c *Client) handleJoinConversation(ctx context.Context, raw json.RawMessage) error {
	var p conversationPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}

	c.hub.JoinRoom(c, p.ConversationID)
	return nil
}

func (c *Client) handleLeaveConversation(raw json.RawMessage) error {
	var p conversationPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}
	c.hub.LeaveRoom(c, p.ConversationID)
	return nil
}

func (c *Client) handleSendMessage(ctx context.Context, raw json.RawMessage) error {
	var p sendMessagePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}

	msg, err := c.hub.messageService.SendMessage(ctx, services.SendMessageInput{
		ConversationID: p.ConversationID,
		SenderID:       c.userID,
		Content:        p.Content,
		Type:           p.Type,
		FileURL:        p.FileURL,
		FileName:       p.FileName,
		ReplyToID:      p.ReplyToID,
		PostID:         p.PostID,
	})
	if err != nil {
		c.sendMessageError(err, p.TempID)
		return nil
	}

	c.Send(events.EventMessageSent, map[string]any{
		"message": msg,
		"temp_id": p.TempID,
	})
	return nil
}

func (c *Client) handleEditMessage(ctx context.Context, raw json.RawMessage) error {
	var p editMessagePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}
	if _, err := c.hub.messageService.EditMessage(ctx, p.MessageID, c.userID, p.Content); err != nil {
		c.sendMessageError(err, "")
	}
	return nil
}

func (c *Client) handleDeleteMessage(ctx context.Context, raw json.RawMessage) error {
	var p messagePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}
	if err := c.hub.messageService.DeleteMessage(ctx, p.MessageID, c.userID); err != nil {
		c.sendMessageError(err, "")
	}
	return nil
}

func (c *Client) handleAddReaction(ctx context.Context, raw json.RawMessage) error {
	var p reactionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}
	if err := c.hub.messageService.SetReaction(ctx, p.MessageID, c.userID, p.Emoji, p.Name); err != nil {
		c.sendMessageError(err, "")
	}
	return nil
}

func (c *Client) handleRemoveReaction(ctx context.Context, raw json.RawMessage) error {
	var p messagePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}
	if err := c.hub.messageService.RemoveReaction(ctx, p.MessageID, c.userID); err != nil {
		c.sendMessageError(err, "")
	}
	return nil
}

func (c *Client) handleMarkRead(ctx context.Context, raw json.RawMessage) error {
	var p conversationPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}
	if _, err := c.hub.messageService.MarkRead(ctx, p.ConversationID, c.userID); err != nil {
		c.sendMessageError(err, "")
	}
	return nil
}

func (c *Client) handlePin(ctx context.Context, raw json.RawMessage, pin bool) error {
	var p pinPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}

	var err error
	if pin {
		err = c.hub.messageService.PinMessage(ctx, p.ConversationID, p.MessageID, c.userID)
	} else {
		err = c.hub.messageService.UnpinMessage(ctx, p.ConversationID, p.MessageID, c.userID)
	}
	if err != nil {
		c.sendMessageError(err, "")
	}
	return nil
}

func (c *Client) handleTyping(ctx context.Context, raw json.RawMessage, start bool) error {
	var p conversationPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}

	ok, err := c.hub.conversationService.IsParticipant(ctx, p.ConversationID, c.userID)
	if err != nil || !ok {
		return err
	}

	eventOut := events.EventUserTyping
	if start {
		if err := c.hub.conversationService.StartTyping(ctx, p.ConversationID, c.userID); err != nil {
			c.logger.Error("typing track failed", c.userID, c.clientID, err)
		}
	} else {
		eventOut = events.EventUserStopTyping
		if err := c.hub.conversationService.StopTyping(ctx, p.ConversationID, c.userID); err != nil {
			c.logger.Error("typing track failed", c.userID, c.clientID, err)
		}
	}

	c.hub.ToConversationExcept(p.ConversationID, c.userID, eventOut, map[string]any{
		"conversation_id": p.ConversationID,
		"user_id":         c.userID,
	})
	return nil
}

func (c *Client) handleCallRequest(ctx context.Context, raw json.RawMessage) error {
	var p callPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}
	if c.hub.calls == nil {
		return nil
	}
	c.hub.calls.HandleCallRequest(ctx, c.userID, p.ToUserID, p.IsVideo, p.CallID)
	return nil
}

func (c *Client) handleCallTransition(ctx context.Context, eventType string, raw json.RawMessage) error {
	var p callPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}
	if c.hub.calls == nil {
		return nil
	}

	switch eventType {
	case events.EventCallAccept:
		c.hub.calls.HandleAccept(ctx, c.userID, p.ToUserID, p.CallID)
	case events.EventCallDecline:
		c.hub.calls.HandleDecline(ctx, c.userID, p.ToUserID, p.CallID)
	case events.EventCallEnd:
		c.hub.calls.HandleEnd(ctx, c.userID, p.ToUserID, p.CallID)
	case events.EventCallTimeout:
		c.hub.calls.HandleTimeout(ctx, c.userID, p.ToUserID, p.CallID)
	case events.EventCallFailed:
		c.hub.calls.HandleFailed(ctx, c.userID, p.ToUserID, p.CallID)
	}
	return nil
}

func (c *Client) handleSignalRelay(ctx context.Context, eventType string, raw json.RawMessage) error {
	var p callPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}
	if c.hub.calls == nil {
		return nil
	}
	c.hub.calls.Relay(ctx, c.userID, p.ToUserID, eventType, p.CallID, raw)
	return nil
}

// sendMessageError maps a service failure to a client-facing error
// frame. Internal errors are not leaked verbatim.
func (c *Client) sendMessageError(err error, tempID string) {
	msg := "message delivery failed"
	switch {
	case errors.Is(err, services.ErrInvalidReplyTo):
		msg = err.Error()
	case errors.Is(err, vibelink_errors.ErrForbidden):
		msg = "not allowed"
	case errors.Is(err, vibelink_errors.ErrNotFound):
		msg = "not found"
	case errors.Is(err, vibelink_errors.ErrInvalidInput):
		msg = "invalid input"
	default:
		c.logger.Error("message dispatch failed", c.userID, c.clientID, err)
	}

	payload := map[string]any{"error": msg}
	if tempID != "" {
		payload["temp_id"] = tempID
	}
	c.Send(events.EventMessageError, payload)
}
