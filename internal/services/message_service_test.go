package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibelink/internal/domain/conversation"
	"vibelink/internal/domain/message"
	"vibelink/internal/domain/notification"
	"vibelink/internal/domain/post"
	"vibelink/internal/events"
	vibelink_errors "vibelink/pkg/errors"
)

type messageServiceFixture struct {
	svc         *MessageService
	messageRepo *memMessageRepo
	convRepo    *memConvRepo
	postRepo    *memPostRepo
	broadcaster *recorderBroadcaster
	notifier    *fakeNotifier
}

func newMessageServiceFixture() *messageServiceFixture {
	f := &messageServiceFixture{
		messageRepo: newMemMessageRepo(),
		convRepo:    newMemConvRepo(),
		postRepo:    newMemPostRepo(),
		broadcaster: newRecorderBroadcaster(),
		notifier:    &fakeNotifier{},
	}
	f.svc = NewMessageService(f.messageRepo, f.convRepo, f.postRepo, f.notifier, nil)
	f.svc.SetBroadcaster(f.broadcaster)
	return f
}

func (f *messageServiceFixture) seedDirect(t *testing.T, a, b uuid.UUID) uuid.UUID {
	t.Helper()
	conv := conversation.Conversation{ID: uuid.New(), Type: conversation.TypeDirect, CreatedBy: a, CreatedAt: time.Now()}
	parts := []conversation.Participant{
		{ConversationID: conv.ID, UserID: a, Role: conversation.RoleMember},
		{ConversationID: conv.ID, UserID: b, Role: conversation.RoleMember},
	}
	require.NoError(t, f.convRepo.Create(context.Background(), &conv, parts))
	return conv.ID
}

func (f *messageServiceFixture) seedGroup(t *testing.T, admin uuid.UUID, members ...uuid.UUID) uuid.UUID {
	t.Helper()
	conv := conversation.Conversation{ID: uuid.New(), Type: conversation.TypeGroup, CreatedBy: admin, CreatedAt: time.Now()}
	parts := []conversation.Participant{{ConversationID: conv.ID, UserID: admin, Role: conversation.RoleAdmin}}
	for _, m := range members {
		parts = append(parts, conversation.Participant{ConversationID: conv.ID, UserID: m, Role: conversation.RoleMember})
	}
	require.NoError(t, f.convRepo.Create(context.Background(), &conv, parts))
	return conv.ID
}

func TestSendMessagePersistsAndFansOut(t *testing.T) {
	f := newMessageServiceFixture()
	alice, bob := uuid.New(), uuid.New()
	convID := f.seedDirect(t, alice, bob)

	msg, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		ConversationID: convID,
		SenderID:       alice,
		Content:        "hey",
	})
	require.NoError(t, err)
	assert.Equal(t, message.TypeText, msg.Type)

	stored, err := f.messageRepo.GetByID(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "hey", stored.Content)

	conv, err := f.convRepo.GetByID(context.Background(), convID)
	require.NoError(t, err)
	require.True(t, conv.LastMessageID.Valid)
	assert.Equal(t, msg.ID, conv.LastMessageID.UUID)

	frames := f.broadcaster.byEvent(events.EventNewMessage)
	require.Len(t, frames, 1)
	assert.Equal(t, "conversation", frames[0].scope)
	assert.Equal(t, convID, frames[0].target)

	// Unread counter and notification go to the peer only.
	unread := f.broadcaster.byEvent(events.EventUnreadCountUpdate)
	require.Len(t, unread, 1)
	assert.Equal(t, bob, unread[0].target)

	notifies := f.notifier.recorded()
	require.Len(t, notifies, 1)
	assert.Equal(t, bob, notifies[0].recipientID)
	assert.Equal(t, notification.KindMessage, notifies[0].kind)
}

func TestSendMessageNonParticipantForbidden(t *testing.T) {
	f := newMessageServiceFixture()
	alice, bob, mallory := uuid.New(), uuid.New(), uuid.New()
	convID := f.seedDirect(t, alice, bob)

	_, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		ConversationID: convID,
		SenderID:       mallory,
		Content:        "let me in",
	})
	assert.ErrorIs(t, err, vibelink_errors.ErrForbidden)
	assert.Empty(t, f.broadcaster.byEvent(events.EventNewMessage))
}

func TestSendMessageUnknownConversation(t *testing.T) {
	f := newMessageServiceFixture()

	_, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		ConversationID: uuid.New(),
		SenderID:       uuid.New(),
		Content:        "hello?",
	})
	assert.ErrorIs(t, err, vibelink_errors.ErrNotFound)
}

func TestSendMessageReplyToOutsideConversation(t *testing.T) {
	f := newMessageServiceFixture()
	alice, bob := uuid.New(), uuid.New()
	convID := f.seedDirect(t, alice, bob)
	otherConvID := f.seedDirect(t, alice, uuid.New())

	parent, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		ConversationID: otherConvID,
		SenderID:       alice,
		Content:        "elsewhere",
	})
	require.NoError(t, err)

	_, err = f.svc.SendMessage(context.Background(), SendMessageInput{
		ConversationID: convID,
		SenderID:       alice,
		Content:        "reply",
		ReplyToID:      uuid.NullUUID{UUID: parent.ID, Valid: true},
	})
	assert.ErrorIs(t, err, ErrInvalidReplyTo)

	// A missing parent gets the same answer.
	_, err = f.svc.SendMessage(context.Background(), SendMessageInput{
		ConversationID: convID,
		SenderID:       alice,
		Content:        "reply",
		ReplyToID:      uuid.NullUUID{UUID: uuid.New(), Valid: true},
	})
	assert.ErrorIs(t, err, ErrInvalidReplyTo)
}

func TestSendPostMessageBumpsShareCount(t *testing.T) {
	f := newMessageServiceFixture()
	alice, bob := uuid.New(), uuid.New()
	convID := f.seedDirect(t, alice, bob)

	p := post.Post{ID: uuid.New(), AuthorID: bob}
	f.postRepo.posts[p.ID] = p

	_, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		ConversationID: convID,
		SenderID:       alice,
		Type:           message.TypePost,
		PostID:         uuid.NullUUID{UUID: p.ID, Valid: true},
	})
	require.NoError(t, err)

	shared, err := f.postRepo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, shared.ShareCount)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	f := newMessageServiceFixture()
	alice, bob := uuid.New(), uuid.New()
	convID := f.seedDirect(t, alice, bob)

	for i := 0; i < 2; i++ {
		_, err := f.svc.SendMessage(context.Background(), SendMessageInput{
			ConversationID: convID,
			SenderID:       bob,
			Content:        "ping",
		})
		require.NoError(t, err)
	}

	marked, err := f.svc.MarkRead(context.Background(), convID, alice)
	require.NoError(t, err)
	assert.Len(t, marked, 2)
	require.Len(t, f.broadcaster.byEvent(events.EventMessagesRead), 1)

	// Repeat marks nothing and stays silent.
	marked, err = f.svc.MarkRead(context.Background(), convID, alice)
	require.NoError(t, err)
	assert.Empty(t, marked)
	assert.Len(t, f.broadcaster.byEvent(events.EventMessagesRead), 1)
}

func TestMarkReadSkipsOwnMessages(t *testing.T) {
	f := newMessageServiceFixture()
	alice, bob := uuid.New(), uuid.New()
	convID := f.seedDirect(t, alice, bob)

	_, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		ConversationID: convID,
		SenderID:       alice,
		Content:        "mine",
	})
	require.NoError(t, err)

	marked, err := f.svc.MarkRead(context.Background(), convID, alice)
	require.NoError(t, err)
	assert.Empty(t, marked)
}

func TestMarkReadNonParticipantForbidden(t *testing.T) {
	f := newMessageServiceFixture()
	convID := f.seedDirect(t, uuid.New(), uuid.New())

	_, err := f.svc.MarkRead(context.Background(), convID, uuid.New())
	assert.ErrorIs(t, err, vibelink_errors.ErrForbidden)
}

func TestEditMessageSenderOnly(t *testing.T) {
	f := newMessageServiceFixture()
	alice, bob := uuid.New(), uuid.New()
	convID := f.seedDirect(t, alice, bob)

	msg, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		ConversationID: convID,
		SenderID:       alice,
		Content:        "orignal",
	})
	require.NoError(t, err)

	_, err = f.svc.EditMessage(context.Background(), msg.ID, bob, "hijacked")
	assert.ErrorIs(t, err, vibelink_errors.ErrForbidden)

	edited, err := f.svc.EditMessage(context.Background(), msg.ID, alice, "original")
	require.NoError(t, err)
	assert.True(t, edited.Edited)
	assert.True(t, edited.EditedAt.Valid)
	assert.Equal(t, "original", edited.Content)
	assert.Len(t, f.broadcaster.byEvent(events.EventMessageEdited), 1)
}

func TestEditCallMessageForbidden(t *testing.T) {
	f := newMessageServiceFixture()
	alice, bob := uuid.New(), uuid.New()
	convID := f.seedDirect(t, alice, bob)

	outcome, err := f.svc.RecordCallOutcome(context.Background(), alice, bob, convID, message.CallEnded, false, 42*time.Second)
	require.NoError(t, err)

	_, err = f.svc.EditMessage(context.Background(), outcome.ID, alice, "never happened")
	assert.ErrorIs(t, err, vibelink_errors.ErrForbidden)
}

func TestDeleteMessageBroadcastsID(t *testing.T) {
	f := newMessageServiceFixture()
	alice, bob := uuid.New(), uuid.New()
	convID := f.seedDirect(t, alice, bob)

	msg, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		ConversationID: convID,
		SenderID:       alice,
		Content:        "oops",
	})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.DeleteMessage(context.Background(), msg.ID, bob), vibelink_errors.ErrForbidden)

	require.NoError(t, f.svc.DeleteMessage(context.Background(), msg.ID, alice))
	_, err = f.messageRepo.GetByID(context.Background(), msg.ID)
	assert.ErrorIs(t, err, vibelink_errors.ErrNotFound)

	frames := f.broadcaster.byEvent(events.EventMessageDeleted)
	require.Len(t, frames, 1)
	payload, ok := frames[0].data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, msg.ID, payload["message_id"])
}

func TestSetReactionReplacesPrevious(t *testing.T) {
	f := newMessageServiceFixture()
	alice, bob := uuid.New(), uuid.New()
	convID := f.seedDirect(t, alice, bob)

	msg, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		ConversationID: convID,
		SenderID:       alice,
		Content:        "react to this",
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.SetReaction(context.Background(), msg.ID, bob, "👍", "thumbsup"))
	require.NoError(t, f.svc.SetReaction(context.Background(), msg.ID, bob, "❤️", "heart"))

	reactions, err := f.messageRepo.GetReactions(context.Background(), msg.ID)
	require.NoError(t, err)
	require.Len(t, reactions, 1)
	assert.Equal(t, "❤️", reactions[0].Emoji)

	assert.ErrorIs(t, f.svc.SetReaction(context.Background(), msg.ID, uuid.New(), "👀", "eyes"), vibelink_errors.ErrForbidden)
}

func TestRemoveReactionBroadcasts(t *testing.T) {
	f := newMessageServiceFixture()
	alice, bob := uuid.New(), uuid.New()
	convID := f.seedDirect(t, alice, bob)

	msg, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		ConversationID: convID,
		SenderID:       alice,
		Content:        "react to this",
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.SetReaction(context.Background(), msg.ID, bob, "👍", "thumbsup"))
	require.NoError(t, f.svc.RemoveReaction(context.Background(), msg.ID, bob))

	reactions, err := f.messageRepo.GetReactions(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.Empty(t, reactions)
	assert.Len(t, f.broadcaster.byEvent(events.EventReactionRemoved), 1)
}

func TestPinMessageGroupAdminOnly(t *testing.T) {
	f := newMessageServiceFixture()
	admin, member := uuid.New(), uuid.New()
	convID := f.seedGroup(t, admin, member)

	msg, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		ConversationID: convID,
		SenderID:       member,
		Content:        "important",
	})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.PinMessage(context.Background(), convID, msg.ID, member), vibelink_errors.ErrForbidden)

	require.NoError(t, f.svc.PinMessage(context.Background(), convID, msg.ID, admin))
	pins, err := f.convRepo.GetPinnedMessages(context.Background(), convID)
	require.NoError(t, err)
	assert.Len(t, pins, 1)

	assert.ErrorIs(t, f.svc.UnpinMessage(context.Background(), convID, msg.ID, member), vibelink_errors.ErrForbidden)
	require.NoError(t, f.svc.UnpinMessage(context.Background(), convID, msg.ID, admin))
}

func TestPinMessageDirectAnyParticipant(t *testing.T) {
	f := newMessageServiceFixture()
	alice, bob := uuid.New(), uuid.New()
	convID := f.seedDirect(t, alice, bob)

	msg, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		ConversationID: convID,
		SenderID:       alice,
		Content:        "address",
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.PinMessage(context.Background(), convID, msg.ID, bob))
	assert.ErrorIs(t, f.svc.PinMessage(context.Background(), convID, msg.ID, uuid.New()), vibelink_errors.ErrForbidden)
}

func TestPinMessageFromOtherConversationRejected(t *testing.T) {
	f := newMessageServiceFixture()
	alice, bob := uuid.New(), uuid.New()
	convID := f.seedDirect(t, alice, bob)
	otherConvID := f.seedDirect(t, alice, uuid.New())

	msg, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		ConversationID: otherConvID,
		SenderID:       alice,
		Content:        "elsewhere",
	})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.PinMessage(context.Background(), convID, msg.ID, alice), vibelink_errors.ErrInvalidInput)
}

func TestRecordCallOutcome(t *testing.T) {
	f := newMessageServiceFixture()
	alice, bob := uuid.New(), uuid.New()
	convID := f.seedDirect(t, alice, bob)

	msg, err := f.svc.RecordCallOutcome(context.Background(), alice, bob, convID, message.CallEnded, true, 95*time.Second)
	require.NoError(t, err)
	assert.Equal(t, message.TypeCall, msg.Type)
	require.True(t, msg.CallStatus.Valid)
	assert.Equal(t, message.CallEnded, msg.CallStatus.String)
	assert.Equal(t, "Video call ended (01:35)", msg.Content)

	conv, err := f.convRepo.GetByID(context.Background(), convID)
	require.NoError(t, err)
	require.True(t, conv.LastMessageID.Valid)
	assert.Equal(t, msg.ID, conv.LastMessageID.UUID)

	assert.Len(t, f.broadcaster.byEvent(events.EventNewMessage), 1)

	notifies := f.notifier.recorded()
	require.Len(t, notifies, 1)
	assert.Equal(t, bob, notifies[0].recipientID)
	assert.Equal(t, notification.KindCall, notifies[0].kind)
}

func TestGetConversationMessagesRequiresMembership(t *testing.T) {
	f := newMessageServiceFixture()
	alice, bob := uuid.New(), uuid.New()
	convID := f.seedDirect(t, alice, bob)

	_, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		ConversationID: convID,
		SenderID:       alice,
		Content:        "hello",
	})
	require.NoError(t, err)

	msgs, err := f.svc.GetConversationMessages(context.Background(), convID, bob, 1, 20)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	_, err = f.svc.GetConversationMessages(context.Background(), convID, uuid.New(), 1, 20)
	assert.ErrorIs(t, err, vibelink_errors.ErrForbidden)
}

func TestFormatCallContent(t *testing.T) {
	cases := []struct {
		status   string
		isVideo  bool
		duration time.Duration
		want     string
	}{
		{message.CallMissed, false, 0, "Missed voice call"},
		{message.CallMissed, true, 0, "Missed video call"},
		{message.CallDeclined, false, 0, "Voice call declined"},
		{message.CallFailed, true, 0, "Video call failed - connection lost"},
		{message.CallEnded, false, 0, "Voice call ended"},
		{message.CallEnded, false, 42 * time.Second, "Voice call ended (00:42)"},
		{message.CallEnded, true, 61 * time.Minute, "Video call ended (01:01:00)"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatCallContent(tc.status, tc.isVideo, tc.duration))
	}
}

func TestFormatCallDuration(t *testing.T) {
	assert.Equal(t, "00:00", FormatCallDuration(0))
	assert.Equal(t, "00:05", FormatCallDuration(5*time.Second))
	assert.Equal(t, "01:00", FormatCallDuration(time.Minute))
	assert.Equal(t, "59:59", FormatCallDuration(59*time.Minute+59*time.Second))
	assert.Equal(t, "01:00:01", FormatCallDuration(time.Hour+time.Second))
	assert.Equal(t, "00:03", FormatCallDuration(2500*time.Millisecond))
}
