package events

// Wire event names for the realtime connection. Inbound names are what
// clients send; outbound names are what the server emits. Signaling
// relay events (offer/answer/ice-candidate) use the same name in both
// directions.

// Connection lifecycle
const (
	EventHeartbeat           = "heartbeat"
	EventUserOnline          = "user_online"
	EventUserOffline         = "user_offline"
	EventNewConnection       = "new_connection"
	EventConnectionConfirmed = "connection_confirmed"
	EventConversationsJoined = "conversations_joined"
	EventTokenExpired        = "token_expired"
)

// Rooms
const (
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
)

// Messaging
const (
	EventSendMessage       = "send_message"
	EventNewMessage        = "new_message"
	EventMessageSent       = "message_sent"
	EventMessageError      = "message_error"
	EventEditMessage       = "edit_message"
	EventMessageEdited     = "message_edited"
	EventDeleteMessage     = "delete_message"
	EventMessageDeleted    = "message_deleted"
	EventAddReaction       = "add_reaction"
	EventRemoveReaction    = "remove_reaction"
	EventReactionAdded     = "reaction_added"
	EventReactionRemoved   = "reaction_removed"
	EventMarkRead          = "mark_read"
	EventMessagesRead      = "messages_read"
	EventPinMessage        = "pin_message"
	EventUnpinMessage      = "unpin_message"
	EventMessagePinned     = "message_pinned"
	EventMessageUnpinned   = "message_unpinned"
	EventUnreadCountUpdate = "unread_count_update"
)

// Typing
const (
	EventTyping         = "typing"
	EventStopTyping     = "stop_typing"
	EventUserTyping     = "user_typing"
	EventUserStopTyping = "user_stop_typing"
)

// Presence
const (
	EventUserStatusChange = "user_status_change"
)

// Call signaling
const (
	EventOffer            = "offer"
	EventAnswer           = "answer"
	EventICECandidate     = "ice-candidate"
	EventCallRequest      = "call_request"
	EventCallAccept       = "call_accept"
	EventCallDecline      = "call_decline"
	EventCallEnd          = "call_end"
	EventCallTimeout      = "call_timeout"
	EventCallFailed       = "call_failed"
	EventCallDisconnected = "call_disconnected"
	EventCallError        = "call_error"
	EventCallWaiting      = "call_waiting"
)

// Notifications
const (
	EventNewNotification     = "new_notification"
	EventNotificationAllRead = "notification_all_read"
)
