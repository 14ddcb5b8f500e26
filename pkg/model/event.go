package model

// EventType names a realtime frame on the websocket.
type EventType string

// Client -> server.
const (
	EventJoinConversation  EventType = "join_conversation"
	EventLeaveConversation EventType = "leave_conversation"
	EventTypingStart       EventType = "typing_start"
	EventTypingStop        EventType = "typing_stop"
	EventUserOnline        EventType = "user_online"
)

// Server -> client.
const (
	EventNewMessage        EventType = "new_message"
	EventMessageReceived   EventType = "message_received"
	EventUserTyping        EventType = "user_typing"
	EventUserStoppedTyping EventType = "user_stopped_typing"
	EventUserStatusChange  EventType = "user_status_change"
	EventProjectRejected   EventType = "project_rejected"
	EventProjectApproved   EventType = "project_approved"
	EventError             EventType = "error"
)

// Event is the single frame shape in both directions; unused fields are
// omitted on the wire.
type Event struct {
	Type            EventType `json:"type"`
	ConversationKey string    `json:"conversation_key,omitempty"`
	Message         *Message  `json:"message,omitempty"`
	UserID          string    `json:"user_id,omitempty"`
	UserName        string    `json:"user_name,omitempty"`
	Status          string    `json:"status,omitempty"`
	Error           string    `json:"error,omitempty"`
}

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)
