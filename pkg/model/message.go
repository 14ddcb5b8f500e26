package model

import "time"

// Role is the portal role tag carried in an identity's credential. The portal
// defines eleven roles across national/state/district/village tiers; only the
// two below may use messaging.
type Role string

const (
	RoleGramPanchayat Role = "gram_panchayat" // village-level submitter
	RolePACC          Role = "pacc"           // district-level reviewer
)

// EligibleForMessaging reports whether a role may open conversations.
func EligibleForMessaging(r Role) bool {
	return r == RoleGramPanchayat || r == RolePACC
}

// Identity is issued by the auth service and is read-only to messaging.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Project is owned by the project service; messaging only uses it to scope
// and label conversations.
type Project struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type MessageKind string

const (
	KindText            MessageKind = "text"
	KindRejectionNotice MessageKind = "rejection_notice"
	KindApprovalNotice  MessageKind = "approval_notice"
)

func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindRejectionNotice, KindApprovalNotice:
		return true
	}
	return false
}

// System reports whether the kind is produced by a workflow rather than a
// user action.
func (k MessageKind) System() bool {
	return k == KindRejectionNotice || k == KindApprovalNotice
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Metadata is the per-kind structured payload. Text messages carry none;
// system notices carry the project name and, for rejections, the reason.
type Metadata struct {
	ProjectName string `json:"project_name,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Message is the durable record. Immutable after append except for the read
// flag and timestamp, which transition exactly once.
type Message struct {
	ID              int64       `json:"id"`
	ConversationKey string      `json:"conversation_key"`
	ProjectID       string      `json:"project_id"`
	SenderID        string      `json:"sender_id"`
	SenderName      string      `json:"sender_name"`
	SenderRole      Role        `json:"sender_role"`
	ReceiverID      string      `json:"receiver_id"`
	ReceiverName    string      `json:"receiver_name"`
	ReceiverRole    Role        `json:"receiver_role"`
	Body            string      `json:"body"`
	Kind            MessageKind `json:"kind"`
	Priority        Priority    `json:"priority"`
	Metadata        *Metadata   `json:"metadata,omitempty"`
	Read            bool        `json:"read"`
	ReadAt          *time.Time  `json:"read_at,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

// ConversationSummary is the derived per-user view of a conversation: there
// is no stored conversation row, only messages sharing a key.
type ConversationSummary struct {
	Key           string    `json:"key"`
	ProjectID     string    `json:"project_id"`
	ProjectName   string    `json:"project_name"`
	ProjectStatus string    `json:"project_status"`
	OtherID       string    `json:"other_id"`
	OtherName     string    `json:"other_name"`
	OtherRole     Role      `json:"other_role"`
	LastBody      string    `json:"last_body,omitempty"`
	LastSenderID  string    `json:"last_sender_id,omitempty"`
	LastAt        time.Time `json:"last_at"`
	LastIsMine    bool      `json:"last_is_mine"`
	UnreadCount   int64     `json:"unread_count"`
}
