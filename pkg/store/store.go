// Package store is the durable message layer. Conversations are implicit:
// appending a message under a key is the only mutating primitive, so there is
// no separate create-conversation step to race on.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/gramsetu/scheme-portal/pkg/convkey"
	"github.com/gramsetu/scheme-portal/pkg/model"
)

var (
	// ErrValidation is terminal: callers must not retry.
	ErrValidation = errors.New("validation error")
	// ErrUnavailable is transient: idempotent reads may be retried with
	// backoff; appends must not be silently retried.
	ErrUnavailable = errors.New("store unavailable")
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// Store is the append-only record of messages with read-state tracking.
// Implementations assign the message id and creation timestamp on Append.
type Store interface {
	// Append persists m after validation. The project argument is the
	// label snapshot denormalized into both participants' conversation
	// summaries.
	Append(ctx context.Context, m *model.Message, project model.Project) error

	// ListByConversation returns messages in ascending append order.
	// afterID is a resume cursor (0 means from the beginning).
	ListByConversation(ctx context.Context, key string, limit int, afterID int64) ([]model.Message, error)

	// ListConversationsFor returns one summary per conversation involving
	// userID, most recently active first.
	ListConversationsFor(ctx context.Context, userID string) ([]model.ConversationSummary, error)

	// MarkRead flags all unread messages in the conversation addressed to
	// readerID and returns how many were updated. Idempotent.
	MarkRead(ctx context.Context, key, readerID string) (int, error)

	// UnreadCountFor totals unread messages addressed to userID across
	// all conversations.
	UnreadCountFor(ctx context.Context, userID string) (int64, error)

	// HasMessages reports whether any message exists under key.
	HasMessages(ctx context.Context, key string) (bool, error)
}

// Directory resolves external identity and project references. Both are
// owned by other portal services; messaging only reads them.
type Directory interface {
	Identity(ctx context.Context, id string) (model.Identity, error)
	Project(ctx context.Context, id string) (model.Project, error)
}

func validate(m *model.Message) error {
	if m.Body == "" {
		return fmt.Errorf("%w: empty body", ErrValidation)
	}
	if m.SenderID == "" || m.ReceiverID == "" {
		return fmt.Errorf("%w: missing participant id", ErrValidation)
	}
	if m.SenderID == m.ReceiverID {
		return fmt.Errorf("%w: sender equals receiver", ErrValidation)
	}
	if m.ProjectID == "" {
		return fmt.Errorf("%w: missing project id", ErrValidation)
	}
	if !m.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrValidation, m.Kind)
	}
	if !m.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrValidation, m.Priority)
	}
	want, err := convkey.Resolve(m.SenderID, m.ReceiverID, m.ProjectID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if m.ConversationKey != want {
		return fmt.Errorf("%w: conversation key does not match participants", ErrValidation)
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}
