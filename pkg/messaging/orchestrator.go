// Package messaging is the request/response surface over the message store
// and the realtime plumbing: list conversations, history, send,
// initiate-or-resume, read state, system notices.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gramsetu/scheme-portal/pkg/auth"
	"github.com/gramsetu/scheme-portal/pkg/convkey"
	"github.com/gramsetu/scheme-portal/pkg/metrics"
	"github.com/gramsetu/scheme-portal/pkg/model"
	"github.com/gramsetu/scheme-portal/pkg/store"
)

// ErrNotAParticipant is returned when a caller touches a conversation they
// are not party to. Surfaced to the UI as an authorization failure.
var ErrNotAParticipant = errors.New("not a participant")

// Router delivers an event to one identity's personal channel.
type Router interface {
	RouteTo(userID string, ev model.Event) bool
}

// RoomNotifier broadcasts an event to everyone currently joined to a
// conversation room.
type RoomNotifier interface {
	BroadcastRoom(key string, ev model.Event)
}

type Orchestrator struct {
	store  store.Store
	dir    store.Directory
	router Router
	rooms  RoomNotifier
}

func NewOrchestrator(st store.Store, dir store.Directory, router Router, rooms RoomNotifier) *Orchestrator {
	return &Orchestrator{store: st, dir: dir, router: router, rooms: rooms}
}

// SendInput is a user-initiated message. Kind is always text; system kinds
// go through CreateSystemNotice.
type SendInput struct {
	ProjectID  string
	ReceiverID string
	Body       string
	Priority   model.Priority
}

// NoticeInput is a workflow-generated message (project approval/rejection).
type NoticeInput struct {
	ProjectID string
	FromID    string
	ToID      string
	Body      string
	Kind      model.MessageKind
	Reason    string
}

func requireEligible(ident model.Identity) error {
	if !model.EligibleForMessaging(ident.Role) {
		return fmt.Errorf("%w: role %q may not use messaging", auth.ErrAuthorizationFailed, ident.Role)
	}
	return nil
}

// requireFacing checks the counterpart of a conversation: messaging exists
// for the submitter/reviewer exchange, so the counterpart must hold the
// eligible role the caller does not.
func requireFacing(caller, counterpart model.Identity) error {
	if !model.EligibleForMessaging(counterpart.Role) {
		return fmt.Errorf("%w: counterpart role %q may not use messaging", store.ErrValidation, counterpart.Role)
	}
	if counterpart.Role == caller.Role {
		return fmt.Errorf("%w: %s and %s hold the same role", store.ErrValidation, caller.ID, counterpart.ID)
	}
	return nil
}

// retryRead re-attempts idempotent reads on transient store failures.
// Appends are never retried here: a blind retry risks duplicates.
func retryRead[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var out T
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		out, err = fn()
		if err == nil || !errors.Is(err, store.ErrUnavailable) {
			return out, err
		}
		select {
		case <-ctx.Done():
			return out, err
		case <-time.After(time.Duration(attempt+1) * 100 * time.Millisecond):
		}
	}
	return out, err
}

func (o *Orchestrator) ListConversations(ctx context.Context, caller model.Identity) ([]model.ConversationSummary, error) {
	if err := requireEligible(caller); err != nil {
		return nil, err
	}
	return retryRead(ctx, func() ([]model.ConversationSummary, error) {
		return o.store.ListConversationsFor(ctx, caller.ID)
	})
}

func (o *Orchestrator) GetHistory(ctx context.Context, caller model.Identity, key string, limit int, afterID int64) ([]model.Message, error) {
	if err := requireEligible(caller); err != nil {
		return nil, err
	}
	if !convkey.IsParticipant(key, caller.ID) {
		return nil, fmt.Errorf("%w: %s is not party to this conversation", ErrNotAParticipant, caller.ID)
	}
	return retryRead(ctx, func() ([]model.Message, error) {
		return o.store.ListByConversation(ctx, key, limit, afterID)
	})
}

// Send persists the message and returns it once the append is durable.
// Realtime fan-out is fire-and-forget: delivery failure never fails the call.
func (o *Orchestrator) Send(ctx context.Context, sender model.Identity, in SendInput) (*model.Message, error) {
	if err := requireEligible(sender); err != nil {
		return nil, err
	}
	if in.Priority == "" {
		in.Priority = model.PriorityMedium
	}

	receiver, err := o.dir.Identity(ctx, in.ReceiverID)
	if err != nil {
		return nil, err
	}
	if err := requireFacing(sender, receiver); err != nil {
		return nil, err
	}
	project, err := o.dir.Project(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	key, err := convkey.Resolve(sender.ID, receiver.ID, project.ID)
	if err != nil {
		return nil, err
	}

	m := &model.Message{
		ConversationKey: key,
		ProjectID:       project.ID,
		SenderID:        sender.ID,
		SenderName:      sender.Name,
		SenderRole:      sender.Role,
		ReceiverID:      receiver.ID,
		ReceiverName:    receiver.Name,
		ReceiverRole:    receiver.Role,
		Body:            in.Body,
		Kind:            model.KindText,
		Priority:        in.Priority,
	}
	if err := o.store.Append(ctx, m, project); err != nil {
		return nil, err
	}
	metrics.MessagesAppended.WithLabelValues(string(m.Kind)).Inc()

	go o.fanOut(*m)
	return m, nil
}

// InitiateOrResume is idempotent: the key is deterministic and append is the
// only mutating primitive, so concurrent initiations between the same pair
// for the same project converge on one thread. Without an opening body and
// without prior messages the conversation has no stored existence yet; the
// returned summary describes the to-be conversation.
func (o *Orchestrator) InitiateOrResume(ctx context.Context, caller model.Identity, projectID, counterpartID, openingBody string) (model.ConversationSummary, error) {
	if err := requireEligible(caller); err != nil {
		return model.ConversationSummary{}, err
	}
	counterpart, err := o.dir.Identity(ctx, counterpartID)
	if err != nil {
		return model.ConversationSummary{}, err
	}
	if err := requireFacing(caller, counterpart); err != nil {
		return model.ConversationSummary{}, err
	}
	project, err := o.dir.Project(ctx, projectID)
	if err != nil {
		return model.ConversationSummary{}, err
	}
	key, err := convkey.Resolve(caller.ID, counterpart.ID, project.ID)
	if err != nil {
		return model.ConversationSummary{}, err
	}

	if openingBody != "" {
		if _, err := o.Send(ctx, caller, SendInput{
			ProjectID:  projectID,
			ReceiverID: counterpartID,
			Body:       openingBody,
		}); err != nil {
			return model.ConversationSummary{}, err
		}
	}

	exists, err := retryRead(ctx, func() (bool, error) {
		return o.store.HasMessages(ctx, key)
	})
	if err != nil {
		return model.ConversationSummary{}, err
	}
	if exists {
		summaries, err := retryRead(ctx, func() ([]model.ConversationSummary, error) {
			return o.store.ListConversationsFor(ctx, caller.ID)
		})
		if err != nil {
			return model.ConversationSummary{}, err
		}
		for _, s := range summaries {
			if s.Key == key {
				return s, nil
			}
		}
	}

	return model.ConversationSummary{
		Key:           key,
		ProjectID:     project.ID,
		ProjectName:   project.Name,
		ProjectStatus: project.Status,
		OtherID:       counterpart.ID,
		OtherName:     counterpart.Name,
		OtherRole:     counterpart.Role,
	}, nil
}

// MarkRead is idempotent; marking an already-read conversation updates zero
// records and is not an error.
func (o *Orchestrator) MarkRead(ctx context.Context, caller model.Identity, key string) (int, error) {
	if err := requireEligible(caller); err != nil {
		return 0, err
	}
	if !convkey.IsParticipant(key, caller.ID) {
		return 0, fmt.Errorf("%w: %s is not party to this conversation", ErrNotAParticipant, caller.ID)
	}
	return o.store.MarkRead(ctx, key, caller.ID)
}

func (o *Orchestrator) UnreadCount(ctx context.Context, caller model.Identity) (int64, error) {
	if err := requireEligible(caller); err != nil {
		return 0, err
	}
	return retryRead(ctx, func() (int64, error) {
		return o.store.UnreadCountFor(ctx, caller.ID)
	})
}

// CreateSystemNotice is the privileged path used by the project-approval
// workflow. It behaves like Send with a system kind and structured metadata,
// and additionally routes a project_approved/project_rejected event to the
// recipient's personal channel.
func (o *Orchestrator) CreateSystemNotice(ctx context.Context, in NoticeInput) (*model.Message, error) {
	if !in.Kind.System() {
		return nil, fmt.Errorf("%w: kind %q is not a system notice", store.ErrValidation, in.Kind)
	}
	from, err := o.dir.Identity(ctx, in.FromID)
	if err != nil {
		return nil, err
	}
	to, err := o.dir.Identity(ctx, in.ToID)
	if err != nil {
		return nil, err
	}
	project, err := o.dir.Project(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	key, err := convkey.Resolve(from.ID, to.ID, project.ID)
	if err != nil {
		return nil, err
	}

	m := &model.Message{
		ConversationKey: key,
		ProjectID:       project.ID,
		SenderID:        from.ID,
		SenderName:      from.Name,
		SenderRole:      from.Role,
		ReceiverID:      to.ID,
		ReceiverName:    to.Name,
		ReceiverRole:    to.Role,
		Body:            in.Body,
		Kind:            in.Kind,
		Priority:        model.PriorityHigh,
		Metadata:        &model.Metadata{ProjectName: project.Name, Reason: in.Reason},
	}
	if err := o.store.Append(ctx, m, project); err != nil {
		return nil, err
	}
	metrics.MessagesAppended.WithLabelValues(string(m.Kind)).Inc()

	go func(m model.Message) {
		o.fanOut(m)
		evType := model.EventProjectApproved
		if m.Kind == model.KindRejectionNotice {
			evType = model.EventProjectRejected
		}
		o.router.RouteTo(m.ReceiverID, model.Event{
			Type:            evType,
			ConversationKey: m.ConversationKey,
			Message:         &m,
		})
	}(*m)
	return m, nil
}

func (o *Orchestrator) fanOut(m model.Message) {
	delivered := o.router.RouteTo(m.ReceiverID, model.Event{
		Type:            model.EventNewMessage,
		ConversationKey: m.ConversationKey,
		Message:         &m,
	})
	if delivered {
		metrics.RealtimeDelivered.Inc()
	} else {
		metrics.RealtimeSkipped.Inc()
	}
	o.rooms.BroadcastRoom(m.ConversationKey, model.Event{
		Type:    model.EventMessageReceived,
		Message: &m,
	})
}
