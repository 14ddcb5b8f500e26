package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gramsetu/scheme-portal/pkg/model"
	"github.com/gramsetu/scheme-portal/pkg/snowflake"
)

// Memory is an in-process Store with the same semantics as the Scylla
// implementation. Unit tests run against it; it also backs local development
// without a database.
type Memory struct {
	mu       sync.Mutex
	ids      *snowflake.Node
	messages map[string][]model.Message // key -> append order
	projects map[string]model.Project   // key -> label snapshot
}

func NewMemory() *Memory {
	ids, _ := snowflake.NewNode(1)
	return &Memory{
		ids:      ids,
		messages: make(map[string][]model.Message),
		projects: make(map[string]model.Project),
	}
}

func (s *Memory) Append(ctx context.Context, m *model.Message, project model.Project) error {
	if err := validate(m); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = s.ids.Generate()
	m.CreatedAt = time.Now().UTC()
	m.Read = false
	m.ReadAt = nil

	s.messages[m.ConversationKey] = append(s.messages[m.ConversationKey], *m)
	s.projects[m.ConversationKey] = project
	return nil
}

func (s *Memory) ListByConversation(ctx context.Context, key string, limit int, afterID int64) ([]model.Message, error) {
	limit = clampLimit(limit)
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Message
	for _, m := range s.messages[key] {
		if m.ID <= afterID {
			continue
		}
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Memory) ListConversationsFor(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.ConversationSummary
	for key, msgs := range s.messages {
		if len(msgs) == 0 {
			continue
		}
		last := msgs[len(msgs)-1]
		if last.SenderID != userID && last.ReceiverID != userID {
			continue
		}
		c := model.ConversationSummary{
			Key:           key,
			ProjectID:     last.ProjectID,
			ProjectName:   s.projects[key].Name,
			ProjectStatus: s.projects[key].Status,
			LastBody:      last.Body,
			LastSenderID:  last.SenderID,
			LastAt:        last.CreatedAt,
			LastIsMine:    last.SenderID == userID,
		}
		if last.SenderID == userID {
			c.OtherID, c.OtherName, c.OtherRole = last.ReceiverID, last.ReceiverName, last.ReceiverRole
		} else {
			c.OtherID, c.OtherName, c.OtherRole = last.SenderID, last.SenderName, last.SenderRole
		}
		for _, m := range msgs {
			if m.ReceiverID == userID && !m.Read {
				c.UnreadCount++
			}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastAt.After(out[j].LastAt) })
	return out, nil
}

func (s *Memory) MarkRead(ctx context.Context, key, readerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	updated := 0
	msgs := s.messages[key]
	for i := range msgs {
		if msgs[i].ReceiverID == readerID && !msgs[i].Read {
			msgs[i].Read = true
			t := now
			msgs[i].ReadAt = &t
			updated++
		}
	}
	return updated, nil
}

func (s *Memory) UnreadCountFor(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, msgs := range s.messages {
		for _, m := range msgs {
			if m.ReceiverID == userID && !m.Read {
				total++
			}
		}
	}
	return total, nil
}

func (s *Memory) HasMessages(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages[key]) > 0, nil
}

// MemoryDirectory is a fixed identity/project lookup for tests and local
// development.
type MemoryDirectory struct {
	Identities map[string]model.Identity
	Projects   map[string]model.Project
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		Identities: make(map[string]model.Identity),
		Projects:   make(map[string]model.Project),
	}
}

func (d *MemoryDirectory) AddIdentity(id model.Identity) { d.Identities[id.ID] = id }
func (d *MemoryDirectory) AddProject(p model.Project)    { d.Projects[p.ID] = p }

func (d *MemoryDirectory) Identity(ctx context.Context, id string) (model.Identity, error) {
	ident, ok := d.Identities[id]
	if !ok {
		return model.Identity{}, fmt.Errorf("%w: unknown user %s", ErrValidation, id)
	}
	return ident, nil
}

func (d *MemoryDirectory) Project(ctx context.Context, id string) (model.Project, error) {
	p, ok := d.Projects[id]
	if !ok {
		return model.Project{}, fmt.Errorf("%w: unknown project %s", ErrValidation, id)
	}
	return p, nil
}
