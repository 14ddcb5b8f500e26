package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/gocql/gocql"

	"github.com/gramsetu/scheme-portal/pkg/db"
	"github.com/gramsetu/scheme-portal/pkg/model"
	"github.com/gramsetu/scheme-portal/pkg/snowflake"
)

// Scylla persists messages in the portal keyspace. Layout follows the
// message-partition pattern: the messages table is partitioned by
// conversation key and clustered by the time-ordered id, user_conversations
// holds a denormalized summary row per participant, and unread counts live
// in a counter table reset by deletion.
type Scylla struct {
	session *db.Session
	ids     *snowflake.Node
}

func NewScylla(session *db.Session, ids *snowflake.Node) *Scylla {
	return &Scylla{session: session, ids: ids}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func encodeMetadata(md *model.Metadata) string {
	if md == nil {
		return ""
	}
	b, err := json.Marshal(md)
	if err != nil {
		return ""
	}
	return string(b)
}

func decodeMetadata(s string) *model.Metadata {
	if s == "" {
		return nil
	}
	var md model.Metadata
	if err := json.Unmarshal([]byte(s), &md); err != nil {
		return nil
	}
	return &md
}

func (s *Scylla) Append(ctx context.Context, m *model.Message, project model.Project) error {
	if err := validate(m); err != nil {
		return err
	}

	m.ID = s.ids.Generate()
	m.CreatedAt = time.Now().UTC()
	m.Read = false
	m.ReadAt = nil

	const insert = `INSERT INTO messages
		(conversation_key, id, project_id, sender_id, sender_name, sender_role,
		 receiver_id, receiver_name, receiver_role, body, kind, priority,
		 metadata, read, read_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if err := s.session.Query(insert,
		m.ConversationKey, m.ID, m.ProjectID, m.SenderID, m.SenderName, string(m.SenderRole),
		m.ReceiverID, m.ReceiverName, string(m.ReceiverRole), m.Body, string(m.Kind), string(m.Priority),
		encodeMetadata(m.Metadata), false, nil, m.CreatedAt).WithContext(ctx).Exec(); err != nil {
		return unavailable(err)
	}

	// Summary rows for both directions. Failures past the message insert
	// are logged upstream but not rolled back; the messages partition is
	// the record of truth.
	const upsert = `INSERT INTO user_conversations
		(user_id, conversation_key, project_id, project_name, project_status,
		 other_id, other_name, other_role, last_body, last_sender_id, last_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if err := s.session.Query(upsert,
		m.SenderID, m.ConversationKey, m.ProjectID, project.Name, project.Status,
		m.ReceiverID, m.ReceiverName, string(m.ReceiverRole), m.Body, m.SenderID, m.CreatedAt).WithContext(ctx).Exec(); err != nil {
		return unavailable(err)
	}
	if err := s.session.Query(upsert,
		m.ReceiverID, m.ConversationKey, m.ProjectID, project.Name, project.Status,
		m.SenderID, m.SenderName, string(m.SenderRole), m.Body, m.SenderID, m.CreatedAt).WithContext(ctx).Exec(); err != nil {
		return unavailable(err)
	}

	const bump = `UPDATE conversation_counters SET unread_count = unread_count + 1
		WHERE user_id = ? AND conversation_key = ?`
	if err := s.session.Query(bump, m.ReceiverID, m.ConversationKey).WithContext(ctx).Exec(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Scylla) ListByConversation(ctx context.Context, key string, limit int, afterID int64) ([]model.Message, error) {
	limit = clampLimit(limit)
	const q = `SELECT conversation_key, id, project_id, sender_id, sender_name, sender_role,
		receiver_id, receiver_name, receiver_role, body, kind, priority, metadata,
		read, read_at, created_at
		FROM messages WHERE conversation_key = ? AND id > ? LIMIT ?`
	iter := s.session.Query(q, key, afterID, limit).WithContext(ctx).Iter()

	var out []model.Message
	var m model.Message
	var senderRole, receiverRole, kind, priority, metadata string
	var readAt time.Time
	for iter.Scan(&m.ConversationKey, &m.ID, &m.ProjectID, &m.SenderID, &m.SenderName, &senderRole,
		&m.ReceiverID, &m.ReceiverName, &receiverRole, &m.Body, &kind, &priority, &metadata,
		&m.Read, &readAt, &m.CreatedAt) {
		m.SenderRole = model.Role(senderRole)
		m.ReceiverRole = model.Role(receiverRole)
		m.Kind = model.MessageKind(kind)
		m.Priority = model.Priority(priority)
		m.Metadata = decodeMetadata(metadata)
		if m.Read && !readAt.IsZero() {
			t := readAt
			m.ReadAt = &t
		} else {
			m.ReadAt = nil
		}
		out = append(out, m)
	}
	if err := iter.Close(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func (s *Scylla) ListConversationsFor(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	const q = `SELECT conversation_key, project_id, project_name, project_status,
		other_id, other_name, other_role, last_body, last_sender_id, last_at
		FROM user_conversations WHERE user_id = ?`
	iter := s.session.Query(q, userID).WithContext(ctx).Iter()

	var out []model.ConversationSummary
	var c model.ConversationSummary
	var otherRole string
	for iter.Scan(&c.Key, &c.ProjectID, &c.ProjectName, &c.ProjectStatus,
		&c.OtherID, &c.OtherName, &otherRole, &c.LastBody, &c.LastSenderID, &c.LastAt) {
		c.OtherRole = model.Role(otherRole)
		c.LastIsMine = c.LastSenderID == userID
		c.UnreadCount = 0
		out = append(out, c)
	}
	if err := iter.Close(); err != nil {
		return nil, unavailable(err)
	}

	for i := range out {
		var count int64
		err := s.session.Query(`SELECT unread_count FROM conversation_counters
			WHERE user_id = ? AND conversation_key = ?`, userID, out[i].Key).WithContext(ctx).Scan(&count)
		if err == nil {
			out[i].UnreadCount = count
		} else if err != gocql.ErrNotFound {
			return nil, unavailable(err)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].LastAt.After(out[j].LastAt) })
	return out, nil
}

func (s *Scylla) MarkRead(ctx context.Context, key, readerID string) (int, error) {
	iter := s.session.Query(`SELECT id, receiver_id, read FROM messages WHERE conversation_key = ?`,
		key).WithContext(ctx).Iter()

	var pending []int64
	var id int64
	var receiverID string
	var read bool
	for iter.Scan(&id, &receiverID, &read) {
		if receiverID == readerID && !read {
			pending = append(pending, id)
		}
	}
	if err := iter.Close(); err != nil {
		return 0, unavailable(err)
	}

	now := time.Now().UTC()
	for _, id := range pending {
		if err := s.session.Query(`UPDATE messages SET read = true, read_at = ?
			WHERE conversation_key = ? AND id = ?`, now, key, id).WithContext(ctx).Exec(); err != nil {
			return 0, unavailable(err)
		}
	}

	// Counter reset by deletion.
	if err := s.session.Query(`DELETE FROM conversation_counters
		WHERE user_id = ? AND conversation_key = ?`, readerID, key).WithContext(ctx).Exec(); err != nil {
		return 0, unavailable(err)
	}
	return len(pending), nil
}

func (s *Scylla) UnreadCountFor(ctx context.Context, userID string) (int64, error) {
	iter := s.session.Query(`SELECT unread_count FROM conversation_counters WHERE user_id = ?`,
		userID).WithContext(ctx).Iter()
	var total, count int64
	for iter.Scan(&count) {
		total += count
	}
	if err := iter.Close(); err != nil {
		return 0, unavailable(err)
	}
	return total, nil
}

func (s *Scylla) HasMessages(ctx context.Context, key string) (bool, error) {
	var id int64
	err := s.session.Query(`SELECT id FROM messages WHERE conversation_key = ? LIMIT 1`,
		key).WithContext(ctx).Scan(&id)
	if err == gocql.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, unavailable(err)
	}
	return true, nil
}

// ScyllaDirectory reads the portal's users and projects collections.
type ScyllaDirectory struct {
	session *db.Session
}

func NewScyllaDirectory(session *db.Session) *ScyllaDirectory {
	return &ScyllaDirectory{session: session}
}

func (d *ScyllaDirectory) Identity(ctx context.Context, id string) (model.Identity, error) {
	var ident model.Identity
	var role string
	err := d.session.Query(`SELECT id, name, role FROM users WHERE id = ?`, id).
		WithContext(ctx).Scan(&ident.ID, &ident.Name, &role)
	if err == gocql.ErrNotFound {
		return model.Identity{}, fmt.Errorf("%w: unknown user %s", ErrValidation, id)
	}
	if err != nil {
		return model.Identity{}, unavailable(err)
	}
	ident.Role = model.Role(role)
	return ident, nil
}

func (d *ScyllaDirectory) Project(ctx context.Context, id string) (model.Project, error) {
	var p model.Project
	err := d.session.Query(`SELECT id, name, status FROM projects WHERE id = ?`, id).
		WithContext(ctx).Scan(&p.ID, &p.Name, &p.Status)
	if err == gocql.ErrNotFound {
		return model.Project{}, fmt.Errorf("%w: unknown project %s", ErrValidation, id)
	}
	if err != nil {
		return model.Project{}, unavailable(err)
	}
	return p, nil
}
