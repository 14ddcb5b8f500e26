package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gramsetu/scheme-portal/pkg/auth"
	"github.com/gramsetu/scheme-portal/pkg/convkey"
	"github.com/gramsetu/scheme-portal/pkg/model"
	"github.com/gramsetu/scheme-portal/pkg/store"
)

type fakeRealtime struct {
	mu     sync.Mutex
	routed map[string][]model.Event
	rooms  map[string][]model.Event
	online map[string]bool
}

func newFakeRealtime() *fakeRealtime {
	return &fakeRealtime{
		routed: make(map[string][]model.Event),
		rooms:  make(map[string][]model.Event),
		online: make(map[string]bool),
	}
}

func (f *fakeRealtime) RouteTo(userID string, ev model.Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routed[userID] = append(f.routed[userID], ev)
	return f.online[userID]
}

func (f *fakeRealtime) BroadcastRoom(key string, ev model.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[key] = append(f.rooms[key], ev)
}

func (f *fakeRealtime) routedTo(userID string) []model.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Event, len(f.routed[userID]))
	copy(out, f.routed[userID])
	return out
}

func (f *fakeRealtime) roomEvents(key string) []model.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Event, len(f.rooms[key]))
	copy(out, f.rooms[key])
	return out
}

var (
	gp1   = model.Identity{ID: "gp1", Name: "Rampur GP", Role: model.RoleGramPanchayat}
	gp2   = model.Identity{ID: "gp2", Name: "Basoli GP", Role: model.RoleGramPanchayat}
	pacc1 = model.Identity{ID: "pacc1", Name: "District PACC", Role: model.RolePACC}
	clerk = model.Identity{ID: "clerk1", Name: "State Clerk", Role: "state_clerk"}
)

func newFixture(t *testing.T) (*Orchestrator, *fakeRealtime) {
	t.Helper()
	dir := store.NewMemoryDirectory()
	dir.AddIdentity(gp1)
	dir.AddIdentity(gp2)
	dir.AddIdentity(pacc1)
	dir.AddIdentity(clerk)
	dir.AddProject(model.Project{ID: "projX", Name: "Village Road", Status: "submitted"})
	rt := newFakeRealtime()
	return NewOrchestrator(store.NewMemory(), dir, rt, rt), rt
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSendScenario(t *testing.T) {
	ctx := context.Background()
	o, rt := newFixture(t)

	m, err := o.Send(ctx, gp1, SendInput{ProjectID: "projX", ReceiverID: "pacc1", Body: "please review"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if m.SenderID != "gp1" || m.ReceiverID != "pacc1" || m.Read {
		t.Fatalf("unexpected message %+v", m)
	}
	if m.Kind != model.KindText || m.Priority != model.PriorityMedium {
		t.Fatalf("defaults not applied: %+v", m)
	}

	for _, who := range []string{"gp1", "pacc1"} {
		ident := gp1
		if who == "pacc1" {
			ident = pacc1
		}
		convs, err := o.ListConversations(ctx, ident)
		if err != nil || len(convs) != 1 {
			t.Fatalf("%s conversations: %v, %d", who, err, len(convs))
		}
		if convs[0].ProjectID != "projX" || convs[0].LastBody != "please review" {
			t.Fatalf("%s summary wrong: %+v", who, convs[0])
		}
	}

	if n, _ := o.UnreadCount(ctx, pacc1); n != 1 {
		t.Fatalf("pacc1 unread = %d, want 1", n)
	}
	updated, err := o.MarkRead(ctx, pacc1, m.ConversationKey)
	if err != nil || updated != 1 {
		t.Fatalf("mark read: %d, %v", updated, err)
	}
	if n, _ := o.UnreadCount(ctx, pacc1); n != 0 {
		t.Fatalf("pacc1 unread after read = %d, want 0", n)
	}
	convs, _ := o.ListConversations(ctx, pacc1)
	if convs[0].UnreadCount != 0 {
		t.Fatalf("summary unread = %d, want 0", convs[0].UnreadCount)
	}

	// Fan-out is asynchronous and best-effort.
	waitFor(t, "receiver fan-out", func() bool { return len(rt.routedTo("pacc1")) == 1 })
	if ev := rt.routedTo("pacc1")[0]; ev.Type != model.EventNewMessage || ev.Message == nil {
		t.Fatalf("unexpected event %+v", ev)
	}
	waitFor(t, "room fan-out", func() bool { return len(rt.roomEvents(m.ConversationKey)) == 1 })
	if ev := rt.roomEvents(m.ConversationKey)[0]; ev.Type != model.EventMessageReceived {
		t.Fatalf("unexpected room event %+v", ev)
	}
}

func TestSendOfflineReceiverStillPersists(t *testing.T) {
	ctx := context.Background()
	o, _ := newFixture(t)

	// fakeRealtime reports pacc1 offline; the call must still succeed.
	m, err := o.Send(ctx, gp1, SendInput{ProjectID: "projX", ReceiverID: "pacc1", Body: "hello"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	msgs, err := o.GetHistory(ctx, gp1, m.ConversationKey, 0, 0)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("history: %v, %d messages", err, len(msgs))
	}
}

func TestRoleGate(t *testing.T) {
	ctx := context.Background()
	o, _ := newFixture(t)
	key, _ := convkey.Resolve("gp1", "pacc1", "projX")

	if _, err := o.ListConversations(ctx, clerk); !errors.Is(err, auth.ErrAuthorizationFailed) {
		t.Fatalf("ListConversations: %v", err)
	}
	if _, err := o.GetHistory(ctx, clerk, key, 0, 0); !errors.Is(err, auth.ErrAuthorizationFailed) {
		t.Fatalf("GetHistory: %v", err)
	}
	if _, err := o.Send(ctx, clerk, SendInput{ProjectID: "projX", ReceiverID: "pacc1", Body: "x"}); !errors.Is(err, auth.ErrAuthorizationFailed) {
		t.Fatalf("Send: %v", err)
	}
	if _, err := o.InitiateOrResume(ctx, clerk, "projX", "pacc1", ""); !errors.Is(err, auth.ErrAuthorizationFailed) {
		t.Fatalf("InitiateOrResume: %v", err)
	}
	if _, err := o.MarkRead(ctx, clerk, key); !errors.Is(err, auth.ErrAuthorizationFailed) {
		t.Fatalf("MarkRead: %v", err)
	}
	if _, err := o.UnreadCount(ctx, clerk); !errors.Is(err, auth.ErrAuthorizationFailed) {
		t.Fatalf("UnreadCount: %v", err)
	}
}

func TestSendToIneligibleReceiver(t *testing.T) {
	ctx := context.Background()
	o, _ := newFixture(t)
	if _, err := o.Send(ctx, gp1, SendInput{ProjectID: "projX", ReceiverID: "clerk1", Body: "x"}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSendRejectsSameRolePair(t *testing.T) {
	ctx := context.Background()
	o, _ := newFixture(t)

	// Two village submitters may not converse with each other.
	if _, err := o.Send(ctx, gp1, SendInput{ProjectID: "projX", ReceiverID: "gp2", Body: "x"}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	key, _ := convkey.Resolve("gp1", "gp2", "projX")
	msgs, err := o.GetHistory(ctx, gp1, key, 0, 0)
	if err != nil || len(msgs) != 0 {
		t.Fatalf("rejected send left %d messages (%v)", len(msgs), err)
	}

	if _, err := o.Send(ctx, pacc1, SendInput{ProjectID: "projX", ReceiverID: "pacc1", Body: "x"}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ErrValidation for self-send, got %v", err)
	}
}

func TestInitiateOrResumeChecksCounterpart(t *testing.T) {
	ctx := context.Background()
	o, _ := newFixture(t)

	// Bodyless initiation toward an ineligible role must not return a summary.
	if _, err := o.InitiateOrResume(ctx, gp1, "projX", "clerk1", ""); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("initiate toward ineligible role: expected ErrValidation, got %v", err)
	}
	if _, err := o.InitiateOrResume(ctx, gp1, "projX", "gp2", ""); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("initiate toward same role: expected ErrValidation, got %v", err)
	}
	convs, err := o.ListConversations(ctx, gp1)
	if err != nil || len(convs) != 0 {
		t.Fatalf("rejected initiations left conversations: %+v (%v)", convs, err)
	}
}

func TestGetHistoryNotAParticipant(t *testing.T) {
	ctx := context.Background()
	o, _ := newFixture(t)
	dirKey, _ := convkey.Resolve("gp2", "pacc1", "projX")

	if _, err := o.GetHistory(ctx, gp1, dirKey, 0, 0); !errors.Is(err, ErrNotAParticipant) {
		t.Fatalf("expected ErrNotAParticipant, got %v", err)
	}
	if _, err := o.MarkRead(ctx, gp1, dirKey); !errors.Is(err, ErrNotAParticipant) {
		t.Fatalf("expected ErrNotAParticipant, got %v", err)
	}
}

func TestInitiateOrResumeSemantics(t *testing.T) {
	ctx := context.Background()
	o, _ := newFixture(t)
	key, _ := convkey.Resolve("gp1", "pacc1", "projX")

	// Two initiations without an opening body: no phantom conversation.
	for i := 0; i < 2; i++ {
		summary, err := o.InitiateOrResume(ctx, gp1, "projX", "pacc1", "")
		if err != nil {
			t.Fatalf("initiate %d: %v", i, err)
		}
		if summary.Key != key || summary.OtherID != "pacc1" || summary.ProjectName != "Village Road" {
			t.Fatalf("summary wrong: %+v", summary)
		}
		msgs, _ := o.GetHistory(ctx, gp1, key, 0, 0)
		if len(msgs) != 0 {
			t.Fatalf("phantom messages after initiate: %d", len(msgs))
		}
		convs, _ := o.ListConversations(ctx, gp1)
		if len(convs) != 0 {
			t.Fatalf("phantom conversation row: %+v", convs)
		}
	}

	// Third call with an opening body creates exactly one message.
	summary, err := o.InitiateOrResume(ctx, gp1, "projX", "pacc1", "namaste")
	if err != nil {
		t.Fatalf("initiate with body: %v", err)
	}
	if summary.LastBody != "namaste" || !summary.LastIsMine {
		t.Fatalf("summary did not reflect opening message: %+v", summary)
	}
	msgs, _ := o.GetHistory(ctx, gp1, key, 0, 0)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	convs, _ := o.ListConversations(ctx, gp1)
	if len(convs) != 1 || convs[0].Key != key {
		t.Fatalf("expected exactly one conversation, got %+v", convs)
	}

	// Initiating from the other side resumes the same thread.
	if _, err := o.InitiateOrResume(ctx, pacc1, "projX", "gp1", "received"); err != nil {
		t.Fatalf("resume from counterpart: %v", err)
	}
	msgs, _ = o.GetHistory(ctx, gp1, key, 0, 0)
	if len(msgs) != 2 {
		t.Fatalf("resume diverged: %d messages", len(msgs))
	}
	convs, _ = o.ListConversations(ctx, gp1)
	if len(convs) != 1 {
		t.Fatalf("resume created a second conversation: %+v", convs)
	}
}

func TestConcurrentInitiationsConverge(t *testing.T) {
	ctx := context.Background()
	o, _ := newFixture(t)
	key, _ := convkey.Resolve("gp1", "pacc1", "projX")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		caller, counterpart := gp1, "pacc1"
		if i%2 == 1 {
			caller, counterpart = pacc1, "gp1"
		}
		go func() {
			defer wg.Done()
			if _, err := o.InitiateOrResume(ctx, caller, "projX", counterpart, "opening"); err != nil {
				t.Errorf("initiate: %v", err)
			}
		}()
	}
	wg.Wait()

	convs, err := o.ListConversations(ctx, gp1)
	if err != nil || len(convs) != 1 {
		t.Fatalf("expected a single converged conversation, got %d (%v)", len(convs), err)
	}
	msgs, _ := o.GetHistory(ctx, gp1, key, 100, 0)
	if len(msgs) != 8 {
		t.Fatalf("expected 8 messages under one key, got %d", len(msgs))
	}
}

func TestCreateSystemNotice(t *testing.T) {
	ctx := context.Background()
	o, rt := newFixture(t)

	m, err := o.CreateSystemNotice(ctx, NoticeInput{
		ProjectID: "projX",
		FromID:    "pacc1",
		ToID:      "gp1",
		Body:      "Project rejected: incomplete estimates",
		Kind:      model.KindRejectionNotice,
		Reason:    "incomplete estimates",
	})
	if err != nil {
		t.Fatalf("notice: %v", err)
	}
	if m.Metadata == nil || m.Metadata.Reason != "incomplete estimates" || m.Metadata.ProjectName != "Village Road" {
		t.Fatalf("metadata wrong: %+v", m.Metadata)
	}
	if m.Priority != model.PriorityHigh {
		t.Fatalf("notice priority = %s", m.Priority)
	}

	// Persisted like any message: shows up in history and unread counts.
	if n, _ := o.UnreadCount(ctx, gp1); n != 1 {
		t.Fatalf("gp1 unread = %d", n)
	}
	waitFor(t, "rejection event", func() bool {
		for _, ev := range rt.routedTo("gp1") {
			if ev.Type == model.EventProjectRejected {
				return true
			}
		}
		return false
	})
}

func TestCreateSystemNoticeRejectsUserKind(t *testing.T) {
	ctx := context.Background()
	o, _ := newFixture(t)
	_, err := o.CreateSystemNotice(ctx, NoticeInput{
		ProjectID: "projX", FromID: "pacc1", ToID: "gp1", Body: "x", Kind: model.KindText,
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
