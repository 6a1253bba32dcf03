// AngelaMos | 2026
// message_test.go

package message

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/course-portal/internal/core"
	"github.com/carterperez-dev/course-portal/internal/middleware"
)

type memoryRepo struct {
	mu       sync.Mutex
	convs    map[string]*Conversation
	messages []Message
	clock    time.Time
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		convs: map[string]*Conversation{},
		clock: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func pairKey(userID, adminID string) string { return userID + "|" + adminID }

func (m *memoryRepo) FindConversation(_ context.Context, userID, adminID string) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.convs[pairKey(userID, adminID)]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memoryRepo) open(userID, adminID string) *Conversation {
	key := pairKey(userID, adminID)
	if c, ok := m.convs[key]; ok {
		return c
	}
	c := &Conversation{ID: uuid.NewString(), UserID: userID, AdminID: adminID, CreatedAt: m.clock}
	m.convs[key] = c
	return c
}

func (m *memoryRepo) OpenConversation(_ context.Context, userID, adminID string) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *m.open(userID, adminID)
	return &cp, nil
}

func (m *memoryRepo) Append(_ context.Context, userID, adminID string, msg *Message) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.open(userID, adminID)
	m.clock = m.clock.Add(time.Millisecond)
	msg.ConversationID = c.ID
	msg.CreatedAt = m.clock
	c.LastMessageAt = m.clock
	m.messages = append(m.messages, *msg)

	cp := *c
	return &cp, nil
}

func (m *memoryRepo) ListByConversation(_ context.Context, conv *Conversation) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []Message{}
	for _, msg := range m.messages {
		pair := map[string]bool{msg.SenderID: true, msg.ReceiverID: true}
		if msg.ConversationID == conv.ID && pair[conv.UserID] && pair[conv.AdminID] {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryRepo) MessagedUsers(_ context.Context, adminID string) ([]MessagedUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []MessagedUser{}
	for _, c := range m.convs {
		if c.AdminID == adminID && !c.LastMessageAt.IsZero() {
			out = append(out, MessagedUser{ID: c.UserID, ConversationID: c.ID, LastMessageAt: c.LastMessageAt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessageAt.After(out[j].LastMessageAt) })
	return out, nil
}

func (m *memoryRepo) CountConversations(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.convs), nil
}

type memoryDirectory struct {
	people []*Participant
}

func (d *memoryDirectory) add(name string, admin bool) *Participant {
	p := &Participant{ID: uuid.NewString(), Name: name, Email: name + "@example.com", IsAdmin: admin}
	d.people = append(d.people, p)
	return p
}

func (d *memoryDirectory) DesignatedAdmin(_ context.Context) (*Participant, error) {
	for _, p := range d.people {
		if p.IsAdmin {
			return p, nil
		}
	}
	return nil, core.ErrNotFound
}

func (d *memoryDirectory) LookupParticipant(_ context.Context, id string) (*Participant, error) {
	for _, p := range d.people {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, core.ErrNotFound
}

// localBroker is an in-process Broker for tests.
type localBroker struct {
	mu        sync.Mutex
	subs      map[string][]chan MessageResponse
	published []MessageResponse
}

func newLocalBroker() *localBroker {
	return &localBroker{subs: map[string][]chan MessageResponse{}}
}

func (b *localBroker) Publish(_ context.Context, conversationID string, msg MessageResponse) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.published = append(b.published, msg)
	for _, ch := range b.subs[conversationID] {
		select {
		case ch <- msg:
		default:
		}
	}
	return nil
}

func (b *localBroker) Subscribe(ctx context.Context, conversationID string) (<-chan MessageResponse, error) {
	ch := make(chan MessageResponse, subscriberBuffer)

	b.mu.Lock()
	b.subs[conversationID] = append(b.subs[conversationID], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[conversationID]
		for i, c := range subs {
			if c == ch {
				b.subs[conversationID] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch, nil
}

func (b *localBroker) subscribers(conversationID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[conversationID])
}

func claimsOf(p *Participant) *middleware.SessionClaims {
	role := middleware.RoleUser
	if p.IsAdmin {
		role = middleware.RoleAdmin
	}
	return &middleware.SessionClaims{UserID: p.ID, Email: p.Email, Name: p.Name, Role: role, IsAdmin: p.IsAdmin}
}

type fixture struct {
	svc    *Service
	repo   *memoryRepo
	dir    *memoryDirectory
	broker *localBroker
	admin  *Participant
	alice  *Participant
	bob    *Participant
}

func newFixture() *fixture {
	f := &fixture{repo: newMemoryRepo(), dir: &memoryDirectory{}, broker: newLocalBroker()}
	f.admin = f.dir.add("admin", true)
	f.alice = f.dir.add("alice", false)
	f.bob = f.dir.add("bob", false)
	f.svc = NewService(f.repo, f.dir, f.broker)
	return f
}

func TestConversationOnlyContainsPairInOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	send := func(from *Participant, to, content string) {
		t.Helper()
		_, err := f.svc.Send(ctx, claimsOf(from), SendRequest{Content: content, ReceiverID: to})
		require.NoError(t, err)
	}

	send(f.alice, "", "a1")
	send(f.bob, "", "b1")
	send(f.admin, f.alice.ID, "r1")
	send(f.alice, f.admin.ID, "a2")
	send(f.admin, f.bob.ID, "r2")

	msgs, err := f.svc.Conversation(ctx, f.alice.ID)
	require.NoError(t, err)

	var contents []string
	for i, m := range msgs {
		contents = append(contents, m.Content)
		involved := map[string]bool{m.SenderID: true, m.ReceiverID: true}
		assert.True(t, involved[f.alice.ID] && involved[f.admin.ID], "message %s leaks another pair", m.Content)
		if i > 0 {
			assert.True(t, msgs[i-1].CreatedAt.Before(m.CreatedAt))
		}
	}
	assert.Equal(t, []string{"a1", "r1", "a2"}, contents)

	empty, err := f.svc.Conversation(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestConversationWithoutAdmin(t *testing.T) {
	dir := &memoryDirectory{}
	alice := dir.add("alice", false)
	svc := NewService(newMemoryRepo(), dir, newLocalBroker())

	_, err := svc.Conversation(context.Background(), alice.ID)
	assert.ErrorIs(t, err, ErrNoAdmin)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSendRules(t *testing.T) {
	f := newFixture()
	secondAdmin := f.dir.add("deputy", true)
	ctx := context.Background()

	tests := []struct {
		name         string
		sender       *Participant
		receiverID   string
		content      string
		wantErr      error
		wantReceiver string
	}{
		{"user defaults to admin", f.alice, "", "hi", nil, f.admin.ID},
		{"user names the designated admin", f.alice, f.admin.ID, "hi", nil, f.admin.ID},
		{"user cannot pick another admin", f.alice, secondAdmin.ID, "hi", ErrNotDesignated, ""},
		{"user cannot message a user", f.alice, f.bob.ID, "hi", ErrReceiverNotAdmin, ""},
		{"user cannot message self", f.alice, f.alice.ID, "hi", ErrSelfMessage, ""},
		{"unknown receiver", f.alice, uuid.NewString(), "hi", core.ErrNotFound, ""},
		{"admin needs receiver", f.admin, "", "hi", ErrNoReceiver, ""},
		{"admin cannot message self", f.admin, f.admin.ID, "hi", ErrSelfMessage, ""},
		{"admin cannot message admin", f.admin, secondAdmin.ID, "hi", ErrReceiverIsAdmin, ""},
		{"admin replies to user", f.admin, f.bob.ID, "hello", nil, f.bob.ID},
		{"empty content", f.alice, "", "   ", ErrEmptyContent, ""},
		{"markup only content", f.alice, "", "<script>x</script>", ErrEmptyContent, ""},
		{"too long", f.alice, "", strings.Repeat("a", MaxContentLength+1), ErrContentTooLong, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := f.svc.Send(ctx, claimsOf(tc.sender), SendRequest{Content: tc.content, ReceiverID: tc.receiverID})
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.sender.ID, msg.SenderID)
			assert.Equal(t, tc.sender.ID, msg.AuthorID)
			assert.Equal(t, tc.wantReceiver, msg.ReceiverID)
			assert.NotEqual(t, msg.SenderID, msg.ReceiverID)
		})
	}
}

func TestSecondAdminStaysOutOfUserThread(t *testing.T) {
	f := newFixture()
	deputy := f.dir.add("deputy", true)
	ctx := context.Background()

	_, err := f.svc.Send(ctx, claimsOf(f.alice), SendRequest{Content: "to deputy", ReceiverID: deputy.ID})
	require.ErrorIs(t, err, ErrNotDesignated)

	first, err := f.svc.Send(ctx, claimsOf(f.alice), SendRequest{Content: "question"})
	require.NoError(t, err)
	reply, err := f.svc.Send(ctx, claimsOf(deputy), SendRequest{Content: "from deputy", ReceiverID: f.alice.ID})
	require.NoError(t, err)

	assert.Equal(t, first.ConversationID, reply.ConversationID)
	assert.Equal(t, f.admin.ID, reply.SenderID)
	assert.Equal(t, f.alice.ID, reply.ReceiverID)
	assert.Equal(t, deputy.ID, reply.AuthorID)

	msgs, err := f.svc.Conversation(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		pair := map[string]bool{m.SenderID: true, m.ReceiverID: true}
		assert.True(t, pair[f.alice.ID] && pair[f.admin.ID], "%q involves %s and %s", m.Content, m.SenderID, m.ReceiverID)
		assert.NotEqual(t, "to deputy", m.Content)
	}

	rec := httptest.NewRecorder()
	newRouter(f, f.alice).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/message/send",
		strings.NewReader(`{"content":"again","receiverId":"`+deputy.ID+`"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendPublishesToConversation(t *testing.T) {
	f := newFixture()

	msg, err := f.svc.Send(context.Background(), claimsOf(f.alice), SendRequest{Content: "<b>hi</b> & bye"})
	require.NoError(t, err)

	assert.Equal(t, "hi & bye", msg.Content)
	require.Len(t, f.broker.published, 1)
	assert.Equal(t, msg.ID, f.broker.published[0].ID)
	assert.Equal(t, msg.ConversationID, f.broker.published[0].ConversationID)
}

func TestMessagedUsersMostRecentFirst(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.svc.Send(ctx, claimsOf(f.alice), SendRequest{Content: "1"})
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, claimsOf(f.bob), SendRequest{Content: "2"})
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, claimsOf(f.admin), SendRequest{Content: "3", ReceiverID: f.alice.ID})
	require.NoError(t, err)

	users, err := f.svc.MessagedUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, f.alice.ID, users[0].ID)
	assert.Equal(t, f.bob.ID, users[1].ID)
}

func newRouter(f *fixture, viewer *Participant) http.Handler {
	withClaims := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithClaims(r.Context(), claimsOf(viewer))))
		})
	}
	passthrough := func(next http.Handler) http.Handler { return next }

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		NewHandler(f.svc, nil).RegisterRoutes(r, withClaims, middleware.RequireAdmin, passthrough)
	})
	return r
}

func TestHandlers(t *testing.T) {
	f := newFixture()

	t.Run("send defaults to admin", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newRouter(f, f.alice).ServeHTTP(rec,
			httptest.NewRequest(http.MethodPost, "/api/message/send", strings.NewReader(`{"content":"hello"}`)))

		require.Equal(t, http.StatusCreated, rec.Code)
		var body MessageResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, f.admin.ID, body.ReceiverID)
	})

	t.Run("admin send without receiver", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newRouter(f, f.admin).ServeHTTP(rec,
			httptest.NewRequest(http.MethodPost, "/api/message/send", strings.NewReader(`{"content":"hello"}`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		var body core.ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, ErrNoReceiver.Error(), body.Message)
	})

	t.Run("conversation requires userId", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newRouter(f, f.admin).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/message/conversation", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("conversation is admin only", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newRouter(f, f.alice).ServeHTTP(rec,
			httptest.NewRequest(http.MethodGet, "/api/message/conversation?userId="+f.bob.ID, nil))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin reads conversation", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newRouter(f, f.admin).ServeHTTP(rec,
			httptest.NewRequest(http.MethodGet, "/api/message/conversation?userId="+f.alice.ID, nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body []MessageResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		require.Len(t, body, 1)
		assert.Equal(t, "hello", body[0].Content)
	})

	t.Run("user reads own messages", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newRouter(f, f.bob).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/message/user-messages", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})
}

func TestStreamPushesSentMessages(t *testing.T) {
	f := newFixture()
	srv := httptest.NewServer(newRouter(f, f.alice))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/message/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	defer resp.Body.Close()

	conv, err := f.repo.FindConversation(context.Background(), f.alice.ID, f.admin.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.broker.subscribers(conv.ID) == 1 },
		time.Second, 10*time.Millisecond)

	sent, err := f.svc.Send(context.Background(), claimsOf(f.admin), SendRequest{Content: "pushed", ReceiverID: f.alice.ID})
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got MessageResponse
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, sent.ID, got.ID)
	assert.Equal(t, "pushed", got.Content)
	assert.Equal(t, conv.ID, got.ConversationID)
}
