package conversations

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipehub/internal/app/assembly"
	"recipehub/internal/app/commands"
	handlersupport "recipehub/internal/app/handlers/support"
	"recipehub/internal/app/middleware"
	"recipehub/internal/app/queries"
	domainconnection "recipehub/internal/domain/connection"
	domainconversation "recipehub/internal/domain/conversation"
	domaingroup "recipehub/internal/domain/group"
	domainmessage "recipehub/internal/domain/message"
	domainuser "recipehub/internal/domain/user"
	"recipehub/internal/infra/storage/memory"
)

type clock struct {
	mu    sync.Mutex
	times []time.Time
	last  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.times) > 0 {
		c.last = c.times[0]
		c.times = c.times[1:]
		return c.last
	}
	c.last = c.last.Add(time.Second)
	return c.last
}

func (c *clock) queue(ts ...time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.times = append(c.times, ts...)
}

type env struct {
	store   *memory.Store
	outbox  *memory.Outbox
	clock   *clock
	handler *Handler
	conn    *domainconnection.Connection
	group   *domaingroup.Group
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	for _, id := range []string{"alice", "bob", "carol"} {
		u, err := domainuser.NewUser(domainuser.CreateParams{ID: domainuser.ID(id), Handle: id})
		require.NoError(t, err)
		require.NoError(t, store.Users.Save(ctx, u))
	}
	conn, err := domainconnection.New(domainconnection.CreateParams{ID: "k1", RequestedBy: "alice", Other: "bob", Status: domainconnection.StatusConnected})
	require.NoError(t, err)
	require.NoError(t, store.Connections.Create(ctx, conn))
	g, err := domaingroup.New(domaingroup.CreateParams{ID: "g1", Name: "Supper club", Members: []domainuser.ID{"alice", "bob", "carol"}})
	require.NoError(t, err)
	require.NoError(t, store.Groups.Create(ctx, g))

	clk := &clock{last: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	box := memory.NewOutbox()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &env{
		store:  store,
		outbox: box,
		clock:  clk,
		conn:   conn,
		group:  g,
		handler: &Handler{
			UoWFactory:   store.Factory(),
			Outbox:       box,
			Assembly:     assembly.Options{Logger: logger},
			Logger:       logger,
			Now:          clk.Now,
			RetryBackoff: time.Millisecond,
		},
	}
}

func (e *env) open(t *testing.T) string {
	t.Helper()
	conv, err := e.handler.Create(context.Background(), CreateCommand{ActorID: "alice", ConnectionID: "k1"})
	require.NoError(t, err)
	return conv.ID
}

func (e *env) send(t *testing.T, convID, actor, text string) string {
	t.Helper()
	res, err := e.handler.SendMessage(context.Background(), SendMessageCommand{ActorID: actor, ConversationID: convID, Text: text})
	require.NoError(t, err)
	return res.Message.ID
}

func TestCreateReturnsExistingConversationForBacking(t *testing.T) {
	e := newEnv(t)
	first := e.open(t)

	again, err := e.handler.Create(context.Background(), CreateCommand{ActorID: "bob", ConnectionID: "k1"})
	require.NoError(t, err)
	assert.Equal(t, first, again.ID)
	assert.Equal(t, "CONNECTION", again.Kind)
	assert.Equal(t, "k1", again.ConnectionID)
}

func TestCreateValidatesBacking(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.handler.Create(ctx, CreateCommand{ActorID: "alice"})
	require.ErrorIs(t, err, ErrBackingRequired)

	_, err = e.handler.Create(ctx, CreateCommand{ActorID: "alice", ConnectionID: "k1", GroupID: "g1"})
	require.ErrorIs(t, err, ErrBackingRequired)

	_, err = e.handler.Create(ctx, CreateCommand{ActorID: "alice", ConnectionID: "nope"})
	require.ErrorIs(t, err, domainconnection.ErrNotFound)

	_, err = e.handler.Create(ctx, CreateCommand{ActorID: "alice", GroupID: "nope"})
	require.ErrorIs(t, err, domaingroup.ErrNotFound)

	_, err = e.handler.Create(ctx, CreateCommand{ActorID: "carol", ConnectionID: "k1"})
	require.ErrorIs(t, err, handlersupport.ErrForbidden)

	conv, err := e.handler.Create(ctx, CreateCommand{ActorID: "carol", GroupID: "g1"})
	require.NoError(t, err)
	assert.Equal(t, "GROUP", conv.Kind)
}

func TestLastMessageFollowsSentDateNotInsertionOrder(t *testing.T) {
	e := newEnv(t)
	convID := e.open(t)
	e.clock.queue(
		time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC),
	)
	e.send(t, convID, "alice", "january")
	march := e.send(t, convID, "bob", "march")
	e.send(t, convID, "alice", "february")

	conv, err := e.handler.Get(context.Background(), GetQuery{ActorID: "alice", ConversationID: convID})
	require.NoError(t, err)
	require.Len(t, conv.Messages, 3)
	assert.Equal(t, "january", conv.Messages[0].Text)
	assert.Equal(t, "february", conv.Messages[2].Text)
	require.NotNil(t, conv.LastMessage)
	assert.Equal(t, march, conv.LastMessage.ID)
	assert.Equal(t, 1, conv.UnreadCount)
}

func TestSendMessageContentKinds(t *testing.T) {
	e := newEnv(t)
	convID := e.open(t)
	ctx := context.Background()

	res, err := e.handler.SendMessage(ctx, SendMessageCommand{ActorID: "alice", ConversationID: convID, ImageURLs: []string{"https://cdn/x.jpg"}})
	require.NoError(t, err)
	assert.Equal(t, "IMAGE", res.Message.Kind)
	assert.Empty(t, res.Message.Text)

	res, err = e.handler.SendMessage(ctx, SendMessageCommand{ActorID: "alice", ConversationID: convID, Text: "look", RecipeIDs: []string{"r9"}, ImageURLs: []string{"https://cdn/y.jpg"}})
	require.NoError(t, err)
	assert.Equal(t, "RECIPE", res.Message.Kind)
	assert.Equal(t, "look", res.Message.Text)

	_, err = e.handler.SendMessage(ctx, SendMessageCommand{ActorID: "alice", ConversationID: convID})
	require.ErrorIs(t, err, domainmessage.ErrEmptyContent)
}

func TestSendGuardBlocksConnectionButNotGroup(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	convID := e.open(t)
	group, err := e.handler.Create(ctx, CreateCommand{ActorID: "alice", GroupID: "g1"})
	require.NoError(t, err)

	alice, err := e.store.Users.ByID(ctx, "alice")
	require.NoError(t, err)
	alice.BlockedConnections = []string{"k1"}
	require.NoError(t, e.store.Users.Save(ctx, alice))

	_, err = e.handler.SendMessage(ctx, SendMessageCommand{ActorID: "alice", ConversationID: convID, Text: "hi"})
	require.ErrorIs(t, err, domainconversation.ErrConnectionBlocked)

	// the peer is blocked too when the other side blocked
	_, err = e.handler.SendMessage(ctx, SendMessageCommand{ActorID: "bob", ConversationID: convID, Text: "hi"})
	require.ErrorIs(t, err, domainconversation.ErrConnectionBlocked)

	_, err = e.handler.SendMessage(ctx, SendMessageCommand{ActorID: "alice", ConversationID: group.ID, Text: "hi all"})
	require.NoError(t, err)
}

func TestSendRejectsNonParticipant(t *testing.T) {
	e := newEnv(t)
	convID := e.open(t)
	_, err := e.handler.SendMessage(context.Background(), SendMessageCommand{ActorID: "carol", ConversationID: convID, Text: "hey"})
	require.ErrorIs(t, err, handlersupport.ErrForbidden)
}

func TestSendChecksSuppliedContext(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	convID := e.open(t)

	other, err := domainconnection.New(domainconnection.CreateParams{ID: "k2", RequestedBy: "alice", Other: "carol"})
	require.NoError(t, err)
	require.NoError(t, e.store.Connections.Create(ctx, other))

	_, err = e.handler.SendMessage(ctx, SendMessageCommand{ActorID: "alice", ConversationID: convID, Text: "x", GroupID: "g1"})
	require.ErrorIs(t, err, domainconversation.ErrNoConnectionProvided)

	_, err = e.handler.SendMessage(ctx, SendMessageCommand{ActorID: "alice", ConversationID: convID, Text: "x", ConnectionID: "k2"})
	require.ErrorIs(t, err, domainconversation.ErrBackingMismatch)

	_, err = e.handler.SendMessage(ctx, SendMessageCommand{ActorID: "alice", ConversationID: convID, Text: "x", ConnectionID: "k1"})
	require.NoError(t, err)

	require.NoError(t, e.store.Connections.Delete(ctx, "k1"))
	_, err = e.handler.SendMessage(ctx, SendMessageCommand{ActorID: "alice", ConversationID: convID, Text: "x"})
	require.ErrorIs(t, err, domainconversation.ErrConnectionNotFound)
}

func TestRepliesAreReconstructed(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	convID := e.open(t)
	root := e.send(t, convID, "alice", "root")

	res, err := e.handler.SendMessage(ctx, SendMessageCommand{ActorID: "bob", ConversationID: convID, Text: "re", RepliedToID: root})
	require.NoError(t, err)
	reply, err := e.handler.SendMessage(ctx, SendMessageCommand{ActorID: "alice", ConversationID: convID, Text: "re re", RepliedToID: res.Message.ID})
	require.NoError(t, err)
	require.NotNil(t, reply.Message.RepliedTo)
	require.NotNil(t, reply.Message.RepliedTo.RepliedTo)
	assert.Equal(t, root, reply.Message.RepliedTo.RepliedTo.ID)
	assert.Equal(t, "bob", reply.Message.RepliedTo.Sender.Handle)

	_, err = e.handler.SendMessage(ctx, SendMessageCommand{ActorID: "bob", ConversationID: convID, Text: "re", RepliedToID: "elsewhere"})
	require.ErrorIs(t, err, ErrReplyNotInConversation)

	got, err := e.handler.GetMessage(ctx, GetMessageQuery{ActorID: "bob", MessageID: reply.Message.ID})
	require.NoError(t, err)
	assert.Equal(t, root, got.RepliedTo.RepliedTo.ID)

	_, err = e.handler.GetMessage(ctx, GetMessageQuery{ActorID: "carol", MessageID: reply.Message.ID})
	require.ErrorIs(t, err, handlersupport.ErrForbidden)
}

func TestUpdateMessageOnlyByAuthor(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	convID := e.open(t)
	msgID := e.send(t, convID, "alice", "draft")
	text := "final"

	_, err := e.handler.UpdateMessage(ctx, UpdateMessageCommand{ActorID: "bob", ConversationID: convID, MessageID: msgID, Text: &text})
	require.ErrorIs(t, err, handlersupport.ErrForbidden)

	before, err := e.handler.GetMessage(ctx, GetMessageQuery{ActorID: "alice", MessageID: msgID})
	require.NoError(t, err)

	updated, err := e.handler.UpdateMessage(ctx, UpdateMessageCommand{ActorID: "alice", ConversationID: convID, MessageID: msgID, Text: &text})
	require.NoError(t, err)
	assert.Equal(t, "final", updated.Text)
	assert.Equal(t, msgID, updated.ID)
	assert.Equal(t, before.SentAt, updated.SentAt)
	require.NotNil(t, updated.UpdatedAt)

	empty := ""
	_, err = e.handler.UpdateMessage(ctx, UpdateMessageCommand{ActorID: "alice", ConversationID: convID, MessageID: msgID, Text: &empty})
	require.ErrorIs(t, err, domainmessage.ErrEmptyContent)

	_, err = e.handler.UpdateMessage(ctx, UpdateMessageCommand{ActorID: "alice", ConversationID: convID, MessageID: "missing", Text: &text})
	require.ErrorIs(t, err, domainmessage.ErrNotFound)
}

func TestDeleteMessageRemovesItFromConversation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	convID := e.open(t)
	keep := e.send(t, convID, "alice", "keep")
	drop := e.send(t, convID, "bob", "drop")

	_, err := e.handler.DeleteMessage(ctx, DeleteMessageCommand{ActorID: "alice", ConversationID: convID, MessageID: drop})
	require.ErrorIs(t, err, handlersupport.ErrForbidden)

	_, err = e.handler.DeleteMessage(ctx, DeleteMessageCommand{ActorID: "bob", ConversationID: convID, MessageID: drop})
	require.NoError(t, err)

	conv, err := e.handler.Get(ctx, GetQuery{ActorID: "bob", ConversationID: convID})
	require.NoError(t, err)
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, keep, conv.Messages[0].ID)

	_, err = e.store.Messages.ByID(ctx, domainmessage.ID(drop))
	require.ErrorIs(t, err, domainmessage.ErrNotFound)
}

func TestMarkAsReadIsIdempotentAndIncludesOwnMessages(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	convID := e.open(t)
	e.send(t, convID, "alice", "one")
	e.send(t, convID, "bob", "two")

	res, err := e.handler.MarkAsRead(ctx, MarkAsReadCommand{ActorID: "alice", ConversationID: convID})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Marked)

	res, err = e.handler.MarkAsRead(ctx, MarkAsReadCommand{ActorID: "alice", ConversationID: convID})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Marked)

	conv, err := e.handler.Get(ctx, GetQuery{ActorID: "alice", ConversationID: convID})
	require.NoError(t, err)
	for _, m := range conv.Messages {
		assert.Equal(t, []string{"alice"}, m.SeenBy)
	}
	assert.Zero(t, conv.UnreadCount)
}

func TestMarkAsReadSkipsAndLogsUnmappableMessage(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	var buf bytes.Buffer
	e.handler.Logger = slog.New(slog.NewTextHandler(&buf, nil))
	convID := e.open(t)
	e.send(t, convID, "alice", "fine")
	broken := e.send(t, convID, "alice", "soon broken")

	rec, err := e.store.Messages.ByID(ctx, domainmessage.ID(broken))
	require.NoError(t, err)
	rec.Kind = domainmessage.Kind("sticker")
	e.store.Messages.Put(*rec)

	res, err := e.handler.MarkAsRead(ctx, MarkAsReadCommand{ActorID: "bob", ConversationID: convID})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Marked)
	assert.Contains(t, buf.String(), "message unmappable")
	assert.Contains(t, buf.String(), broken)
}

func TestListOrdersPinnedThenByActivity(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	direct := e.open(t)
	group, err := e.handler.Create(ctx, CreateCommand{ActorID: "alice", GroupID: "g1"})
	require.NoError(t, err)
	e.send(t, direct, "bob", "newest")

	list, err := e.handler.List(ctx, ListQuery{ActorID: "alice"})
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	assert.Equal(t, direct, list.Items[0].ID)
	assert.Equal(t, 1, list.Items[0].UnreadCount)

	alice, err := e.store.Users.ByID(ctx, "alice")
	require.NoError(t, err)
	alice.PinnedConversations = []string{group.ID}
	require.NoError(t, e.store.Users.Save(ctx, alice))

	list, err = e.handler.List(ctx, ListQuery{ActorID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, group.ID, list.Items[0].ID)
	assert.True(t, list.Items[0].Pinned)

	carol, err := e.handler.List(ctx, ListQuery{ActorID: "carol"})
	require.NoError(t, err)
	require.Len(t, carol.Items, 1)
	assert.Equal(t, group.ID, carol.Items[0].ID)
}

// flakyConversations fails the first Update calls with a version conflict.
type flakyConversations struct {
	*memory.ConversationRepository
	mu       sync.Mutex
	failures int
}

func (f *flakyConversations) Update(ctx context.Context, c *domainconversation.Conversation) error {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return domainconversation.ErrConcurrentUpdate
	}
	f.mu.Unlock()
	return f.ConversationRepository.Update(ctx, c)
}

func TestSendRetriesOnConcurrentUpdate(t *testing.T) {
	e := newEnv(t)
	convID := e.open(t)
	flaky := &flakyConversations{ConversationRepository: e.store.Conversations, failures: 2}
	factory := e.store.Factory()
	factory.ConversationsRepo = flaky
	e.handler.UoWFactory = factory

	msgID := e.send(t, convID, "alice", "eventually")

	conv, err := e.store.Conversations.ByID(context.Background(), domainconversation.ID(convID))
	require.NoError(t, err)
	assert.Equal(t, []domainmessage.ID{domainmessage.ID(msgID)}, conv.MessageIDs)

	flaky.failures = 5
	_, err = e.handler.SendMessage(context.Background(), SendMessageCommand{ActorID: "alice", ConversationID: convID, Text: "never"})
	require.ErrorIs(t, err, domainconversation.ErrConcurrentUpdate)
}

func TestSendThroughBusIsIdempotent(t *testing.T) {
	e := newEnv(t)
	convID := e.open(t)
	cmdBus := commands.NewInMemoryBus()
	e.handler.Register(cmdBus, queries.NewInMemoryBus())
	bus := middleware.ChainCommands(cmdBus,
		middleware.Validation(middleware.NewStructValidator()),
		middleware.Authorization(middleware.RequireActor{}),
		middleware.Idempotency(memory.NewIdempotencyStore(time.Hour), nil),
		middleware.Transaction(e.store.Factory(), nil),
		middleware.OutboxFlush(e.outbox, nil),
	)
	cmd := SendMessageCommand{ActorID: "alice", ConversationID: convID, Text: "once", IdempotencyKeyV: "k-1"}

	first, err := commands.Dispatch[SendMessageCommand, *SendMessageResult](context.Background(), bus, cmd)
	require.NoError(t, err)
	second, err := commands.Dispatch[SendMessageCommand, *SendMessageResult](context.Background(), bus, cmd)
	require.NoError(t, err)
	assert.Equal(t, first.Message.ID, second.Message.ID)

	conv, err := e.store.Conversations.ByID(context.Background(), domainconversation.ID(convID))
	require.NoError(t, err)
	assert.Len(t, conv.MessageIDs, 1)
	assert.Len(t, e.outbox.Pending(), pending)

	_, err = commands.Dispatch[SendMessageCommand, *SendMessageResult](context.Background(), bus, SendMessageCommand{ConversationID: convID, Text: "anon"})
	require.ErrorIs(t, err, middleware.ErrValidation)
}

// brokenConversations rejects every Update with err.
type brokenConversations struct {
	*memory.ConversationRepository
	err error
}

func (b *brokenConversations) Update(ctx context.Context, c *domainconversation.Conversation) error {
	return b.err
}

// recordingMessages remembers the ids passed to Create.
type recordingMessages struct {
	*memory.MessageRepository
	mu      sync.Mutex
	created []domainmessage.ID
}

func (r *recordingMessages) Create(ctx context.Context, m *domainmessage.Message) error {
	r.mu.Lock()
	r.created = append(r.created, m.ID)
	r.mu.Unlock()
	return r.MessageRepository.Create(ctx, m)
}

func TestSendMessageRemovesMessageWhenConversationUpdateFails(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	convID := e.open(t)
	pending := len(e.outbox.Pending())

	msgs := &recordingMessages{MessageRepository: e.store.Messages}
	factory := e.store.Factory()
	factory.ConversationsRepo = &brokenConversations{ConversationRepository: e.store.Conversations, err: domainconversation.ErrNotFound}
	factory.MessagesRepo = msgs
	e.handler.UoWFactory = factory

	_, err := e.handler.SendMessage(ctx, SendMessageCommand{ActorID: "alice", ConversationID: convID, Text: "lost"})
	require.ErrorIs(t, err, domainconversation.ErrNotFound)

	require.Len(t, msgs.created, 1)
	_, err = e.store.Messages.ByID(ctx, msgs.created[0])
	require.ErrorIs(t, err, domainmessage.ErrNotFound)
	assert.Len(t, e.outbox.Pending(), pending)
}
