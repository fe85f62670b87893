package assembly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainconversation "recipehub/internal/domain/conversation"
	domainmessage "recipehub/internal/domain/message"
	domainrecipe "recipehub/internal/domain/recipe"
	domainuser "recipehub/internal/domain/user"
	"recipehub/internal/infra/storage/memory"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store *memory.Store
	drops map[string]int
	mu    sync.Mutex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: memory.NewStore(), drops: map[string]int{}}
	for _, id := range []string{"alice", "bob"} {
		u, err := domainuser.NewUser(domainuser.CreateParams{ID: domainuser.ID(id), Handle: id})
		require.NoError(t, err)
		require.NoError(t, f.store.Users.Save(context.Background(), u))
	}
	p, err := domainrecipe.NewPreview("r1", "Shakshuka", "https://img/r1.jpg", "bob")
	require.NoError(t, err)
	require.NoError(t, f.store.Recipes.Save(context.Background(), p))
	return f
}

func (f *fixture) opts() Options {
	return Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		OnDrop: func(stage string) {
			f.mu.Lock()
			f.drops[stage]++
			f.mu.Unlock()
		},
	}
}

func (f *fixture) assembler(opts Options) *MessageAssembler {
	return NewMessageAssembler(f.store.Users, f.store.Recipes, f.store.Messages, opts)
}

func (f *fixture) put(id, sender, repliedTo string, at time.Time) domainmessage.Record {
	rec := domainmessage.Record{
		ID:          domainmessage.ID(id),
		SenderID:    domainuser.ID(sender),
		Kind:        domainmessage.KindText,
		Text:        "msg " + id,
		SentAt:      at,
		RepliedToID: domainmessage.ID(repliedTo),
	}
	f.store.Messages.Put(rec)
	return rec
}

// chain stores m0..mN where every mi replies to mi-1 and returns mN.
func (f *fixture) chain(n int) domainmessage.Record {
	var last domainmessage.Record
	for i := 0; i <= n; i++ {
		parent := ""
		if i > 0 {
			parent = fmt.Sprintf("m%d", i-1)
		}
		last = f.put(fmt.Sprintf("m%d", i), "alice", parent, base.Add(time.Duration(i)*time.Minute))
	}
	return last
}

func TestAssembleResolvesReplyChainOfAnyDepth(t *testing.T) {
	for _, depth := range []int{0, 1, 2, 3, 5, 10} {
		t.Run(fmt.Sprintf("depth_%d", depth), func(t *testing.T) {
			f := newFixture(t)
			head := f.chain(depth)

			m, err := f.assembler(f.opts()).Assemble(context.Background(), &head)
			require.NoError(t, err)
			assert.Equal(t, depth, m.ReplyDepth())

			cur := m
			for i := depth; i >= 0; i-- {
				require.NotNil(t, cur)
				assert.Equal(t, domainmessage.ID(fmt.Sprintf("m%d", i)), cur.ID)
				require.NotNil(t, cur.Sender)
				assert.Equal(t, "alice", cur.Sender.Handle)
				cur = cur.RepliedTo
			}
			assert.Nil(t, cur)
		})
	}
}

func TestAssembleStopsAtDepthBound(t *testing.T) {
	f := newFixture(t)
	head := f.chain(10)
	opts := f.opts()
	opts.MaxReplyDepth = 3

	m, err := f.assembler(opts).Assemble(context.Background(), &head)
	require.NoError(t, err)
	assert.Equal(t, 3, m.ReplyDepth())
}

func TestAssembleEndsChainAtUnresolvableHop(t *testing.T) {
	f := newFixture(t)
	f.put("m0", "alice", "", base)
	f.put("m1", "alice", "m0", base.Add(time.Minute))
	head := f.put("m2", "bob", "gone", base.Add(2*time.Minute))

	m, err := f.assembler(f.opts()).Assemble(context.Background(), &head)
	require.NoError(t, err)
	assert.Nil(t, m.RepliedTo)
	assert.Equal(t, domainmessage.ID("gone"), m.RepliedToID)
	assert.Equal(t, 1, f.drops["reply"])

	t.Run("hop with unknown sender", func(t *testing.T) {
		f.put("orphan", "nobody", "", base)
		head := f.put("m3", "alice", "orphan", base.Add(3*time.Minute))
		m, err := f.assembler(f.opts()).Assemble(context.Background(), &head)
		require.NoError(t, err)
		assert.Nil(t, m.RepliedTo)
	})
}

func TestAssembleTerminatesOnCycle(t *testing.T) {
	f := newFixture(t)
	f.put("a", "alice", "b", base)
	head := f.put("b", "bob", "a", base.Add(time.Minute))

	m, err := f.assembler(f.opts()).Assemble(context.Background(), &head)
	require.NoError(t, err)
	assert.Equal(t, 1, m.ReplyDepth())
	assert.Equal(t, domainmessage.ID("a"), m.RepliedTo.ID)
}

func TestAssembleFailsWhenSenderMissing(t *testing.T) {
	f := newFixture(t)
	rec := f.put("m0", "ghost", "", base)

	_, err := f.assembler(f.opts()).Assemble(context.Background(), &rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domainmessage.ErrNotFound))
	assert.True(t, errors.Is(err, ErrUnmappable))
}

func TestAssembleRejectsUnknownKind(t *testing.T) {
	f := newFixture(t)
	rec := domainmessage.Record{ID: "bad", SenderID: "alice", Kind: "VIDEO", SentAt: base}

	_, err := f.assembler(f.opts()).Assemble(context.Background(), &rec)
	require.ErrorIs(t, err, ErrUnmappable)
}

func TestAssembleAttachesKnownRecipePreviews(t *testing.T) {
	f := newFixture(t)
	rec := domainmessage.Record{
		ID:        "share",
		SenderID:  "bob",
		Kind:      domainmessage.KindRecipe,
		Text:      "try these",
		RecipeIDs: []domainrecipe.ID{"r1", "deleted"},
		SentAt:    base,
	}

	m, err := f.assembler(f.opts()).Assemble(context.Background(), &rec)
	require.NoError(t, err)
	require.Len(t, m.Recipes, 1)
	assert.Equal(t, "Shakshuka", m.Recipes[0].Title)
	assert.Equal(t, 1, f.drops["recipe"])
}

func TestAssembleAllSkipsFailuresAndKeepsOrder(t *testing.T) {
	f := newFixture(t)
	recs := []*domainmessage.Record{}
	for i, sender := range []string{"alice", "ghost", "bob", "alice"} {
		rec := f.put(fmt.Sprintf("m%d", i), sender, "", base.Add(time.Duration(i)*time.Second))
		recs = append(recs, &rec)
	}
	opts := f.opts()
	opts.Concurrency = 2

	out, err := f.assembler(opts).AssembleAll(context.Background(), recs)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, domainmessage.ID("m0"), out[0].ID)
	assert.Equal(t, domainmessage.ID("m2"), out[1].ID)
	assert.Equal(t, domainmessage.ID("m3"), out[2].ID)
	assert.Equal(t, 1, f.drops["message"])
}

func TestAssembleAllHonoursCancellation(t *testing.T) {
	f := newFixture(t)
	rec := f.put("m0", "alice", "", base)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.assembler(f.opts()).AssembleAll(ctx, []*domainmessage.Record{&rec})
	require.ErrorIs(t, err, context.Canceled)
}

func TestConversationAssemblerDropsOnlyBrokenConversations(t *testing.T) {
	f := newFixture(t)
	f.put("m0", "alice", "", base)
	f.put("m1", "ghost", "", base.Add(time.Minute))
	f.put("m2", "bob", "m0", base.Add(2*time.Minute))

	good := &domainconversation.Conversation{
		ID:         "c1",
		Backing:    domainconversation.ConnectionBacking{ConnectionID: "k1"},
		MessageIDs: []domainmessage.ID{"m2", "m0", "m1", "missing"},
		CreatedAt:  base,
	}
	broken := &domainconversation.Conversation{ID: "c2", CreatedAt: base}
	group := &domainconversation.Conversation{
		ID:        "c3",
		Backing:   domainconversation.GroupBacking{GroupID: "g1"},
		CreatedAt: base,
	}

	opts := f.opts()
	ca := NewConversationAssembler(f.store.Messages, f.assembler(opts), opts)
	out, err := ca.AssembleAll(context.Background(), []*domainconversation.Conversation{good, broken, group})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, domainconversation.ID("c1"), out[0].ID)
	assert.Equal(t, domainconversation.ID("c3"), out[1].ID)
	assert.Equal(t, 1, f.drops["conversation"])

	msgs := out[0].Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, domainmessage.ID("m2"), msgs[0].ID)
	assert.Equal(t, domainmessage.ID("m0"), msgs[1].ID)
	require.NotNil(t, msgs[0].RepliedTo)

	last, ok := out[0].LastMessage()
	require.True(t, ok)
	assert.Equal(t, domainmessage.ID("m2"), last.ID)
}

func TestConversationAssembleRejectsMissingBacking(t *testing.T) {
	f := newFixture(t)
	opts := f.opts()
	ca := NewConversationAssembler(f.store.Messages, f.assembler(opts), opts)
	err := ca.Assemble(context.Background(), &domainconversation.Conversation{ID: "x"})
	require.ErrorIs(t, err, ErrUnmappable)
}
