// Package assembly turns stored message and conversation records into linked
// domain graphs: senders resolved, recipe previews attached, reply chains
// followed to their root.
package assembly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	domainmessage "recipehub/internal/domain/message"
	domainrecipe "recipehub/internal/domain/recipe"
	domainuser "recipehub/internal/domain/user"
)

// ErrUnmappable marks a stored record that cannot become a domain object.
var ErrUnmappable = errors.New("assembly: record cannot be reconstructed")

const (
	DefaultMaxReplyDepth = 32
	DefaultConcurrency   = 8
)

// MessageSource is the read side of the message store.
type MessageSource interface {
	ByID(ctx context.Context, id domainmessage.ID) (*domainmessage.Record, error)
	ByIDs(ctx context.Context, ids []domainmessage.ID) ([]*domainmessage.Record, error)
}

type Options struct {
	MaxReplyDepth int
	Concurrency   int
	Logger        *slog.Logger
	// OnDrop is told which stage dropped a record: "message", "reply",
	// "recipe" or "conversation".
	OnDrop func(stage string)
}

func (o Options) withDefaults() Options {
	if o.MaxReplyDepth <= 0 {
		o.MaxReplyDepth = DefaultMaxReplyDepth
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

func (o Options) dropped(stage string) {
	if o.OnDrop != nil {
		o.OnDrop(stage)
	}
}

type MessageAssembler struct {
	users    domainuser.Lookup
	recipes  domainrecipe.Lookup
	messages MessageSource
	opts     Options
}

func NewMessageAssembler(users domainuser.Lookup, recipes domainrecipe.Lookup, messages MessageSource, opts Options) *MessageAssembler {
	return &MessageAssembler{users: users, recipes: recipes, messages: messages, opts: opts.withDefaults()}
}

// Assemble reconstructs one message. A sender that cannot be resolved fails
// the read with message.ErrNotFound. An unresolvable reply hop ends the chain
// there and the message is still returned.
func (a *MessageAssembler) Assemble(ctx context.Context, rec *domainmessage.Record) (*domainmessage.Message, error) {
	m, err := a.hydrate(ctx, rec)
	if err != nil {
		return nil, err
	}
	a.linkReplies(ctx, m)
	return m, nil
}

// AssembleAll reconstructs records in parallel and keeps input order.
// Records that fail are logged and left out.
func (a *MessageAssembler) AssembleAll(ctx context.Context, recs []*domainmessage.Record) ([]*domainmessage.Message, error) {
	results := make([]*domainmessage.Message, len(recs))
	var g errgroup.Group
	g.SetLimit(a.opts.Concurrency)
	for i, rec := range recs {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			m, err := a.Assemble(ctx, rec)
			if err != nil {
				a.opts.dropped("message")
				a.opts.Logger.WarnContext(ctx, "message dropped from bulk read", "message_id", recordID(rec), "error", err)
				return nil
			}
			results[i] = m
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]*domainmessage.Message, 0, len(results))
	for _, m := range results {
		if m != nil {
			out = append(out, m)
		}
	}
	return out, nil
}

// hydrate restores rec and resolves its sender and recipe previews.
func (a *MessageAssembler) hydrate(ctx context.Context, rec *domainmessage.Record) (*domainmessage.Message, error) {
	if rec == nil {
		return nil, fmt.Errorf("%w: nil record", ErrUnmappable)
	}
	m, err := domainmessage.Restore(*rec)
	if err != nil {
		return nil, fmt.Errorf("%w: message %s: %v", ErrUnmappable, rec.ID, err)
	}
	if a.users == nil {
		return nil, fmt.Errorf("%w: no user lookup configured", ErrUnmappable)
	}
	sender, err := a.users.ByID(ctx, m.SenderID)
	if err != nil || sender == nil {
		if err == nil {
			err = domainuser.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w: sender %s of message %s: %v", domainmessage.ErrNotFound, ErrUnmappable, m.SenderID, m.ID, err)
	}
	ref := sender.Ref()
	m.Sender = &ref

	if rc, ok := m.Content.(domainmessage.RecipeContent); ok {
		m.Recipes = a.previews(ctx, m.ID, rc.RecipeIDs)
	}
	return m, nil
}

func (a *MessageAssembler) previews(ctx context.Context, msgID domainmessage.ID, ids []domainrecipe.ID) []domainrecipe.Preview {
	if a.recipes == nil || len(ids) == 0 {
		return nil
	}
	out := make([]domainrecipe.Preview, 0, len(ids))
	for _, id := range ids {
		p, err := a.recipes.ByID(ctx, id)
		if err != nil || p == nil {
			a.opts.dropped("recipe")
			a.opts.Logger.DebugContext(ctx, "recipe preview unresolved", "message_id", msgID, "recipe_id", id, "error", err)
			continue
		}
		out = append(out, *p)
	}
	return out
}

// linkReplies follows RepliedToID hop by hop. It stops at a terminal record,
// an unresolvable hop, a repeated id or the depth bound.
func (a *MessageAssembler) linkReplies(ctx context.Context, m *domainmessage.Message) {
	if a.messages == nil {
		return
	}
	visited := map[domainmessage.ID]struct{}{m.ID: {}}
	cur := m
	for depth := 0; cur.RepliedToID != ""; depth++ {
		next := cur.RepliedToID
		if depth >= a.opts.MaxReplyDepth {
			a.opts.Logger.WarnContext(ctx, "reply chain truncated at depth bound", "message_id", m.ID, "depth", depth)
			return
		}
		if _, seen := visited[next]; seen {
			a.opts.Logger.WarnContext(ctx, "reply chain cycle detected", "message_id", m.ID, "repeated_id", next)
			return
		}
		visited[next] = struct{}{}

		rec, err := a.messages.ByID(ctx, next)
		if err != nil {
			a.endChain(ctx, m.ID, next, err)
			return
		}
		parent, err := a.hydrate(ctx, rec)
		if err != nil {
			a.endChain(ctx, m.ID, next, err)
			return
		}
		cur.RepliedTo = parent
		cur = parent
	}
}

func (a *MessageAssembler) endChain(ctx context.Context, root, hop domainmessage.ID, err error) {
	a.opts.dropped("reply")
	a.opts.Logger.DebugContext(ctx, "reply chain ended at unresolvable hop", "message_id", root, "replied_to_id", hop, "error", err)
}

func recordID(rec *domainmessage.Record) domainmessage.ID {
	if rec == nil {
		return ""
	}
	return rec.ID
}
