package assembly

import (
	"context"
	"fmt"

	domainconversation "recipehub/internal/domain/conversation"
	domainmessage "recipehub/internal/domain/message"
)

// ConversationAssembler hydrates conversations with their messages.
type ConversationAssembler struct {
	messages  MessageSource
	assembler *MessageAssembler
	opts      Options
}

func NewConversationAssembler(messages MessageSource, assembler *MessageAssembler, opts Options) *ConversationAssembler {
	return &ConversationAssembler{messages: messages, assembler: assembler, opts: opts.withDefaults()}
}

// Assemble attaches the conversation's messages in stored order. Messages
// that cannot be reconstructed are left out; a conversation without a valid
// backing fails with ErrUnmappable.
func (c *ConversationAssembler) Assemble(ctx context.Context, conv *domainconversation.Conversation) error {
	if conv == nil {
		return fmt.Errorf("%w: nil conversation", ErrUnmappable)
	}
	switch conv.Backing.(type) {
	case domainconversation.ConnectionBacking, domainconversation.GroupBacking:
	default:
		return fmt.Errorf("%w: conversation %s: %v", ErrUnmappable, conv.ID, domainconversation.ErrInvalidType)
	}
	if len(conv.MessageIDs) == 0 {
		conv.Attach(nil)
		return nil
	}
	recs, err := c.messages.ByIDs(ctx, conv.MessageIDs)
	if err != nil {
		return fmt.Errorf("%w: conversation %s: %v", ErrUnmappable, conv.ID, err)
	}
	byID := make(map[domainmessage.ID]*domainmessage.Record, len(recs))
	for _, rec := range recs {
		if rec != nil {
			byID[rec.ID] = rec
		}
	}
	ordered := make([]*domainmessage.Record, 0, len(conv.MessageIDs))
	for _, id := range conv.MessageIDs {
		if rec, ok := byID[id]; ok {
			ordered = append(ordered, rec)
			continue
		}
		c.opts.Logger.DebugContext(ctx, "conversation references missing message", "conversation_id", conv.ID, "message_id", id)
	}
	msgs, err := c.assembler.AssembleAll(ctx, ordered)
	if err != nil {
		return err
	}
	conv.Attach(msgs)
	return nil
}

// AssembleAll hydrates every conversation and leaves out, with a log line,
// only the ones that fail.
func (c *ConversationAssembler) AssembleAll(ctx context.Context, convs []*domainconversation.Conversation) ([]*domainconversation.Conversation, error) {
	out := make([]*domainconversation.Conversation, 0, len(convs))
	for _, conv := range convs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := c.Assemble(ctx, conv); err != nil {
			c.opts.dropped("conversation")
			id := domainconversation.ID("")
			if conv != nil {
				id = conv.ID
			}
			c.opts.Logger.WarnContext(ctx, "conversation dropped from bulk read", "conversation_id", id, "error", err)
			continue
		}
		out = append(out, conv)
	}
	return out, nil
}
