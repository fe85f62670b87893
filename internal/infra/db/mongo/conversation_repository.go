package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainconnection "recipehub/internal/domain/connection"
	domainconversation "recipehub/internal/domain/conversation"
	domaingroup "recipehub/internal/domain/group"
	domainmessage "recipehub/internal/domain/message"
)

type ConversationRepository struct {
	col *mongo.Collection
}

func NewConversationRepository(db *mongo.Database) *ConversationRepository {
	col := db.Collection("agg_conversation")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "kind", Value: 1}, {Key: "ref_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return &ConversationRepository{col: col}
}

func (r *ConversationRepository) Create(ctx context.Context, c *domainconversation.Conversation) error {
	if c == nil || c.ID == "" {
		return domainconversation.ErrIDRequired
	}
	if c.Backing == nil {
		return domainconversation.ErrInvalidType
	}
	doc := newConversationDocument(c)
	doc.Version = 1
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainconversation.ErrAlreadyExists
		}
		return err
	}
	c.Version = doc.Version
	return nil
}

func (r *ConversationRepository) ByID(ctx context.Context, id domainconversation.ID) (*domainconversation.Conversation, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *ConversationRepository) ByConnection(ctx context.Context, id domainconnection.ID) (*domainconversation.Conversation, error) {
	return r.findOne(ctx, bson.M{"kind": string(domainconversation.KindConnection), "ref_id": string(id)})
}

func (r *ConversationRepository) ByGroup(ctx context.Context, id domaingroup.ID) (*domainconversation.Conversation, error) {
	return r.findOne(ctx, bson.M{"kind": string(domainconversation.KindGroup), "ref_id": string(id)})
}

func (r *ConversationRepository) ListByBackings(ctx context.Context, connections []domainconnection.ID, groups []domaingroup.ID) ([]*domainconversation.Conversation, error) {
	filter := backingsFilter(connections, groups)
	if filter == nil {
		return []*domainconversation.Conversation{}, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	docs, err := decodeEach[conversationDocument](ctx, cur, collectionLogger(r.col))
	if err != nil {
		return nil, err
	}
	out := make([]*domainconversation.Conversation, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toAggregate())
	}
	return out, nil
}

// Update writes the message list only when the stored version still equals
// c.Version, then bumps it. A transaction write conflict counts as a
// version conflict.
func (r *ConversationRepository) Update(ctx context.Context, c *domainconversation.Conversation) error {
	ids := messageIDStrings(c.MessageIDs)
	filter := bson.M{"_id": string(c.ID), "version": c.Version}
	update := bson.M{"$set": bson.M{"message_ids": ids}, "$inc": bson.M{"version": 1}}
	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		if isWriteConflict(err) {
			return fmt.Errorf("%w: %v", domainconversation.ErrConcurrentUpdate, err)
		}
		return err
	}
	if res.MatchedCount == 0 {
		n, err := r.col.CountDocuments(ctx, bson.M{"_id": string(c.ID)})
		if err != nil {
			return err
		}
		if n == 0 {
			return domainconversation.ErrNotFound
		}
		return domainconversation.ErrConcurrentUpdate
	}
	c.Version++
	return nil
}

func (r *ConversationRepository) findOne(ctx context.Context, filter bson.M) (*domainconversation.Conversation, error) {
	var doc conversationDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainconversation.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func backingsFilter(connections []domainconnection.ID, groups []domaingroup.ID) bson.M {
	var clauses bson.A
	if len(connections) > 0 {
		ids := make([]string, 0, len(connections))
		for _, id := range connections {
			ids = append(ids, string(id))
		}
		clauses = append(clauses, bson.M{"kind": string(domainconversation.KindConnection), "ref_id": bson.M{"$in": ids}})
	}
	if len(groups) > 0 {
		ids := make([]string, 0, len(groups))
		for _, id := range groups {
			ids = append(ids, string(id))
		}
		clauses = append(clauses, bson.M{"kind": string(domainconversation.KindGroup), "ref_id": bson.M{"$in": ids}})
	}
	if len(clauses) == 0 {
		return nil
	}
	return bson.M{"$or": clauses}
}

type conversationDocument struct {
	ID         string   `bson:"_id"`
	Kind       string   `bson:"kind"`
	RefID      string   `bson:"ref_id"`
	MessageIDs []string `bson:"message_ids"`
	CreatedAt  int64    `bson:"created_at"`
	Version    int64    `bson:"version"`
}

func newConversationDocument(c *domainconversation.Conversation) conversationDocument {
	doc := conversationDocument{
		ID:         string(c.ID),
		MessageIDs: messageIDStrings(c.MessageIDs),
		CreatedAt:  timeToTimestamp(c.CreatedAt),
		Version:    c.Version,
	}
	if c.Backing != nil {
		doc.Kind = string(c.Backing.Kind())
		doc.RefID = c.Backing.RefID()
	}
	return doc
}

// toAggregate leaves Backing nil when the stored kind is unknown; readers
// treat such a conversation as unmappable.
func (d conversationDocument) toAggregate() *domainconversation.Conversation {
	backing, err := domainconversation.BackingFor(domainconversation.Kind(d.Kind), d.RefID)
	if err != nil {
		backing = nil
	}
	ids := make([]domainmessage.ID, 0, len(d.MessageIDs))
	for _, id := range d.MessageIDs {
		ids = append(ids, domainmessage.ID(id))
	}
	return &domainconversation.Conversation{
		ID:         domainconversation.ID(d.ID),
		Backing:    backing,
		MessageIDs: ids,
		CreatedAt:  timestampToTime(d.CreatedAt),
		Version:    d.Version,
	}
}

func messageIDStrings(ids []domainmessage.ID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}

var _ domainconversation.Repository = (*ConversationRepository)(nil)
