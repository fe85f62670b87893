package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainmessage "recipehub/internal/domain/message"
	domainrecipe "recipehub/internal/domain/recipe"
	domainuser "recipehub/internal/domain/user"
)

type MessageRepository struct {
	col *mongo.Collection
}

func NewMessageRepository(db *mongo.Database) *MessageRepository {
	col := db.Collection("messages")
	_, _ = col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "sent_at", Value: 1}}},
		{Keys: bson.D{{Key: "recipe_ids", Value: 1}}},
	})
	return &MessageRepository{col: col}
}

// Create upserts by id so a retried send lands once.
func (r *MessageRepository) Create(ctx context.Context, m *domainmessage.Message) error {
	if m == nil || m.ID == "" {
		return domainmessage.ErrIDRequired
	}
	doc := newMessageDocument(m.ToRecord())
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (r *MessageRepository) ByID(ctx context.Context, id domainmessage.ID) (*domainmessage.Record, error) {
	var doc messageDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainmessage.ErrNotFound
		}
		return nil, err
	}
	rec := doc.toRecord()
	return &rec, nil
}

// ByIDs returns the records found, in the order requested.
func (r *MessageRepository) ByIDs(ctx context.Context, ids []domainmessage.ID) ([]*domainmessage.Record, error) {
	if len(ids) == 0 {
		return []*domainmessage.Record{}, nil
	}
	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, string(id))
	}
	cur, err := r.col.Find(ctx, bson.M{"_id": bson.M{"$in": raw}})
	if err != nil {
		return nil, err
	}
	docs, err := decodeEach[messageDocument](ctx, cur, collectionLogger(r.col))
	if err != nil {
		return nil, err
	}
	return orderRecords(ids, docs), nil
}

func (r *MessageRepository) Update(ctx context.Context, m *domainmessage.Message) error {
	doc := newMessageDocument(m.ToRecord())
	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domainmessage.ErrNotFound
	}
	return nil
}

func (r *MessageRepository) Delete(ctx context.Context, id domainmessage.ID) error {
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domainmessage.ErrNotFound
	}
	return nil
}

func (r *MessageRepository) ListWithRecipe(ctx context.Context, recipeID domainrecipe.ID) ([]*domainmessage.Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "sent_at", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"recipe_ids": string(recipeID)}, opts)
	if err != nil {
		return nil, err
	}
	docs, err := decodeEach[messageDocument](ctx, cur, collectionLogger(r.col))
	if err != nil {
		return nil, err
	}
	out := make([]*domainmessage.Record, 0, len(docs))
	for _, doc := range docs {
		rec := doc.toRecord()
		out = append(out, &rec)
	}
	return out, nil
}

// MarkSeen set-adds userID so concurrent readers never duplicate entries.
func (r *MessageRepository) MarkSeen(ctx context.Context, ids []domainmessage.ID, userID domainuser.ID) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, string(id))
	}
	_, err := r.col.UpdateMany(ctx, bson.M{"_id": bson.M{"$in": raw}}, bson.M{"$addToSet": bson.M{"seen_by": string(userID)}})
	return err
}

type messageDocument struct {
	ID             string   `bson:"_id"`
	ConversationID string   `bson:"conversation_id"`
	SenderID       string   `bson:"sender_id"`
	Kind           string   `bson:"kind"`
	Text           string   `bson:"text,omitempty"`
	ImageURLs      []string `bson:"image_urls,omitempty"`
	RecipeIDs      []string `bson:"recipe_ids,omitempty"`
	SentAt         int64    `bson:"sent_at"`
	UpdatedAt      *int64   `bson:"updated_at,omitempty"`
	RepliedToID    string   `bson:"replied_to_id,omitempty"`
	SeenBy         []string `bson:"seen_by"`
}

func newMessageDocument(rec domainmessage.Record) messageDocument {
	doc := messageDocument{
		ID:             string(rec.ID),
		ConversationID: rec.ConversationID,
		SenderID:       string(rec.SenderID),
		Kind:           string(rec.Kind),
		Text:           rec.Text,
		ImageURLs:      append([]string(nil), rec.ImageURLs...),
		SentAt:         timeToTimestamp(rec.SentAt),
		RepliedToID:    string(rec.RepliedToID),
		SeenBy:         make([]string, 0, len(rec.SeenBy)),
	}
	for _, id := range rec.RecipeIDs {
		doc.RecipeIDs = append(doc.RecipeIDs, string(id))
	}
	for _, id := range rec.SeenBy {
		doc.SeenBy = append(doc.SeenBy, string(id))
	}
	if rec.UpdatedAt != nil {
		ms := rec.UpdatedAt.UnixMilli()
		doc.UpdatedAt = &ms
	}
	return doc
}

func (d messageDocument) toRecord() domainmessage.Record {
	rec := domainmessage.Record{
		ID:             domainmessage.ID(d.ID),
		ConversationID: d.ConversationID,
		SenderID:       domainuser.ID(d.SenderID),
		Kind:           domainmessage.Kind(d.Kind),
		Text:           d.Text,
		ImageURLs:      append([]string(nil), d.ImageURLs...),
		SentAt:         timestampToTime(d.SentAt),
		RepliedToID:    domainmessage.ID(d.RepliedToID),
	}
	for _, id := range d.RecipeIDs {
		rec.RecipeIDs = append(rec.RecipeIDs, domainrecipe.ID(id))
	}
	for _, id := range d.SeenBy {
		rec.SeenBy = append(rec.SeenBy, domainuser.ID(id))
	}
	if d.UpdatedAt != nil {
		at := timestampToTime(*d.UpdatedAt)
		rec.UpdatedAt = &at
	}
	return rec
}

func orderRecords(ids []domainmessage.ID, docs []messageDocument) []*domainmessage.Record {
	byID := make(map[string]messageDocument, len(docs))
	for _, doc := range docs {
		byID[doc.ID] = doc
	}
	out := make([]*domainmessage.Record, 0, len(docs))
	for _, id := range ids {
		doc, ok := byID[string(id)]
		if !ok {
			continue
		}
		rec := doc.toRecord()
		out = append(out, &rec)
	}
	return out
}

var _ domainmessage.Repository = (*MessageRepository)(nil)
