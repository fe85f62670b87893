package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainconnection "recipehub/internal/domain/connection"
	domainuser "recipehub/internal/domain/user"
)

type ConnectionRepository struct {
	col *mongo.Collection
}

func NewConnectionRepository(db *mongo.Database) *ConnectionRepository {
	col := db.Collection("connections")
	_, _ = col.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{Keys: bson.D{{Key: "pair_key", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_a", Value: 1}}},
		{Keys: bson.D{{Key: "user_b", Value: 1}}},
	})
	return &ConnectionRepository{col: col}
}

func (r *ConnectionRepository) Create(ctx context.Context, c *domainconnection.Connection) error {
	if c == nil || c.ID == "" {
		return domainconnection.ErrIDRequired
	}
	_, err := r.col.InsertOne(ctx, newConnectionDocument(c))
	if mongo.IsDuplicateKeyError(err) {
		return domainconnection.ErrAlreadyExists
	}
	return err
}

func (r *ConnectionRepository) ByID(ctx context.Context, id domainconnection.ID) (*domainconnection.Connection, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *ConnectionRepository) ByPair(ctx context.Context, a, b domainuser.ID) (*domainconnection.Connection, error) {
	return r.findOne(ctx, bson.M{"pair_key": domainconnection.NewPair(a, b).Key()})
}

func (r *ConnectionRepository) ListForUser(ctx context.Context, userID domainuser.ID) ([]*domainconnection.Connection, error) {
	filter := bson.M{"$or": bson.A{bson.M{"user_a": string(userID)}, bson.M{"user_b": string(userID)}}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []connectionDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainconnection.Connection, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toAggregate())
	}
	return out, nil
}

func (r *ConnectionRepository) UpdateStatus(ctx context.Context, id domainconnection.ID, status domainconnection.Status, at time.Time) error {
	res, err := r.col.UpdateByID(ctx, string(id), bson.M{"$set": bson.M{"status": string(status), "updated_at": timeToTimestamp(at)}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domainconnection.ErrNotFound
	}
	return nil
}

func (r *ConnectionRepository) Delete(ctx context.Context, id domainconnection.ID) error {
	return r.deleteOne(ctx, bson.M{"_id": string(id)})
}

func (r *ConnectionRepository) DeleteByPair(ctx context.Context, a, b domainuser.ID) error {
	return r.deleteOne(ctx, bson.M{"pair_key": domainconnection.NewPair(a, b).Key()})
}

func (r *ConnectionRepository) findOne(ctx context.Context, filter bson.M) (*domainconnection.Connection, error) {
	var doc connectionDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainconnection.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *ConnectionRepository) deleteOne(ctx context.Context, filter bson.M) error {
	res, err := r.col.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domainconnection.ErrNotFound
	}
	return nil
}

type connectionDocument struct {
	ID          string `bson:"_id"`
	PairKey     string `bson:"pair_key"`
	UserA       string `bson:"user_a"`
	UserB       string `bson:"user_b"`
	Status      string `bson:"status"`
	RequestedBy string `bson:"requested_by"`
	CreatedAt   int64  `bson:"created_at"`
	UpdatedAt   int64  `bson:"updated_at"`
}

func newConnectionDocument(c *domainconnection.Connection) connectionDocument {
	return connectionDocument{
		ID:          string(c.ID),
		PairKey:     c.Pair.Key(),
		UserA:       string(c.Pair.A),
		UserB:       string(c.Pair.B),
		Status:      string(c.Status),
		RequestedBy: string(c.RequestedBy),
		CreatedAt:   timeToTimestamp(c.CreatedAt),
		UpdatedAt:   timeToTimestamp(c.UpdatedAt),
	}
}

func (d connectionDocument) toAggregate() *domainconnection.Connection {
	return &domainconnection.Connection{
		ID:          domainconnection.ID(d.ID),
		Pair:        domainconnection.NewPair(domainuser.ID(d.UserA), domainuser.ID(d.UserB)),
		Status:      domainconnection.Status(d.Status),
		RequestedBy: domainuser.ID(d.RequestedBy),
		CreatedAt:   timestampToTime(d.CreatedAt),
		UpdatedAt:   timestampToTime(d.UpdatedAt),
	}
}

var _ domainconnection.Repository = (*ConnectionRepository)(nil)
