package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domaingroup "recipehub/internal/domain/group"
	domainuser "recipehub/internal/domain/user"
)

type GroupRepository struct {
	col *mongo.Collection
}

func NewGroupRepository(db *mongo.Database) *GroupRepository {
	col := db.Collection("groups")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{Keys: bson.D{{Key: "members", Value: 1}}})
	return &GroupRepository{col: col}
}

func (r *GroupRepository) Create(ctx context.Context, g *domaingroup.Group) error {
	if g == nil || g.ID == "" {
		return domaingroup.ErrIDRequired
	}
	doc := newGroupDocument(g)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (r *GroupRepository) ByID(ctx context.Context, id domaingroup.ID) (*domaingroup.Group, error) {
	var doc groupDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domaingroup.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *GroupRepository) ListForUser(ctx context.Context, userID domainuser.ID) ([]*domaingroup.Group, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"members": string(userID)}, opts)
	if err != nil {
		return nil, err
	}
	var docs []groupDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domaingroup.Group, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toAggregate())
	}
	return out, nil
}

type groupDocument struct {
	ID          string   `bson:"_id"`
	Name        string   `bson:"name"`
	Description string   `bson:"description,omitempty"`
	Members     []string `bson:"members"`
	CreatedAt   int64    `bson:"created_at"`
}

func newGroupDocument(g *domaingroup.Group) groupDocument {
	members := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		members = append(members, string(m))
	}
	return groupDocument{
		ID:          string(g.ID),
		Name:        g.Name,
		Description: g.Description,
		Members:     members,
		CreatedAt:   timeToTimestamp(g.CreatedAt),
	}
}

func (d groupDocument) toAggregate() *domaingroup.Group {
	members := make([]domainuser.ID, 0, len(d.Members))
	for _, m := range d.Members {
		members = append(members, domainuser.ID(m))
	}
	return &domaingroup.Group{
		ID:          domaingroup.ID(d.ID),
		Name:        d.Name,
		Description: d.Description,
		Members:     members,
		CreatedAt:   timestampToTime(d.CreatedAt),
	}
}

var _ domaingroup.Repository = (*GroupRepository)(nil)
