package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/kjstillabower/weather-collector-service/internal/models"
)

// mongoDoc is the persisted document shape. The observation fields sit at the top level.
type mongoDoc struct {
	ID                        primitive.ObjectID `bson:"_id,omitempty"`
	models.WeatherObservation `bson:",inline"`
	CreatedAt                 time.Time `bson:"createdAt"`
	UpdatedAt                 time.Time `bson:"updatedAt"`
}

func (d mongoDoc) stored() models.StoredObservation {
	return models.StoredObservation{
		ID:                 d.ID.Hex(),
		WeatherObservation: d.WeatherObservation,
		CreatedAt:          d.CreatedAt.UTC(),
		UpdatedAt:          d.UpdatedAt.UTC(),
	}
}

// MongoStore persists observations in a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to uri, verifies the primary is reachable and ensures
// the createdAt and city indexes exist.
func NewMongoStore(ctx context.Context, uri, database, collection string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "city", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create mongo indexes: %w", err)
	}
	return &MongoStore{client: client, coll: coll}, nil
}

func (s *MongoStore) Insert(ctx context.Context, obs models.WeatherObservation) (models.StoredObservation, error) {
	t := now()
	doc := mongoDoc{
		ID:                 primitive.NewObjectID(),
		WeatherObservation: obs,
		CreatedAt:          t,
		UpdatedAt:          t,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return models.StoredObservation{}, wrap("insert", err)
	}
	return doc.stored(), nil
}

func (s *MongoStore) FindRecent(ctx context.Context, limit int) ([]models.StoredObservation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, wrap("find_recent", err)
	}
	defer cur.Close(ctx)

	var docs []mongoDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, wrap("find_recent", err)
	}
	out := make([]models.StoredObservation, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.stored())
	}
	return out, nil
}

func (s *MongoStore) LatestByCity(ctx context.Context, city string) (models.StoredObservation, bool, error) {
	filter := bson.D{{Key: "city", Value: primitive.Regex{
		Pattern: "^" + regexp.QuoteMeta(city) + "$",
		Options: "i",
	}}}
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})

	var doc mongoDoc
	err := s.coll.FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.StoredObservation{}, false, nil
	}
	if err != nil {
		return models.StoredObservation{}, false, wrap("latest_by_city", err)
	}
	return doc.stored(), true, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return wrap("ping", err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
