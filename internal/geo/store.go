// Package geo stores user positions in MongoDB and answers radius queries
// through a 2dsphere index.
package geo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zephyr/internal/observability"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the Mongo collection holding user locations.
const CollectionName = "user_locations"

// Point is a GeoJSON point. Coordinates are [longitude, latitude].
type Point struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
}

// NewPoint builds a GeoJSON point.
func NewPoint(lng, lat float64) Point {
	return Point{Type: "Point", Coordinates: []float64{lng, lat}}
}

// UserLocation is the last reported position of a user.
type UserLocation struct {
	UserID    uint      `bson:"user_id" json:"user_id"`
	Location  Point     `bson:"location" json:"location"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// ValidCoordinates reports whether lng/lat are on the globe.
func ValidCoordinates(lng, lat float64) bool {
	return lng >= -180 && lng <= 180 && lat >= -90 && lat <= 90
}

// Store is a Mongo-backed location index.
type Store struct {
	coll *mongo.Collection
}

// Connect dials uri, pings it and returns a store over db.user_locations.
func Connect(ctx context.Context, uri, db string) (*mongo.Client, *Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, NewStore(client.Database(db).Collection(CollectionName)), nil
}

// NewStore wraps an existing collection.
func NewStore(coll *mongo.Collection) *Store {
	return &Store{coll: coll}
}

// EnsureIndexes creates the 2dsphere index and the one-document-per-user index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	return err
}

// Upsert records the user's current position.
func (s *Store) Upsert(ctx context.Context, userID uint, lng, lat float64) error {
	start := time.Now()
	ctx, finish := observability.StartClientSpan(ctx, "mongo", "upsert_location")
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{
			"location":   NewPoint(lng, lat),
			"updated_at": time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	finish(err)
	observability.ObserveOutbound("mongo", start, err)
	return err
}

// Get returns the stored location for userID, or (nil, nil).
func (s *Store) Get(ctx context.Context, userID uint) (*UserLocation, error) {
	var loc UserLocation
	err := s.coll.FindOne(ctx, bson.M{"user_id": userID}).Decode(&loc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

// Nearby returns user ids within maxMeters of the point, nearest first, skipping exclude.
func (s *Store) Nearby(ctx context.Context, lng, lat, maxMeters float64, exclude []uint, limit int) ([]uint, error) {
	if limit <= 0 {
		limit = 50
	}
	start := time.Now()
	ctx, finish := observability.StartClientSpan(ctx, "mongo", "nearby")
	ids, err := s.nearby(ctx, nearbyFilter(lng, lat, maxMeters, exclude), int64(limit))
	finish(err)
	observability.ObserveOutbound("mongo", start, err)
	return ids, err
}

func (s *Store) nearby(ctx context.Context, filter bson.M, limit int64) ([]uint, error) {
	cur, err := s.coll.Find(ctx, filter, options.Find().SetLimit(limit).SetProjection(bson.M{"user_id": 1}))
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()

	ids := make([]uint, 0)
	for cur.Next(ctx) {
		var row struct {
			UserID uint `bson:"user_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.UserID)
	}
	return ids, cur.Err()
}

func nearbyFilter(lng, lat, maxMeters float64, exclude []uint) bson.M {
	filter := bson.M{
		"location": bson.M{
			"$nearSphere": bson.M{
				"$geometry":    NewPoint(lng, lat),
				"$maxDistance": maxMeters,
			},
		},
	}
	if len(exclude) > 0 {
		filter["user_id"] = bson.M{"$nin": exclude}
	}
	return filter
}
