package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/okian/lounge/internal/domain/model"
)

const defaultMongoPort = "27017"

// MongoURI turns a bare host (optionally with port) into a connection URI.
// Values that already carry a mongodb scheme are returned unchanged.
func MongoURI(host string) string {
	host = strings.TrimSpace(host)
	if strings.HasPrefix(host, "mongodb://") || strings.HasPrefix(host, "mongodb+srv://") {
		return host
	}
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, defaultMongoPort)
	}
	return "mongodb://" + host
}

// MongoStore keeps one document per player in a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to uri, verifies the connection and ensures a
// unique index on the player name.
func NewMongoStore(ctx context.Context, uri string, opts ...MongoOption) (*MongoStore, error) {
	settings := mongoSettings{database: defaultMongoDatabase, collection: defaultMongoCollection}
	for _, opt := range opts {
		opt(&settings)
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	coll := client.Database(settings.database).Collection(settings.collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo index: %w", err)
	}
	return &MongoStore{client: client, coll: coll}, nil
}

var noID = bson.M{"_id": 0}

// Get implements Store.Get.
func (s *MongoStore) Get(ctx context.Context, name string) (p model.Player, err error) {
	defer observe(BackendMongo, "get", time.Now(), &err)

	err = s.coll.FindOne(ctx, bson.M{"name": name}, options.FindOne().SetProjection(noID)).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Player{}, ErrNotFound
	}
	if err != nil {
		return model.Player{}, fmt.Errorf("mongo get: %w", err)
	}
	return p, nil
}

// listOptions keeps the driver's _id out of leaderboard records.
func listOptions() *options.FindOptions {
	return options.Find().SetProjection(noID)
}

// List implements Store.List. Documents are returned in natural order.
func (s *MongoStore) List(ctx context.Context) (out []model.Player, err error) {
	defer observe(BackendMongo, "list", time.Now(), &err)

	cur, err := s.coll.Find(ctx, bson.D{}, listOptions())
	if err != nil {
		return nil, fmt.Errorf("mongo list: %w", err)
	}
	out = make([]model.Player, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("mongo list: %w", err)
	}
	return out, nil
}

// applyPipeline is a single-stage update. Every field reference inside one
// $set stage reads the document as it was before the stage, so the delta,
// history append and win/loss increment all see the same stored rating.
func applyPipeline(mmr int64) mongo.Pipeline {
	delta := bson.D{{Key: "$subtract", Value: bson.A{mmr, "$mmr"}}}
	won := bson.D{{Key: "$gt", Value: bson.A{mmr, "$mmr"}}}
	counter := func(field string, ifWon, ifLost int) bson.D {
		return bson.D{{Key: "$add", Value: bson.A{
			bson.D{{Key: "$ifNull", Value: bson.A{"$" + field, 0}}},
			bson.D{{Key: "$cond", Value: bson.A{won, ifWon, ifLost}}},
		}}}
	}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "history", Value: bson.D{{Key: "$concatArrays", Value: bson.A{
				bson.D{{Key: "$ifNull", Value: bson.A{"$history", bson.A{}}}},
				bson.A{delta},
			}}}},
			{Key: "wins", Value: counter("wins", 1, 0)},
			{Key: "losses", Value: counter("losses", 0, 1)},
			{Key: "mmr", Value: mmr},
		}}},
	}
}

// Apply implements Store.Apply with one server-side atomic update. The
// filter only matches a stored rating whose delta to mmr fits in an int64;
// $subtract would otherwise promote the history entry to a double.
func (s *MongoStore) Apply(ctx context.Context, name string, mmr int64) (ch model.Change, err error) {
	defer observe(BackendMongo, "apply", time.Now(), &err)

	lo, hi := model.DeltaBounds(mmr)
	filter := bson.M{"name": name, "mmr": bson.M{"$gte": lo, "$lte": hi}}
	var before model.Player
	err = s.coll.FindOneAndUpdate(ctx, filter, applyPipeline(mmr),
		options.FindOneAndUpdate().
			SetReturnDocument(options.Before).
			SetProjection(noID),
	).Decode(&before)
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, cerr := s.coll.CountDocuments(ctx, bson.M{"name": name}, options.Count().SetLimit(1))
		if cerr != nil {
			return model.Change{}, fmt.Errorf("mongo apply: %w", cerr)
		}
		if n > 0 {
			return model.Change{}, fmt.Errorf("%s -> %d: %w", name, mmr, ErrDeltaOverflow)
		}
		return model.Change{}, ErrNotFound
	}
	if err != nil {
		return model.Change{}, fmt.Errorf("mongo apply: %w", err)
	}
	return model.NewChange(name, before.MMR, mmr), nil
}

// Create implements Store.Create.
func (s *MongoStore) Create(ctx context.Context, p model.Player) (err error) {
	defer observe(BackendMongo, "create", time.Now(), &err)

	if p.Name == "" {
		return ErrInvalidName
	}
	if p.History == nil {
		p.History = []int64{}
	}
	_, err = s.coll.InsertOne(ctx, p)
	if mongo.IsDuplicateKeyError(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("mongo create: %w", err)
	}
	return nil
}

// Count implements Store.Count.
func (s *MongoStore) Count(ctx context.Context) (int, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("mongo count: %w", err)
	}
	return int(n), nil
}

// Ping implements Store.Ping.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
