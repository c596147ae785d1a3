package repository

import (
	"context"
	"fmt"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/okian/lounge/internal/domain/model"
)

// Integration tests against real servers run only when the matching
// environment variable points at one.

func TestMongoStoreContract(t *testing.T) {
	uri := os.Getenv("LOUNGE_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("LOUNGE_TEST_MONGO_URI not set")
	}
	storeContract(t, BackendMongo, func(t *testing.T) Store {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := NewMongoStore(ctx, MongoURI(uri),
			WithMongoDatabase("lounge_test"),
			WithMongoCollection(fmt.Sprintf("players_%s", uuid.NewString()[:8])))
		if err != nil {
			t.Fatalf("open mongo: %v", err)
		}
		return droppingMongo{s}
	})
}

func TestMongoListRecordShape(t *testing.T) {
	uri := os.Getenv("LOUNGE_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("LOUNGE_TEST_MONGO_URI not set")
	}
	Convey("Given players stored in mongo", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := NewMongoStore(ctx, MongoURI(uri),
			WithMongoDatabase("lounge_test"),
			WithMongoCollection(fmt.Sprintf("players_%s", uuid.NewString()[:8])))
		So(err, ShouldBeNil)
		store := droppingMongo{s}
		defer func() { _ = store.Close(ctx) }()
		So(store.Create(ctx, model.Player{Name: "alice", MMR: 1500}), ShouldBeNil)
		_, err = store.Apply(ctx, "alice", 1520)
		So(err, ShouldBeNil)

		Convey("When documents are read with the leaderboard options", func() {
			cur, err := s.coll.Find(ctx, bson.D{}, listOptions())
			So(err, ShouldBeNil)
			var docs []bson.M
			So(cur.All(ctx, &docs), ShouldBeNil)

			Convey("Then each carries exactly the player fields", func() {
				So(docs, ShouldHaveLength, 1)
				keys := make([]string, 0, len(docs[0]))
				for k := range docs[0] {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				So(keys, ShouldResemble, []string{"history", "losses", "mmr", "name", "wins"})
			})
		})
	})
}

// droppingMongo removes the per-test collection when the store is closed.
type droppingMongo struct{ *MongoStore }

func (d droppingMongo) Close(ctx context.Context) error {
	_ = d.coll.Drop(ctx)
	return d.MongoStore.Close(ctx)
}

func TestPostgresStoreContract(t *testing.T) {
	dsn := os.Getenv("LOUNGE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("LOUNGE_TEST_POSTGRES_DSN not set")
	}
	storeContract(t, BackendPostgres, func(t *testing.T) Store {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := NewPostgresStore(ctx, dsn)
		if err != nil {
			t.Fatalf("open postgres: %v", err)
		}
		if _, err := s.pool.Exec(ctx, `TRUNCATE players`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return s
	})
}
