package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/nimburion/recordbench/pkg/observability/logger"
	"github.com/nimburion/recordbench/pkg/testutil"
	"go.mongodb.org/mongo-driver/bson"
)

func TestAdapter_Integration(t *testing.T) {
	uri := testutil.StartMongo(t)
	ctx := context.Background()

	adapter, err := NewAdapter(Config{
		URL:              uri,
		Database:         "recordbench_it",
		WriteConcern:     "fsync_safe",
		OperationTimeout: 5 * time.Second,
	}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	defer adapter.Close()

	t.Run("HealthCheck", func(t *testing.T) {
		if err := adapter.HealthCheck(ctx); err != nil {
			t.Fatalf("HealthCheck: %v", err)
		}
	})

	t.Run("CRUD", func(t *testing.T) {
		if _, err := adapter.InsertOne(ctx, "docs", bson.D{{Key: "_id", Value: "k1"}, {Key: "v", Value: []byte("a")}}); err != nil {
			t.Fatalf("InsertOne: %v", err)
		}
		var got bson.M
		if err := adapter.FindOne(ctx, "docs", bson.D{{Key: "_id", Value: "k1"}}, &got); err != nil {
			t.Fatalf("FindOne: %v", err)
		}
		res, err := adapter.UpdateOne(ctx, "docs", bson.D{{Key: "_id", Value: "k1"}}, bson.D{{Key: "$set", Value: bson.D{{Key: "v", Value: []byte("b")}}}})
		if err != nil || res.MatchedCount != 1 {
			t.Fatalf("UpdateOne: res=%+v err=%v", res, err)
		}
		var all []bson.M
		if err := adapter.FindAll(ctx, "docs", bson.D{}, &all); err != nil || len(all) != 1 {
			t.Fatalf("FindAll: len=%d err=%v", len(all), err)
		}
		del, err := adapter.DeleteOne(ctx, "docs", bson.D{{Key: "_id", Value: "k1"}})
		if err != nil || del.DeletedCount != 1 {
			t.Fatalf("DeleteOne: res=%+v err=%v", del, err)
		}
		if err := adapter.DropCollection(ctx, "docs"); err != nil {
			t.Fatalf("DropCollection: %v", err)
		}
	})

	t.Run("SharedHealthCheck", func(t *testing.T) {
		shared := NewShared(Config{URL: uri, Database: "recordbench_it"}, logger.NewNop())
		defer shared.Close(ctx)
		if err := shared.HealthCheck(ctx); err != nil {
			t.Fatalf("HealthCheck: %v", err)
		}
		if shared.Refs() != 0 || shared.Connections() != 1 {
			t.Fatalf("lease leaked: refs=%d connections=%d", shared.Refs(), shared.Connections())
		}
	})

	t.Run("HostPortURL", func(t *testing.T) {
		hostPort := uri[len("mongodb://"):]
		a, err := NewAdapter(Config{URL: hostPort, Database: "recordbench_it", MaxConnections: 2}, logger.NewNop())
		if err != nil {
			t.Fatalf("NewAdapter(host:port): %v", err)
		}
		if err := a.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	})
}
