package mongodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nimburion/recordbench/pkg/observability/logger"
)

func TestNewAdapter_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "url without port", cfg: Config{URL: "localhost"}},
		{name: "url with bad port", cfg: Config{URL: "localhost:http"}},
		{name: "unknown write concern", cfg: Config{URL: "localhost:27017", WriteConcern: "sometimes"}},
		{name: "negative pool", cfg: Config{URL: "localhost:27017", MaxConnections: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAdapter(tt.cfg, logger.NewNop())
			if err == nil {
				t.Fatal("expected configuration error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestPing_WhenClosed(t *testing.T) {
	a := &Adapter{closed: true}
	if err := a.Ping(context.Background()); !errors.Is(err, ErrAdapterClosed) {
		t.Fatalf("expected ErrAdapterClosed, got %v", err)
	}
}

func TestOperations_WhenClosed(t *testing.T) {
	a := &Adapter{closed: true}
	ctx := context.Background()

	if _, err := a.InsertOne(ctx, "usertable", map[string]any{}); !errors.Is(err, ErrAdapterClosed) {
		t.Errorf("InsertOne: expected ErrAdapterClosed, got %v", err)
	}
	if err := a.FindOne(ctx, "usertable", map[string]any{}, &map[string]any{}); !errors.Is(err, ErrAdapterClosed) {
		t.Errorf("FindOne: expected ErrAdapterClosed, got %v", err)
	}
	if err := a.FindAll(ctx, "usertable", map[string]any{}, &[]map[string]any{}); !errors.Is(err, ErrAdapterClosed) {
		t.Errorf("FindAll: expected ErrAdapterClosed, got %v", err)
	}
	if _, err := a.UpdateOne(ctx, "usertable", map[string]any{}, map[string]any{}); !errors.Is(err, ErrAdapterClosed) {
		t.Errorf("UpdateOne: expected ErrAdapterClosed, got %v", err)
	}
	if _, err := a.DeleteOne(ctx, "usertable", map[string]any{}); !errors.Is(err, ErrAdapterClosed) {
		t.Errorf("DeleteOne: expected ErrAdapterClosed, got %v", err)
	}
	if err := a.DropCollection(ctx, "usertable"); !errors.Is(err, ErrAdapterClosed) {
		t.Errorf("DropCollection: expected ErrAdapterClosed, got %v", err)
	}
}

func TestClose_IdempotentWhenAlreadyClosed(t *testing.T) {
	a := &Adapter{closed: true}
	if err := a.Close(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestClose_WithoutClient(t *testing.T) {
	a := &Adapter{logger: logger.NewNop()}
	if err := a.Close(); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !a.isClosed() {
		t.Fatal("expected adapter to be marked closed")
	}
}

func TestWithOperationTimeout_DisabledByDefault(t *testing.T) {
	a := &Adapter{}
	ctx, cancel := a.withOperationTimeout(context.Background())
	defer cancel()
	if _, ok := ctx.Deadline(); ok {
		t.Fatal("expected no deadline when operation timeout is disabled")
	}
}

func TestWithOperationTimeout_UsesAdapterTimeoutWhenNoDeadline(t *testing.T) {
	a := &Adapter{timeout: 2 * time.Second}

	ctx, cancel := a.withOperationTimeout(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("expected deadline from operation timeout")
	}
	if remaining := time.Until(deadline); remaining <= 0 || remaining > 2*time.Second {
		t.Fatalf("unexpected remaining timeout: %v", remaining)
	}
}

func TestWithOperationTimeout_PreservesCallerDeadline(t *testing.T) {
	a := &Adapter{timeout: 2 * time.Second}
	parentCtx, parentCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer parentCancel()

	ctx, cancel := a.withOperationTimeout(parentCtx)
	defer cancel()

	parentDeadline, _ := parentCtx.Deadline()
	gotDeadline, _ := ctx.Deadline()
	if !gotDeadline.Equal(parentDeadline) {
		t.Fatalf("expected caller deadline to be preserved, got %v want %v", gotDeadline, parentDeadline)
	}
}
