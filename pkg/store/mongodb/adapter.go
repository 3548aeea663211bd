package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nimburion/recordbench/pkg/observability/logger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// ErrAdapterClosed is returned by operations on a closed adapter.
var ErrAdapterClosed = errors.New("mongodb adapter is closed")

// Adapter provides MongoDB connectivity: one client and its connection pool.
type Adapter struct {
	client   *mongo.Client
	database string
	logger   logger.Logger
	timeout  time.Duration
	wc       *writeconcern.WriteConcern
	mu       sync.RWMutex
	closed   bool
}

// Cosa fa: apre il client MongoDB una sola volta e verifica connettività via ping.
// Cosa NON fa: non crea indici o collezioni automaticamente.
// Esempio minimo: adapter, err := mongodb.NewAdapter(cfg, log)
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	return Connect(context.Background(), cfg, log)
}

// Connect is NewAdapter bounded by ctx as well as cfg.ConnectTimeout.
func Connect(ctx context.Context, cfg Config, log logger.Logger) (*Adapter, error) {
	if log == nil {
		log = logger.NewNop()
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	uri, err := ResolveURI(cfg.URL)
	if err != nil {
		return nil, err
	}
	wc, err := ParseWriteConcern(cfg.WriteConcern)
	if err != nil {
		return nil, err
	}

	clientOpts := options.Client().
		SetMaxPoolSize(uint64(cfg.MaxConnections)).
		SetConnectTimeout(cfg.ConnectTimeout).
		ApplyURI(uri).
		SetWriteConcern(wc)
	if err := clientOpts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: mongodb url %q: %v", ErrInvalidConfig, RedactURL(uri), err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	log.Info("MongoDB connection established",
		"url", RedactURL(uri),
		"database", cfg.Database,
		"write_concern", cfg.WriteConcern,
		"max_connections", cfg.MaxConnections,
	)
	return &Adapter{
		client:   client,
		database: cfg.Database,
		logger:   log,
		timeout:  cfg.OperationTimeout,
		wc:       wc,
	}, nil
}

func (a *Adapter) collection(name string) *mongo.Collection {
	return a.client.Database(a.database).Collection(name)
}

// WriteConcern returns the write concern every write through this adapter uses.
func (a *Adapter) WriteConcern() *writeconcern.WriteConcern {
	return a.wc
}

func (a *Adapter) isClosed() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.closed
}

func (a *Adapter) Ping(ctx context.Context) error {
	if a.isClosed() {
		return ErrAdapterClosed
	}
	return a.client.Ping(ctx, readpref.Primary())
}

func (a *Adapter) HealthCheck(ctx context.Context) error {
	hcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.Ping(hcCtx); err != nil {
		a.logger.Error("MongoDB health check failed", "error", err)
		return fmt.Errorf("mongodb health check failed: %w", err)
	}
	return nil
}

// Close disconnects the client. Operations still in flight are not drained.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	if a.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to close mongodb connection: %w", err)
	}
	if a.logger != nil {
		a.logger.Info("MongoDB connection closed", "database", a.database)
	}
	return nil
}

// Cosa fa: inserisce un documento nella collection target.
// Cosa NON fa: non valida lo schema del documento.
// Esempio minimo: _, err := adapter.InsertOne(ctx, "usertable", doc)
func (a *Adapter) InsertOne(ctx context.Context, collection string, doc interface{}) (*mongo.InsertOneResult, error) {
	if a.isClosed() {
		return nil, ErrAdapterClosed
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	return a.collection(collection).InsertOne(opCtx, doc)
}

// FindOne decodes the first document matching filter into result.
func (a *Adapter) FindOne(ctx context.Context, collection string, filter, result interface{}, opts ...*options.FindOneOptions) error {
	if a.isClosed() {
		return ErrAdapterClosed
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	return a.collection(collection).FindOne(opCtx, filter, opts...).Decode(result)
}

// FindAll drains every document matching filter into results, which must be a pointer to a slice.
func (a *Adapter) FindAll(ctx context.Context, collection string, filter, results interface{}, opts ...*options.FindOptions) error {
	if a.isClosed() {
		return ErrAdapterClosed
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	cursor, err := a.collection(collection).Find(opCtx, filter, opts...)
	if err != nil {
		return err
	}
	return cursor.All(opCtx, results)
}

func (a *Adapter) UpdateOne(ctx context.Context, collection string, filter, update interface{}) (*mongo.UpdateResult, error) {
	if a.isClosed() {
		return nil, ErrAdapterClosed
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	return a.collection(collection).UpdateOne(opCtx, filter, update)
}

func (a *Adapter) DeleteOne(ctx context.Context, collection string, filter interface{}) (*mongo.DeleteResult, error) {
	if a.isClosed() {
		return nil, ErrAdapterClosed
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	return a.collection(collection).DeleteOne(opCtx, filter)
}

// DropCollection removes a collection; `load --drop` uses it to reset a table.
func (a *Adapter) DropCollection(ctx context.Context, name string) error {
	if a.isClosed() {
		return ErrAdapterClosed
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	return a.collection(name).Drop(opCtx)
}

func (a *Adapter) withOperationTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.timeout)
}
