// Package mongodb implements recordstore.DB on MongoDB. Each record is one
// document in the collection named after the table: the key is stored under
// the configured key field and every record field as a binary value.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nimburion/recordbench/pkg/observability/logger"
	"github.com/nimburion/recordbench/pkg/recordstore"
	mongostore "github.com/nimburion/recordbench/pkg/store/mongodb"
)

// DefaultKeyField is the document field holding the record key.
const DefaultKeyField = "_id"

var errNoLease = errors.New("client not initialized: call Init before issuing operations")

// Options tunes how records map onto documents.
type Options struct {
	// KeyField names the document field that stores the record key.
	KeyField string
	// SortScan makes Scan return records in ascending key order. Without it
	// records come back in whatever order the server yields them.
	SortScan bool
}

func (o Options) withDefaults() Options {
	if o.KeyField == "" {
		o.KeyField = DefaultKeyField
	}
	return o
}

// executor is the slice of *mongostore.Adapter the client needs.
type executor interface {
	InsertOne(ctx context.Context, collection string, doc interface{}) (*mongo.InsertOneResult, error)
	FindOne(ctx context.Context, collection string, filter, result interface{}, opts ...*options.FindOneOptions) error
	FindAll(ctx context.Context, collection string, filter, results interface{}, opts ...*options.FindOptions) error
	UpdateOne(ctx context.Context, collection string, filter, update interface{}) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, collection string, filter interface{}) (*mongo.DeleteResult, error)
}

// acquireFunc leases an executor and returns the func that gives it back.
type acquireFunc func(ctx context.Context) (executor, func(context.Context) error, error)

// Client is the record store of one worker. It is not safe for concurrent
// use; every worker builds its own Client over the same Shared handle.
type Client struct {
	acquire acquireFunc
	opts    Options
	log     logger.Logger

	exec    executor
	release func(context.Context) error
}

var _ recordstore.DB = (*Client)(nil)

// New returns a Client leasing connections from shared. Nothing is dialed until Init.
func New(shared *mongostore.Shared, opts Options, log logger.Logger) *Client {
	return newClient(func(ctx context.Context) (executor, func(context.Context) error, error) {
		lease, err := shared.Acquire(ctx)
		if err != nil {
			return nil, nil, err
		}
		return lease.Adapter(), lease.Release, nil
	}, opts, log)
}

func newClient(acquire acquireFunc, opts Options, log logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{acquire: acquire, opts: opts.withDefaults(), log: log}
}

// Init leases the shared connection. A second call keeps the first lease.
func (c *Client) Init(ctx context.Context) error {
	if c.exec != nil {
		return nil
	}
	exec, release, err := c.acquire(ctx)
	if err != nil {
		kind := recordstore.KindConnection
		if errors.Is(err, mongostore.ErrInvalidConfig) {
			kind = recordstore.KindConfiguration
		}
		return recordstore.NewError(recordstore.OpInit, "", "", kind, err)
	}
	c.exec = exec
	c.release = release
	return nil
}

// Cleanup gives the lease back. Without a lease it does nothing.
func (c *Client) Cleanup(ctx context.Context) error {
	if c.exec == nil {
		return nil
	}
	release := c.release
	c.exec, c.release = nil, nil
	if err := release(ctx); err != nil {
		return recordstore.NewError(recordstore.OpCleanup, "", "", recordstore.KindConnection, err)
	}
	return nil
}

// Insert stores a new document {<key field>: key, field: binary(value)...}.
func (c *Client) Insert(ctx context.Context, table, key string, values recordstore.Record) error {
	if err := c.ready(recordstore.OpInsert, table, key); err != nil {
		return err
	}
	if err := c.checkFields(recordstore.OpInsert, table, key, values); err != nil {
		return err
	}
	doc := append(bson.D{{Key: c.opts.KeyField, Value: key}}, binaryFields(values)...)
	if _, err := c.exec.InsertOne(ctx, table, doc); err != nil && !errors.Is(err, mongo.ErrUnacknowledgedWrite) {
		return classify(recordstore.OpInsert, table, key, err)
	}
	return nil
}

// Read returns the binary fields of the record stored under key. A nil or
// empty fields slice reads every field.
func (c *Client) Read(ctx context.Context, table, key string, fields []string) (recordstore.Record, error) {
	if err := c.ready(recordstore.OpRead, table, key); err != nil {
		return recordstore.Record{}, err
	}
	var findOpts []*options.FindOneOptions
	if projection := c.projection(fields); projection != nil {
		findOpts = append(findOpts, options.FindOne().SetProjection(projection))
	}
	var doc bson.M
	if err := c.exec.FindOne(ctx, table, c.keyFilter(key), &doc, findOpts...); err != nil {
		return recordstore.Record{}, classify(recordstore.OpRead, table, key, err)
	}
	return c.extract(table, key, doc), nil
}

// Update sets the given fields on an existing record. It never creates one.
func (c *Client) Update(ctx context.Context, table, key string, values recordstore.Record) error {
	if err := c.ready(recordstore.OpUpdate, table, key); err != nil {
		return err
	}
	if len(values) == 0 {
		return recordstore.NewError(recordstore.OpUpdate, table, key, recordstore.KindInvalidInput, errors.New("no fields to update"))
	}
	if err := c.checkFields(recordstore.OpUpdate, table, key, values); err != nil {
		return err
	}
	update := bson.D{{Key: "$set", Value: binaryFields(values)}}
	res, err := c.exec.UpdateOne(ctx, table, c.keyFilter(key), update)
	if errors.Is(err, mongo.ErrUnacknowledgedWrite) {
		return nil
	}
	if err != nil {
		return classify(recordstore.OpUpdate, table, key, err)
	}
	if res == nil {
		return nil
	}
	if res.MatchedCount == 0 {
		return recordstore.NewError(recordstore.OpUpdate, table, key, recordstore.KindNotFound, nil)
	}
	return nil
}

// Delete removes the record stored under key.
func (c *Client) Delete(ctx context.Context, table, key string) error {
	if err := c.ready(recordstore.OpDelete, table, key); err != nil {
		return err
	}
	res, err := c.exec.DeleteOne(ctx, table, c.keyFilter(key))
	if errors.Is(err, mongo.ErrUnacknowledgedWrite) {
		return nil
	}
	if err != nil {
		return classify(recordstore.OpDelete, table, key, err)
	}
	if res == nil {
		return nil
	}
	switch {
	case res.DeletedCount == 0:
		return recordstore.NewError(recordstore.OpDelete, table, key, recordstore.KindNotFound, nil)
	case res.DeletedCount > 1:
		return recordstore.NewError(recordstore.OpDelete, table, key, recordstore.KindWriteConflict,
			fmt.Errorf("deleted %d documents for one key", res.DeletedCount))
	}
	return nil
}

// Scan returns at most count records whose key is >= startKey.
func (c *Client) Scan(ctx context.Context, table, startKey string, count int, fields []string) ([]recordstore.Record, error) {
	if err := c.ready(recordstore.OpScan, table, startKey); err != nil {
		return nil, err
	}
	// The driver reads a limit of 0 as "no limit".
	if count <= 0 {
		return nil, recordstore.NewError(recordstore.OpScan, table, startKey, recordstore.KindInvalidInput,
			fmt.Errorf("record count must be positive, got %d", count))
	}
	findOpts := options.Find().SetLimit(int64(count))
	if projection := c.projection(fields); projection != nil {
		findOpts.SetProjection(projection)
	}
	if c.opts.SortScan {
		findOpts.SetSort(bson.D{{Key: c.opts.KeyField, Value: 1}})
	}
	filter := bson.D{{Key: c.opts.KeyField, Value: bson.D{{Key: "$gte", Value: startKey}}}}

	var docs []bson.M
	if err := c.exec.FindAll(ctx, table, filter, &docs, findOpts); err != nil {
		return nil, classify(recordstore.OpScan, table, startKey, err)
	}
	out := make([]recordstore.Record, 0, len(docs))
	for _, doc := range docs {
		key, _ := doc[c.opts.KeyField].(string)
		out = append(out, c.extract(table, key, doc))
	}
	return out, nil
}

func (c *Client) ready(op, table, key string) error {
	if c.exec == nil {
		return recordstore.NewError(op, table, key, recordstore.KindConnection, errNoLease)
	}
	if table == "" {
		return recordstore.NewError(op, table, key, recordstore.KindInvalidInput, errors.New("table name is required"))
	}
	return nil
}

// checkFields rejects values that would overwrite the key field.
func (c *Client) checkFields(op, table, key string, values recordstore.Record) error {
	if _, ok := values[c.opts.KeyField]; ok {
		return recordstore.NewError(op, table, key, recordstore.KindInvalidInput,
			fmt.Errorf("field %q is the key field", c.opts.KeyField))
	}
	return nil
}

func (c *Client) keyFilter(key string) bson.D {
	return bson.D{{Key: c.opts.KeyField, Value: key}}
}

// projection includes the requested fields plus the key field. nil means all fields.
func (c *Client) projection(fields []string) bson.D {
	if len(fields) == 0 {
		return nil
	}
	projection := bson.D{{Key: c.opts.KeyField, Value: 1}}
	for _, field := range fields {
		if field == c.opts.KeyField {
			continue
		}
		projection = append(projection, bson.E{Key: field, Value: 1})
	}
	return projection
}

// extract copies binary-valued fields into a Record. Other value types are
// dropped and only counted in a debug log.
func (c *Client) extract(table, key string, doc bson.M) recordstore.Record {
	rec := make(recordstore.Record, len(doc))
	dropped := 0
	for field, value := range doc {
		if field == c.opts.KeyField || field == "_id" {
			continue
		}
		switch v := value.(type) {
		case primitive.Binary:
			rec[field] = v.Data
		case []byte:
			rec[field] = v
		default:
			dropped++
		}
	}
	if dropped > 0 {
		c.log.Debug("dropped non-binary fields", "table", table, "key", key, "dropped", dropped)
	}
	return rec
}

// binaryFields encodes values in field-name order so documents are deterministic.
func binaryFields(values recordstore.Record) bson.D {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make(bson.D, 0, len(names))
	for _, name := range names {
		out = append(out, bson.E{Key: name, Value: primitive.Binary{Subtype: bson.TypeBinaryGeneric, Data: values[name]}})
	}
	return out
}
