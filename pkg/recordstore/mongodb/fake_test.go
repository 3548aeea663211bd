package mongodb

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// fakeExecutor is an in-memory stand-in for the adapter. Documents go through
// bson.Marshal and bson.Unmarshal so decoding behaves like the driver's.
type fakeExecutor struct {
	mu       sync.Mutex
	keyField string
	tables   map[string]*fakeTable

	// errs injects an error per method name.
	errs map[string]error
	// unacknowledged makes writes apply and then report ErrUnacknowledgedWrite.
	unacknowledged bool
	// deletedCount overrides the reported DeletedCount when positive.
	deletedCount int64

	lastFindOptions *options.FindOptions
}

type fakeTable struct {
	order []string
	docs  map[string]bson.Raw
}

func newFakeExecutor(keyField string) *fakeExecutor {
	return &fakeExecutor{keyField: keyField, tables: make(map[string]*fakeTable), errs: make(map[string]error)}
}

func (f *fakeExecutor) table(name string) *fakeTable {
	t, ok := f.tables[name]
	if !ok {
		t = &fakeTable{docs: make(map[string]bson.Raw)}
		f.tables[name] = t
	}
	return t
}

// put stores doc as-is, bypassing the client.
func (f *fakeExecutor) put(table string, doc bson.D) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, err := bson.Marshal(doc)
	if err != nil {
		panic(err)
	}
	key := raw.Lookup(f.keyField).StringValue()
	t := f.table(table)
	if _, exists := t.docs[key]; !exists {
		t.order = append(t.order, key)
	}
	t.docs[key] = raw
}

// get returns the stored document for key.
func (f *fakeExecutor) get(table, key string) (bson.Raw, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.table(table).docs[key]
	return raw, ok
}

func (f *fakeExecutor) InsertOne(_ context.Context, collection string, doc interface{}) (*mongo.InsertOneResult, error) {
	if err := f.errs["InsertOne"]; err != nil {
		return nil, err
	}
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	key := raw.Lookup(f.keyField).StringValue()

	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.table(collection)
	if _, exists := t.docs[key]; exists {
		return nil, mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key error"}}}
	}
	t.order = append(t.order, key)
	t.docs[key] = raw
	if f.unacknowledged {
		return nil, mongo.ErrUnacknowledgedWrite
	}
	return &mongo.InsertOneResult{InsertedID: key}, nil
}

func (f *fakeExecutor) FindOne(_ context.Context, collection string, filter, result interface{}, opts ...*options.FindOneOptions) error {
	if err := f.errs["FindOne"]; err != nil {
		return err
	}
	key := filter.(bson.D)[0].Value.(string)

	f.mu.Lock()
	raw, ok := f.table(collection).docs[key]
	f.mu.Unlock()
	if !ok {
		return mongo.ErrNoDocuments
	}
	var projection interface{}
	if len(opts) > 0 && opts[0] != nil {
		projection = opts[0].Projection
	}
	projected, err := project(raw, projection)
	if err != nil {
		return err
	}
	return bson.Unmarshal(projected, result)
}

func (f *fakeExecutor) FindAll(_ context.Context, collection string, filter, results interface{}, opts ...*options.FindOptions) error {
	if err := f.errs["FindAll"]; err != nil {
		return err
	}
	start := filter.(bson.D)[0].Value.(bson.D)[0].Value.(string)
	var findOpts *options.FindOptions
	if len(opts) > 0 {
		findOpts = opts[0]
	}

	f.mu.Lock()
	f.lastFindOptions = findOpts
	t := f.table(collection)
	keys := make([]string, 0, len(t.order))
	for _, key := range t.order {
		if key >= start {
			keys = append(keys, key)
		}
	}
	docs := make([]bson.Raw, 0, len(keys))
	if findOpts != nil && findOpts.Sort != nil {
		sort.Strings(keys)
	}
	for _, key := range keys {
		docs = append(docs, t.docs[key])
	}
	f.mu.Unlock()

	if findOpts != nil && findOpts.Limit != nil && *findOpts.Limit > 0 && int64(len(docs)) > *findOpts.Limit {
		docs = docs[:*findOpts.Limit]
	}
	out := results.(*[]bson.M)
	for _, raw := range docs {
		var projection interface{}
		if findOpts != nil {
			projection = findOpts.Projection
		}
		projected, err := project(raw, projection)
		if err != nil {
			return err
		}
		var doc bson.M
		if err := bson.Unmarshal(projected, &doc); err != nil {
			return err
		}
		*out = append(*out, doc)
	}
	return nil
}

func (f *fakeExecutor) UpdateOne(_ context.Context, collection string, filter, update interface{}) (*mongo.UpdateResult, error) {
	if err := f.errs["UpdateOne"]; err != nil {
		return nil, err
	}
	key := filter.(bson.D)[0].Value.(string)
	set := update.(bson.D)[0].Value.(bson.D)

	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.table(collection)
	raw, ok := t.docs[key]
	if !ok {
		if f.unacknowledged {
			return nil, mongo.ErrUnacknowledgedWrite
		}
		return &mongo.UpdateResult{}, nil
	}
	var doc bson.D
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	for _, elem := range set {
		replaced := false
		for i := range doc {
			if doc[i].Key == elem.Key {
				doc[i].Value = elem.Value
				replaced = true
			}
		}
		if !replaced {
			doc = append(doc, elem)
		}
	}
	updated, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	t.docs[key] = updated
	if f.unacknowledged {
		return nil, mongo.ErrUnacknowledgedWrite
	}
	return &mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (f *fakeExecutor) DeleteOne(_ context.Context, collection string, filter interface{}) (*mongo.DeleteResult, error) {
	if err := f.errs["DeleteOne"]; err != nil {
		return nil, err
	}
	key := filter.(bson.D)[0].Value.(string)

	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.table(collection)
	var deleted int64
	if _, ok := t.docs[key]; ok {
		delete(t.docs, key)
		for i, k := range t.order {
			if k == key {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
		deleted = 1
	}
	if f.unacknowledged {
		return nil, mongo.ErrUnacknowledgedWrite
	}
	if f.deletedCount > 0 {
		deleted = f.deletedCount
	}
	return &mongo.DeleteResult{DeletedCount: deleted}, nil
}

// project applies an inclusion projection. _id is kept unless excluded, as the server does.
func project(raw bson.Raw, projection interface{}) (bson.Raw, error) {
	if projection == nil {
		return raw, nil
	}
	spec, ok := projection.(bson.D)
	if !ok {
		return nil, errors.New("fake executor only supports bson.D projections")
	}
	include := map[string]bool{"_id": true}
	for _, elem := range spec {
		include[elem.Key] = true
	}
	var doc bson.D
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	kept := make(bson.D, 0, len(doc))
	for _, elem := range doc {
		if include[elem.Key] {
			kept = append(kept, elem)
		}
	}
	return bson.Marshal(kept)
}

// fakeAcquirer counts leases handed to clients built on it.
type fakeAcquirer struct {
	exec     *fakeExecutor
	err      error
	acquired int
	released int
}

func (a *fakeAcquirer) acquire(context.Context) (executor, func(context.Context) error, error) {
	if a.err != nil {
		return nil, nil, a.err
	}
	a.acquired++
	return a.exec, func(context.Context) error {
		a.released++
		return nil
	}, nil
}
