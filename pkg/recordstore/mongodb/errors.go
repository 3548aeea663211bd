package mongodb

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"

	"github.com/nimburion/recordbench/pkg/recordstore"
	mongostore "github.com/nimburion/recordbench/pkg/store/mongodb"
)

// classify tags a driver error with the record store kind it represents.
func classify(op, table, key string, err error) error {
	return recordstore.NewError(op, table, key, kindOf(err), err)
}

func kindOf(err error) recordstore.Kind {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return recordstore.KindNotFound
	case mongo.IsDuplicateKeyError(err), isWriteConcernError(err):
		return recordstore.KindWriteConflict
	case errors.Is(err, mongostore.ErrInvalidConfig):
		return recordstore.KindConfiguration
	case isConnectionError(err):
		return recordstore.KindConnection
	default:
		return recordstore.KindUnknown
	}
}

func isWriteConcernError(err error) bool {
	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) && writeErr.WriteConcernError != nil {
		return true
	}
	var bulkErr mongo.BulkWriteException
	return errors.As(err, &bulkErr) && bulkErr.WriteConcernError != nil
}

func isConnectionError(err error) bool {
	var selectionErr topology.ServerSelectionError
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, mongo.ErrClientDisconnected) ||
		errors.Is(err, mongostore.ErrAdapterClosed) ||
		errors.Is(err, mongostore.ErrSharedClosed) ||
		errors.Is(err, topology.ErrServerSelectionTimeout) ||
		errors.As(err, &selectionErr) ||
		mongo.IsNetworkError(err) ||
		mongo.IsTimeout(err)
}
