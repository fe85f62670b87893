package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/mongo"

	domainconversation "recipehub/internal/domain/conversation"
)

const (
	codeWriteConflict = 112

	labelTransientTransaction = "TransientTransactionError"
	labelUnknownCommitResult  = "UnknownTransactionCommitResult"
)

// decodeEach decodes documents one at a time. A document that fails to decode
// is logged and skipped; only cursor errors abort the batch.
func decodeEach[T any](ctx context.Context, cur *mongo.Cursor, logger *slog.Logger) ([]T, error) {
	defer cur.Close(ctx)
	if logger == nil {
		logger = slog.Default()
	}
	out := make([]T, 0)
	for cur.Next(ctx) {
		var doc T
		if err := cur.Decode(&doc); err != nil {
			id, _ := cur.Current.Lookup("_id").StringValueOK()
			logger.Warn("document undecodable, skipped", "id", id, "error", err)
			continue
		}
		out = append(out, doc)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func collectionLogger(col *mongo.Collection) *slog.Logger {
	return slog.Default().With("collection", col.Name())
}

// isWriteConflict reports whether err is a transaction write conflict that
// the caller may retry from a fresh read.
func isWriteConflict(err error) bool {
	var se mongo.ServerError
	if !errors.As(err, &se) {
		return false
	}
	return se.HasErrorCode(codeWriteConflict) || se.HasErrorLabel(labelTransientTransaction)
}

// commitError maps retryable commit failures onto ErrConcurrentUpdate.
func commitError(err error) error {
	if err == nil {
		return nil
	}
	var se mongo.ServerError
	if errors.As(err, &se) && (se.HasErrorLabel(labelTransientTransaction) || se.HasErrorLabel(labelUnknownCommitResult)) {
		return fmt.Errorf("%w: %v", domainconversation.ErrConcurrentUpdate, err)
	}
	return err
}
