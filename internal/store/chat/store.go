package chat

import (
	"context"
	"errors"

	"github.com/sqltavern/askdb/internal/model/chat"
)

// ErrUnavailable wraps any failure of the underlying storage engine.
var ErrUnavailable = errors.New("chat store unavailable")

// Store exposes append-only persistence of chat turns. There is deliberately
// no update or delete: history is immutable once written.
type Store interface {
	// Append validates the input, assigns id and timestamp, and persists the
	// turn. Returns chat.ErrInvalidTurn on constraint violations and
	// ErrUnavailable when storage cannot serve the write.
	Append(ctx context.Context, input chat.TurnInput) (chat.Turn, error)

	// AppendAll persists the given turns in a single transaction with strictly
	// increasing timestamps, so either all of them become visible or none do.
	AppendAll(ctx context.Context, inputs ...chat.TurnInput) ([]chat.Turn, error)

	// ListByConversationAndUser returns every turn for the pair, ascending by
	// timestamp. A conversation with no turns yields an empty slice, not an
	// error.
	ListByConversationAndUser(ctx context.Context, conversationID, userID string) ([]chat.Turn, error)

	// ListByUser returns every turn recorded for the user across all
	// conversations, ascending by timestamp.
	ListByUser(ctx context.Context, userID string) ([]chat.Turn, error)
}
