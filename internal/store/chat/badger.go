package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/sqltavern/askdb/internal/model/chat"
)

// BadgerStore implements Store on top of BadgerDB.
//
// Keys are formatted as "turn:{conversationId}:{userId}:{timestamp_padded}:{uuid}":
//  1. The 19-digit zero-padded nanosecond timestamp makes a forward prefix scan
//     return turns in chronological order.
//  2. The trailing UUID disambiguates two turns written in the same nanosecond.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore wraps an already-opened badger handle. The caller owns the
// handle's lifecycle and closes it at shutdown.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Append persists a single turn.
func (s *BadgerStore) Append(ctx context.Context, input chat.TurnInput) (chat.Turn, error) {
	turns, err := s.AppendAll(ctx, input)
	if err != nil {
		return chat.Turn{}, err
	}
	return turns[0], nil
}

// AppendAll persists all turns in one badger transaction. Timestamps are
// assigned here, strictly increasing in argument order, so a question/answer
// pair committed together can never be observed half-written or reordered.
func (s *BadgerStore) AppendAll(_ context.Context, inputs ...chat.TurnInput) ([]chat.Turn, error) {
	for _, input := range inputs {
		if err := input.Validate(); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	turns := make([]chat.Turn, 0, len(inputs))
	for i, input := range inputs {
		turns = append(turns, chat.Turn{
			ID:             uuid.NewString(),
			ConversationID: input.ConversationID,
			UserID:         input.UserID,
			Sender:         input.Sender,
			Text:           input.Text,
			Timestamp:      now.Add(time.Duration(i)),
		})
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		for _, turn := range turns {
			value, err := json.Marshal(turn)
			if err != nil {
				return err
			}
			if err := txn.Set([]byte(turnKey(turn)), value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return turns, nil
}

// ListByConversationAndUser scans the conversation prefix in key order, which
// is chronological by construction. IDs are opaque and may themselves contain
// the key delimiter, so the prefix only narrows the scan; the decoded turn is
// matched exactly.
func (s *BadgerStore) ListByConversationAndUser(_ context.Context, conversationID, userID string) ([]chat.Turn, error) {
	prefix := []byte(fmt.Sprintf("turn:%s:%s:", conversationID, userID))
	return s.scan(prefix, func(t chat.Turn) bool {
		return t.ConversationID == conversationID && t.UserID == userID
	})
}

// ListByUser walks every stored turn and keeps those belonging to the user.
// Turns from different conversations interleave, so the result is re-sorted by
// timestamp.
func (s *BadgerStore) ListByUser(_ context.Context, userID string) ([]chat.Turn, error) {
	turns, err := s.scan([]byte("turn:"), func(t chat.Turn) bool { return t.UserID == userID })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(turns, func(i, j int) bool {
		return turns[i].Timestamp.Before(turns[j].Timestamp)
	})
	return turns, nil
}

func (s *BadgerStore) scan(prefix []byte, keep func(chat.Turn) bool) ([]chat.Turn, error) {
	turns := make([]chat.Turn, 0, 16)
	err := s.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var turn chat.Turn
				if err := json.Unmarshal(value, &turn); err != nil {
					return err
				}
				if keep(turn) {
					turns = append(turns, turn)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return turns, nil
}

func turnKey(turn chat.Turn) string {
	return fmt.Sprintf("turn:%s:%s:%019d:%s",
		turn.ConversationID,
		turn.UserID,
		turn.Timestamp.UnixNano(),
		turn.ID,
	)
}
