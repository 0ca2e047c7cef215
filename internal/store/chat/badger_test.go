package chat

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"github.com/sqltavern/askdb/internal/model/chat"
)

func openTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewBadgerStore(db)
}

func TestAppendAndListRoundTrip(t *testing.T) {
	req := require.New(t)
	store := openTestStore(t)
	ctx := context.Background()

	inputs := []chat.TurnInput{
		{ConversationID: "sales.db", UserID: "u1", Sender: chat.SenderUser, Text: "how many orders shipped in March?"},
		{ConversationID: "sales.db", UserID: "u1", Sender: chat.SenderBot, Text: "There were 42 orders shipped in March."},
	}
	for _, input := range inputs {
		_, err := store.Append(ctx, input)
		req.NoError(err)
	}

	turns, err := store.ListByConversationAndUser(ctx, "sales.db", "u1")
	req.NoError(err)
	req.Len(turns, 2)
	for i, turn := range turns {
		req.NotEmpty(turn.ID)
		req.False(turn.Timestamp.IsZero())
		req.Equal(inputs[i].Sender, turn.Sender)
		req.Equal(inputs[i].Text, turn.Text)
	}
	req.False(turns[1].Timestamp.Before(turns[0].Timestamp))
}

func TestAppendAllAssignsIncreasingTimestamps(t *testing.T) {
	req := require.New(t)
	store := openTestStore(t)

	turns, err := store.AppendAll(context.Background(),
		chat.TurnInput{ConversationID: "c", UserID: "u", Sender: chat.SenderUser, Text: "q"},
		chat.TurnInput{ConversationID: "c", UserID: "u", Sender: chat.SenderBot, Text: "a"},
	)
	req.NoError(err)
	req.Len(turns, 2)
	req.True(turns[0].Timestamp.Before(turns[1].Timestamp))
	req.NotEqual(turns[0].ID, turns[1].ID)
}

func TestAppendRejectsInvalidInput(t *testing.T) {
	req := require.New(t)
	store := openTestStore(t)
	ctx := context.Background()

	cases := []chat.TurnInput{
		{UserID: "u", Sender: chat.SenderUser, Text: "q"},
		{ConversationID: "c", Sender: chat.SenderUser, Text: "q"},
		{ConversationID: "c", UserID: "u", Sender: chat.SenderUser},
		{ConversationID: "c", UserID: "u", Sender: "moderator", Text: "q"},
	}
	for _, input := range cases {
		_, err := store.Append(ctx, input)
		req.ErrorIs(err, chat.ErrInvalidTurn)
	}

	turns, err := store.ListByConversationAndUser(ctx, "c", "u")
	req.NoError(err)
	req.Empty(turns)
}

func TestAppendAllRejectsWholeBatchOnInvalidInput(t *testing.T) {
	req := require.New(t)
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.AppendAll(ctx,
		chat.TurnInput{ConversationID: "c", UserID: "u", Sender: chat.SenderUser, Text: "q"},
		chat.TurnInput{ConversationID: "c", UserID: "u", Sender: chat.SenderBot},
	)
	req.ErrorIs(err, chat.ErrInvalidTurn)

	turns, err := store.ListByConversationAndUser(ctx, "c", "u")
	req.NoError(err)
	req.Empty(turns)
}

func TestListEmptyConversation(t *testing.T) {
	req := require.New(t)
	store := openTestStore(t)

	turns, err := store.ListByConversationAndUser(context.Background(), "nothing", "nobody")
	req.NoError(err)
	req.Empty(turns)
}

func TestConversationsDoNotCrossContaminate(t *testing.T) {
	req := require.New(t)
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.AppendAll(ctx,
		chat.TurnInput{ConversationID: "a.db", UserID: "u1", Sender: chat.SenderUser, Text: "question a"},
		chat.TurnInput{ConversationID: "a.db", UserID: "u1", Sender: chat.SenderBot, Text: "answer a"},
	)
	req.NoError(err)
	_, err = store.AppendAll(ctx,
		chat.TurnInput{ConversationID: "b.db", UserID: "u2", Sender: chat.SenderUser, Text: "question b"},
		chat.TurnInput{ConversationID: "b.db", UserID: "u2", Sender: chat.SenderBot, Text: "answer b"},
	)
	req.NoError(err)

	turnsA, err := store.ListByConversationAndUser(ctx, "a.db", "u1")
	req.NoError(err)
	req.Len(turnsA, 2)
	for _, turn := range turnsA {
		req.Equal("a.db", turn.ConversationID)
		req.Equal("u1", turn.UserID)
	}

	// Same conversation id under a different user stays invisible.
	turnsOther, err := store.ListByConversationAndUser(ctx, "a.db", "u2")
	req.NoError(err)
	req.Empty(turnsOther)
}

func TestDelimiterInIDsKeepsPairsSeparate(t *testing.T) {
	req := require.New(t)
	store := openTestStore(t)
	ctx := context.Background()

	// The keys of ("a:b", "x") and ("a", "b:x") share the same byte prefix;
	// listing must still keep the pairs apart.
	_, err := store.Append(ctx, chat.TurnInput{ConversationID: "a:b", UserID: "x", Sender: chat.SenderUser, Text: "for a:b/x"})
	req.NoError(err)
	_, err = store.Append(ctx, chat.TurnInput{ConversationID: "a", UserID: "b:x", Sender: chat.SenderUser, Text: "for a/b:x"})
	req.NoError(err)

	turns, err := store.ListByConversationAndUser(ctx, "a:b", "x")
	req.NoError(err)
	req.Len(turns, 1)
	req.Equal("for a:b/x", turns[0].Text)

	turns, err = store.ListByConversationAndUser(ctx, "a", "b:x")
	req.NoError(err)
	req.Len(turns, 1)
	req.Equal("for a/b:x", turns[0].Text)
}

func TestListByUserSpansConversations(t *testing.T) {
	req := require.New(t)
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Append(ctx, chat.TurnInput{ConversationID: "a.db", UserID: "u1", Sender: chat.SenderUser, Text: "first"})
	req.NoError(err)
	_, err = store.Append(ctx, chat.TurnInput{ConversationID: "b.db", UserID: "u1", Sender: chat.SenderUser, Text: "second"})
	req.NoError(err)
	_, err = store.Append(ctx, chat.TurnInput{ConversationID: "a.db", UserID: "u2", Sender: chat.SenderUser, Text: "someone else"})
	req.NoError(err)

	turns, err := store.ListByUser(ctx, "u1")
	req.NoError(err)
	req.Len(turns, 2)
	req.Equal("first", turns[0].Text)
	req.Equal("second", turns[1].Text)
}
