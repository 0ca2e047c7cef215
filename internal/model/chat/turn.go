package chat

import (
	"errors"
	"fmt"
	"time"
)

// Sender identifies which side of the conversation produced a turn.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Valid reports whether the sender is one of the enumerated values.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderBot
}

// Turn is one persisted message of a conversation. Turns are immutable once
// written; id and timestamp are assigned by the store, never by callers.
type Turn struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	UserID         string    `json:"userId"`
	Sender         Sender    `json:"sender"`
	Text           string    `json:"text"`
	Timestamp      time.Time `json:"timestamp"`
}

// TurnInput carries the caller-supplied fields of a turn about to be stored.
type TurnInput struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	Sender         Sender `json:"sender"`
	Text           string `json:"text"`
}

var ErrInvalidTurn = errors.New("invalid chat turn")

// Validate checks the required-field and sender constraints.
func (in TurnInput) Validate() error {
	switch {
	case in.ConversationID == "":
		return fmt.Errorf("%w: conversationId is required", ErrInvalidTurn)
	case in.UserID == "":
		return fmt.Errorf("%w: userId is required", ErrInvalidTurn)
	case in.Text == "":
		return fmt.Errorf("%w: text is required", ErrInvalidTurn)
	case !in.Sender.Valid():
		return fmt.Errorf("%w: sender must be %q or %q", ErrInvalidTurn, SenderUser, SenderBot)
	}
	return nil
}
