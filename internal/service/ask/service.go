package ask

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/sqltavern/askdb/internal/model/chat"
	"github.com/sqltavern/askdb/internal/service/gateway"
	chatstore "github.com/sqltavern/askdb/internal/store/chat"
)

// MissingCredentialAnswer is returned verbatim as the answer when the model
// credential is not configured. Kept as a 200-with-answer for backward
// compatibility with existing clients.
const MissingCredentialAnswer = "API key not found. Please set the ARK_API_KEY environment variable."

var ErrInvalidInput = errors.New("invalid ask request")

// Request is one question to answer and record.
type Request struct {
	Question       string
	Source         string
	ConversationID string
	UserID         string
}

// Options bound and locate the orchestration.
type Options struct {
	// DataRoot is the directory data source files are resolved under.
	DataRoot string
	// DefaultSource, when set, pins the deployment to one data source and
	// makes the request's Source optional.
	DefaultSource string
	// Timeout bounds a single gateway invocation.
	Timeout time.Duration
}

// Service coordinates one question/answer exchange: validate, invoke the
// gateway, and record both turns. It is stateless between calls; concurrent
// requests share only the chat store handle.
type Service struct {
	store   chatstore.Store
	gateway gateway.Gateway
	opts    Options
}

// NewService wires the orchestrator. A nil gateway means the deployment has no
// model credential; asks then answer with MissingCredentialAnswer instead of
// failing.
func NewService(store chatstore.Store, gw gateway.Gateway, opts Options) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Service{store: store, gateway: gw, opts: opts}
}

// Ask answers the question and records the user and bot turns in a single
// store transaction. On gateway failure nothing is recorded and the error
// surfaces; on store failure the computed answer is dropped so the caller
// never sees an answer whose question was not persisted.
func (s *Service) Ask(ctx context.Context, req Request) (string, error) {
	if err := s.validate(req); err != nil {
		return "", err
	}

	answer, err := s.resolveAnswer(ctx, req)
	if err != nil {
		return "", err
	}

	_, err = s.store.AppendAll(ctx,
		chat.TurnInput{
			ConversationID: req.ConversationID,
			UserID:         req.UserID,
			Sender:         chat.SenderUser,
			Text:           req.Question,
		},
		chat.TurnInput{
			ConversationID: req.ConversationID,
			UserID:         req.UserID,
			Sender:         chat.SenderBot,
			Text:           answer,
		},
	)
	if err != nil {
		log.Printf("[ask] failed to record exchange for conversation=%s: %v", req.ConversationID, err)
		return "", err
	}

	return answer, nil
}

// History returns the recorded turns of one conversation, oldest first.
func (s *Service) History(ctx context.Context, conversationID, userID string) ([]chat.Turn, error) {
	return s.store.ListByConversationAndUser(ctx, conversationID, userID)
}

// UserHistory returns every turn recorded for a user, oldest first.
func (s *Service) UserHistory(ctx context.Context, userID string) ([]chat.Turn, error) {
	return s.store.ListByUser(ctx, userID)
}

// Record persists a single caller-supplied turn without involving the gateway.
func (s *Service) Record(ctx context.Context, input chat.TurnInput) (chat.Turn, error) {
	return s.store.Append(ctx, input)
}

func (s *Service) validate(req Request) error {
	switch {
	case req.Question == "":
		return fmt.Errorf("%w: question is required", ErrInvalidInput)
	case req.Source == "" && s.opts.DefaultSource == "":
		return fmt.Errorf("%w: dataSource is required", ErrInvalidInput)
	case req.ConversationID == "":
		return fmt.Errorf("%w: conversationId is required", ErrInvalidInput)
	case req.UserID == "":
		return fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}
	return nil
}

func (s *Service) resolveAnswer(ctx context.Context, req Request) (string, error) {
	if s.gateway == nil {
		// No credential configured: the sentinel message becomes the answer
		// and the exchange is still recorded.
		return MissingCredentialAnswer, nil
	}

	path, err := s.resolveSource(req.Source)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	answer, err := s.gateway.Answer(ctx, req.Question, path)
	if errors.Is(err, gateway.ErrMissingCredentials) {
		return MissingCredentialAnswer, nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "", fmt.Errorf("%w: timed out after %s", gateway.ErrUpstream, s.opts.Timeout)
	}
	if err != nil {
		return "", err
	}
	return answer, nil
}

// resolveSource reduces the locator to its base name before joining it under
// the data root, so a crafted locator cannot reach outside the root.
func (s *Service) resolveSource(locator string) (string, error) {
	if locator == "" {
		locator = s.opts.DefaultSource
	}

	path := filepath.Join(s.opts.DataRoot, filepath.Base(locator))
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", gateway.ErrSourceNotFound, filepath.Base(locator))
	}
	return path, nil
}
