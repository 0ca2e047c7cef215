package gateway

import (
	"context"
	"errors"
)

// Gateway turns a natural-language question about a data source into a
// natural-language answer. How the answer is produced (model choice, query
// verification, retries) is entirely the gateway's concern.
type Gateway interface {
	Answer(ctx context.Context, question, sourcePath string) (string, error)
}

var (
	// ErrMissingCredentials means the deployment lacks the model credential.
	ErrMissingCredentials = errors.New("gateway credentials missing")
	// ErrSourceNotFound means the locator does not resolve to a readable
	// data source.
	ErrSourceNotFound = errors.New("data source not found")
	// ErrUpstream means the model or query execution failed after the
	// gateway's own retry.
	ErrUpstream = errors.New("gateway upstream failure")
)
