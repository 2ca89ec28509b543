package webhook

import "errors"

// Stable error identities for delivery outcomes. Detailed context is
// wrapped around these with fmt.Errorf("%w: ...") so callers can classify
// with errors.Is while logs keep the specifics.
var (
	ErrInvalidURL     = errors.New("invalid webhook URL")
	ErrInvalidPayload = errors.New("invalid webhook payload")
	ErrHTTPFailure    = errors.New("webhook endpoint returned non-2xx status")
	ErrTransport      = errors.New("webhook request failed before a response was received")
	ErrTimeout        = errors.New("webhook request timed out")
)
