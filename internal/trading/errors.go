package trading

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an exchange failure by the policy it triggers.
type Kind int

const (
	// KindTransient covers timeouts, rate limits and 5xx responses.
	// Transient failures are retried with backoff.
	KindTransient Kind = iota
	// KindAuth covers invalid or revoked credentials. The wallet is
	// banned for the process lifetime.
	KindAuth
	// KindPrecision covers quantity or price filter rejections. These
	// are deterministic, so the round aborts without retrying.
	KindPrecision
	// KindBalance covers insufficient margin. The wallet drops out of
	// the current round.
	KindBalance
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindPrecision:
		return "precision"
	case KindBalance:
		return "balance"
	default:
		return "transient"
	}
}

// APIError is a classified exchange failure.
type APIError struct {
	Kind       Kind
	Code       int
	HTTPStatus int
	Msg        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("exchange error %d (http %d, %s): %s", e.Code, e.HTTPStatus, e.Kind, e.Msg)
}

// KindOf extracts the failure kind; unclassified errors are treated as
// transient so they get the retry budget rather than a permanent action.
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindTransient
}

// Retryable reports whether another attempt could change the outcome.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return KindOf(err) == KindTransient
}
