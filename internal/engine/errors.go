package engine

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies an error for callers that need to map it onto a response.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindForbidden
	KindRateLimited
	KindQueueFull
	KindDependencyUnavailable
	KindMissingCredential
	KindMembersOnly
	KindBlocked
	KindResolution
)

var kindNames = map[Kind]string{
	KindInternal:              "internal",
	KindValidation:            "validation",
	KindAuth:                  "auth",
	KindForbidden:             "forbidden",
	KindRateLimited:           "rate_limited",
	KindQueueFull:             "queue_full",
	KindDependencyUnavailable: "dependency_unavailable",
	KindMissingCredential:     "missing_credential",
	KindMembersOnly:           "members_only",
	KindBlocked:               "blocked",
	KindResolution:            "resolution",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified error. Message is safe to show to clients; Err holds
// upstream detail that is only logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error

	// RetryAfter hints when a throttled caller may try again.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind, so sentinel-style comparisons
// like errors.Is(err, &Error{Kind: KindQueueFull}) work.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// Errorf builds a classified error with a client-safe message.
func Errorf(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the client-safe message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal error"
}

// RetryAfterOf returns the retry hint carried by err, if any.
func RetryAfterOf(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

// HTTPStatus maps an error kind onto a response status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindMissingCredential:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindRateLimited, KindQueueFull:
		return http.StatusTooManyRequests
	case KindDependencyUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Client-facing messages shared across packages.
const (
	MsgTooManyRequests  = "too many requests, please retry shortly"
	MsgInvalidToken     = "invalid access token"
	MsgDatabaseRequired = "database required"
	MsgMissingSpeechKey = "OPENAI_API_KEY is not configured"
	MsgMembersOnly      = "You might not have membership for this video."
	MsgDownloadBlocked  = "audio download was blocked: YouTube restriction (login/age/region) or the downloader needs an update"
	MsgDownloadFailed   = "audio download failed"
	MsgSpeechFailed     = "speech recognition failed"
	MsgNoTranscript     = "no transcript available for this video"
)
