package transcribe

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies pipeline failures. Only KindBadRequest is the caller's fault.
type Kind int

const (
	KindBadRequest Kind = iota + 1
	KindTranscode
	KindUpstreamAuth
	KindUpstreamHTTP
	KindUpstreamSchema
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindTranscode:
		return "transcode_error"
	case KindUpstreamAuth:
		return "upstream_auth_error"
	case KindUpstreamHTTP:
		return "upstream_http_error"
	case KindUpstreamSchema:
		return "upstream_schema_error"
	default:
		return "internal_error"
	}
}

// Error is a classified pipeline failure. Message is safe to show to callers
// and never contains audio data.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int // upstream HTTP status, KindUpstreamHTTP only
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// BadRequest reports malformed or missing client input.
func BadRequest(msg string) *Error {
	return &Error{Kind: KindBadRequest, Message: msg}
}

// TranscodeFailed reports a transcoder that ran but did not produce audio.
func TranscodeFailed(reason string) *Error {
	return &Error{Kind: KindTranscode, Message: "audio transcoding failed: " + reason}
}

// TranscodeSpawnFailed reports a transcoder that could not be started.
func TranscodeSpawnFailed(cause error) *Error {
	return &Error{Kind: KindTranscode, Message: "audio transcoding failed to start", Cause: cause}
}

// TranscodeSetupFailed reports a scratch workspace that could not be prepared.
func TranscodeSetupFailed(cause error) *Error {
	return &Error{Kind: KindTranscode, Message: "audio transcoding setup failed", Cause: cause}
}

// UpstreamAuth reports a missing upstream credential.
func UpstreamAuth() *Error {
	return &Error{Kind: KindUpstreamAuth, Message: "upstream API key is not configured"}
}

// UpstreamHTTP reports a non-2xx reply from the provider.
func UpstreamHTTP(status int, body string) *Error {
	return &Error{
		Kind:       KindUpstreamHTTP,
		Message:    fmt.Sprintf("upstream API error (status %d): %s", status, body),
		StatusCode: status,
	}
}

// UpstreamTransport reports a request that never got an HTTP reply.
func UpstreamTransport(cause error) *Error {
	return &Error{Kind: KindUpstreamHTTP, Message: "upstream request failed", Cause: cause}
}

// UpstreamSchema reports a provider reply without a usable transcript.
func UpstreamSchema(detail string) *Error {
	return &Error{Kind: KindUpstreamSchema, Message: "upstream response missing transcript: " + detail}
}

// KindOf returns the Kind of err, or 0 if err is not a classified *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// StatusFor maps an error to the HTTP status returned to callers: 400 for
// bad input, 500 for everything downstream.
func StatusFor(err error) int {
	if KindOf(err) == KindBadRequest {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Message returns the caller-facing text for err. Unclassified errors are
// not echoed back.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return "internal server error"
}
