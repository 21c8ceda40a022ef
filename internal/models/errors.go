// errors.go - Fatal trace errors
package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a fatal condition that aborts the run.
type ErrorKind string

const (
	KindMalformedField     ErrorKind = "MALFORMED_FIELD"
	KindUnknownAction      ErrorKind = "UNKNOWN_ACTION"
	KindClientMismatch     ErrorKind = "CLIENT_MISMATCH"
	KindUnknownGroup       ErrorKind = "UNKNOWN_GROUP"
	KindAmbiguousCurrent   ErrorKind = "AMBIGUOUS_CURRENT"
	KindInterleavedMessage ErrorKind = "INTERLEAVED_MESSAGE"
	KindMalformedPayload   ErrorKind = "MALFORMED_PAYLOAD"
	KindTruncatedMessage   ErrorKind = "TRUNCATED_MESSAGE"
	KindInvalidClientID    ErrorKind = "INVALID_CLIENT_ID"
	KindIO                 ErrorKind = "IO"
)

// TraceError is a fatal error. Components that see a TraceError must stop
// and return it; only the top-level command decides the exit status.
type TraceError struct {
	Kind    ErrorKind
	File    string
	Line    int
	Message string
	Err     error
}

// Error implements the error interface
func (e *TraceError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	switch {
	case e.File != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, msg)
	case e.File != "":
		return fmt.Sprintf("%s: %s", e.File, msg)
	}
	return msg
}

func (e *TraceError) Unwrap() error {
	return e.Err
}

// At fills in the location if the error does not carry one yet.
func (e *TraceError) At(file string, line int) *TraceError {
	if e.File == "" {
		e.File = file
	}
	if e.Line == 0 {
		e.Line = line
	}
	return e
}

// AsTraceError unwraps err to a *TraceError.
func AsTraceError(err error) (*TraceError, bool) {
	var te *TraceError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// IsKind reports whether err is a TraceError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	te, ok := AsTraceError(err)
	return ok && te.Kind == kind
}

// Error constructors for consistent error handling

// NewMalformedFieldError reports a capture that should be numeric but is not.
func NewMalformedFieldError(field, value string, cause error) *TraceError {
	return &TraceError{
		Kind:    KindMalformedField,
		Message: fmt.Sprintf("field %s is not numeric: %q", field, value),
		Err:     cause,
	}
}

// NewUnknownActionError reports a payload action outside Connect/Disconnect/FailedConnect.
func NewUnknownActionError(action string) *TraceError {
	return &TraceError{
		Kind:    KindUnknownAction,
		Message: fmt.Sprintf("unrecognized payload action %q", action),
	}
}

// NewClientMismatchError reports a disconnect by a client that does not occupy the slot.
func NewClientMismatchError(slot, occupant, disconnecting string, occupantSource Provenance) *TraceError {
	return &TraceError{
		Kind: KindClientMismatch,
		Message: fmt.Sprintf("slot %s disconnected by %s but occupied by %s since %s",
			slot, disconnecting, occupant, occupantSource),
	}
}

// NewUnknownGroupError reports a payload for a group never established by a connect.
func NewUnknownGroupError(group string) *TraceError {
	return &TraceError{
		Kind:    KindUnknownGroup,
		Message: fmt.Sprintf("payload for subscription group %q with no prior connect", group),
	}
}

// NewAmbiguousCurrentError reports more than one current trace file.
func NewAmbiguousCurrentError(dir string, names []string) *TraceError {
	return &TraceError{
		Kind:    KindAmbiguousCurrent,
		File:    dir,
		Message: fmt.Sprintf("more than one current trace file: %v", names),
	}
}

// NewInterleavedMessageError reports a non-continuation line inside a message dump.
func NewInterleavedMessageError(remaining int, content string) *TraceError {
	return &TraceError{
		Kind:    KindInterleavedMessage,
		Message: fmt.Sprintf("expected %d more continuation lines, got %q", remaining, content),
	}
}

// NewMalformedPayloadError reports a reassembled payload that cannot be used.
func NewMalformedPayloadError(reason string, cause error) *TraceError {
	return &TraceError{
		Kind:    KindMalformedPayload,
		Message: reason,
		Err:     cause,
	}
}

// NewTruncatedMessageError reports a file ending in the middle of a message dump.
func NewTruncatedMessageError(remaining int) *TraceError {
	return &TraceError{
		Kind:    KindTruncatedMessage,
		Message: fmt.Sprintf("file ended with %d continuation lines outstanding", remaining),
	}
}

// NewInvalidClientIDError reports a client identifier without the subscriber shape.
func NewInvalidClientIDError(clientID string) *TraceError {
	return &TraceError{
		Kind:    KindInvalidClientID,
		Message: fmt.Sprintf("client identifier %q has no subscription group", clientID),
	}
}

// NewIOError wraps a filesystem or decompression failure.
func NewIOError(path, op string, cause error) *TraceError {
	return &TraceError{
		Kind:    KindIO,
		File:    path,
		Message: op,
		Err:     cause,
	}
}
