package replica

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/roach88/tandem/internal/ir"
	"github.com/roach88/tandem/internal/xform"
)

// Error reports a failure inside a replica operation.
//
// Every Error is fatal to the operation in progress. A replica that returned
// CAUSALITY_VIOLATION or PEER_MISMATCH no longer holds trustworthy state and
// should be torn down or rebuilt from a fresh snapshot.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// ActorID identifies the replica that detected the error.
	ActorID int

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes replica errors.
type ErrorCode string

const (
	// ErrCodeCausalityViolation indicates a peer message arrived out of order
	// or acknowledged messages this replica never sent.
	ErrCodeCausalityViolation ErrorCode = "CAUSALITY_VIOLATION"

	// ErrCodeUnsupportedTransform indicates the transform engine has no case
	// for an instruction pair.
	ErrCodeUnsupportedTransform ErrorCode = "UNSUPPORTED_TRANSFORM"

	// ErrCodeMalformedMessage indicates a wire payload could not be decoded.
	ErrCodeMalformedMessage ErrorCode = "MALFORMED_MESSAGE"

	// ErrCodeApplyFailed indicates an instruction addressed runes outside
	// the buffer.
	ErrCodeApplyFailed ErrorCode = "APPLY_FAILED"

	// ErrCodePeerMismatch indicates a message from a creator other than the
	// single peer of this two-party session.
	ErrCodePeerMismatch ErrorCode = "PEER_MISMATCH"

	// ErrCodePublishFailed indicates the outbound channel rejected a message.
	ErrCodePublishFailed ErrorCode = "PUBLISH_FAILED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s (actor=%d)", e.Code, e.Message, e.ActorID)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first replica Error in err's chain, or ""
// if there is none.
func CodeOf(err error) ErrorCode {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsCausalityViolation returns true if the error is a causality violation.
// Uses errors.As to handle wrapped errors.
func IsCausalityViolation(err error) bool {
	return CodeOf(err) == ErrCodeCausalityViolation
}

// IsUnsupportedTransform returns true if the error came from an instruction
// pair the transform engine does not cover.
func IsUnsupportedTransform(err error) bool {
	return CodeOf(err) == ErrCodeUnsupportedTransform || xform.IsUnsupportedCombination(err)
}

// IsMalformedMessage returns true if the error came from an undecodable wire
// payload.
func IsMalformedMessage(err error) bool {
	return CodeOf(err) == ErrCodeMalformedMessage || ir.IsMalformed(err)
}

// IsPeerMismatch returns true if a message came from an unexpected creator.
func IsPeerMismatch(err error) bool {
	return CodeOf(err) == ErrCodePeerMismatch
}

// NewCausalityError reports a received sequence number that does not match
// the number of peer messages processed so far.
func NewCausalityError(actorID, expected, got int) *Error {
	return &Error{
		Code:    ErrCodeCausalityViolation,
		Message: fmt.Sprintf("expected peer message %d, got %d", expected, got),
		ActorID: actorID,
		Details: map[string]string{
			"expected": strconv.Itoa(expected),
			"got":      strconv.Itoa(got),
		},
	}
}

// NewAckError reports a peer acknowledging more messages than were sent.
func NewAckError(actorID, sent, acked int) *Error {
	return &Error{
		Code:    ErrCodeCausalityViolation,
		Message: fmt.Sprintf("peer acknowledged %d messages but only %d were sent", acked, sent),
		ActorID: actorID,
		Details: map[string]string{
			"sent":  strconv.Itoa(sent),
			"acked": strconv.Itoa(acked),
		},
	}
}

// NewPeerMismatchError reports a message from a creator other than the
// session peer.
func NewPeerMismatchError(actorID, peerID, creatorID int) *Error {
	return &Error{
		Code:    ErrCodePeerMismatch,
		Message: fmt.Sprintf("message from creator %d, session peer is %d", creatorID, peerID),
		ActorID: actorID,
		Details: map[string]string{
			"peer":    strconv.Itoa(peerID),
			"creator": strconv.Itoa(creatorID),
		},
	}
}

func wrapError(code ErrorCode, actorID int, message string, err error) *Error {
	return &Error{Code: code, Message: message, ActorID: actorID, Err: err}
}
