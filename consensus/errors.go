// Package consensus is the facade engine (C8): it owns the validator
// registry, reputation ledger, and the current round, and drives the
// round lifecycle through a single-executor event loop, per spec.md §7.
package consensus

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an Error for programmatic dispatch by callers,
// in addition to the usual errors.Is/As sentinel matching, per
// spec.md §7.
type ErrorKind int

const (
	KindInvalidBlock ErrorKind = iota
	KindInvalidTransaction
	KindInvalidVote
	KindUnauthorizedProposer
	KindNotValidator
	KindDuplicateVote
	KindInvalidRoundState
	KindInsufficientValidators
	KindInsufficientReputation
	KindRoundTimeout
	KindConsensusRejected
	KindBufferFull
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidBlock:
		return "InvalidBlock"
	case KindInvalidTransaction:
		return "InvalidTransaction"
	case KindInvalidVote:
		return "InvalidVote"
	case KindUnauthorizedProposer:
		return "UnauthorizedProposer"
	case KindNotValidator:
		return "NotValidator"
	case KindDuplicateVote:
		return "DuplicateVote"
	case KindInvalidRoundState:
		return "InvalidRoundState"
	case KindInsufficientValidators:
		return "InsufficientValidators"
	case KindInsufficientReputation:
		return "InsufficientReputation"
	case KindRoundTimeout:
		return "RoundTimeout"
	case KindConsensusRejected:
		return "ConsensusRejected"
	case KindBufferFull:
		return "BufferFull"
	default:
		return "Internal"
	}
}

// Error wraps a failure with the operation that produced it and its
// classification, so a capability collaborator (API layer, telemetry)
// can branch on Kind without parsing strings.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("consensus: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// ErrBufferFull is returned by SubmitTransaction when the pending
// transaction buffer is at capacity.
var ErrBufferFull = errors.New("consensus: pending transaction buffer full")

// ErrNoRound is returned by operations that require an active round
// when none exists.
var ErrNoRound = errors.New("consensus: no active round")

// ErrEngineClosed is returned when a call reaches an engine whose loop
// has already stopped.
var ErrEngineClosed = errors.New("consensus: engine closed")

// ErrInsufficientValidators is returned by StartRound when the active
// validator set is smaller than min_validators, per spec.md §4.10.
var ErrInsufficientValidators = errors.New("consensus: fewer than min_validators active")
