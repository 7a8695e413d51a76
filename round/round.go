// Package round implements one round's lifecycle — propose, vote,
// finalize, fail — per spec.md §4.6: the state diagram, vote acceptance
// rules, and the timeout rule.
package round

import (
	"errors"
	"time"

	"github.com/icn-network/poc-consensus/block"
	"github.com/icn-network/poc-consensus/validators"
	"github.com/icn-network/poc-consensus/vote"
	"go.uber.org/zap"
)

// State is a round's position in the state diagram.
type State int

const (
	Proposing State = iota
	Voting
	Finalizing
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Proposing:
		return "Proposing"
	case Voting:
		return "Voting"
	case Finalizing:
		return "Finalizing"
	case Completed:
		return "Completed"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// FailReason names why a round ended in Failed.
type FailReason string

const (
	ReasonRoundTimeout           FailReason = "RoundTimeout"
	ReasonUnauthorizedProposer   FailReason = "UnauthorizedProposer"
	ReasonInvalidBlock           FailReason = "InvalidBlock"
	ReasonInsufficientValidators FailReason = "InsufficientValidators"
	ReasonConsensusRejected      FailReason = "ConsensusRejected"
)

var (
	ErrInvalidRoundState  = errors.New("round: operation illegal in current state")
	ErrUnauthorizedPropos = errors.New("round: proposer is not the coordinator")
	ErrInvalidBlock       = errors.New("round: proposed block is invalid")
	ErrNotValidator       = errors.New("round: voter is not in the round snapshot")
	ErrDuplicateVote      = errors.New("round: validator already voted this round")
	ErrBadBlockHash       = errors.New("round: vote block_hash does not match proposal")
	ErrBadVoteRound       = errors.New("round: vote round number does not match")
)

// Round is one attempt to append one block to the chain.
type Round struct {
	Number      uint64
	Coordinator string
	Snapshot    validators.Snapshot

	ProposedBlock *block.Block
	Votes         map[string]vote.Vote

	State      State
	FailReason FailReason

	StartedAt time.Time
	Deadline  time.Time

	quorum        float64
	voteThreshold float64
	log           *zap.Logger
}

// New starts a round in Proposing with the given coordinator and
// snapshot, per spec.md §4.6.
func New(number uint64, coordinator string, snapshot validators.Snapshot, startedAt time.Time, timeout time.Duration, quorum, voteThreshold float64, log *zap.Logger) *Round {
	if log == nil {
		log = zap.NewNop()
	}
	return &Round{
		Number:        number,
		Coordinator:   coordinator,
		Snapshot:      snapshot,
		Votes:         make(map[string]vote.Vote),
		State:         Proposing,
		StartedAt:     startedAt,
		Deadline:      startedAt.Add(timeout),
		quorum:        quorum,
		voteThreshold: voteThreshold,
		log:           log,
	}
}

// IsTerminal reports whether the round has reached Completed or Failed.
func (r *Round) IsTerminal() bool {
	return r.State == Completed || r.State == Failed
}

func (r *Round) fail(reason FailReason) {
	if r.IsTerminal() {
		return
	}
	r.State = Failed
	r.FailReason = reason
	r.log.Info("round failed", zap.Uint64("round", r.Number), zap.String("reason", string(reason)))
}

// Propose accepts a candidate block from did, transitioning Proposing ->
// Voting on success.
func (r *Round) Propose(did string, b *block.Block) error {
	if r.State != Proposing {
		return ErrInvalidRoundState
	}
	if did != r.Coordinator {
		r.fail(ReasonUnauthorizedProposer)
		return ErrUnauthorizedPropos
	}
	r.ProposedBlock = b
	r.State = Voting
	r.log.Info("block proposed", zap.Uint64("round", r.Number), zap.String("coordinator", did))
	return nil
}

// RejectProposal transitions the round to Failed{InvalidBlock} when a
// candidate block fails structural validation.
func (r *Round) RejectProposal() {
	r.fail(ReasonInvalidBlock)
}

// AcceptVote validates and, if accepted, records a vote, then
// re-evaluates finality. Votes are accepted in both Voting and
// Finalizing: once a round reaches Finalizing its Accept decision is
// locked (finality monotonicity applies from Completed/Failed onward,
// per spec.md §8, but a round may still be waiting on slower
// validators' votes for reward bookkeeping when it enters Finalizing),
// so a vote arriving after the decision is reached is recorded without
// re-running the aggregator. It returns the validation error for a
// rejected vote (vote rejection never changes round state, per spec.md
// §4.6).
func (r *Round) AcceptVote(roundNumber uint64, did, blockHash string, approve bool) error {
	if r.State != Voting && r.State != Finalizing {
		return ErrInvalidRoundState
	}
	if roundNumber != r.Number {
		return ErrBadVoteRound
	}
	if !r.Snapshot.Has(did) {
		return ErrNotValidator
	}
	if _, ok := r.Votes[did]; ok {
		return ErrDuplicateVote
	}
	if r.ProposedBlock == nil || r.ProposedBlock.HashHex() != blockHash {
		return ErrBadBlockHash
	}

	r.Votes[did] = vote.Vote{Validator: did, Approve: approve}
	r.log.Debug("vote accepted", zap.Uint64("round", r.Number), zap.String("validator", did), zap.Bool("approve", approve))

	if r.State == Finalizing {
		return nil
	}

	decision, _ := vote.Evaluate(r.Snapshot, r.Votes, r.quorum, r.voteThreshold)
	switch decision {
	case vote.Accept:
		r.State = Finalizing
	case vote.Reject:
		r.fail(ReasonConsensusRejected)
	}
	return nil
}

// CheckTimeout transitions a non-terminal, non-Finalizing round to
// Failed{RoundTimeout} when its deadline has passed. It is idempotent.
func (r *Round) CheckTimeout(now time.Time) bool {
	if r.IsTerminal() || r.State == Finalizing {
		return false
	}
	if now.Before(r.Deadline) {
		return false
	}
	r.fail(ReasonRoundTimeout)
	return true
}

// Finalize transitions Finalizing -> Completed. It does not append the
// block or apply reputation; the engine does both after this call
// succeeds.
func (r *Round) Finalize() error {
	if r.State != Finalizing {
		return ErrInvalidRoundState
	}
	r.State = Completed
	r.log.Info("round completed", zap.Uint64("round", r.Number))
	return nil
}

// Approvers returns the DIDs that voted approve.
func (r *Round) Approvers() []string {
	var out []string
	for did, v := range r.Votes {
		if v.Approve {
			out = append(out, did)
		}
	}
	return out
}

// Voted returns a DID -> voted map for the round's snapshot.
func (r *Round) Voted() map[string]bool {
	out := make(map[string]bool, len(r.Votes))
	for did := range r.Votes {
		out[did] = true
	}
	return out
}
