package consensus

import (
	"context"
	"time"

	"github.com/icn-network/poc-consensus/block"
	"github.com/icn-network/poc-consensus/event"
	"github.com/icn-network/poc-consensus/reputation"
	"github.com/icn-network/poc-consensus/round"
	"github.com/icn-network/poc-consensus/vote"
	"github.com/icn-network/poc-consensus/wire"
	"go.uber.org/zap"
)

func (e *Engine) registerValidator(did string, initialReputation int64) error {
	if err := e.validators.Register(did, initialReputation); err != nil {
		return newErr(KindInternal, "RegisterValidator", err)
	}
	e.reputation.Seed(did, initialReputation)
	return nil
}

func (e *Engine) setReputation(did string, rep int64) error {
	e.reputation.Seed(did, rep)
	if err := e.validators.SetReputation(did, e.reputation.Get(did)); err != nil {
		return newErr(KindInternal, "SetReputation", err)
	}
	return nil
}

// submitTransaction validates and buffers tx, per spec.md §4.2.
func (e *Engine) submitTransaction(tx *block.Transaction) error {
	if len(e.pending) >= e.cfg.PendingTxBufferSize {
		return newErr(KindBufferFull, "SubmitTransaction", ErrBufferFull)
	}
	if err := tx.Verify(e.lookupPublicKey); err != nil {
		return newErr(KindInvalidTransaction, "SubmitTransaction", err)
	}
	e.pending = append(e.pending, tx)
	return nil
}

func (e *Engine) lookupPublicKey(did string) ([]byte, bool) {
	if e.identity == nil {
		return nil, false
	}
	pub, ok, err := e.identity.PublicKeyOf(context.Background(), did)
	if err != nil || !ok {
		return nil, false
	}
	return pub, true
}

// startRound opens a new round: snapshot the validator set, pick the
// coordinator, and leave proposing to the coordinator's ProposeBlock
// call, per spec.md §4.4/§4.6.
func (e *Engine) startRound() (uint64, error) {
	if e.round != nil && !e.round.IsTerminal() {
		return 0, newErr(KindInvalidRoundState, "StartRound", round.ErrInvalidRoundState)
	}

	snap := e.validators.Snapshot()
	if len(snap.DIDs) < e.cfg.MinValidators {
		return 0, newErr(KindInsufficientValidators, "StartRound", ErrInsufficientValidators)
	}

	number := e.nextRoundNo
	coordinator, err := e.validators.SelectCoordinator(number, e.tip.Hash)
	if err != nil {
		return 0, newErr(KindInsufficientValidators, "StartRound", err)
	}

	startedAt := e.clock.Now()
	e.round = round.New(number, coordinator, snap, startedAt, e.cfg.RoundTimeout, e.cfg.Quorum, e.cfg.VoteThreshold, e.log)
	e.nextRoundNo++

	e.metrics.ActiveValidators.Set(float64(len(snap.DIDs)))
	e.bus.Publish(event.Event{Kind: event.KindRoundStarted, Round: number, Coordinator: coordinator})
	if e.out != nil {
		_ = e.out.Broadcast(context.Background(), roundStartMessage(number))
	}
	return number, nil
}

// proposeBlock assembles the candidate block from the pending buffer on
// the coordinator's behalf and submits it to the round, per spec.md
// §4.2/§4.6. The caller-supplied block (b) is used as-is when non-nil,
// letting tests and alternate block-assembly strategies supply their
// own candidate; when nil, the engine assembles one from the pending
// transaction buffer.
func (e *Engine) proposeBlock(did string, b *block.Block) error {
	if e.round == nil {
		return newErr(KindInvalidRoundState, "ProposeBlock", ErrNoRound)
	}
	if b == nil {
		assembled, err := e.assembleBlock(did)
		if err != nil {
			return newErr(KindInvalidBlock, "ProposeBlock", err)
		}
		b = assembled
	}
	if err := b.Verify(e.tip, e.clock.NowWall(), e.cfg.MaxTimestampSkew, e.cfg.MaxTxPerBlock, e.lookupPublicKey); err != nil {
		e.round.RejectProposal()
		return newErr(KindInvalidBlock, "ProposeBlock", err)
	}
	if err := e.round.Propose(did, b); err != nil {
		return e.wrapRoundErr("ProposeBlock", err)
	}
	if e.out != nil {
		if blockBytes, err := b.Encode(); err != nil {
			e.log.Warn("block encode for broadcast failed", zap.Error(err))
		} else {
			_ = e.out.Broadcast(context.Background(), blockProposalMessage(e.round.Number, blockBytes))
		}
	}
	e.bus.Publish(event.Event{Kind: event.KindBlockProposed, Round: e.round.Number, Coordinator: did, BlockHash: b.HashHex()})
	return nil
}

func (e *Engine) assembleBlock(coordinator string) (*block.Block, error) {
	n := len(e.pending)
	if n > e.cfg.MaxTxPerBlock {
		n = e.cfg.MaxTxPerBlock
	}
	b := &block.Block{
		Height:         e.tip.Height + 1,
		PreviousHash:   e.tip.HashHex(),
		Timestamp:      e.clock.NowWall().UnixMilli(),
		CoordinatorDID: coordinator,
		Transactions:   append([]*block.Transaction(nil), e.pending[:n]...),
	}
	if err := b.Seal(); err != nil {
		return nil, err
	}
	e.pending = e.pending[n:]
	return b, nil
}

func (e *Engine) submitVote(roundNumber uint64, did, blockHash string, approve bool) error {
	if e.round == nil {
		return newErr(KindInvalidRoundState, "SubmitVote", ErrNoRound)
	}
	if err := e.round.AcceptVote(roundNumber, did, blockHash, approve); err != nil {
		return e.wrapRoundErr("SubmitVote", err)
	}
	if err := e.validators.MarkParticipated(did); err != nil {
		e.log.Warn("mark participated failed", zap.String("did", did), zap.Error(err))
	}
	if e.out != nil {
		_ = e.out.Broadcast(context.Background(), voteMessage(roundNumber, did, e.round.ProposedBlock.Hash, approve))
	}

	_, tally := vote.Evaluate(e.round.Snapshot, e.round.Votes, e.cfg.Quorum, e.cfg.VoteThreshold)
	if tally.TotalWeight > 0 {
		e.metrics.VoteCastWeight.Set(tally.CastWeight / tally.TotalWeight)
	}
	e.bus.Publish(event.Event{
		Kind:        event.KindVoteReceived,
		Round:       roundNumber,
		Voter:       did,
		Approve:     approve,
		VotingPower: e.round.Snapshot.Power[did],
	})
	if e.round.State == round.Failed {
		e.bus.Publish(event.Event{Kind: event.KindRoundFailed, Round: roundNumber, FailReason: string(e.round.FailReason)})
	}
	return nil
}

func (e *Engine) checkTimeout(now time.Time) bool {
	if e.round == nil {
		return false
	}
	timedOut := e.round.CheckTimeout(now)
	if timedOut {
		e.bus.Publish(event.Event{Kind: event.KindRoundFailed, Round: e.round.Number, FailReason: string(e.round.FailReason)})
	}
	return timedOut
}

// finalizeRound completes a round in Finalizing: append the block,
// apply reputation, persist, and publish, per spec.md §4.5/§4.6. Once a
// round has reached Completed, finalizeRound is a no-op that returns
// the same cached result, per spec.md §8's idempotent-finalize law —
// it must not re-run the failure branch below or re-apply reputation.
func (e *Engine) finalizeRound() (RoundResult, error) {
	if e.round == nil {
		return RoundResult{}, newErr(KindInvalidRoundState, "FinalizeRound", ErrNoRound)
	}
	r := e.round

	if r.State == round.Completed {
		return e.lastResult, nil
	}

	e.metrics.RoundDuration.Observe(e.clock.Now().Sub(r.StartedAt).Seconds())

	if r.State != round.Finalizing {
		e.metrics.RoundsFailed.WithLabelValues(string(r.FailReason)).Inc()
		outcome := e.roundOutcome(r, false)
		deltas := e.reputation.ApplyRoundOutcome(outcome, e.clock.NowWall().UnixMilli())
		e.syncReputations(deltas)
		result := RoundResult{RoundNumber: r.Number, Successful: false, ReputationUpdates: deltas, ParticipatingValidators: r.Snapshot.DIDs}
		return result, nil
	}

	if err := r.Finalize(); err != nil {
		return RoundResult{}, newErr(KindInvalidRoundState, "FinalizeRound", err)
	}
	e.metrics.RoundsCompleted.Inc()

	if r.ProposedBlock != nil {
		e.tip = r.ProposedBlock
		if e.store != nil {
			if err := e.store.AppendBlock(context.Background(), *e.tip); err != nil {
				e.log.Error("persistence append failed", zap.Error(err))
			}
		}
		if e.out != nil {
			_ = e.out.Broadcast(context.Background(), roundFinalMessage(r.Number, e.tip.Hash))
		}
	}

	outcome := e.roundOutcome(r, true)
	deltas := e.reputation.ApplyRoundOutcome(outcome, e.clock.NowWall().UnixMilli())
	e.syncReputations(deltas)

	e.bus.Publish(event.Event{
		Kind:         event.KindRoundCompleted,
		Round:        r.Number,
		BlockHash:    e.tip.HashHex(),
		Participants: r.Snapshot.DIDs,
	})

	e.lastResult = RoundResult{
		RoundNumber:             r.Number,
		Successful:              true,
		FinalizedBlock:          e.tip,
		ReputationUpdates:       deltas,
		ParticipatingValidators: r.Snapshot.DIDs,
	}
	return e.lastResult, nil
}

func (e *Engine) roundOutcome(r *round.Round, success bool) reputation.Outcome {
	return reputation.Outcome{
		Success:         success,
		Coordinator:     r.Coordinator,
		Approvers:       r.Approvers(),
		AllSnapshotDIDs: r.Snapshot.DIDs,
		Voted:           r.Voted(),
	}
}

func (e *Engine) syncReputations(deltas []reputation.Delta) {
	seen := make(map[string]bool, len(deltas))
	for _, d := range deltas {
		if seen[d.DID] {
			continue
		}
		seen[d.DID] = true
		if err := e.validators.SetReputation(d.DID, e.reputation.Get(d.DID)); err != nil {
			e.log.Warn("set reputation failed", zap.String("did", d.DID), zap.Error(err))
		}
		e.metrics.ReputationDeltas.WithLabelValues(string(d.Category)).Inc()
		e.bus.Publish(event.Event{Kind: event.KindReputationUpdated, DID: d.DID, Delta: d.Amount, NewTotal: e.reputation.Get(d.DID)})
	}
}

// handleInbound applies one ConsensusMessage received from TransportIn,
// per spec.md §6. It runs on the engine's own executor goroutine (via
// Run's select), so it calls the internal operations directly rather
// than enqueueing through requests/call. Round-start and round-final
// announcements are informational only here: this engine derives its
// own round state from its local transitions, not from peer broadcasts.
func (e *Engine) handleInbound(msg wire.ConsensusMessage) {
	switch msg.Kind {
	case wire.MessageBlockProposal:
		if msg.BlockProposal == nil || e.round == nil || msg.BlockProposal.Round != e.round.Number {
			return
		}
		b, err := block.Decode(msg.BlockProposal.BlockBytes)
		if err != nil {
			e.log.Warn("inbound block proposal decode failed", zap.Error(err))
			return
		}
		if err := e.proposeBlock(e.round.Coordinator, b); err != nil {
			e.log.Warn("inbound block proposal rejected", zap.Error(err))
		}
	case wire.MessageVote:
		if msg.Vote == nil {
			return
		}
		blockHash := block.HashHex(msg.Vote.BlockHash)
		if err := e.submitVote(msg.Vote.Round, msg.Vote.Validator, blockHash, msg.Vote.Approve); err != nil {
			e.log.Warn("inbound vote rejected", zap.String("validator", msg.Vote.Validator), zap.Error(err))
		}
	case wire.MessageRoundStart, wire.MessageRoundFinal:
	}
}

func (e *Engine) wrapRoundErr(op string, err error) error {
	switch err {
	case round.ErrUnauthorizedPropos:
		return newErr(KindUnauthorizedProposer, op, err)
	case round.ErrNotValidator:
		return newErr(KindNotValidator, op, err)
	case round.ErrDuplicateVote:
		return newErr(KindDuplicateVote, op, err)
	case round.ErrInvalidRoundState:
		return newErr(KindInvalidRoundState, op, err)
	case round.ErrBadBlockHash, round.ErrBadVoteRound, round.ErrInvalidBlock:
		return newErr(KindInvalidVote, op, err)
	default:
		return newErr(KindInternal, op, err)
	}
}
