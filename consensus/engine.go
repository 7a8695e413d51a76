package consensus

import (
	"context"
	"fmt"
	"time"

	"github.com/icn-network/poc-consensus/block"
	"github.com/icn-network/poc-consensus/capability"
	"github.com/icn-network/poc-consensus/clock"
	"github.com/icn-network/poc-consensus/config"
	"github.com/icn-network/poc-consensus/event"
	"github.com/icn-network/poc-consensus/internal/telemetry"
	"github.com/icn-network/poc-consensus/reputation"
	"github.com/icn-network/poc-consensus/round"
	"github.com/icn-network/poc-consensus/validators"
	"github.com/icn-network/poc-consensus/wire"
	"go.uber.org/zap"
)

// RoundResult is a convenience summary of a round's outcome, returned by
// FinalizeRound alongside the events already published on the bus.
type RoundResult struct {
	RoundNumber             uint64
	Successful              bool
	FinalizedBlock          *block.Block
	ReputationUpdates       []reputation.Delta
	ParticipatingValidators []string
}

// request is one call enqueued onto the engine's single executor. Only
// the fields the op needs are populated; dispatch selects the operation
// by the op tag.
type request struct {
	op    string
	reply chan response

	did string
	blk *block.Block
	tx  *block.Transaction

	round      uint64
	blockHash  string
	approve    bool
	reputation int64

	now time.Time
}

type response struct {
	err    error
	result interface{}
}

// Engine drives the PoC consensus round lifecycle. All state mutation
// happens on the single goroutine started by Run; callers reach it by
// enqueueing requests and waiting for a reply, giving the cooperative
// single-executor semantics spec.md §5 requires while allowing
// concurrent ingress from multiple goroutines.
type Engine struct {
	cfg   config.Config
	clock clock.Clock
	log   *zap.Logger

	validators *validators.Registry
	reputation *reputation.Ledger
	bus        *event.Bus
	metrics    *telemetry.Metrics

	identity capability.IdentityResolver
	out      capability.TransportOut
	store    capability.Persistence

	tip   *block.Block
	round *round.Round

	pending     []*block.Transaction
	nextRoundNo uint64

	// lastResult caches the most recently completed round's outcome so
	// repeated FinalizeRound calls after Completed are a no-op, per
	// spec.md §8.
	lastResult RoundResult

	requests chan request
	done     chan struct{}

	in capability.TransportIn
}

// Option configures optional collaborators on New.
type Option func(*Engine)

// WithIdentityResolver attaches the capability used to verify
// transaction and vote signatures against a DID's public key.
func WithIdentityResolver(r capability.IdentityResolver) Option {
	return func(e *Engine) { e.identity = r }
}

// WithTransportOut attaches the capability used to gossip proposals,
// votes, and round announcements to peers.
func WithTransportOut(t capability.TransportOut) Option {
	return func(e *Engine) { e.out = t }
}

// WithTransportIn attaches the capability Run drains inbound
// ConsensusMessages from, feeding peer proposals and votes into the
// engine's own executor goroutine alongside local requests, per spec.md
// §6.
func WithTransportIn(t capability.TransportIn) Option {
	return func(e *Engine) { e.in = t }
}

// WithPersistence attaches the capability used to durably append
// finalized blocks. Without one, finalized state is held in memory only.
func WithPersistence(p capability.Persistence) Option {
	return func(e *Engine) { e.store = p }
}

// WithMetricsRegisterer registers the engine's prometheus collectors
// against reg. Without it, the collectors are created but registered
// nowhere.
func WithMetricsRegisterer(reg telemetry.Registerer) Option {
	return func(e *Engine) { e.metrics = telemetry.New(reg) }
}

// New constructs an Engine seated at genesis. Call Run to start its
// executor goroutine before issuing any operation.
func New(cfg config.Config, c clock.Clock, log *zap.Logger, bus *event.Bus, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, newErr(KindInternal, "New", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	if c == nil {
		c = clock.System{}
	}
	if bus == nil {
		bus = event.NewBus(nil)
	}

	genesis, err := block.Genesis(block.GenesisCoordinatorDID, c.NowWall().UnixMilli())
	if err != nil {
		return nil, newErr(KindInternal, "New", err)
	}

	e := &Engine{
		cfg:         cfg,
		clock:       c,
		log:         log,
		validators:  validators.New(c, log, cfg.MinReputation, cfg.InactivityTimeout),
		reputation:  reputation.New(log, cfg.ReputationCap, cfg.ParticipationReward, cfg.CoordinatorReward, cfg.MissedValidationPenalty),
		bus:         bus,
		tip:         genesis,
		nextRoundNo: 1,
		requests:    make(chan request),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = telemetry.New(nil)
	}
	return e, nil
}

// Run starts the engine's single executor goroutine. It returns when ctx
// is canceled; callers should arrange for ctx to be canceled during
// shutdown and must stop issuing requests afterward. When a
// TransportIn is attached, Run also drains its Messages() channel into
// the same executor, so inbound peer proposals and votes are applied
// with the same single-executor semantics as local requests.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.done)
	var inbound <-chan wire.ConsensusMessage
	if e.in != nil {
		inbound = e.in.Messages()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-e.requests:
			e.dispatch(req)
		case msg, ok := <-inbound:
			if !ok {
				inbound = nil
				continue
			}
			e.handleInbound(msg)
		}
	}
}

func (e *Engine) dispatch(req request) {
	var resp response
	defer func() {
		if p := recover(); p != nil {
			req.reply <- response{err: newErr(KindInternal, req.op, fmt.Errorf("panic: %v", p))}
		}
	}()
	switch req.op {
	case "RegisterValidator":
		resp.err = e.registerValidator(req.did, req.reputation)
	case "SetReputation":
		resp.err = e.setReputation(req.did, req.reputation)
	case "SubmitTransaction":
		resp.err = e.submitTransaction(req.tx)
	case "StartRound":
		resp.result, resp.err = e.startRound()
	case "ProposeBlock":
		resp.err = e.proposeBlock(req.did, req.blk)
	case "SubmitVote":
		resp.err = e.submitVote(req.round, req.did, req.blockHash, req.approve)
	case "CheckTimeout":
		resp.result = e.checkTimeout(req.now)
	case "FinalizeRound":
		resp.result, resp.err = e.finalizeRound()
	case "CurrentRound":
		resp.result = e.round
	case "Tip":
		resp.result = e.tip
	case "Reputation":
		resp.result = e.reputation.Get(req.did)
	default:
		resp.err = newErr(KindInternal, req.op, fmt.Errorf("unknown engine op %q", req.op))
	}
	req.reply <- resp
}

// call enqueues req and blocks for its reply, or returns ErrEngineClosed
// if the executor has already stopped.
func (e *Engine) call(ctx context.Context, req request) (interface{}, error) {
	req.reply = make(chan response, 1)
	select {
	case e.requests <- req:
	case <-e.done:
		return nil, ErrEngineClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case resp := <-req.reply:
		return resp.result, resp.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RegisterValidator adds did to the validator set with the given
// starting reputation, per spec.md §4.4.
func (e *Engine) RegisterValidator(ctx context.Context, did string, initialReputation int64) error {
	_, err := e.call(ctx, request{op: "RegisterValidator", did: did, reputation: initialReputation})
	return err
}

// SetReputation overrides a validator's current reputation, bypassing
// the delta/category bookkeeping — intended for test setup and initial
// seeding, not for round-outcome application.
func (e *Engine) SetReputation(ctx context.Context, did string, rep int64) error {
	_, err := e.call(ctx, request{op: "SetReputation", did: did, reputation: rep})
	return err
}

// SubmitTransaction enqueues tx for inclusion in the next proposed
// block. It fails with KindBufferFull if the pending buffer is at
// capacity, per spec.md §4.2.
func (e *Engine) SubmitTransaction(ctx context.Context, tx *block.Transaction) error {
	_, err := e.call(ctx, request{op: "SubmitTransaction", tx: tx})
	return err
}

// StartRound begins a new round: it takes a validator snapshot, selects
// the coordinator deterministically, and assembles a candidate block
// from the pending transaction buffer. Returns the new round number.
func (e *Engine) StartRound(ctx context.Context) (uint64, error) {
	res, err := e.call(ctx, request{op: "StartRound"})
	if err != nil {
		return 0, err
	}
	return res.(uint64), nil
}

// ProposeBlock submits did's candidate block as the round's proposal.
func (e *Engine) ProposeBlock(ctx context.Context, did string, b *block.Block) error {
	_, err := e.call(ctx, request{op: "ProposeBlock", did: did, blk: b})
	return err
}

// SubmitVote records did's vote on the round's proposed block.
func (e *Engine) SubmitVote(ctx context.Context, roundNumber uint64, did, blockHash string, approve bool) error {
	_, err := e.call(ctx, request{op: "SubmitVote", round: roundNumber, did: did, blockHash: blockHash, approve: approve})
	return err
}

// CheckTimeout evaluates the current round's deadline against now and
// reports whether it transitioned to Failed{RoundTimeout}.
func (e *Engine) CheckTimeout(ctx context.Context, now time.Time) (bool, error) {
	res, err := e.call(ctx, request{op: "CheckTimeout", now: now})
	if err != nil {
		return false, err
	}
	return res.(bool), nil
}

// FinalizeRound completes a round that has reached Finalizing: it
// appends the finalized block to the chain, applies reputation
// adjustments, and publishes the round-completed event.
func (e *Engine) FinalizeRound(ctx context.Context) (RoundResult, error) {
	res, err := e.call(ctx, request{op: "FinalizeRound"})
	if err != nil {
		return RoundResult{}, err
	}
	return res.(RoundResult), nil
}

// CurrentRound returns the engine's current round, or nil if none has
// started yet.
func (e *Engine) CurrentRound(ctx context.Context) (*round.Round, error) {
	res, err := e.call(ctx, request{op: "CurrentRound"})
	if err != nil {
		return nil, err
	}
	r, _ := res.(*round.Round)
	return r, nil
}

// Tip returns the current chain tip.
func (e *Engine) Tip(ctx context.Context) (*block.Block, error) {
	res, err := e.call(ctx, request{op: "Tip"})
	if err != nil {
		return nil, err
	}
	return res.(*block.Block), nil
}

// Reputation returns did's current reputation (0 if unregistered).
func (e *Engine) Reputation(ctx context.Context, did string) (int64, error) {
	res, err := e.call(ctx, request{op: "Reputation", did: did})
	if err != nil {
		return 0, err
	}
	return res.(int64), nil
}
