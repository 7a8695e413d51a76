// Package reputation is the sole writer of validator reputation: signed
// deltas, categorized round-outcome application, decay, and clamping to
// [0, reputation_cap], per spec.md §4.5.
package reputation

import (
	"math"
	"sync"

	"go.uber.org/zap"
)

// Category tags why a delta was applied.
type Category string

const (
	CategoryParticipation Category = "participation"
	CategoryCoordinator   Category = "coordinator"
	CategoryMissedVote    Category = "missed_vote"
	CategoryDecay         Category = "decay"
	CategoryManual        Category = "manual"
)

// Delta is one reputation adjustment, per spec.md §3's ReputationDelta.
type Delta struct {
	DID        string
	Amount     int64
	Category   Category
	ReasonCode string
	At         int64 // milliseconds since epoch
}

// Outcome describes the result of a round for ApplyRoundOutcome.
//
// Per spec.md §8 scenario 2, a validator that never got a chance to vote
// because the coordinator never proposed is treated the same as a
// validator that saw a proposal and stayed silent: both are non-voters
// in AllSnapshotDIDs and both receive missed_validation_penalty. The
// coordinator is simply another member of AllSnapshotDIDs, so a
// coordinator that fails to propose is penalized once via the same
// non-voter rule, not via a separate "missed coordination" penalty.
type Outcome struct {
	Success     bool
	Coordinator string
	// Approvers is the set of DIDs that voted approve in a successful
	// round.
	Approvers []string
	// AllSnapshotDIDs is every DID in the round's snapshot, fixed at
	// start_round regardless of whether a proposal ever arrived.
	AllSnapshotDIDs []string
	// Voted is the set of DIDs that cast any vote (approve or reject).
	Voted map[string]bool
}

// Ledger holds current reputation per DID.
type Ledger struct {
	mu  sync.Mutex
	log *zap.Logger

	cap_ int64 // reputation_cap

	participationReward int64
	coordinatorReward   int64
	missedPenalty        int64

	reputations map[string]int64
}

// New returns a Ledger with the given reward/penalty configuration.
func New(log *zap.Logger, reputationCap, participationReward, coordinatorReward, missedValidationPenalty int64) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{
		log:                  log,
		cap_:                 reputationCap,
		participationReward:  participationReward,
		coordinatorReward:    coordinatorReward,
		missedPenalty:        missedValidationPenalty,
		reputations:          make(map[string]int64),
	}
}

// Seed sets a DID's starting reputation without emitting a delta event.
func (l *Ledger) Seed(did string, reputation int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reputations[did] = clamp(reputation, l.cap_)
}

// Get returns a DID's current reputation (0 if never seen).
func (l *Ledger) Get(did string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reputations[did]
}

func clamp(v, cap_ int64) int64 {
	if v < 0 {
		return 0
	}
	if v > cap_ {
		return cap_
	}
	return v
}

// Apply adds a delta, clamping the result to [0, reputation_cap].
func (l *Ledger) Apply(d Delta) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	newVal := clamp(l.reputations[d.DID]+d.Amount, l.cap_)
	l.reputations[d.DID] = newVal
	l.log.Debug("reputation delta applied",
		zap.String("did", d.DID),
		zap.Int64("amount", d.Amount),
		zap.String("category", string(d.Category)),
		zap.Int64("new_total", newVal),
	)
	return newVal
}

// ApplyRoundOutcome applies the reward/penalty rule from spec.md §4.5:
// rewards first, then penalties, then clamp (clamping happens per-Apply
// call, which is equivalent since clamp is idempotent and monotone).
// Returns the deltas applied, in application order.
func (l *Ledger) ApplyRoundOutcome(outcome Outcome, at int64) []Delta {
	var applied []Delta

	if outcome.Success {
		for _, did := range outcome.Approvers {
			delta := Delta{DID: did, Amount: l.participationReward, Category: CategoryParticipation, ReasonCode: "round_success", At: at}
			l.Apply(delta)
			applied = append(applied, delta)
		}
		if outcome.Coordinator != "" {
			delta := Delta{DID: outcome.Coordinator, Amount: l.coordinatorReward, Category: CategoryCoordinator, ReasonCode: "coordinated_success", At: at}
			l.Apply(delta)
			applied = append(applied, delta)
		}
	}

	for _, did := range outcome.AllSnapshotDIDs {
		if outcome.Voted[did] {
			continue
		}
		reason := "no_vote"
		if did == outcome.Coordinator && !outcome.Success {
			reason = "missed_coordination"
		}
		delta := Delta{DID: did, Amount: l.missedPenalty, Category: CategoryMissedVote, ReasonCode: reason, At: at}
		l.Apply(delta)
		applied = append(applied, delta)
	}

	return applied
}

// Decay multiplies a DID's reputation by (1 - rate), rounded
// half-away-from-zero, matching original_source's apply_decay.
func (l *Ledger) Decay(did string, rate float64) int64 {
	l.mu.Lock()
	cur := l.reputations[did]
	l.mu.Unlock()

	decayed := math.Round(float64(cur) * (1 - rate))
	return l.Apply(Delta{DID: did, Amount: int64(decayed) - cur, Category: CategoryDecay, ReasonCode: "decay_tick"})
}
