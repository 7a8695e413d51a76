// Package validators is the authoritative validator set: registration,
// reputation-derived voting power, activity tracking, and deterministic
// coordinator selection, per spec.md §4.4.
package validators

import (
	"errors"
	"sort"
	"time"

	"github.com/icn-network/poc-consensus/clock"
	"github.com/icn-network/poc-consensus/signer"
	"go.uber.org/zap"
)

var (
	ErrAlreadyRegistered = errors.New("validators: did already registered")
	ErrUnknownValidator  = errors.New("validators: unknown did")
	ErrNoActiveValidator = errors.New("validators: no active validators")
)

// Validator is a single validator's state, per spec.md §3.
type Validator struct {
	DID                string
	Reputation         int64
	LastProposedHeight uint64
	ConsecutiveMissed  uint32
	active             bool
	LastSeen           time.Time
}

// Snapshot is the frozen (did, voting_power) list used throughout one
// round. Power entries sum to 1 (±1e-9), per spec.md §8.
type Snapshot struct {
	DIDs   []string
	Power  map[string]float64
}

// TotalPower returns the sum of voting power over a subset of dids.
func (s Snapshot) TotalPower(dids []string) float64 {
	var total float64
	for _, d := range dids {
		total += s.Power[d]
	}
	return total
}

// Has reports whether did is part of the snapshot.
func (s Snapshot) Has(did string) bool {
	_, ok := s.Power[did]
	return ok
}

// Registry owns the validator set. All mutation happens through its
// methods; it is not safe for concurrent use by multiple goroutines
// without external synchronization (the consensus engine serializes
// access through its single executor, per spec.md §5).
type Registry struct {
	clock clock.Clock
	log   *zap.Logger

	minReputation     int64
	inactivityTimeout time.Duration

	byDID map[string]*Validator
	order []string // registration order, for deterministic iteration
}

// New returns an empty Registry.
func New(c clock.Clock, log *zap.Logger, minReputation int64, inactivityTimeout time.Duration) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		clock:             c,
		log:               log,
		minReputation:     minReputation,
		inactivityTimeout: inactivityTimeout,
		byDID:             make(map[string]*Validator),
	}
}

// Register adds a new validator with the given initial reputation.
func (r *Registry) Register(did string, initialReputation int64) error {
	if _, ok := r.byDID[did]; ok {
		return ErrAlreadyRegistered
	}
	v := &Validator{
		DID:        did,
		Reputation: initialReputation,
		LastSeen:   r.clock.Now(),
	}
	v.active = v.Reputation >= r.minReputation
	r.byDID[did] = v
	r.order = append(r.order, did)
	r.log.Info("validator registered", zap.String("did", did), zap.Int64("reputation", initialReputation))
	return nil
}

// recomputeActive lazily derives the active flag per spec.md §4.4: a
// validator is active iff reputation >= min_reputation and it has been
// seen within inactivity_timeout.
func (r *Registry) recomputeActive(v *Validator) {
	wasActive := v.active
	v.active = v.Reputation >= r.minReputation && r.clock.Now().Sub(v.LastSeen) <= r.inactivityTimeout
	if wasActive != v.active {
		r.log.Info("validator activity changed", zap.String("did", v.DID), zap.Bool("active", v.active))
	}
}

// SetReputation updates a validator's reputation. The engine calls it to
// mirror the value held by the reputation ledger, the sole writer of
// reputation values.
func (r *Registry) SetReputation(did string, rep int64) error {
	v, ok := r.byDID[did]
	if !ok {
		return ErrUnknownValidator
	}
	v.Reputation = rep
	r.recomputeActive(v)
	return nil
}

// MarkParticipated records that did voted in the current round.
func (r *Registry) MarkParticipated(did string) error {
	v, ok := r.byDID[did]
	if !ok {
		return ErrUnknownValidator
	}
	v.LastSeen = r.clock.Now()
	v.ConsecutiveMissed = 0
	r.recomputeActive(v)
	return nil
}

// MarkMissed records that did failed to vote in the current round.
func (r *Registry) MarkMissed(did string) error {
	v, ok := r.byDID[did]
	if !ok {
		return ErrUnknownValidator
	}
	v.ConsecutiveMissed++
	r.recomputeActive(v)
	return nil
}

// SetActive forces a validator's active flag, for administrative
// overrides; it is reconciled against the reputation/activity rule on
// the next recompute.
func (r *Registry) SetActive(did string, active bool) error {
	v, ok := r.byDID[did]
	if !ok {
		return ErrUnknownValidator
	}
	v.active = active
	return nil
}

// ActiveCount returns the number of currently active validators.
func (r *Registry) ActiveCount() int {
	n := 0
	for _, did := range r.order {
		v := r.byDID[did]
		r.recomputeActive(v)
		if v.active {
			n++
		}
	}
	return n
}

// Get returns a copy of the validator's current state.
func (r *Registry) Get(did string) (Validator, bool) {
	v, ok := r.byDID[did]
	if !ok {
		return Validator{}, false
	}
	r.recomputeActive(v)
	return *v, true
}

// activeSorted returns active validators sorted deterministically by DID.
func (r *Registry) activeSorted() []*Validator {
	var active []*Validator
	for _, did := range r.order {
		v := r.byDID[did]
		r.recomputeActive(v)
		if v.active {
			active = append(active, v)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].DID < active[j].DID })
	return active
}

// Snapshot returns the frozen active validator set and voting powers,
// per spec.md §4.4: voting_power(v) = max(rep, 0) / sum(rep of active);
// if all reputations are zero, each validator gets 1/N.
func (r *Registry) Snapshot() Snapshot {
	active := r.activeSorted()
	snap := Snapshot{Power: make(map[string]float64, len(active))}
	var totalRep int64
	for _, v := range active {
		if v.Reputation > 0 {
			totalRep += v.Reputation
		}
	}
	n := len(active)
	for _, v := range active {
		snap.DIDs = append(snap.DIDs, v.DID)
		if totalRep == 0 {
			if n > 0 {
				snap.Power[v.DID] = 1.0 / float64(n)
			}
			continue
		}
		rep := v.Reputation
		if rep < 0 {
			rep = 0
		}
		snap.Power[v.DID] = float64(rep) / float64(totalRep)
	}
	return snap
}

// SelectCoordinator deterministically picks a coordinator weighted by
// voting power, per spec.md §4.4: compute cumulative weights over the
// sorted active set; derive a selection point from
// hash(round ∥ previous_block_hash) mod total_weight; return the
// validator containing that point, tie-broken lexicographically.
//
// Weights here are each validator's raw (clamped-to-zero) reputation,
// not the fractional voting power, so the modulus arithmetic stays in
// integers.
func (r *Registry) SelectCoordinator(roundNumber uint64, previousBlockHash [32]byte) (string, error) {
	active := r.activeSorted()
	if len(active) == 0 {
		return "", ErrNoActiveValidator
	}

	weights := make([]uint64, len(active))
	var total uint64
	allZero := true
	for i, v := range active {
		w := v.Reputation
		if w < 0 {
			w = 0
		}
		weights[i] = uint64(w)
		total += uint64(w)
		if w != 0 {
			allZero = false
		}
	}
	if allZero {
		// equal weighting: treat every validator as weight 1.
		for i := range weights {
			weights[i] = 1
		}
		total = uint64(len(weights))
	}

	selector := selectionPoint(roundNumber, previousBlockHash, total)
	var cumulative uint64
	for i, v := range active {
		cumulative += weights[i]
		if selector < cumulative {
			return v.DID, nil
		}
	}
	// unreachable if total was computed correctly; fall back to the
	// last validator for robustness against rounding.
	return active[len(active)-1].DID, nil
}

func selectionPoint(roundNumber uint64, previousBlockHash [32]byte, total uint64) uint64 {
	enc := make([]byte, 0, 40)
	var rb [8]byte
	for i := 0; i < 8; i++ {
		rb[i] = byte(roundNumber >> (56 - 8*i))
	}
	enc = append(enc, rb[:]...)
	enc = append(enc, previousBlockHash[:]...)
	digest := signer.Hash(enc)
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(digest[i])
	}
	if total == 0 {
		return 0
	}
	return v % total
}
