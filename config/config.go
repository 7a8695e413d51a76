// Package config defines the typed, validated configuration consumed by
// the consensus engine at construction time. Configuration is loaded
// once and immutable thereafter; loading it from files or environment
// variables is a collaborator concern outside this package.
package config

import (
	"errors"
	"time"
)

// Sentinel validation errors, in the style of a closed error set rather
// than ad-hoc formatted strings.
var (
	ErrMinValidators         = errors.New("config: min_validators must be >= 1")
	ErrMaxLessThanMin        = errors.New("config: max_validators must be >= min_validators")
	ErrMinReputationNegative = errors.New("config: min_reputation must be >= 0")
	ErrReputationCapTooLow   = errors.New("config: reputation_cap must be >= min_reputation")
	ErrZeroDuration          = errors.New("config: duration fields must be > 0")
	ErrFractionOutOfRange    = errors.New("config: fraction fields must be in (0,1]")
	ErrMaxTxPerBlockZero     = errors.New("config: max_tx_per_block must be >= 1")
	ErrPendingBufferZero     = errors.New("config: pending_tx_buffer_size must be >= 1")
)

// Config is the full set of tunables named in spec.md §3.
type Config struct {
	MinValidators    int
	MinReputation    int64
	MaxValidators    int
	RoundTimeout     time.Duration
	VoteThreshold    float64
	Quorum           float64
	MaxTimestampSkew time.Duration
	MaxTxPerBlock    int

	ParticipationReward     int64
	CoordinatorReward       int64
	MissedValidationPenalty int64

	InactivityTimeout time.Duration
	ReputationCap     int64

	// PendingTxBufferSize bounds the inbound transaction buffer; exceeding
	// it causes SubmitTransaction to fail with BufferFull.
	PendingTxBufferSize int
}

// Default returns sane defaults matching spec.md §8 scenario 1.
func Default() Config {
	return Config{
		MinValidators:           3,
		MinReputation:           50,
		MaxValidators:           100,
		RoundTimeout:            30 * time.Second,
		VoteThreshold:           0.66,
		Quorum:                  0.66,
		MaxTimestampSkew:        5 * time.Second,
		MaxTxPerBlock:           500,
		ParticipationReward:     1,
		CoordinatorReward:       2,
		MissedValidationPenalty: -1,
		InactivityTimeout:       10 * time.Minute,
		ReputationCap:           1_000_000,
		PendingTxBufferSize:     10_000,
	}
}

// Validate rejects configurations that violate the invariants in
// spec.md §4.10: any duration of zero where positive is required, any
// fraction outside (0,1], max_validators < min_validators, and
// min_reputation < 0.
func (c Config) Validate() error {
	if c.MinValidators < 1 {
		return ErrMinValidators
	}
	if c.MaxValidators < c.MinValidators {
		return ErrMaxLessThanMin
	}
	if c.MinReputation < 0 {
		return ErrMinReputationNegative
	}
	if c.ReputationCap < c.MinReputation {
		return ErrReputationCapTooLow
	}
	if c.RoundTimeout <= 0 || c.MaxTimestampSkew <= 0 || c.InactivityTimeout <= 0 {
		return ErrZeroDuration
	}
	if c.VoteThreshold <= 0 || c.VoteThreshold > 1 {
		return ErrFractionOutOfRange
	}
	if c.Quorum <= 0 || c.Quorum > 1 {
		return ErrFractionOutOfRange
	}
	if c.MaxTxPerBlock < 1 {
		return ErrMaxTxPerBlockZero
	}
	if c.PendingTxBufferSize < 1 {
		return ErrPendingBufferZero
	}
	return nil
}
