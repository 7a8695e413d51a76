package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(c Config) Config
		wantErr error
	}{
		{"min validators zero", func(c Config) Config { c.MinValidators = 0; return c }, ErrMinValidators},
		{"max below min", func(c Config) Config { c.MaxValidators = 1; return c }, ErrMaxLessThanMin},
		{"negative min reputation", func(c Config) Config { c.MinReputation = -1; return c }, ErrMinReputationNegative},
		{"cap below min reputation", func(c Config) Config { c.ReputationCap = 1; c.MinReputation = 50; return c }, ErrReputationCapTooLow},
		{"zero round timeout", func(c Config) Config { c.RoundTimeout = 0; return c }, ErrZeroDuration},
		{"threshold too high", func(c Config) Config { c.VoteThreshold = 1.5; return c }, ErrFractionOutOfRange},
		{"quorum zero", func(c Config) Config { c.Quorum = 0; return c }, ErrFractionOutOfRange},
		{"max tx per block zero", func(c Config) Config { c.MaxTxPerBlock = 0; return c }, ErrMaxTxPerBlockZero},
		{"pending buffer zero", func(c Config) Config { c.PendingTxBufferSize = 0; return c }, ErrPendingBufferZero},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.mutate(Default()).Validate()
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}
