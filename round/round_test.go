package round

import (
	"testing"
	"time"

	"github.com/icn-network/poc-consensus/block"
	"github.com/icn-network/poc-consensus/validators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func equalSnapshot(dids ...string) validators.Snapshot {
	s := validators.Snapshot{Power: make(map[string]float64, len(dids))}
	for _, d := range dids {
		s.DIDs = append(s.DIDs, d)
		s.Power[d] = 1.0 / float64(len(dids))
	}
	return s
}

func proposedBlock(t *testing.T) *block.Block {
	t.Helper()
	b := &block.Block{Height: 1, PreviousHash: "0", Timestamp: 0, CoordinatorDID: "A"}
	require.NoError(t, b.Seal())
	return b
}

func TestHappyPathRound(t *testing.T) {
	snap := equalSnapshot("A", "B", "C", "D")
	start := time.Unix(0, 0)
	r := New(1, "A", snap, start, 30*time.Second, 0.66, 0.66, nil)

	b := proposedBlock(t)
	require.NoError(t, r.Propose("A", b))
	assert.Equal(t, Voting, r.State)

	require.NoError(t, r.AcceptVote(1, "A", b.HashHex(), true))
	require.NoError(t, r.AcceptVote(1, "B", b.HashHex(), true))
	require.NoError(t, r.AcceptVote(1, "C", b.HashHex(), true))
	assert.Equal(t, Finalizing, r.State)

	require.NoError(t, r.Finalize())
	assert.Equal(t, Completed, r.State)
}

func TestDuplicateVoteRejected(t *testing.T) {
	snap := equalSnapshot("A", "B", "C", "D")
	r := New(1, "A", snap, time.Unix(0, 0), 30*time.Second, 0.66, 0.66, nil)
	b := proposedBlock(t)
	require.NoError(t, r.Propose("A", b))

	require.NoError(t, r.AcceptVote(1, "D", b.HashHex(), true))
	err := r.AcceptVote(1, "D", b.HashHex(), false)
	assert.ErrorIs(t, err, ErrDuplicateVote)
	assert.Len(t, r.Votes, 1)
	assert.True(t, r.Votes["D"].Approve)
}

func TestUnauthorizedProposer(t *testing.T) {
	snap := equalSnapshot("A", "B", "C", "D")
	r := New(1, "A", snap, time.Unix(0, 0), 30*time.Second, 0.66, 0.66, nil)
	b := proposedBlock(t)
	err := r.Propose("B", b)
	assert.ErrorIs(t, err, ErrUnauthorizedPropos)
	assert.Equal(t, Failed, r.State)
	assert.Equal(t, ReasonUnauthorizedProposer, r.FailReason)
}

func TestRejectionTransitionsFailed(t *testing.T) {
	snap := equalSnapshot("A", "B", "C", "D")
	r := New(1, "A", snap, time.Unix(0, 0), 30*time.Second, 0.66, 0.66, nil)
	b := proposedBlock(t)
	require.NoError(t, r.Propose("A", b))

	require.NoError(t, r.AcceptVote(1, "B", b.HashHex(), true))
	require.NoError(t, r.AcceptVote(1, "C", b.HashHex(), false))
	require.NoError(t, r.AcceptVote(1, "D", b.HashHex(), false))
	assert.ErrorIs(t, r.AcceptVote(1, "A", b.HashHex(), false), ErrInvalidRoundState)

	assert.Equal(t, Failed, r.State)
	assert.Equal(t, ReasonConsensusRejected, r.FailReason)
}

func TestTimeout(t *testing.T) {
	snap := equalSnapshot("A", "B", "C", "D")
	start := time.Unix(0, 0)
	r := New(1, "A", snap, start, 30*time.Second, 0.66, 0.66, nil)

	assert.False(t, r.CheckTimeout(start.Add(29*time.Second)))
	assert.True(t, r.CheckTimeout(start.Add(31*time.Second)))
	assert.Equal(t, Failed, r.State)
	assert.Equal(t, ReasonRoundTimeout, r.FailReason)
}

func TestFinalityMonotonicity(t *testing.T) {
	snap := equalSnapshot("A", "B", "C", "D")
	start := time.Unix(0, 0)
	r := New(1, "A", snap, start, 30*time.Second, 0.66, 0.66, nil)
	b := proposedBlock(t)
	require.NoError(t, r.Propose("A", b))
	require.NoError(t, r.AcceptVote(1, "A", b.HashHex(), true))
	require.NoError(t, r.AcceptVote(1, "B", b.HashHex(), true))
	require.NoError(t, r.AcceptVote(1, "C", b.HashHex(), true))
	require.NoError(t, r.Finalize())

	assert.False(t, r.CheckTimeout(start.Add(time.Hour)))
	assert.Equal(t, Completed, r.State)
	assert.ErrorIs(t, r.AcceptVote(1, "D", b.HashHex(), true), ErrInvalidRoundState)
}

func TestLateVoteDuringFinalizingIsRecorded(t *testing.T) {
	snap := equalSnapshot("A", "B", "C", "D")
	r := New(1, "A", snap, time.Unix(0, 0), 30*time.Second, 0.66, 0.66, nil)
	b := proposedBlock(t)
	require.NoError(t, r.Propose("A", b))

	require.NoError(t, r.AcceptVote(1, "A", b.HashHex(), true))
	require.NoError(t, r.AcceptVote(1, "B", b.HashHex(), true))
	require.NoError(t, r.AcceptVote(1, "C", b.HashHex(), true))
	require.Equal(t, Finalizing, r.State)

	require.NoError(t, r.AcceptVote(1, "D", b.HashHex(), true))
	assert.Equal(t, Finalizing, r.State)
	assert.Len(t, r.Approvers(), 4)

	err := r.AcceptVote(1, "D", b.HashHex(), false)
	assert.ErrorIs(t, err, ErrDuplicateVote)
}

func TestOneVotePerValidator(t *testing.T) {
	snap := equalSnapshot("A", "B", "C", "D")
	r := New(1, "A", snap, time.Unix(0, 0), 30*time.Second, 0.66, 0.66, nil)
	b := proposedBlock(t)
	require.NoError(t, r.Propose("A", b))
	require.NoError(t, r.AcceptVote(1, "A", b.HashHex(), true))
	require.NoError(t, r.AcceptVote(1, "B", b.HashHex(), true))
	require.NoError(t, r.AcceptVote(1, "C", b.HashHex(), true))
	assert.LessOrEqual(t, len(r.Votes), len(snap.DIDs))
	seen := map[string]bool{}
	for did := range r.Votes {
		assert.False(t, seen[did])
		seen[did] = true
	}
}
