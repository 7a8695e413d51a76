package consensus

import (
	"context"
	"testing"
	"time"

	"github.com/icn-network/poc-consensus/capability/capabilitymock"
	"github.com/icn-network/poc-consensus/clock"
	"github.com/icn-network/poc-consensus/config"
	"github.com/icn-network/poc-consensus/event"
	"github.com/icn-network/poc-consensus/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistenceAndTransportWiredOnFinalize(t *testing.T) {
	cfg := config.Default()
	cfg.MinValidators = 3
	mock := clock.NewMock(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &capabilitymock.Persistence{}
	out := &capabilitymock.TransportOut{}
	bus := event.NewBus(nil)

	e, err := New(cfg, mock, nil, bus, WithPersistence(store), WithTransportOut(out))
	require.NoError(t, err)
	go e.Run(ctx)

	for _, did := range []string{"A", "B", "C"} {
		require.NoError(t, e.RegisterValidator(ctx, did, 100))
	}

	sub := bus.Subscribe()
	defer sub.Unsubscribe()

	roundNo, err := e.StartRound(ctx)
	require.NoError(t, err)
	r, err := e.CurrentRound(ctx)
	require.NoError(t, err)
	coordinator := r.Coordinator

	require.NoError(t, e.ProposeBlock(ctx, coordinator, nil))
	r, err = e.CurrentRound(ctx)
	require.NoError(t, err)
	blockHash := r.ProposedBlock.HashHex()

	for _, did := range []string{"A", "B", "C"} {
		require.NoError(t, e.SubmitVote(ctx, roundNo, did, blockHash, true))
	}

	result, err := e.FinalizeRound(ctx)
	require.NoError(t, err)
	require.True(t, result.Successful)

	require.Len(t, store.Blocks, 1)
	assert.Equal(t, result.FinalizedBlock.HashHex(), store.Blocks[0].HashHex())

	require.NotEmpty(t, out.Sent)
	var sawBlockProposal, sawVote, sawRoundStart, sawRoundFinal bool
	for _, msg := range out.Sent {
		switch msg.Kind {
		case wire.MessageBlockProposal:
			sawBlockProposal = true
		case wire.MessageVote:
			sawVote = true
		case wire.MessageRoundStart:
			sawRoundStart = true
		case wire.MessageRoundFinal:
			sawRoundFinal = true
		}
	}
	assert.True(t, sawBlockProposal, "expected a broadcast BlockProposal message")
	assert.True(t, sawVote, "expected a broadcast Vote message")
	assert.True(t, sawRoundStart, "expected a broadcast RoundStart message")
	assert.True(t, sawRoundFinal, "expected a broadcast RoundFinal message")

	var sawStarted, sawCompleted bool
	for i := 0; i < 10; i++ {
		select {
		case ev := <-sub.Events():
			switch ev.Kind {
			case event.KindRoundStarted:
				sawStarted = true
			case event.KindRoundCompleted:
				sawCompleted = true
			}
		default:
		}
	}
	assert.True(t, sawStarted)
	assert.True(t, sawCompleted)
}

// TestTransportInDrainsIntoEngine pushes a peer vote onto a
// capabilitymock.TransportIn and confirms the engine's own executor
// picks it up and records it, per spec.md §6.
func TestTransportInDrainsIntoEngine(t *testing.T) {
	cfg := config.Default()
	cfg.MinValidators = 3
	mock := clock.NewMock(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := capabilitymock.NewTransportIn(4)
	bus := event.NewBus(nil)

	e, err := New(cfg, mock, nil, bus, WithTransportIn(in))
	require.NoError(t, err)
	go e.Run(ctx)

	for _, did := range []string{"A", "B", "C"} {
		require.NoError(t, e.RegisterValidator(ctx, did, 100))
	}

	roundNo, err := e.StartRound(ctx)
	require.NoError(t, err)
	r, err := e.CurrentRound(ctx)
	require.NoError(t, err)
	coordinator := r.Coordinator

	require.NoError(t, e.ProposeBlock(ctx, coordinator, nil))
	r, err = e.CurrentRound(ctx)
	require.NoError(t, err)

	voter := "A"
	for _, did := range []string{"A", "B", "C"} {
		if did != coordinator {
			voter = did
			break
		}
	}

	in.Ch <- wire.ConsensusMessage{
		Kind: wire.MessageVote,
		Vote: &wire.VoteMsg{Round: roundNo, Validator: voter, BlockHash: r.ProposedBlock.Hash, Approve: true},
	}

	require.Eventually(t, func() bool {
		r, err := e.CurrentRound(ctx)
		require.NoError(t, err)
		_, voted := r.Votes[voter]
		return voted
	}, time.Second, time.Millisecond)
}
