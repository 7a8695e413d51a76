package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsensusMessageRoundTrip(t *testing.T) {
	cases := []ConsensusMessage{
		{
			Kind:          MessageBlockProposal,
			BlockProposal: &BlockProposalMsg{Round: 7, BlockBytes: []byte("canonical-block-bytes")},
		},
		{
			Kind: MessageVote,
			Vote: &VoteMsg{
				Round:     7,
				Validator: "did:coop:alice",
				BlockHash: [32]byte{1, 2, 3},
				Approve:   true,
				Signature: []byte("sig-bytes"),
			},
		},
		{
			Kind:       MessageRoundStart,
			RoundStart: &RoundStartMsg{Round: 42},
		},
		{
			Kind:       MessageRoundFinal,
			RoundFinal: &RoundFinalMsg{Round: 42, BlockHash: [32]byte{9, 9, 9}},
		},
	}

	for _, c := range cases {
		encoded, err := c.Encode()
		require.NoError(t, err)

		decoded, err := DecodeConsensusMessage(encoded)
		require.NoError(t, err)
		assert.Equal(t, c, decoded)
	}
}

func TestDecodeConsensusMessageTruncated(t *testing.T) {
	_, err := DecodeConsensusMessage([]byte{0, 0, 0})
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestEncodeUnknownKindFails(t *testing.T) {
	_, err := ConsensusMessage{Kind: MessageVote}.Encode()
	assert.ErrorIs(t, err, ErrUnknownMessageKind)
}
