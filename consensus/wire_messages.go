package consensus

import "github.com/icn-network/poc-consensus/wire"

func roundStartMessage(roundNumber uint64) wire.ConsensusMessage {
	return wire.ConsensusMessage{
		Kind:       wire.MessageRoundStart,
		RoundStart: &wire.RoundStartMsg{Round: roundNumber},
	}
}

func roundFinalMessage(roundNumber uint64, blockHash [32]byte) wire.ConsensusMessage {
	return wire.ConsensusMessage{
		Kind:       wire.MessageRoundFinal,
		RoundFinal: &wire.RoundFinalMsg{Round: roundNumber, BlockHash: blockHash},
	}
}

// blockProposalMessage wraps a coordinator's candidate block (already
// encoded via block.Block.Encode) for gossip, per spec.md §6.
func blockProposalMessage(roundNumber uint64, blockBytes []byte) wire.ConsensusMessage {
	return wire.ConsensusMessage{
		Kind:          wire.MessageBlockProposal,
		BlockProposal: &wire.BlockProposalMsg{Round: roundNumber, BlockBytes: blockBytes},
	}
}

// voteMessage wraps a cast vote for gossip. Signature is left empty
// here. The engine does not authenticate inbound votes: handleInbound
// neither checks a wire Signature nor looks up the sender's public key.
func voteMessage(roundNumber uint64, did string, blockHash [32]byte, approve bool) wire.ConsensusMessage {
	return wire.ConsensusMessage{
		Kind: wire.MessageVote,
		Vote: &wire.VoteMsg{Round: roundNumber, Validator: did, BlockHash: blockHash, Approve: approve},
	}
}
