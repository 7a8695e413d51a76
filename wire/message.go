package wire

import "errors"

// MessageKind tags which ConsensusMessage variant is present, per
// spec.md §6.
type MessageKind uint8

const (
	MessageBlockProposal MessageKind = iota + 1
	MessageVote
	MessageRoundStart
	MessageRoundFinal
)

var ErrUnknownMessageKind = errors.New("wire: unknown consensus message kind")

// BlockProposalMsg carries a coordinator's candidate block. The block's
// full encoding (block.Block.Encode) is embedded as an opaque blob so
// this package has no import-cycle dependency on block.
type BlockProposalMsg struct {
	Round      uint64
	BlockBytes []byte
}

// VoteMsg carries one validator's vote.
type VoteMsg struct {
	Round     uint64
	Validator string
	BlockHash [32]byte
	Approve   bool
	Signature []byte
}

// RoundStartMsg announces a new round has begun.
type RoundStartMsg struct {
	Round uint64
}

// RoundFinalMsg announces a round finalized with the given block hash.
type RoundFinalMsg struct {
	Round     uint64
	BlockHash [32]byte
}

// ConsensusMessage is the tagged union of wire messages exchanged with
// TransportOut/TransportIn, per spec.md §6.
type ConsensusMessage struct {
	Kind          MessageKind
	BlockProposal *BlockProposalMsg
	Vote          *VoteMsg
	RoundStart    *RoundStartMsg
	RoundFinal    *RoundFinalMsg
}

// Encode serializes msg using the canonical field layout: the kind as a
// big-endian uint64, then the variant's fields in a fixed order.
func (m ConsensusMessage) Encode() ([]byte, error) {
	e := NewEncoder()
	e.Uint64(uint64(m.Kind))
	switch m.Kind {
	case MessageBlockProposal:
		if m.BlockProposal == nil {
			return nil, ErrUnknownMessageKind
		}
		e.Uint64(m.BlockProposal.Round)
		e.Blob(m.BlockProposal.BlockBytes)
	case MessageVote:
		if m.Vote == nil {
			return nil, ErrUnknownMessageKind
		}
		e.Uint64(m.Vote.Round)
		e.String(m.Vote.Validator)
		e.Digest32(m.Vote.BlockHash)
		e.Bool(m.Vote.Approve)
		e.Blob(m.Vote.Signature)
	case MessageRoundStart:
		if m.RoundStart == nil {
			return nil, ErrUnknownMessageKind
		}
		e.Uint64(m.RoundStart.Round)
	case MessageRoundFinal:
		if m.RoundFinal == nil {
			return nil, ErrUnknownMessageKind
		}
		e.Uint64(m.RoundFinal.Round)
		e.Digest32(m.RoundFinal.BlockHash)
	default:
		return nil, ErrUnknownMessageKind
	}
	return e.Bytes(), nil
}

// DecodeConsensusMessage parses the canonical byte form back into a
// ConsensusMessage.
func DecodeConsensusMessage(b []byte) (ConsensusMessage, error) {
	d := NewDecoder(b)
	kind, err := d.Uint64()
	if err != nil {
		return ConsensusMessage{}, err
	}
	msg := ConsensusMessage{Kind: MessageKind(kind)}
	switch msg.Kind {
	case MessageBlockProposal:
		round, err := d.Uint64()
		if err != nil {
			return ConsensusMessage{}, err
		}
		blob, err := d.Blob()
		if err != nil {
			return ConsensusMessage{}, err
		}
		msg.BlockProposal = &BlockProposalMsg{Round: round, BlockBytes: blob}
	case MessageVote:
		round, err := d.Uint64()
		if err != nil {
			return ConsensusMessage{}, err
		}
		validator, err := d.String()
		if err != nil {
			return ConsensusMessage{}, err
		}
		hash, err := d.Digest32()
		if err != nil {
			return ConsensusMessage{}, err
		}
		approve, err := d.Bool()
		if err != nil {
			return ConsensusMessage{}, err
		}
		sig, err := d.Blob()
		if err != nil {
			return ConsensusMessage{}, err
		}
		msg.Vote = &VoteMsg{Round: round, Validator: validator, BlockHash: hash, Approve: approve, Signature: sig}
	case MessageRoundStart:
		round, err := d.Uint64()
		if err != nil {
			return ConsensusMessage{}, err
		}
		msg.RoundStart = &RoundStartMsg{Round: round}
	case MessageRoundFinal:
		round, err := d.Uint64()
		if err != nil {
			return ConsensusMessage{}, err
		}
		hash, err := d.Digest32()
		if err != nil {
			return ConsensusMessage{}, err
		}
		msg.RoundFinal = &RoundFinalMsg{Round: round, BlockHash: hash}
	default:
		return ConsensusMessage{}, ErrUnknownMessageKind
	}
	return msg, nil
}
