// Package capabilitymock provides test doubles for the capability
// interfaces, one struct per capability. IdentityResolver panics when
// its PublicKeyOfF is nil; TransportOut and Persistence record every
// call and invoke their optional function field only when it is set;
// TransportIn is a plain channel.
package capabilitymock

import (
	"context"
	"crypto/ed25519"

	"github.com/icn-network/poc-consensus/block"
	"github.com/icn-network/poc-consensus/wire"
)

// IdentityResolver is a test double for capability.IdentityResolver.
type IdentityResolver struct {
	PublicKeyOfF func(ctx context.Context, did string) (ed25519.PublicKey, bool, error)
}

func (m *IdentityResolver) PublicKeyOf(ctx context.Context, did string) (ed25519.PublicKey, bool, error) {
	return m.PublicKeyOfF(ctx, did)
}

// TransportOut is a test double for capability.TransportOut. Sent
// records every message passed to Broadcast, in order.
type TransportOut struct {
	BroadcastF func(ctx context.Context, msg wire.ConsensusMessage) error
	Sent       []wire.ConsensusMessage
}

func (m *TransportOut) Broadcast(ctx context.Context, msg wire.ConsensusMessage) error {
	m.Sent = append(m.Sent, msg)
	if m.BroadcastF != nil {
		return m.BroadcastF(ctx, msg)
	}
	return nil
}

// TransportIn is a test double for capability.TransportIn backed by a
// channel the test can push onto directly.
type TransportIn struct {
	Ch chan wire.ConsensusMessage
}

// NewTransportIn returns a TransportIn with a buffered channel.
func NewTransportIn(capacity int) *TransportIn {
	return &TransportIn{Ch: make(chan wire.ConsensusMessage, capacity)}
}

func (m *TransportIn) Messages() <-chan wire.ConsensusMessage { return m.Ch }

// Persistence is a test double for capability.Persistence backed by an
// in-memory slice.
type Persistence struct {
	AppendBlockF func(ctx context.Context, b block.Block) error
	Blocks       []block.Block
}

func (m *Persistence) AppendBlock(ctx context.Context, b block.Block) error {
	m.Blocks = append(m.Blocks, b)
	if m.AppendBlockF != nil {
		return m.AppendBlockF(ctx, b)
	}
	return nil
}

func (m *Persistence) LoadTip(ctx context.Context) (block.Block, error) {
	if len(m.Blocks) == 0 {
		return block.Block{}, nil
	}
	return m.Blocks[len(m.Blocks)-1], nil
}
