// Package capability declares the explicit collaborator contracts the
// consensus core depends on but never implements: identity resolution,
// transport, and persistence, per spec.md §6. The core depends on these
// capabilities, not on concrete implementations, per the design-notes
// guidance against dynamic dispatch on ad-hoc interfaces.
package capability

import (
	"context"
	"crypto/ed25519"

	"github.com/icn-network/poc-consensus/block"
	"github.com/icn-network/poc-consensus/wire"
)

// IdentityResolver resolves a DID's current public key.
type IdentityResolver interface {
	PublicKeyOf(ctx context.Context, did string) (ed25519.PublicKey, bool, error)
}

// TransportOut gossips consensus messages to peers; the engine never
// dials peers itself.
type TransportOut interface {
	Broadcast(ctx context.Context, msg wire.ConsensusMessage) error
}

// TransportIn delivers inbound consensus messages into the engine
// queue.
type TransportIn interface {
	Messages() <-chan wire.ConsensusMessage
}

// Persistence is the durability layer: the core operates on in-memory
// state and calls AppendBlock on Completed; it remains functional
// without a Persistence collaborator, in which case state is volatile.
type Persistence interface {
	AppendBlock(ctx context.Context, b block.Block) error
	LoadTip(ctx context.Context) (block.Block, error)
}
