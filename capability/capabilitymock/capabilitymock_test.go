package capabilitymock

import "github.com/icn-network/poc-consensus/capability"

var (
	_ capability.IdentityResolver = (*IdentityResolver)(nil)
	_ capability.TransportOut     = (*TransportOut)(nil)
	_ capability.TransportIn      = (*TransportIn)(nil)
	_ capability.Persistence      = (*Persistence)(nil)
)
