// Package block implements the block and transaction data model: the
// canonical serialization, hash computation, and structural validation
// invariants from spec.md §3 and §4.3.
package block

import (
	"errors"

	"github.com/icn-network/poc-consensus/signer"
	"github.com/icn-network/poc-consensus/wire"
)

// Kind tags a transaction's payload variant.
type Kind uint8

const (
	// KindTransfer moves value from sender to receiver.
	KindTransfer Kind = iota + 1
	// KindContractCall invokes a contract; the core never executes it.
	KindContractCall
	// KindGovernance carries a governance proposal action; the core
	// never interprets it, only hashes and carries it.
	KindGovernance
)

var (
	ErrEmptySender      = errors.New("block: transaction sender must not be empty")
	ErrUnknownKind      = errors.New("block: unknown transaction kind")
	ErrSignatureInvalid = errors.New("block: transaction signature does not verify")
	ErrNoPublicKey      = errors.New("block: no public key on file for sender")
)

// Transfer is the Transfer transaction payload.
type Transfer struct {
	Receiver string
	Amount   uint64
}

// ContractCall is the ContractCall transaction payload. Payload values
// are carried opaquely; the core never interprets them.
type ContractCall struct {
	ContractID string
	Payload    map[string]int64
}

// Governance is the Governance transaction payload. The core carries and
// hashes it only; interpretation belongs to the governance collaborator.
type Governance struct {
	ProposalID string
	Action     string
}

// Transaction is the unit of work submitted to the engine.
type Transaction struct {
	Sender    string
	Kind      Kind
	Transfer  *Transfer
	Contract  *ContractCall
	Gov       *Governance
	Timestamp int64 // milliseconds since epoch
	Signature []byte
	Hash      [32]byte
}

// canonicalPayload encodes the kind-specific payload.
func (t *Transaction) canonicalPayload(enc *wire.Encoder) error {
	switch t.Kind {
	case KindTransfer:
		if t.Transfer == nil {
			return ErrUnknownKind
		}
		enc.String(t.Transfer.Receiver).Uint64(t.Transfer.Amount)
	case KindContractCall:
		if t.Contract == nil {
			return ErrUnknownKind
		}
		enc.String(t.Contract.ContractID)
		enc.Uint64(uint64(len(t.Contract.Payload)))
		for _, k := range sortedKeys(t.Contract.Payload) {
			enc.String(k).Int64(t.Contract.Payload[k])
		}
	case KindGovernance:
		if t.Gov == nil {
			return ErrUnknownKind
		}
		enc.String(t.Gov.ProposalID).String(t.Gov.Action)
	default:
		return ErrUnknownKind
	}
	return nil
}

// decodePayload reads back the kind-specific payload written by
// canonicalPayload, attaching it to t.
func (t *Transaction) decodePayload(dec *wire.Decoder) error {
	switch t.Kind {
	case KindTransfer:
		receiver, err := dec.String()
		if err != nil {
			return err
		}
		amount, err := dec.Uint64()
		if err != nil {
			return err
		}
		t.Transfer = &Transfer{Receiver: receiver, Amount: amount}
	case KindContractCall:
		contractID, err := dec.String()
		if err != nil {
			return err
		}
		n, err := dec.Uint64()
		if err != nil {
			return err
		}
		var payload map[string]int64
		if n > 0 {
			payload = make(map[string]int64, n)
		}
		for i := uint64(0); i < n; i++ {
			k, err := dec.String()
			if err != nil {
				return err
			}
			v, err := dec.Int64()
			if err != nil {
				return err
			}
			payload[k] = v
		}
		t.Contract = &ContractCall{ContractID: contractID, Payload: payload}
	case KindGovernance:
		proposalID, err := dec.String()
		if err != nil {
			return err
		}
		action, err := dec.String()
		if err != nil {
			return err
		}
		t.Gov = &Governance{ProposalID: proposalID, Action: action}
	default:
		return ErrUnknownKind
	}
	return nil
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// simple insertion sort keeps this dependency-free and deterministic
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// CanonicalBytes returns the canonical byte form hashed to produce Hash:
// sender ∥ canonical(kind) ∥ timestamp.
func (t *Transaction) CanonicalBytes() ([]byte, error) {
	enc := wire.NewEncoder()
	enc.String(t.Sender)
	enc.Uint64(uint64(t.Kind))
	if err := t.canonicalPayload(enc); err != nil {
		return nil, err
	}
	enc.Int64(t.Timestamp)
	return enc.Bytes(), nil
}

// ComputeHash computes and returns the transaction's content hash.
func (t *Transaction) ComputeHash() ([32]byte, error) {
	b, err := t.CanonicalBytes()
	if err != nil {
		return [32]byte{}, err
	}
	return signer.Hash(b), nil
}

// Encode serializes the full transaction for wire transport and
// persistence: every field CanonicalBytes carries plus the signature
// and the transaction's own hash. Unlike CanonicalBytes, which is the
// hash preimage and omits both, Encode round-trips through
// DecodeTransaction to an identical Transaction, satisfying spec.md §8's
// parse(serialize(tx)) == tx law.
func (t *Transaction) Encode() ([]byte, error) {
	enc := wire.NewEncoder()
	enc.String(t.Sender)
	enc.Uint64(uint64(t.Kind))
	if err := t.canonicalPayload(enc); err != nil {
		return nil, err
	}
	enc.Int64(t.Timestamp)
	enc.Blob(t.Signature)
	enc.Digest32(t.Hash)
	return enc.Bytes(), nil
}

// DecodeTransaction parses the byte form produced by Encode.
func DecodeTransaction(b []byte) (*Transaction, error) {
	dec := wire.NewDecoder(b)
	sender, err := dec.String()
	if err != nil {
		return nil, err
	}
	kindRaw, err := dec.Uint64()
	if err != nil {
		return nil, err
	}
	t := &Transaction{Sender: sender, Kind: Kind(kindRaw)}
	if err := t.decodePayload(dec); err != nil {
		return nil, err
	}
	timestamp, err := dec.Int64()
	if err != nil {
		return nil, err
	}
	t.Timestamp = timestamp
	sig, err := dec.Blob()
	if err != nil {
		return nil, err
	}
	if len(sig) > 0 {
		t.Signature = sig
	}
	hash, err := dec.Digest32()
	if err != nil {
		return nil, err
	}
	t.Hash = hash
	return t, nil
}

// NewTransaction builds a transaction shell with its sender, kind and
// timestamp set. Callers attach the kind-specific payload (Transfer,
// Contract, or Gov) before calling ComputeHash and storing the result
// in Hash.
func NewTransaction(sender string, kind Kind, timestamp int64) (*Transaction, error) {
	if sender == "" {
		return nil, ErrEmptySender
	}
	return &Transaction{Sender: sender, Kind: kind, Timestamp: timestamp}, nil
}

// PublicKeyLookup resolves a DID's current public key; satisfied by the
// capability.IdentityResolver in production.
type PublicKeyLookup func(did string) (pub []byte, ok bool)

// Verify validates transaction structure and, when a signature is
// present, checks it against the sender's current public key.
func (t *Transaction) Verify(lookup PublicKeyLookup) error {
	if t.Sender == "" {
		return ErrEmptySender
	}
	h, err := t.ComputeHash()
	if err != nil {
		return err
	}
	if h != t.Hash {
		return ErrInvalidHash
	}
	if len(t.Signature) == 0 {
		return nil
	}
	pub, ok := lookup(t.Sender)
	if !ok {
		return ErrNoPublicKey
	}
	ok2, err := signer.Verify(pub, t.Hash[:], t.Signature)
	if err != nil {
		return err
	}
	if !ok2 {
		return ErrSignatureInvalid
	}
	return nil
}
