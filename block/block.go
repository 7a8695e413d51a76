package block

import (
	"errors"
	"time"

	"github.com/icn-network/poc-consensus/signer"
	"github.com/icn-network/poc-consensus/wire"
)

// GenesisCoordinatorDID is the default coordinator identity recorded on
// the genesis block. A deployment may override it when constructing its
// own genesis block.
const GenesisCoordinatorDID = "did:coop:genesis"

// GenesisPreviousHash is the well-known previous_hash value for the
// genesis block.
const GenesisPreviousHash = "0"

var (
	ErrInvalidHash         = errors.New("block: recomputed hash does not match stored hash")
	ErrInvalidHeight       = errors.New("block: height is not parent height + 1")
	ErrInvalidPreviousHash = errors.New("block: previous_hash does not match parent hash")
	ErrInvalidTimestamp    = errors.New("block: timestamp outside allowed skew")
	ErrTooManyTransactions = errors.New("block: transaction count exceeds max_tx_per_block")
	ErrInvalidTransaction  = errors.New("block: contains an invalid transaction")
)

// Block is one link in the chain, per spec.md §3.
type Block struct {
	Height         uint64
	PreviousHash   string
	Timestamp      int64 // milliseconds since epoch
	CoordinatorDID string
	Transactions   []*Transaction
	Hash           [32]byte
}

// HashHex returns the block hash as a lowercase hex string, convenient
// for logging and external interfaces.
func (b *Block) HashHex() string {
	return hexEncode(b.Hash[:])
}

const hexDigits = "0123456789abcdef"

func hexEncode(b []byte) string {
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0x0f]
	}
	return string(out)
}

// HashHex hex-encodes a 32-byte digest, the same encoding HashHex uses
// for a block's own hash. Exported so collaborators that only have a
// raw digest (e.g. off a decoded wire message) can format it the same
// way without reaching into an unexported helper.
func HashHex(h [32]byte) string {
	return hexEncode(h[:])
}

// CanonicalBytes returns the canonical byte form hashed to produce Hash:
// all preceding fields plus the canonical serialization of transactions,
// in the fixed field order below.
func (b *Block) CanonicalBytes() ([]byte, error) {
	enc := wire.NewEncoder()
	enc.Uint64(b.Height)
	enc.String(b.PreviousHash)
	enc.Int64(b.Timestamp)
	enc.String(b.CoordinatorDID)
	enc.Uint64(uint64(len(b.Transactions)))
	for _, tx := range b.Transactions {
		txBytes, err := tx.CanonicalBytes()
		if err != nil {
			return nil, err
		}
		enc.Blob(txBytes)
		enc.Digest32(tx.Hash)
	}
	return enc.Bytes(), nil
}

// ComputeHash computes the block's content hash.
func (b *Block) ComputeHash() ([32]byte, error) {
	raw, err := b.CanonicalBytes()
	if err != nil {
		return [32]byte{}, err
	}
	return signer.Hash(raw), nil
}

// Encode serializes the full block for wire transport and persistence:
// every field CanonicalBytes carries plus each transaction's signature
// and hash and the block's own hash. Unlike CanonicalBytes, which is
// deliberately the hash preimage and omits signatures, Encode round-
// trips through Decode to an identical Block, satisfying spec.md §8's
// parse(serialize(b)) == b law.
func (b *Block) Encode() ([]byte, error) {
	enc := wire.NewEncoder()
	enc.Uint64(b.Height)
	enc.String(b.PreviousHash)
	enc.Int64(b.Timestamp)
	enc.String(b.CoordinatorDID)
	enc.Uint64(uint64(len(b.Transactions)))
	for _, tx := range b.Transactions {
		txBytes, err := tx.Encode()
		if err != nil {
			return nil, err
		}
		enc.Blob(txBytes)
	}
	enc.Digest32(b.Hash)
	return enc.Bytes(), nil
}

// Decode parses the byte form produced by Encode.
func Decode(b []byte) (*Block, error) {
	d := wire.NewDecoder(b)
	height, err := d.Uint64()
	if err != nil {
		return nil, err
	}
	previousHash, err := d.String()
	if err != nil {
		return nil, err
	}
	timestamp, err := d.Int64()
	if err != nil {
		return nil, err
	}
	coordinatorDID, err := d.String()
	if err != nil {
		return nil, err
	}
	n, err := d.Uint64()
	if err != nil {
		return nil, err
	}
	var txs []*Transaction
	if n > 0 {
		txs = make([]*Transaction, 0, n)
	}
	for i := uint64(0); i < n; i++ {
		txBytes, err := d.Blob()
		if err != nil {
			return nil, err
		}
		tx, err := DecodeTransaction(txBytes)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	hash, err := d.Digest32()
	if err != nil {
		return nil, err
	}
	return &Block{
		Height:         height,
		PreviousHash:   previousHash,
		Timestamp:      timestamp,
		CoordinatorDID: coordinatorDID,
		Transactions:   txs,
		Hash:           hash,
	}, nil
}

// Genesis returns the well-known genesis block: height 0, previous_hash
// "0", the given coordinator, and no transactions.
func Genesis(coordinatorDID string, timestamp int64) (*Block, error) {
	if coordinatorDID == "" {
		coordinatorDID = GenesisCoordinatorDID
	}
	b := &Block{
		Height:         0,
		PreviousHash:   GenesisPreviousHash,
		Timestamp:      timestamp,
		CoordinatorDID: coordinatorDID,
	}
	h, err := b.ComputeHash()
	if err != nil {
		return nil, err
	}
	b.Hash = h
	return b, nil
}

// Seal finalizes a candidate block's hash after its fields are set.
func (b *Block) Seal() error {
	h, err := b.ComputeHash()
	if err != nil {
		return err
	}
	b.Hash = h
	return nil
}

// Verify validates b against its parent and the local wall clock, per
// spec.md §4.3.
func (b *Block) Verify(parent *Block, nowWall time.Time, maxSkew time.Duration, maxTxPerBlock int, lookup PublicKeyLookup) error {
	recomputed, err := b.ComputeHash()
	if err != nil {
		return err
	}
	if recomputed != b.Hash {
		return ErrInvalidHash
	}
	if parent != nil {
		if b.Height != parent.Height+1 {
			return ErrInvalidHeight
		}
		if b.PreviousHash != parent.HashHex() {
			return ErrInvalidPreviousHash
		}
	}
	skew := nowWall.Sub(time.UnixMilli(b.Timestamp))
	if skew < 0 {
		skew = -skew
	}
	if skew > maxSkew {
		return ErrInvalidTimestamp
	}
	if len(b.Transactions) > maxTxPerBlock {
		return ErrTooManyTransactions
	}
	for _, tx := range b.Transactions {
		if err := tx.Verify(lookup); err != nil {
			return ErrInvalidTransaction
		}
	}
	return nil
}
