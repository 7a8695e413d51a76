package block

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noKeys(string) ([]byte, bool) { return nil, false }

func TestHashDeterminism(t *testing.T) {
	tx := &Transaction{Sender: "did:coop:alice", Kind: KindTransfer, Transfer: &Transfer{Receiver: "did:coop:bob", Amount: 10}, Timestamp: 1000}
	h1, err := tx.ComputeHash()
	require.NoError(t, err)
	tx.Hash = h1

	tx2 := &Transaction{Sender: tx.Sender, Kind: tx.Kind, Transfer: &Transfer{Receiver: "did:coop:bob", Amount: 10}, Timestamp: tx.Timestamp}
	h2, err := tx2.ComputeHash()
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
}

func TestGenesisBlock(t *testing.T) {
	g, err := Genesis("", 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), g.Height)
	assert.Equal(t, GenesisPreviousHash, g.PreviousHash)
	assert.Equal(t, GenesisCoordinatorDID, g.CoordinatorDID)
	assert.Len(t, g.Transactions, 0)

	recomputed, err := g.ComputeHash()
	require.NoError(t, err)
	assert.Equal(t, g.Hash, recomputed)
}

func TestChainContinuity(t *testing.T) {
	now := time.UnixMilli(1_000_000)
	g, err := Genesis("", now.UnixMilli())
	require.NoError(t, err)

	b1 := &Block{
		Height:         1,
		PreviousHash:   g.HashHex(),
		Timestamp:      now.UnixMilli(),
		CoordinatorDID: "did:coop:alice",
	}
	require.NoError(t, b1.Seal())

	require.NoError(t, b1.Verify(g, now, 5*time.Second, 100, noKeys))

	bad := &Block{Height: 2, PreviousHash: g.HashHex(), Timestamp: now.UnixMilli(), CoordinatorDID: "x"}
	require.NoError(t, bad.Seal())
	assert.ErrorIs(t, bad.Verify(g, now, 5*time.Second, 100, noKeys), ErrInvalidHeight)
}

func TestVerifyRejectsTamperedHash(t *testing.T) {
	now := time.UnixMilli(0)
	g, err := Genesis("", 0)
	require.NoError(t, err)
	g.Hash[0] ^= 0xFF
	assert.ErrorIs(t, g.Verify(nil, now, time.Hour, 10, noKeys), ErrInvalidHash)
}

func TestVerifyRejectsTimestampSkew(t *testing.T) {
	b, err := Genesis("", 0)
	require.NoError(t, err)
	farFuture := time.UnixMilli(0).Add(time.Hour)
	assert.ErrorIs(t, b.Verify(nil, farFuture, time.Second, 10, noKeys), ErrInvalidTimestamp)
}

func TestTransactionEncodeDecodeRoundTrip(t *testing.T) {
	tx := &Transaction{
		Sender:    "did:coop:alice",
		Kind:      KindContractCall,
		Contract:  &ContractCall{ContractID: "escrow-1", Payload: map[string]int64{"amount": 42, "fee": 1}},
		Timestamp: 1700,
		Signature: []byte{0xAB, 0xCD},
	}
	h, err := tx.ComputeHash()
	require.NoError(t, err)
	tx.Hash = h

	encoded, err := tx.Encode()
	require.NoError(t, err)

	got, err := DecodeTransaction(encoded)
	require.NoError(t, err)
	assert.Equal(t, tx, got)
}

func TestBlockEncodeDecodeRoundTrip(t *testing.T) {
	tx := &Transaction{Sender: "did:coop:alice", Kind: KindTransfer, Transfer: &Transfer{Receiver: "did:coop:bob", Amount: 10}, Timestamp: 1000}
	h, err := tx.ComputeHash()
	require.NoError(t, err)
	tx.Hash = h

	b := &Block{
		Height:         1,
		PreviousHash:   "deadbeef",
		Timestamp:      1700,
		CoordinatorDID: "did:coop:alice",
		Transactions:   []*Transaction{tx},
	}
	require.NoError(t, b.Seal())

	encoded, err := b.Encode()
	require.NoError(t, err)

	got, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, b, got)
}

func TestDecodeTransactionRejectsTruncatedInput(t *testing.T) {
	_, err := DecodeTransaction([]byte{0, 0})
	assert.Error(t, err)
}

func TestVerifyRejectsTooManyTransactions(t *testing.T) {
	now := time.UnixMilli(0)
	b := &Block{Height: 0, PreviousHash: "0", Timestamp: 0}
	for i := 0; i < 3; i++ {
		tx := &Transaction{Sender: "did:coop:alice", Kind: KindTransfer, Transfer: &Transfer{Receiver: "did:coop:bob", Amount: 1}, Timestamp: 0}
		h, err := tx.ComputeHash()
		require.NoError(t, err)
		tx.Hash = h
		b.Transactions = append(b.Transactions, tx)
	}
	require.NoError(t, b.Seal())
	assert.ErrorIs(t, b.Verify(nil, now, time.Hour, 2, noKeys), ErrTooManyTransactions)
}
