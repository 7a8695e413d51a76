// Package wire implements the canonical byte serialization shared by the
// block/transaction hash computation and the ConsensusMessage gossip
// envelope: length-prefixed fields, big-endian integers, UTF-8 strings,
// and raw 32-byte digests. Fixed field order and numeric encoding are
// what make hashes reproducible across nodes; this package is the single
// place that encoding lives.
package wire

import (
	"encoding/binary"
	"errors"
)

// ErrTruncated is returned by decoders when the input ends before a
// length-prefixed field can be fully read.
var ErrTruncated = errors.New("wire: truncated input")

// Encoder builds a canonical byte buffer field by field.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// Bytes returns the accumulated canonical byte form.
func (e *Encoder) Bytes() []byte { return e.buf }

// Uint64 appends a big-endian uint64.
func (e *Encoder) Uint64(v uint64) *Encoder {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
	return e
}

// Int64 appends a big-endian int64 (two's complement bit pattern).
func (e *Encoder) Int64(v int64) *Encoder {
	return e.Uint64(uint64(v))
}

// Bool appends a single byte, 1 for true.
func (e *Encoder) Bool(v bool) *Encoder {
	if v {
		e.buf = append(e.buf, 1)
	} else {
		e.buf = append(e.buf, 0)
	}
	return e
}

// String appends a length-prefixed UTF-8 string.
func (e *Encoder) String(s string) *Encoder {
	return e.Blob([]byte(s))
}

// Blob appends a length-prefixed byte slice.
func (e *Encoder) Blob(b []byte) *Encoder {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(len(b)))
	e.buf = append(e.buf, tmp[:]...)
	e.buf = append(e.buf, b...)
	return e
}

// Digest32 appends a raw, unprefixed 32-byte digest.
func (e *Encoder) Digest32(d [32]byte) *Encoder {
	e.buf = append(e.buf, d[:]...)
	return e
}

// Decoder reads fields back out of a canonical byte buffer in order.
type Decoder struct {
	buf []byte
	off int
}

// NewDecoder wraps b for sequential field reads.
func NewDecoder(b []byte) *Decoder { return &Decoder{buf: b} }

func (d *Decoder) remaining() []byte { return d.buf[d.off:] }

// Uint64 reads a big-endian uint64.
func (d *Decoder) Uint64() (uint64, error) {
	if len(d.remaining()) < 8 {
		return 0, ErrTruncated
	}
	v := binary.BigEndian.Uint64(d.remaining()[:8])
	d.off += 8
	return v, nil
}

// Int64 reads a big-endian int64.
func (d *Decoder) Int64() (int64, error) {
	v, err := d.Uint64()
	return int64(v), err
}

// Bool reads a single byte.
func (d *Decoder) Bool() (bool, error) {
	if len(d.remaining()) < 1 {
		return false, ErrTruncated
	}
	v := d.remaining()[0] != 0
	d.off++
	return v, nil
}

// String reads a length-prefixed UTF-8 string.
func (d *Decoder) String() (string, error) {
	b, err := d.Blob()
	return string(b), err
}

// Blob reads a length-prefixed byte slice.
func (d *Decoder) Blob() ([]byte, error) {
	if len(d.remaining()) < 4 {
		return nil, ErrTruncated
	}
	n := binary.BigEndian.Uint32(d.remaining()[:4])
	d.off += 4
	if uint32(len(d.remaining())) < n {
		return nil, ErrTruncated
	}
	b := make([]byte, n)
	copy(b, d.remaining()[:n])
	d.off += int(n)
	return b, nil
}

// Digest32 reads a raw 32-byte digest.
func (d *Decoder) Digest32() ([32]byte, error) {
	var out [32]byte
	if len(d.remaining()) < 32 {
		return out, ErrTruncated
	}
	copy(out[:], d.remaining()[:32])
	d.off += 32
	return out, nil
}

// Done reports whether all bytes have been consumed.
func (d *Decoder) Done() bool { return d.off == len(d.buf) }
