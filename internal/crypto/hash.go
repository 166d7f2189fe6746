// Package crypto implements the self-describing hash format, ECDSA
// sign/recover, address derivation, and the Merkle tree-walker shared
// by the state-delta tree and block application.
package crypto

import (
	"crypto/sha256"
	"fmt"

	"github.com/multiformats/go-multihash"
	"golang.org/x/crypto/ripemd160" //lint:ignore SA1019 chain addresses are defined over ripemd160

	"github.com/koinos-go/chain/internal/chainerr"
)

// Algorithm is a multicodec-style algorithm code. Only the two
// families named in the hash data model are registered; additional
// codes are rejected with CodeUnknownHashCode.
type Algorithm uint64

const (
	AlgoSHA2256   Algorithm = multihash.SHA2_256
	AlgoRIPEMD160 Algorithm = 0x1053 // multicodec ripemd-160
)

func init() {
	// go-multihash only computes digests for codes its registry knows
	// about; register ripemd-160 against our own digest function so
	// Sum/Encode round-trip for both families.
	multihash.Register(uint64(AlgoRIPEMD160), sumRipemd160)
}

func sumRipemd160(data []byte, length int) ([]byte, error) {
	h := ripemd160.New()
	_, _ = h.Write(data)
	d := h.Sum(nil)
	if length >= 0 && length != len(d) {
		return nil, fmt.Errorf("ripemd160: unsupported length %d", length)
	}
	return d, nil
}

// Hash is a self-describing hash value: an algorithm code plus a
// digest. Equality is byte-exact on both fields.
type Hash struct {
	Algorithm Algorithm
	Digest    []byte
}

var ZeroHash = Hash{}

// Sum computes the digest of data under algo and returns the
// self-describing Hash.
func Sum(algo Algorithm, data []byte) (Hash, error) {
	switch algo {
	case AlgoSHA2256:
		d := sha256.Sum256(data)
		return Hash{Algorithm: algo, Digest: d[:]}, nil
	case AlgoRIPEMD160:
		d, err := sumRipemd160(data, -1)
		if err != nil {
			return Hash{}, chainerr.Wrap(chainerr.CodeUnknownHashCode, "ripemd160 sum", err)
		}
		return Hash{Algorithm: algo, Digest: d}, nil
	default:
		return Hash{}, chainerr.New(chainerr.CodeUnknownHashCode, fmt.Sprintf("unknown hash code %d", algo))
	}
}

// SumSHA256 is a convenience wrapper used pervasively for block and
// transaction ids.
func SumSHA256(data []byte) Hash {
	h, _ := Sum(AlgoSHA2256, data)
	return h
}

// Equal performs byte-exact comparison of algorithm and digest.
func (h Hash) Equal(other Hash) bool {
	if h.Algorithm != other.Algorithm {
		return false
	}
	if len(h.Digest) != len(other.Digest) {
		return false
	}
	for i := range h.Digest {
		if h.Digest[i] != other.Digest[i] {
			return false
		}
	}
	return true
}

// Key returns a comparable, hashable proxy for h suitable for use as a
// map key or in equality comparisons — Hash itself holds a Digest slice
// and so is neither comparable nor usable as a map key directly.
func (h Hash) Key() string {
	return string(h.Bytes())
}

func (h Hash) IsZero() bool {
	return len(h.Digest) == 0 && h.Algorithm == 0
}

func (h Hash) String() string {
	enc, err := h.Encode()
	if err != nil {
		return fmt.Sprintf("hash(invalid:%x)", h.Digest)
	}
	return fmt.Sprintf("%x", enc)
}

// Encode produces the canonical multihash serialization: algorithm
// code (varint), digest length (varint), digest bytes.
func (h Hash) Encode() ([]byte, error) {
	mh, err := multihash.Encode(h.Digest, uint64(h.Algorithm))
	if err != nil {
		return nil, chainerr.Wrap(chainerr.CodeInternalError, "multihash encode", err)
	}
	return mh, nil
}

// Decode parses the canonical serialization produced by Encode.
func Decode(buf []byte) (Hash, error) {
	dmh, err := multihash.Decode(buf)
	if err != nil {
		return Hash{}, chainerr.Wrap(chainerr.CodeUnknownHashCode, "multihash decode", err)
	}
	return Hash{Algorithm: Algorithm(dmh.Code), Digest: dmh.Digest}, nil
}

// Bytes returns the canonical encoding, or nil if the hash cannot be
// encoded; callers that built a Hash by hand should prefer Encode and
// check the error.
func (h Hash) Bytes() []byte {
	b, err := h.Encode()
	if err != nil {
		return nil
	}
	return b
}
