package crypto

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/koinos-go/chain/internal/chainerr"
)

// PrivateKey wraps a secp256k1 private key.
type PrivateKey struct {
	key *secp256k1.PrivateKey
}

// PrivateKeyFromSeed derives a deterministic private key from an
// arbitrary seed phrase by hashing it to a scalar. This mirrors the
// "privkey(seed)" helper used throughout the end-to-end test
// scenarios; production key material should come from the (out of
// scope) key-generation utilities instead.
func PrivateKeyFromSeed(seed string) *PrivateKey {
	h := SumSHA256([]byte(seed))
	k := secp256k1.PrivKeyFromBytes(h.Digest)
	return &PrivateKey{key: k}
}

// PrivateKeyFromBytes loads a 32-byte scalar directly.
func PrivateKeyFromBytes(b []byte) *PrivateKey {
	return &PrivateKey{key: secp256k1.PrivKeyFromBytes(b)}
}

func (p *PrivateKey) Bytes() []byte { return p.key.Serialize() }

// PublicKey returns the compressed (33-byte) public key.
func (p *PrivateKey) PublicKey() []byte {
	return p.key.PubKey().SerializeCompressed()
}

// Sign produces a 65-byte compact recoverable ECDSA signature over
// digest: [27+recid(+4 compressed)] || R(32) || S(32), canonical
// (low-S) per secp256k1's compact signature convention.
func (p *PrivateKey) Sign(digest []byte) []byte {
	return ecdsa.SignCompact(p.key, digest, true)
}

// Recover recovers the compressed public key that produced sig over
// digest.
func Recover(sig, digest []byte) ([]byte, error) {
	if len(sig) != 65 {
		return nil, chainerr.New(chainerr.CodeInvalidSignature, "signature must be 65 bytes")
	}
	pub, _, err := ecdsa.RecoverCompact(sig, digest)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.CodeInvalidSignature, "recover compact", err)
	}
	return pub.SerializeCompressed(), nil
}

// VerifySignature recovers the signer from sig/digest and compares
// the derived address against expected. This is the primitive behind
// the verify_signature thunk.
func VerifySignature(sig, digest []byte, expected Address) (bool, error) {
	pub, err := Recover(sig, digest)
	if err != nil {
		return false, err
	}
	addr := AddressFromPublicKey(pub)
	return addr == expected, nil
}
