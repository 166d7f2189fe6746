package thunks

import (
	"github.com/koinos-go/chain/internal/chainctx"
	"github.com/koinos-go/chain/internal/crypto"
)

// Hash computes a self-describing multihash of data under the given
// multicodec algorithm.
func Hash(ctx *chainctx.Context, args []byte) ([]byte, error) {
	var a hashArgs
	if err := decodeRLP(args, &a); err != nil {
		return nil, err
	}
	h, err := crypto.Sum(crypto.Algorithm(a.Algorithm), a.Data)
	if err != nil {
		return nil, err
	}
	return h.Encode()
}

// VerifySignature recovers the signer of a compact ECDSA signature and
// compares the derived address against the expected one.
func VerifySignature(ctx *chainctx.Context, args []byte) ([]byte, error) {
	var a verifySignatureArgs
	if err := decodeRLP(args, &a); err != nil {
		return nil, err
	}
	var expected crypto.Address
	copy(expected[:], a.Expected)
	ok, err := crypto.VerifySignature(a.Signature, a.Digest, expected)
	if err != nil {
		return nil, err
	}
	if ok {
		return []byte{1}, nil
	}
	return []byte{0}, nil
}
