package crypto

import (
	"crypto/sha256"

	"github.com/mr-tron/base58"

	"github.com/koinos-go/chain/internal/chainerr"
)

// Address is a 20-byte public address, derived from a public key by
// ripemd160(sha256(compressed_pubkey)).
type Address [20]byte

var AddressZero = Address{}

const (
	addressPrefix = 0x00
	wifPrefix     = 0x80
)

// AddressFromPublicKey derives the 20-byte address for a compressed
// public key.
func AddressFromPublicKey(compressedPub []byte) Address {
	sha := sha256.Sum256(compressedPub)
	rmd, _ := Sum(AlgoRIPEMD160, sha[:])
	var a Address
	copy(a[:], rmd.Digest)
	return a
}

func checksum4(b []byte) []byte {
	d1 := sha256.Sum256(b)
	d2 := sha256.Sum256(d1[:])
	return d2[:4]
}

// EncodeAddress renders an Address as base58(prefix || addr || checksum4).
func EncodeAddress(a Address) string {
	return encodeBase58Check(addressPrefix, a[:])
}

// DecodeAddress parses a base58check address string.
func DecodeAddress(s string) (Address, error) {
	payload, err := decodeBase58Check(addressPrefix, s)
	if err != nil {
		return Address{}, err
	}
	if len(payload) != 20 {
		return Address{}, chainerr.New(chainerr.CodeMalformedTransaction, "address payload must be 20 bytes")
	}
	var a Address
	copy(a[:], payload)
	return a, nil
}

// EncodeWIF renders a private key as base58(0x80 || key || checksum4).
func EncodeWIF(p *PrivateKey) string {
	return encodeBase58Check(wifPrefix, p.Bytes())
}

// DecodeWIF parses a WIF-encoded private key.
func DecodeWIF(s string) (*PrivateKey, error) {
	payload, err := decodeBase58Check(wifPrefix, s)
	if err != nil {
		return nil, err
	}
	if len(payload) != 32 {
		return nil, chainerr.New(chainerr.CodeMalformedTransaction, "WIF payload must be 32 bytes")
	}
	return PrivateKeyFromBytes(payload), nil
}

func encodeBase58Check(prefix byte, payload []byte) string {
	buf := make([]byte, 0, 1+len(payload)+4)
	buf = append(buf, prefix)
	buf = append(buf, payload...)
	buf = append(buf, checksum4(buf)...)
	return base58.Encode(buf)
}

func decodeBase58Check(wantPrefix byte, s string) ([]byte, error) {
	buf, err := base58.Decode(s)
	if err != nil {
		return nil, chainerr.Wrap(chainerr.CodeMalformedTransaction, "base58 decode", err)
	}
	if len(buf) < 5 {
		return nil, chainerr.New(chainerr.CodeMalformedTransaction, "base58check payload too short")
	}
	body, sum := buf[:len(buf)-4], buf[len(buf)-4:]
	want := checksum4(body)
	for i := range want {
		if want[i] != sum[i] {
			return nil, chainerr.New(chainerr.CodeMalformedTransaction, "base58check checksum mismatch")
		}
	}
	if body[0] != wantPrefix {
		return nil, chainerr.New(chainerr.CodeMalformedTransaction, "base58check prefix mismatch")
	}
	return body[1:], nil
}

// DeriveAddress is the convenience composition used by the end-to-end
// test scenarios: privkey(seed) -> address.
func DeriveAddress(p *PrivateKey) Address {
	return AddressFromPublicKey(p.PublicKey())
}
