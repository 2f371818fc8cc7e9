package htlc

import (
	"bytes"
	"crypto/rand"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

// SecretLen is the byte length of generated swap secrets.
const SecretLen = 32

// Digest is the 256-bit hash function a chain deployment commits to.
// Preimage verification must match exactly across the two chains of a
// pairing, so each Machine is constructed with the digest its COUNTERPART
// contract uses; a mismatch means swaps never complete.
type Digest func([]byte) ethcommon.Hash

// KeccakDigest is the digest of the EVM-side contract.
func KeccakDigest(b []byte) ethcommon.Hash {
	return crypto.Keccak256Hash(b)
}

// Sha3Digest is the digest of the Move-side contract (std::hash::sha3_256).
func Sha3Digest(b []byte) ethcommon.Hash {
	return ethcommon.Hash(sha3.Sum256(b))
}

// GenerateSecret draws a fresh 32-byte secret and returns it together with
// its digest. Pure apart from the randomness source.
func GenerateSecret(d Digest) (secret [SecretLen]byte, hash ethcommon.Hash, err error) {
	if _, err = rand.Read(secret[:]); err != nil {
		return [SecretLen]byte{}, ethcommon.Hash{}, err
	}
	return secret, d(secret[:]), nil
}

// VerifyPreimage reports whether digest(preimage) == hash.
func VerifyPreimage(d Digest, preimage []byte, hash ethcommon.Hash) bool {
	if len(preimage) == 0 {
		return false
	}
	got := d(preimage)
	return bytes.Equal(got[:], hash[:])
}
