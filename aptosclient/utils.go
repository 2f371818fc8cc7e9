package aptosclient

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/aptos-labs/aptos-go-sdk"
	"github.com/aptos-labs/aptos-go-sdk/crypto"
)

// NewAccountFromHex creates an Aptos account from a hex-encoded Ed25519
// private key seed (with or without 0x prefix).
func NewAccountFromHex(privateKeyHex string) (*aptos.Account, error) {
	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")
	seed, err := hex.DecodeString(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %v", err)
	}
	if len(seed) > ed25519.SeedSize {
		// a full private key was given; only the seed part matters
		seed = seed[:ed25519.SeedSize]
	}

	key := crypto.Ed25519PrivateKey{}
	if err := key.FromBytes(seed); err != nil {
		return nil, fmt.Errorf("failed to create Ed25519 private key: %v", err)
	}

	account, err := aptos.NewAccountFromSigner(&key)
	if err != nil {
		return nil, fmt.Errorf("failed to create account from signer: %v", err)
	}
	return account, nil
}

// serializeBytes encodes a vector<u8> argument: uleb128 length + content.
func serializeBytes(b []byte) []byte {
	out := make([]byte, 0, len(b)+2)
	out = append(out, uleb128(uint64(len(b)))...)
	out = append(out, b...)
	return out
}

// serializeString encodes a Move String argument.
func serializeString(s string) []byte {
	return serializeBytes([]byte(s))
}

func uleb128(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
		} else {
			out = append(out, b)
			return out
		}
	}
}
