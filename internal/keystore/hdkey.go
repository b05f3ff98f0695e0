package keystore

import (
	"crypto/ecdsa"
	"fmt"
	"strconv"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"
)

// ParsePath converts a derivation path like "m/44'/60'/0'/0" into bip32
// child indices. An apostrophe (or 'h'/'H') marks hardened derivation.
func ParsePath(path string) ([]uint32, error) {
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] != "m" {
		return nil, fmt.Errorf("path must start with m: %q", path)
	}

	indices := make([]uint32, 0, len(parts)-1)
	for _, part := range parts[1:] {
		hardened := false
		switch {
		case strings.HasSuffix(part, "'"):
			hardened = true
			part = strings.TrimSuffix(part, "'")
		case strings.HasSuffix(part, "h"), strings.HasSuffix(part, "H"):
			hardened = true
			part = part[:len(part)-1]
		}

		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("path component %q: %w", part, err)
		}
		if n >= uint64(bip32.FirstHardenedChild) {
			return nil, fmt.Errorf("path component %d out of range", n)
		}

		idx := uint32(n)
		if hardened {
			idx += bip32.FirstHardenedChild
		}
		indices = append(indices, idx)
	}
	return indices, nil
}

// derivePath walks key down a sequence of child indices.
func derivePath(key *bip32.Key, indices ...uint32) (*bip32.Key, error) {
	current := key
	for _, idx := range indices {
		child, err := current.NewChildKey(idx)
		if err != nil {
			return nil, fmt.Errorf("derive child %d: %w", idx, err)
		}
		current = child
	}
	return current, nil
}

// addressFromCompressed converts a compressed 33-byte secp256k1 public key
// into its Ethereum address (keccak256 of the uncompressed point, last 20
// bytes).
func addressFromCompressed(pub []byte) (common.Address, error) {
	pk, err := secp256k1.ParsePubKey(pub)
	if err != nil {
		return common.Address{}, fmt.Errorf("parse public key: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pk.ToECDSA()), nil
}

// DeriveAddress derives the address of the child at index under the given
// extended public key. Listing accounts never touches private material.
func DeriveAddress(xpub string, index uint32) (common.Address, error) {
	key, err := bip32.B58Deserialize(xpub)
	if err != nil {
		return common.Address{}, fmt.Errorf("deserialize xpub: %w", err)
	}
	child, err := key.NewChildKey(index)
	if err != nil {
		return common.Address{}, fmt.Errorf("derive child %d: %w", index, err)
	}
	addr, err := addressFromCompressed(child.PublicKey().Key)
	if err != nil {
		return common.Address{}, err
	}
	return addr, nil
}

// DeriveChildPrivateKey derives the ECDSA private key of the child at
// index under the given extended private key. Callers own the returned
// key's lifetime and must not retain it past the signing call.
func DeriveChildPrivateKey(xpriv string, index uint32) (*ecdsa.PrivateKey, error) {
	key, err := bip32.B58Deserialize(xpriv)
	if err != nil {
		return nil, fmt.Errorf("deserialize xpriv: %w", err)
	}
	if !key.IsPrivate {
		return nil, fmt.Errorf("extended key is public-only")
	}
	child, err := key.NewChildKey(index)
	if err != nil {
		return nil, fmt.Errorf("derive child %d: %w", index, err)
	}

	raw := child.Key
	// bip32 private key bytes may carry a leading 0x00 pad.
	if len(raw) == 33 && raw[0] == 0 {
		raw = raw[1:]
	}
	priv, err := ethcrypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("private key from child %d: %w", index, err)
	}
	return priv, nil
}

// ZeroBytes overwrites b to clear sensitive key material.
func ZeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
