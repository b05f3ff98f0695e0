// Package keystore manages encrypted wallet key material.
package keystore

import (
	"encoding/hex"
	"time"

	"github.com/zeebo/blake3"
)

// DefaultBasePath is the BIP-44 Ethereum account path keys derive under.
// Individual accounts are non-hardened children of this node.
const DefaultBasePath = "m/44'/60'/0'/0"

// Kind distinguishes HD keys from single imported secrets. The kind is
// decided once at creation time and persisted; nothing sniffs key strings
// at runtime.
type Kind uint8

const (
	// KindHD is a hierarchical deterministic key: an extended key pair
	// at BasePath from which accounts are derived by child index.
	KindHD Kind = iota + 1

	// KindSimple is a single imported private key with exactly one account.
	KindSimple
)

func (k Kind) String() string {
	switch k {
	case KindHD:
		return "hd"
	case KindSimple:
		return "simple"
	default:
		return "unknown"
	}
}

// Key is one cryptographic seed a user controls, encrypted at rest.
//
// For KindHD, XPub/XPrivEnc/BasePath/BasePathIndex are set and Address is
// empty. For KindSimple, Address is set and the extended-key fields are
// empty. SecretEnc always holds the encrypted backing secret: the mnemonic
// for HD keys, the raw private key hex for simple keys.
type Key struct {
	ID            string    `json:"id"`
	Kind          Kind      `json:"kind"`
	XPub          string    `json:"xpub,omitempty"`
	XPrivEnc      []byte    `json:"xpriv_enc,omitempty"`
	BasePath      string    `json:"base_path,omitempty"`
	BasePathIndex uint32    `json:"base_path_index,omitempty"`
	SecretEnc     []byte    `json:"secret_enc"`
	Address       string    `json:"address,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// IsHD reports whether this key can derive multiple accounts.
func (k *Key) IsHD() bool {
	return k.Kind == KindHD
}

// Same reports whether other refers to the same key material.
func (k *Key) Same(other *Key) bool {
	if k.Kind != other.Kind {
		return false
	}
	if k.Kind == KindHD {
		return k.XPub == other.XPub &&
			k.BasePath == other.BasePath &&
			k.BasePathIndex == other.BasePathIndex
	}
	return k.Address == other.Address
}

// Fingerprint derives a stable key identifier from public material.
// BLAKE3-256 truncated to 8 bytes, hex-encoded.
func Fingerprint(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// RemovedIndexesKey is the storage key holding a wallet's removed
// derivation indices (JSON array of integers).
func RemovedIndexesKey(keyID string) []byte {
	return []byte(keyID + "-removed-indexes")
}

// AddressCountKey is the storage key holding a wallet's live address
// count (decimal string, absent means 1).
func AddressCountKey(keyID string) []byte {
	return []byte(keyID + "-address-count")
}
