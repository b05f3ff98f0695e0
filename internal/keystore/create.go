package keystore

import (
	"fmt"
	"strings"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"
)

// CreateHDKey builds an HD Key from a mnemonic. The extended private key at
// basePath and the mnemonic itself are encrypted under the PIN; the extended
// public key stays in the clear so accounts can be listed without unlocking.
func CreateHDKey(auth *PinAuthenticator, mnemonic, passphrase, basePath string, baseIndex uint32, pin string) (*Key, error) {
	seed, err := SeedFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	defer ZeroBytes(seed)

	if basePath == "" {
		basePath = DefaultBasePath
	}
	indices, err := ParsePath(basePath)
	if err != nil {
		return nil, fmt.Errorf("base path: %w", err)
	}

	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}
	node, err := derivePath(master, indices...)
	if err != nil {
		return nil, err
	}

	xpub := node.PublicKey().B58Serialize()
	xpriv := node.B58Serialize()

	xprivEnc, err := auth.Encrypt([]byte(xpriv), pin)
	if err != nil {
		return nil, fmt.Errorf("encrypt xpriv: %w", err)
	}
	secretEnc, err := auth.Encrypt([]byte(mnemonic), pin)
	if err != nil {
		return nil, fmt.Errorf("encrypt mnemonic: %w", err)
	}

	return &Key{
		ID:            Fingerprint([]byte(xpub)),
		Kind:          KindHD,
		XPub:          xpub,
		XPrivEnc:      xprivEnc,
		BasePath:      basePath,
		BasePathIndex: baseIndex,
		SecretEnc:     secretEnc,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// ImportSimpleKey builds a single-account Key from a raw private key in hex.
// Simple keys cannot derive further accounts.
func ImportSimpleKey(auth *PinAuthenticator, privHex, pin string) (*Key, error) {
	normalized := strings.TrimPrefix(strings.TrimSpace(privHex), "0x")
	priv, err := ethcrypto.HexToECDSA(normalized)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	addr := ethcrypto.PubkeyToAddress(priv.PublicKey)

	secretEnc, err := auth.Encrypt([]byte(normalized), pin)
	if err != nil {
		return nil, fmt.Errorf("encrypt secret: %w", err)
	}

	return &Key{
		ID:        Fingerprint(addr.Bytes()),
		Kind:      KindSimple,
		SecretEnc: secretEnc,
		Address:   addr.Hex(),
		CreatedAt: time.Now().UTC(),
	}, nil
}
