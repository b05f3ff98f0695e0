package keystore

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"

	"github.com/wallet3/wallet3d/internal/storage"
)

func addrOf(t *testing.T, priv *ecdsa.PrivateKey) common.Address {
	t.Helper()
	return ethcrypto.PubkeyToAddress(priv.PublicKey)
}

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func testAuth(t *testing.T) *PinAuthenticator {
	t.Helper()
	return NewPinAuthenticator(fastParams())
}

func testHDKey(t *testing.T, auth *PinAuthenticator, pin string) *Key {
	t.Helper()
	key, err := CreateHDKey(auth, testMnemonic, "", DefaultBasePath, 0, pin)
	if err != nil {
		t.Fatalf("CreateHDKey() error: %v", err)
	}
	return key
}

func TestParsePath(t *testing.T) {
	h := bip32.FirstHardenedChild

	tests := []struct {
		name    string
		path    string
		want    []uint32
		wantErr bool
	}{
		{"ethereum base", "m/44'/60'/0'/0", []uint32{h + 44, h + 60, h + 0, 0}, false},
		{"hardened h suffix", "m/44h/60h/0h/0", []uint32{h + 44, h + 60, h + 0, 0}, false},
		{"root only", "m", []uint32{}, false},
		{"no m prefix", "44'/60'", nil, true},
		{"garbage component", "m/44'/x", nil, true},
		{"overflow component", "m/4294967295", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePath(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePath() error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParsePath() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("index %d = %d, want %d", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestCreateHDKey(t *testing.T) {
	auth := testAuth(t)
	key := testHDKey(t, auth, "123456")

	if key.Kind != KindHD {
		t.Errorf("Kind = %v, want KindHD", key.Kind)
	}
	if !key.IsHD() {
		t.Error("IsHD() = false for HD key")
	}
	if !strings.HasPrefix(key.XPub, "xpub") {
		t.Errorf("XPub = %q, want xpub-prefixed", key.XPub)
	}
	if key.ID == "" {
		t.Error("ID should not be empty")
	}
	if len(key.XPrivEnc) == 0 || len(key.SecretEnc) == 0 {
		t.Error("encrypted material should be populated")
	}
	if key.Address != "" {
		t.Error("HD key should not carry a plain address")
	}
}

func TestCreateHDKey_Deterministic(t *testing.T) {
	auth := testAuth(t)
	a := testHDKey(t, auth, "123456")
	b := testHDKey(t, auth, "654321")

	// Same mnemonic and path means same xpub and same fingerprint,
	// regardless of PIN.
	if a.XPub != b.XPub {
		t.Error("same mnemonic produced different xpubs")
	}
	if a.ID != b.ID {
		t.Error("same xpub produced different key IDs")
	}
	if !a.Same(b) {
		t.Error("Same() = false for identical key material")
	}
}

func TestCreateHDKey_InvalidMnemonic(t *testing.T) {
	auth := testAuth(t)
	_, err := CreateHDKey(auth, "not a valid mnemonic", "", DefaultBasePath, 0, "pin")
	if err == nil {
		t.Error("CreateHDKey() with bad mnemonic should fail")
	}
}

func TestDeriveAddress_KnownVector(t *testing.T) {
	auth := testAuth(t)
	key := testHDKey(t, auth, "123456")

	// First account of the standard test mnemonic at m/44'/60'/0'/0/0.
	addr, err := DeriveAddress(key.XPub, 0)
	if err != nil {
		t.Fatalf("DeriveAddress() error: %v", err)
	}
	want := "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"
	if !strings.EqualFold(addr.Hex(), want) {
		t.Errorf("address at index 0 = %s, want %s", addr.Hex(), want)
	}
}

func TestDeriveAddress_MatchesPrivateDerivation(t *testing.T) {
	auth := testAuth(t)
	key := testHDKey(t, auth, "123456")

	ctx := context.Background()
	xpriv, err := auth.Decrypt(ctx, key.XPrivEnc, "123456")
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}

	for _, idx := range []uint32{0, 1, 7} {
		pubAddr, err := DeriveAddress(key.XPub, idx)
		if err != nil {
			t.Fatalf("DeriveAddress(%d) error: %v", idx, err)
		}
		priv, err := DeriveChildPrivateKey(string(xpriv), idx)
		if err != nil {
			t.Fatalf("DeriveChildPrivateKey(%d) error: %v", idx, err)
		}
		privAddr := addrOf(t, priv)
		if pubAddr != privAddr {
			t.Errorf("index %d: public derivation %s != private derivation %s", idx, pubAddr.Hex(), privAddr.Hex())
		}
	}
}

func TestImportSimpleKey(t *testing.T) {
	auth := testAuth(t)

	// Private key 0x01 has a well-defined address.
	privHex := "0000000000000000000000000000000000000000000000000000000000000001"
	key, err := ImportSimpleKey(auth, privHex, "123456")
	if err != nil {
		t.Fatalf("ImportSimpleKey() error: %v", err)
	}

	if key.Kind != KindSimple {
		t.Errorf("Kind = %v, want KindSimple", key.Kind)
	}
	if key.IsHD() {
		t.Error("IsHD() = true for simple key")
	}
	want := "0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf"
	if !strings.EqualFold(key.Address, want) {
		t.Errorf("Address = %s, want %s", key.Address, want)
	}

	// The secret round-trips through encrypt/decrypt.
	secret, err := auth.Decrypt(context.Background(), key.SecretEnc, "123456")
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	if string(secret) != privHex {
		t.Errorf("secret = %q, want %q", secret, privHex)
	}
}

func TestImportSimpleKey_Invalid(t *testing.T) {
	auth := testAuth(t)
	if _, err := ImportSimpleKey(auth, "zzzz", "pin"); err == nil {
		t.Error("ImportSimpleKey() with bad hex should fail")
	}
}

func TestPinAuthenticator_WrongPin(t *testing.T) {
	auth := testAuth(t)
	key := testHDKey(t, auth, "123456")

	_, err := auth.Decrypt(context.Background(), key.XPrivEnc, "000000")
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("Decrypt() wrong pin = %v, want ErrAuthFailed", err)
	}
}

func TestPinAuthenticator_NoMaterial(t *testing.T) {
	auth := testAuth(t)

	_, err := auth.Decrypt(context.Background(), nil, "123456")
	if !errors.Is(err, ErrNoKeyMaterial) {
		t.Errorf("Decrypt() empty ciphertext = %v, want ErrNoKeyMaterial", err)
	}
}

func TestStore_SaveGetListDelete(t *testing.T) {
	db := storage.NewMemory()
	store := NewStore(db)
	auth := testAuth(t)

	hd := testHDKey(t, auth, "123456")
	if err := store.Save(hd); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := store.Get(hd.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.XPub != hd.XPub || got.Kind != hd.Kind {
		t.Error("loaded key does not match saved key")
	}

	keys, err := store.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(keys) != 1 {
		t.Errorf("List() = %d keys, want 1", len(keys))
	}

	if err := store.Delete(hd.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := store.Get(hd.ID); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get() after Delete() = %v, want ErrKeyNotFound", err)
	}
}

func TestStore_DeleteRemovesDerivedState(t *testing.T) {
	db := storage.NewMemory()
	store := NewStore(db)
	auth := testAuth(t)

	hd := testHDKey(t, auth, "123456")
	if err := store.Save(hd); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	// Simulate wallet state derived from this key.
	db.Put(RemovedIndexesKey(hd.ID), []byte("[2,3]"))
	db.Put(AddressCountKey(hd.ID), []byte("5"))

	if err := store.Delete(hd.ID); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	if ok, _ := db.Has(RemovedIndexesKey(hd.ID)); ok {
		t.Error("removed-indexes entry should be deleted with the key")
	}
	if ok, _ := db.Has(AddressCountKey(hd.ID)); ok {
		t.Error("address-count entry should be deleted with the key")
	}
}

func TestStore_GetMissing(t *testing.T) {
	store := NewStore(storage.NewMemory())
	if _, err := store.Get("nope"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get() missing = %v, want ErrKeyNotFound", err)
	}
}
