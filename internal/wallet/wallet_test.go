package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/wallet3/wallet3d/internal/keystore"
	"github.com/wallet3/wallet3d/internal/storage"
)

const (
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	testPin      = "123456"
)

// testPrivKeyHex is the private key for integer 1, a well-known test vector.
const testPrivKeyHex = "0000000000000000000000000000000000000000000000000000000000000001"

func fastAuth() *keystore.PinAuthenticator {
	return keystore.NewPinAuthenticator(keystore.EncryptionParams{
		Memory:      64,
		Iterations:  1,
		Parallelism: 1,
	})
}

func newHDWallet(t *testing.T, db storage.DB, bridge AccountRemover) *Wallet {
	t.Helper()

	auth := fastAuth()
	key, err := keystore.CreateHDKey(auth, testMnemonic, "", keystore.DefaultBasePath, 0, testPin)
	if err != nil {
		t.Fatalf("CreateHDKey: %v", err)
	}
	store := keystore.NewStore(db)
	if err := store.Save(key); err != nil {
		t.Fatalf("Save: %v", err)
	}

	w := New(key, store, db, auth, bridge, nil)
	if err := w.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return w
}

func newSimpleWallet(t *testing.T, db storage.DB) *Wallet {
	t.Helper()

	auth := fastAuth()
	key, err := keystore.ImportSimpleKey(auth, testPrivKeyHex, testPin)
	if err != nil {
		t.Fatalf("ImportSimpleKey: %v", err)
	}
	store := keystore.NewStore(db)
	if err := store.Save(key); err != nil {
		t.Fatalf("Save: %v", err)
	}

	w := New(key, store, db, auth, nil, nil)
	if err := w.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return w
}

func growTo(t *testing.T, w *Wallet, n int) {
	t.Helper()
	for len(w.Accounts()) < n {
		if _, err := w.NewAccount(); err != nil {
			t.Fatalf("NewAccount: %v", err)
		}
	}
}

func TestInitDefaultsToOneAccount(t *testing.T) {
	w := newHDWallet(t, storage.NewMemory(), nil)

	accounts := w.Accounts()
	if len(accounts) != 1 {
		t.Fatalf("expected 1 account, got %d", len(accounts))
	}
	if accounts[0].Index != 0 {
		t.Errorf("expected index 0, got %d", accounts[0].Index)
	}
}

func TestInitIsIdempotent(t *testing.T) {
	w := newHDWallet(t, storage.NewMemory(), nil)
	growTo(t, w, 4)
	if err := w.RemoveAccount(w.Accounts()[1]); err != nil {
		t.Fatalf("RemoveAccount: %v", err)
	}
	before := w.Accounts()

	for i := 0; i < 3; i++ {
		if err := w.Init(context.Background()); err != nil {
			t.Fatalf("Init #%d: %v", i, err)
		}
		after := w.Accounts()
		if len(after) != len(before) {
			t.Fatalf("Init #%d changed account count: %d != %d", i, len(after), len(before))
		}
		for j := range after {
			if after[j] != before[j] {
				t.Errorf("Init #%d changed account %d: %+v != %+v", i, j, after[j], before[j])
			}
		}
	}
}

func TestNewAccountIndexesAreSequential(t *testing.T) {
	w := newHDWallet(t, storage.NewMemory(), nil)
	growTo(t, w, 3)

	accounts := w.Accounts()
	for i, a := range accounts {
		if a.Index != uint32(i) {
			t.Errorf("account %d has index %d", i, a.Index)
		}
	}
}

func TestRemovedIndexIsNeverReassigned(t *testing.T) {
	w := newHDWallet(t, storage.NewMemory(), nil)
	growTo(t, w, 5) // indices 0..4

	var victim Account
	for _, a := range w.Accounts() {
		if a.Index == 3 {
			victim = a
		}
	}
	if err := w.RemoveAccount(victim); err != nil {
		t.Fatalf("RemoveAccount: %v", err)
	}

	first, err := w.NewAccount()
	if err != nil {
		t.Fatalf("NewAccount: %v", err)
	}
	second, err := w.NewAccount()
	if err != nil {
		t.Fatalf("NewAccount: %v", err)
	}
	if first.Index != 5 || second.Index != 6 {
		t.Errorf("expected indices 5 and 6, got %d and %d", first.Index, second.Index)
	}
}

func TestLiveAndRemovedAreDisjoint(t *testing.T) {
	w := newHDWallet(t, storage.NewMemory(), nil)
	growTo(t, w, 5)

	accounts := w.Accounts()
	for _, victim := range []Account{accounts[1], accounts[3]} {
		if err := w.RemoveAccount(victim); err != nil {
			t.Fatalf("RemoveAccount: %v", err)
		}
	}

	removed := make(map[uint32]bool)
	for _, i := range w.RemovedIndexes() {
		removed[i] = true
	}
	for _, a := range w.Accounts() {
		if removed[a.Index] {
			t.Errorf("index %d is both live and removed", a.Index)
		}
	}

	// Disjointness survives a rebuild from persisted state.
	if err := w.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	for _, a := range w.Accounts() {
		if removed[a.Index] {
			t.Errorf("after rebuild, index %d is both live and removed", a.Index)
		}
	}
}

func TestRemoveUnknownAccountIsNoop(t *testing.T) {
	w := newHDWallet(t, storage.NewMemory(), nil)
	before := len(w.Accounts())

	other := Account{Index: 99}
	if err := w.RemoveAccount(other); err != nil {
		t.Fatalf("RemoveAccount: %v", err)
	}
	if got := len(w.Accounts()); got != before {
		t.Errorf("account count changed: %d != %d", got, before)
	}
}

func TestRemoveLastAccountClearsRemovedEntry(t *testing.T) {
	db := storage.NewMemory()
	w := newHDWallet(t, db, nil)

	if err := w.RemoveAccount(w.Accounts()[0]); err != nil {
		t.Fatalf("RemoveAccount: %v", err)
	}
	if got := len(w.Accounts()); got != 0 {
		t.Fatalf("expected 0 accounts, got %d", got)
	}

	has, err := db.Has(keystore.RemovedIndexesKey(w.Key().ID))
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if has {
		t.Error("removed-indexes entry still persisted after removing last account")
	}
}

func TestRemovedSetSurvivesReload(t *testing.T) {
	db := storage.NewMemory()
	w := newHDWallet(t, db, nil)
	growTo(t, w, 4)

	victim := w.Accounts()[2]
	if err := w.RemoveAccount(victim); err != nil {
		t.Fatalf("RemoveAccount: %v", err)
	}

	// A fresh wallet over the same storage sees the same live set.
	auth := fastAuth()
	reloaded := New(w.Key(), keystore.NewStore(db), db, auth, nil, nil)
	if err := reloaded.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if got, want := len(reloaded.Accounts()), 3; got != want {
		t.Fatalf("expected %d accounts after reload, got %d", want, got)
	}
	for _, a := range reloaded.Accounts() {
		if a.Index == victim.Index {
			t.Errorf("removed index %d reappeared after reload", victim.Index)
		}
	}
}

type recordingBridge struct {
	removed []string
}

func (b *recordingBridge) RemoveAccount(address string) {
	b.removed = append(b.removed, address)
}

func TestRemoveAccountNotifiesBridge(t *testing.T) {
	bridge := &recordingBridge{}
	w := newHDWallet(t, storage.NewMemory(), bridge)
	growTo(t, w, 2)

	victim := w.Accounts()[1]
	if err := w.RemoveAccount(victim); err != nil {
		t.Fatalf("RemoveAccount: %v", err)
	}
	if len(bridge.removed) != 1 || bridge.removed[0] != victim.Address.Hex() {
		t.Errorf("bridge notified with %v, want [%s]", bridge.removed, victim.Address.Hex())
	}
}

func TestSimpleWalletHasSingleFixedAccount(t *testing.T) {
	w := newSimpleWallet(t, storage.NewMemory())

	if w.IsHD() {
		t.Fatal("simple wallet reports IsHD")
	}
	if got := len(w.Accounts()); got != 1 {
		t.Fatalf("expected 1 account, got %d", got)
	}

	account, err := w.NewAccount()
	if err != nil {
		t.Fatalf("NewAccount: %v", err)
	}
	if account != nil {
		t.Errorf("NewAccount on simple wallet returned %+v", account)
	}
	if got := len(w.Accounts()); got != 1 {
		t.Errorf("simple wallet grew to %d accounts", got)
	}
}

func TestManagerLifecycle(t *testing.T) {
	db := storage.NewMemory()
	store := keystore.NewStore(db)
	m := NewManager(store, db, fastAuth(), nil, nil)
	ctx := context.Background()

	hd, err := m.CreateHD(ctx, testMnemonic, "", keystore.DefaultBasePath, 0, testPin)
	if err != nil {
		t.Fatalf("CreateHD: %v", err)
	}
	if _, err := m.ImportKey(ctx, testPrivKeyHex, testPin); err != nil {
		t.Fatalf("ImportKey: %v", err)
	}
	if got := len(m.Wallets()); got != 2 {
		t.Fatalf("expected 2 wallets, got %d", got)
	}

	// Same mnemonic again is a duplicate.
	if _, err := m.CreateHD(ctx, testMnemonic, "", keystore.DefaultBasePath, 0, testPin); err == nil {
		t.Error("expected error creating duplicate hd wallet")
	}

	// A second manager over the same storage loads the same wallets.
	m2 := NewManager(keystore.NewStore(db), db, fastAuth(), nil, nil)
	if err := m2.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := len(m2.Wallets()); got != 2 {
		t.Fatalf("expected 2 wallets after reload, got %d", got)
	}

	// Leave derived state behind so Remove has something to clean up.
	growTo(t, hd, 3)
	if err := hd.RemoveAccount(hd.Accounts()[1]); err != nil {
		t.Fatalf("RemoveAccount: %v", err)
	}

	if err := m.Remove(hd.Key().ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := m.Find(hd.Key().ID); !IsNotFound(err) {
		t.Errorf("expected not-found after remove, got %v", err)
	}
	if got := len(m.Wallets()); got != 1 {
		t.Errorf("expected 1 wallet after remove, got %d", got)
	}
	for _, k := range [][]byte{
		keystore.RemovedIndexesKey(hd.Key().ID),
		keystore.AddressCountKey(hd.Key().ID),
	} {
		if ok, _ := db.Has(k); ok {
			t.Errorf("expected %q cleared after remove", k)
		}
	}
}

func TestManagerRemoveUnknown(t *testing.T) {
	db := storage.NewMemory()
	m := NewManager(keystore.NewStore(db), db, fastAuth(), nil, nil)

	err := m.Remove("no-such-key")
	if !IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestErrorKinds(t *testing.T) {
	base := errors.New("boom")
	wrapped := wrapError(ErrKindAuth, base, "unlock key")

	if KindOf(wrapped) != ErrKindAuth {
		t.Errorf("KindOf = %v, want auth", KindOf(wrapped))
	}
	if !errors.Is(wrapped, base) {
		t.Error("wrapped error does not unwrap to cause")
	}
	if KindOf(base) != 0 {
		t.Errorf("KindOf(plain error) = %v, want 0", KindOf(base))
	}
	if !IsAuthFailure(wrapped) {
		t.Error("IsAuthFailure = false for auth error")
	}
}
