package wallet

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/wallet3/wallet3d/internal/keystore"
	klog "github.com/wallet3/wallet3d/internal/log"
	"github.com/wallet3/wallet3d/internal/storage"
	"github.com/wallet3/wallet3d/internal/txhub"
)

// Manager owns the set of open wallets, one per stored key.
type Manager struct {
	store  *keystore.Store
	db     storage.DB
	auth   *keystore.PinAuthenticator
	bridge AccountRemover
	sender txhub.Broadcaster
	logger zerolog.Logger

	mu      sync.RWMutex
	wallets []*Wallet
}

// NewManager creates a Manager. bridge and sender are handed to every
// wallet it opens.
func NewManager(store *keystore.Store, db storage.DB, auth *keystore.PinAuthenticator, bridge AccountRemover, sender txhub.Broadcaster) *Manager {
	return &Manager{
		store:  store,
		db:     db,
		auth:   auth,
		bridge: bridge,
		sender: sender,
		logger: klog.Wallet,
	}
}

// Load opens a wallet for every stored key.
func (m *Manager) Load(ctx context.Context) error {
	keys, err := m.store.List()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.wallets = m.wallets[:0]
	for _, k := range keys {
		w := New(k, m.store, m.db, m.auth, m.bridge, m.sender)
		if err := w.Init(ctx); err != nil {
			return err
		}
		m.wallets = append(m.wallets, w)
	}

	m.logger.Info().Int("wallets", len(m.wallets)).Msg("Wallets loaded")
	return nil
}

// Wallets returns the open wallets in key-creation order.
func (m *Manager) Wallets() []*Wallet {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Wallet, len(m.wallets))
	copy(out, m.wallets)
	return out
}

// Find returns the wallet for keyID.
func (m *Manager) Find(keyID string) (*Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, w := range m.wallets {
		if w.key.ID == keyID {
			return w, nil
		}
	}
	return nil, newError(ErrKindNotFound, "wallet %s not found", keyID)
}

// CreateHD derives a new HD key from mnemonic, persists it, and opens a
// wallet over it. A key with the same public material is refused.
func (m *Manager) CreateHD(ctx context.Context, mnemonic, passphrase, basePath string, baseIndex uint32, pin string) (*Wallet, error) {
	key, err := keystore.CreateHDKey(m.auth, mnemonic, passphrase, basePath, baseIndex, pin)
	if err != nil {
		return nil, wrapError(ErrKindMalformed, err, "create hd wallet")
	}
	return m.adopt(ctx, key)
}

// ImportKey persists a raw private key and opens a wallet over it.
func (m *Manager) ImportKey(ctx context.Context, privHex, pin string) (*Wallet, error) {
	key, err := keystore.ImportSimpleKey(m.auth, privHex, pin)
	if err != nil {
		return nil, wrapError(ErrKindMalformed, err, "import key")
	}
	return m.adopt(ctx, key)
}

func (m *Manager) adopt(ctx context.Context, key *keystore.Key) (*Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.wallets {
		if existing.key.Same(key) {
			return nil, newError(ErrKindMalformed, "key already exists as %s", existing.key.ID)
		}
	}

	if err := m.store.Save(key); err != nil {
		return nil, err
	}
	w := New(key, m.store, m.db, m.auth, m.bridge, m.sender)
	if err := w.Init(ctx); err != nil {
		return nil, err
	}
	m.wallets = append(m.wallets, w)
	return w, nil
}

// Remove deletes the wallet for keyID and all its derived state.
func (m *Manager) Remove(keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, w := range m.wallets {
		if w.key.ID == keyID {
			w.Dispose()
			if err := w.Delete(); err != nil {
				return err
			}
			m.wallets = append(m.wallets[:i], m.wallets[i+1:]...)
			m.logger.Info().Str("key", keyID).Msg("Wallet removed")
			return nil
		}
	}
	return newError(ErrKindNotFound, "wallet %s not found", keyID)
}

// Close disposes every open wallet.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range m.wallets {
		w.Dispose()
	}
	m.wallets = nil
}

// IsNotFound reports whether err is a missing-wallet error.
func IsNotFound(err error) bool {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind == ErrKindNotFound
	}
	return false
}
