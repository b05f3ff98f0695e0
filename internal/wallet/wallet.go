// Package wallet derives accounts from stored keys and signs messages and
// transactions with them.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/wallet3/wallet3d/internal/keystore"
	klog "github.com/wallet3/wallet3d/internal/log"
	"github.com/wallet3/wallet3d/internal/storage"
	"github.com/wallet3/wallet3d/internal/txhub"
)

// AccountRemover is notified when an account disappears so dependent
// session state can be detached.
type AccountRemover interface {
	RemoveAccount(address string)
}

// Wallet is the live view over one stored key: its derived accounts, the
// removed-index set, and the signing operations.
type Wallet struct {
	key    *keystore.Key
	store  *keystore.Store
	db     storage.DB
	auth   keystore.Authenticator
	bridge AccountRemover
	sender txhub.Broadcaster
	logger zerolog.Logger

	mu            sync.RWMutex
	accounts      []Account
	removed       []uint32
	lastRefreshed time.Time

	refreshStop chan struct{}
	refreshOnce sync.Once
}

// New creates a Wallet over key. bridge and sender may be nil; the
// corresponding notifications and sends are then skipped or rejected.
func New(key *keystore.Key, store *keystore.Store, db storage.DB, auth keystore.Authenticator, bridge AccountRemover, sender txhub.Broadcaster) *Wallet {
	return &Wallet{
		key:    key,
		store:  store,
		db:     db,
		auth:   auth,
		bridge: bridge,
		sender: sender,
		logger: klog.Wallet.With().Str("key", key.ID).Logger(),
	}
}

// Key returns the underlying stored key record.
func (w *Wallet) Key() *keystore.Key {
	return w.key
}

// IsHD reports whether this wallet can derive more than one account.
func (w *Wallet) IsHD() bool {
	return w.key.IsHD()
}

// LastRefreshed returns when the account list was last rebuilt.
func (w *Wallet) LastRefreshed() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastRefreshed
}

// Init loads the persisted removed-index set and address count and derives
// the live account list. It is idempotent: calling it again rebuilds the
// same accounts from the same persisted state.
func (w *Wallet) Init(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rebuild(ctx)
}

func (w *Wallet) rebuild(_ context.Context) error {
	removed, err := w.loadRemoved()
	if err != nil {
		return err
	}
	count, err := w.loadCount()
	if err != nil {
		return err
	}

	if !w.key.IsHD() {
		w.accounts = []Account{{Address: common.HexToAddress(w.key.Address), Index: 0}}
		w.removed = nil
		w.lastRefreshed = time.Now()
		return nil
	}

	accounts := make([]Account, 0, count)
	for i := w.key.BasePathIndex; i < w.key.BasePathIndex+count; i++ {
		if containsIndex(removed, i) {
			continue
		}
		addr, err := keystore.DeriveAddress(w.key.XPub, i)
		if err != nil {
			return fmt.Errorf("derive account %d: %w", i, err)
		}
		accounts = append(accounts, Account{Address: addr, Index: i})
	}

	w.accounts = accounts
	w.removed = removed
	w.lastRefreshed = time.Now()

	w.logger.Debug().
		Int("accounts", len(accounts)).
		Int("removed", len(removed)).
		Msg("Wallet initialized")
	return nil
}

// Accounts returns the live accounts in derivation order.
func (w *Wallet) Accounts() []Account {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]Account, len(w.accounts))
	copy(out, w.accounts)
	return out
}

// RemovedIndexes returns the removed derivation indices, ascending.
func (w *Wallet) RemovedIndexes() []uint32 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]uint32, len(w.removed))
	copy(out, w.removed)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NewAccount derives the next account and persists the new address count.
// The next index is one past the highest index ever used, live or removed,
// so removed indices are never reassigned. Non-HD wallets cannot grow;
// NewAccount returns nil for them.
func (w *Wallet) NewAccount() (*Account, error) {
	if !w.key.IsHD() {
		return nil, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var highest uint32
	if n := len(w.accounts); n > 0 {
		highest = w.accounts[n-1].Index
	}
	for _, i := range w.removed {
		if i > highest {
			highest = i
		}
	}
	index := highest + 1

	addr, err := keystore.DeriveAddress(w.key.XPub, index)
	if err != nil {
		return nil, fmt.Errorf("derive account %d: %w", index, err)
	}

	account := Account{Address: addr, Index: index}
	w.accounts = append(w.accounts, account)

	if err := w.saveCount(index + 1); err != nil {
		return nil, err
	}

	w.logger.Info().Uint32("index", index).Str("address", addr.Hex()).Msg("Account created")
	return &account, nil
}

// RemoveAccount retires the given account. Its index joins the removed set
// permanently. Removing an account that is not live is a no-op. When the
// last account is removed the persisted removed-index entry is cleared;
// the wallet is empty and the history no longer matters.
func (w *Wallet) RemoveAccount(account Account) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	pos := -1
	for i, a := range w.accounts {
		if a.Address == account.Address {
			pos = i
			break
		}
	}
	if pos < 0 {
		return nil
	}

	removedAcct := w.accounts[pos]
	w.accounts = append(w.accounts[:pos], w.accounts[pos+1:]...)
	w.removed = append(w.removed, removedAcct.Index)

	if len(w.accounts) > 0 {
		if err := w.saveRemoved(); err != nil {
			return err
		}
	} else {
		if err := w.db.Delete(keystore.RemovedIndexesKey(w.key.ID)); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("clear removed indexes: %w", err)
		}
	}

	if w.bridge != nil {
		w.bridge.RemoveAccount(removedAcct.Address.Hex())
	}

	w.logger.Info().
		Uint32("index", removedAcct.Index).
		Str("address", removedAcct.Address.Hex()).
		Msg("Account removed")
	return nil
}

// Delete removes the key record and all derived wallet state from storage.
// The Wallet must not be used afterwards.
func (w *Wallet) Delete() error {
	if err := w.store.Delete(w.key.ID); err != nil {
		return wrapError(ErrKindNotFound, err, "delete key %s", w.key.ID)
	}
	for _, k := range [][]byte{
		keystore.RemovedIndexesKey(w.key.ID),
		keystore.AddressCountKey(w.key.ID),
	} {
		if err := w.db.Delete(k); err != nil && !errors.Is(err, storage.ErrNotFound) {
			w.logger.Error().Err(err).Msg("Failed to delete wallet state")
		}
	}
	w.logger.Info().Msg("Wallet deleted")
	return nil
}

// StartRefresh rebuilds the account list from persisted state every
// interval until Dispose is called.
func (w *Wallet) StartRefresh(ctx context.Context, interval time.Duration) {
	w.mu.Lock()
	if w.refreshStop != nil {
		w.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	w.refreshStop = stop
	w.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := w.Init(ctx); err != nil {
					w.logger.Warn().Err(err).Msg("Wallet refresh failed")
				}
			}
		}
	}()
}

// Dispose stops the background refresh. Safe to call more than once.
func (w *Wallet) Dispose() {
	w.refreshOnce.Do(func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.refreshStop != nil {
			close(w.refreshStop)
			w.refreshStop = nil
		}
	})
}

func (w *Wallet) loadRemoved() ([]uint32, error) {
	data, err := w.db.Get(keystore.RemovedIndexesKey(w.key.ID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load removed indexes: %w", err)
	}
	var removed []uint32
	if err := json.Unmarshal(data, &removed); err != nil {
		return nil, fmt.Errorf("parse removed indexes: %w", err)
	}
	return removed, nil
}

func (w *Wallet) saveRemoved() error {
	data, err := json.Marshal(w.removed)
	if err != nil {
		return fmt.Errorf("marshal removed indexes: %w", err)
	}
	if err := w.db.Put(keystore.RemovedIndexesKey(w.key.ID), data); err != nil {
		return fmt.Errorf("save removed indexes: %w", err)
	}
	return nil
}

func (w *Wallet) loadCount() (uint32, error) {
	data, err := w.db.Get(keystore.AddressCountKey(w.key.ID))
	if errors.Is(err, storage.ErrNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load address count: %w", err)
	}
	n, err := strconv.ParseUint(string(data), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse address count %q: %w", data, err)
	}
	if n < 1 {
		n = 1
	}
	return uint32(n), nil
}

func (w *Wallet) saveCount(count uint32) error {
	if err := w.db.Put(keystore.AddressCountKey(w.key.ID), []byte(strconv.FormatUint(uint64(count), 10))); err != nil {
		return fmt.Errorf("save address count: %w", err)
	}
	return nil
}

func containsIndex(indices []uint32, i uint32) bool {
	for _, v := range indices {
		if v == i {
			return true
		}
	}
	return false
}
