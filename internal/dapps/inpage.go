package dapps

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	klog "github.com/wallet3/wallet3d/internal/log"
	"github.com/wallet3/wallet3d/internal/storage"
)

// dappPrefix namespaces in-page session records in the database.
const dappPrefix = "dapp:"

// InpageRegistry persists in-page provider sessions so a DApp keeps its
// chain and account binding across restarts.
type InpageRegistry struct {
	mu     sync.Mutex
	db     storage.DB
	logger zerolog.Logger
}

// NewInpageRegistry creates a registry backed by db.
func NewInpageRegistry(db storage.DB) *InpageRegistry {
	return &InpageRegistry{db: db, logger: klog.DApps}
}

// Connect records a session for origin, replacing any existing one.
func (r *InpageRegistry) Connect(origin, chainID, account string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &Session{
		Origin:          origin,
		LastUsedChainID: chainID,
		LastUsedAccount: account,
	}
	if err := r.save(s); err != nil {
		return nil, err
	}
	r.logger.Info().Str("origin", origin).Str("chain", chainID).Msg("DApp connected")
	return s, nil
}

// Disconnect drops the persisted session for origin, if any.
func (r *InpageRegistry) Disconnect(origin string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.db.Delete(sessionKey(origin))
}

// Find implements Registry.
func (r *InpageRegistry) Find(origin string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.load(origin)
	if err != nil {
		return nil, false
	}
	return s, true
}

// SetChain implements Registry.
func (r *InpageRegistry) SetChain(origin, chainID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.load(origin)
	if err != nil {
		return false
	}
	s.LastUsedChainID = chainID
	if err := r.save(s); err != nil {
		r.logger.Error().Err(err).Str("origin", origin).Msg("Failed to persist session chain")
		return false
	}
	return true
}

// SetAccount implements Registry.
func (r *InpageRegistry) SetAccount(origin, address string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.load(origin)
	if err != nil {
		return false
	}
	s.LastUsedAccount = address
	if err := r.save(s); err != nil {
		r.logger.Error().Err(err).Str("origin", origin).Msg("Failed to persist session account")
		return false
	}
	return true
}

// RemoveAccount implements Registry. In-page sessions survive the removal
// with the account cleared; the DApp picks a new one on next use.
func (r *InpageRegistry) RemoveAccount(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var touched []*Session
	err := r.db.ForEach([]byte(dappPrefix), func(_, value []byte) error {
		var s Session
		if err := json.Unmarshal(value, &s); err != nil {
			return fmt.Errorf("parse dapp session: %w", err)
		}
		if sameAddress(s.LastUsedAccount, address) {
			s.LastUsedAccount = ""
			touched = append(touched, &s)
		}
		return nil
	})
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to scan dapp sessions")
		return
	}
	for _, s := range touched {
		if err := r.save(s); err != nil {
			r.logger.Error().Err(err).Str("origin", s.Origin).Msg("Failed to detach removed account")
		}
	}
}

func (r *InpageRegistry) load(origin string) (*Session, error) {
	data, err := r.db.Get(sessionKey(origin))
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse dapp session: %w", err)
	}
	return &s, nil
}

func (r *InpageRegistry) save(s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal dapp session: %w", err)
	}
	return r.db.Put(sessionKey(s.Origin), data)
}

func sessionKey(origin string) []byte {
	return []byte(dappPrefix + origin)
}
