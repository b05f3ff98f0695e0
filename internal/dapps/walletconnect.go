package dapps

import (
	"sync"

	"github.com/rs/zerolog"

	klog "github.com/wallet3/wallet3d/internal/log"
)

// WCRegistry holds live WalletConnect sessions. They exist only while the
// peer is connected, so the registry is purely in-memory.
type WCRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   zerolog.Logger
}

// NewWCRegistry creates an empty WalletConnect session registry.
func NewWCRegistry() *WCRegistry {
	return &WCRegistry{
		sessions: make(map[string]*Session),
		logger:   klog.DApps,
	}
}

// Connect registers a session for origin, replacing any existing one.
func (r *WCRegistry) Connect(origin, chainID, account string, mobile bool) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &Session{
		Origin:          origin,
		LastUsedChainID: chainID,
		LastUsedAccount: account,
		WalletConnect:   true,
		Mobile:          mobile,
	}
	r.sessions[origin] = s
	r.logger.Info().Str("origin", origin).Str("chain", chainID).Msg("WalletConnect session established")
	return s
}

// Disconnect drops the session for origin, if any.
func (r *WCRegistry) Disconnect(origin string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[origin]; ok {
		delete(r.sessions, origin)
		r.logger.Info().Str("origin", origin).Msg("WalletConnect session closed")
	}
}

// Find implements Registry.
func (r *WCRegistry) Find(origin string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[origin]
	if !ok {
		return nil, false
	}
	cp := *s
	return &cp, true
}

// SetChain implements Registry.
func (r *WCRegistry) SetChain(origin, chainID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[origin]
	if !ok {
		return false
	}
	s.LastUsedChainID = chainID
	return true
}

// SetAccount implements Registry.
func (r *WCRegistry) SetAccount(origin, address string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[origin]
	if !ok {
		return false
	}
	s.LastUsedAccount = address
	return true
}

// RemoveAccount implements Registry. Sessions bound to the removed account
// are closed outright; a WalletConnect peer cannot silently switch accounts.
func (r *WCRegistry) RemoveAccount(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for origin, s := range r.sessions {
		if sameAddress(s.LastUsedAccount, address) {
			delete(r.sessions, origin)
			r.logger.Info().Str("origin", origin).Msg("WalletConnect session closed, account removed")
		}
	}
}
