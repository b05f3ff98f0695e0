package dapps

import (
	"github.com/rs/zerolog"

	klog "github.com/wallet3/wallet3d/internal/log"
)

// Bridge routes session lookups across the WalletConnect and in-page
// registries. A live mobile WalletConnect session takes precedence over a
// persisted in-page session for the same origin.
type Bridge struct {
	wc     *WCRegistry
	inpage *InpageRegistry
	logger zerolog.Logger
}

// NewBridge creates a Bridge over the two registries.
func NewBridge(wc *WCRegistry, inpage *InpageRegistry) *Bridge {
	return &Bridge{wc: wc, inpage: inpage, logger: klog.DApps}
}

// Find returns the session currently governing origin, or nil.
func (b *Bridge) Find(origin string) *Session {
	if s, ok := b.wc.Find(origin); ok && s.Mobile {
		return s
	}
	if s, ok := b.inpage.Find(origin); ok {
		return s
	}
	if s, ok := b.wc.Find(origin); ok {
		return s
	}
	return nil
}

// SetChain rebinds origin to chainID on whichever registry owns it.
func (b *Bridge) SetChain(origin, chainID string) bool {
	if _, ok := b.wc.Find(origin); ok {
		return b.wc.SetChain(origin, chainID)
	}
	return b.inpage.SetChain(origin, chainID)
}

// SetAccount rebinds origin to address on whichever registry owns it.
func (b *Bridge) SetAccount(origin, address string) bool {
	if _, ok := b.wc.Find(origin); ok {
		return b.wc.SetAccount(origin, address)
	}
	return b.inpage.SetAccount(origin, address)
}

// RemoveAccount detaches address from every session in both registries.
// Wallets call this when an account is removed.
func (b *Bridge) RemoveAccount(address string) {
	b.wc.RemoveAccount(address)
	b.inpage.RemoveAccount(address)
	b.logger.Debug().Str("address", address).Msg("Account detached from dapp sessions")
}
