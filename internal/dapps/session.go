// Package dapps tracks which chain and account each connected DApp origin
// is bound to, across WalletConnect and in-page providers.
package dapps

import "strings"

// Session is the per-origin connection state a DApp sees.
type Session struct {
	Origin          string `json:"origin"`
	LastUsedChainID string `json:"last_used_chain_id"`
	LastUsedAccount string `json:"last_used_account"`
	WalletConnect   bool   `json:"walletconnect"`
	Mobile          bool   `json:"mobile,omitempty"`
}

// Registry stores sessions for one provider family.
type Registry interface {
	// Find returns the session for origin, or false if none exists.
	Find(origin string) (*Session, bool)
	// SetChain rebinds origin to chainID. Returns false if origin is unknown.
	SetChain(origin, chainID string) bool
	// SetAccount rebinds origin to address. Returns false if origin is unknown.
	SetAccount(origin, address string) bool
	// RemoveAccount detaches address from every session that uses it.
	RemoveAccount(address string)
}

func sameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}
