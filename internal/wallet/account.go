package wallet

import "github.com/ethereum/go-ethereum/common"

// Account is a derived address and its derivation index. For non-HD wallets
// the index is always 0.
type Account struct {
	Address common.Address `json:"address"`
	Index   uint32         `json:"index"`
}
