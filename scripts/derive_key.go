// derive_key.go prints the addresses for an account-level extended public key.
// Usage: go run scripts/derive_key.go <xpub> [count]
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/wallet3/wallet3d/internal/keystore"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: derive_key <xpub> [count]")
		os.Exit(1)
	}
	xpub := strings.TrimSpace(os.Args[1])
	count := 1
	if len(os.Args) > 2 {
		n, err := strconv.Atoi(os.Args[2])
		if err != nil || n < 1 {
			fmt.Fprintln(os.Stderr, "count must be a positive integer")
			os.Exit(1)
		}
		count = n
	}
	for i := 0; i < count; i++ {
		addr, err := keystore.DeriveAddress(xpub, uint32(i))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("%d=%s\n", i, addr.Hex())
	}
}
