// wallet3-cli is a command-line client for interacting with a wallet3d
// daemon.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/wallet3/wallet3d/internal/rpc"
	"github.com/wallet3/wallet3d/internal/rpcclient"
	"github.com/wallet3/wallet3d/internal/txhub"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	// Parse global flags that appear before the subcommand.
	rpcURL := "http://127.0.0.1:8575"

	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--rpc" && len(args) > 1:
			rpcURL = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--rpc="):
			rpcURL = args[0][len("--rpc="):]
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	client := rpcclient.New(rpcURL)
	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "create":
		cmdCreate(client, cmdArgs)
	case "import":
		cmdImport(client)
	case "list":
		cmdList(client)
	case "accounts":
		cmdAccounts(client, cmdArgs)
	case "new-account":
		cmdNewAccount(client, cmdArgs)
	case "remove-account":
		cmdRemoveAccount(client, cmdArgs)
	case "remove":
		cmdRemove(client, cmdArgs)
	case "secret":
		cmdSecret(client, cmdArgs)
	case "sign":
		cmdSign(client, cmdArgs)
	case "pending":
		cmdPending(client)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: wallet3-cli [global flags] <command> [args]

Global flags:
  --rpc <url>                 Daemon endpoint (default: http://127.0.0.1:8575)

Commands:
  create [mnemonic...]        Create an HD wallet (generates a mnemonic when
                              none is given)
  import                      Import a raw private key (prompted)
  list                        List wallets and their accounts
  accounts <key-id>           List accounts of one wallet
  new-account <key-id>        Derive the next account
  remove-account <key-id> <address>
                              Retire an account
  remove <key-id>             Delete a wallet and its stored state
  secret <key-id>             Reveal the mnemonic or private key
  sign <key-id> <index> <message>
                              Personal-sign a text message
  pending                     List pending transactions
`)
}

// readPin prompts for the wallet PIN without echoing it.
func readPin(prompt string) string {
	fmt.Fprintf(os.Stderr, "%s: ", prompt)
	pin, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		fatal("read pin: %v", err)
	}
	return string(pin)
}

// readSecretLine prompts for a secret value without echoing it.
func readSecretLine(prompt string) string {
	fmt.Fprintf(os.Stderr, "%s: ", prompt)
	line, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		fatal("read input: %v", err)
	}
	return strings.TrimSpace(string(line))
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal("encode output: %v", err)
	}
	fmt.Println(string(data))
}

func cmdCreate(client *rpcclient.Client, args []string) {
	mnemonic := strings.Join(args, " ")
	pin := readPin("New PIN")
	if confirm := readPin("Confirm PIN"); confirm != pin {
		fatal("pins do not match")
	}

	var created rpc.CreateResult
	err := client.Call("wallet_create", rpc.WalletCreateParam{Mnemonic: mnemonic, Pin: pin}, &created)
	if err != nil {
		fatal("%v", err)
	}

	fmt.Printf("Key ID:  %s\n", created.KeyID)
	fmt.Printf("Address: %s\n", created.Address)
	if created.Mnemonic != "" {
		fmt.Println()
		fmt.Println("Recovery phrase (write it down, it is not shown again):")
		fmt.Println("  " + created.Mnemonic)
	}
}

func cmdImport(client *rpcclient.Client) {
	key := readSecretLine("Private key hex")
	pin := readPin("New PIN")
	if confirm := readPin("Confirm PIN"); confirm != pin {
		fatal("pins do not match")
	}

	var created rpc.CreateResult
	if err := client.Call("wallet_import", rpc.WalletImportParam{PrivateKey: key, Pin: pin}, &created); err != nil {
		fatal("%v", err)
	}
	fmt.Printf("Key ID:  %s\n", created.KeyID)
	fmt.Printf("Address: %s\n", created.Address)
}

func cmdList(client *rpcclient.Client) {
	var wallets []rpc.WalletResult
	if err := client.Call("wallet_list", nil, &wallets); err != nil {
		fatal("%v", err)
	}
	if len(wallets) == 0 {
		fmt.Println("No wallets.")
		return
	}
	for _, w := range wallets {
		fmt.Printf("%s (%s", w.KeyID, w.Kind)
		if w.BasePath != "" {
			fmt.Printf(", %s", w.BasePath)
		}
		fmt.Println(")")
		for _, a := range w.Accounts {
			fmt.Printf("  [%d] %s\n", a.Index, a.Address)
		}
	}
}

func cmdAccounts(client *rpcclient.Client, args []string) {
	if len(args) != 1 {
		fatal("usage: accounts <key-id>")
	}
	var accounts []rpc.AccountResult
	if err := client.Call("wallet_accounts", rpc.KeyParam{KeyID: args[0]}, &accounts); err != nil {
		fatal("%v", err)
	}
	for _, a := range accounts {
		fmt.Printf("[%d] %s\n", a.Index, a.Address)
	}
}

func cmdNewAccount(client *rpcclient.Client, args []string) {
	if len(args) != 1 {
		fatal("usage: new-account <key-id>")
	}
	var account rpc.AccountResult
	if err := client.Call("wallet_newAccount", rpc.KeyParam{KeyID: args[0]}, &account); err != nil {
		fatal("%v", err)
	}
	fmt.Printf("[%d] %s\n", account.Index, account.Address)
}

func cmdRemoveAccount(client *rpcclient.Client, args []string) {
	if len(args) != 2 {
		fatal("usage: remove-account <key-id> <address>")
	}
	var removed bool
	err := client.Call("wallet_removeAccount", rpc.AccountParam{KeyID: args[0], Address: args[1]}, &removed)
	if err != nil {
		fatal("%v", err)
	}
	if removed {
		fmt.Println("Account removed.")
	} else {
		fmt.Println("No such account, nothing removed.")
	}
}

func cmdRemove(client *rpcclient.Client, args []string) {
	if len(args) != 1 {
		fatal("usage: remove <key-id>")
	}
	if err := client.Call("wallet_remove", rpc.KeyParam{KeyID: args[0]}, nil); err != nil {
		fatal("%v", err)
	}
	fmt.Println("Wallet removed.")
}

func cmdSecret(client *rpcclient.Client, args []string) {
	if len(args) != 1 {
		fatal("usage: secret <key-id>")
	}
	pin := readPin("PIN")

	var result struct {
		Secret string `json:"secret"`
	}
	if err := client.Call("wallet_getSecret", rpc.SecretParam{KeyID: args[0], Pin: pin}, &result); err != nil {
		fatal("%v", err)
	}
	fmt.Println(result.Secret)
}

func cmdSign(client *rpcclient.Client, args []string) {
	if len(args) != 3 {
		fatal("usage: sign <key-id> <index> <message>")
	}
	index, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		fatal("invalid account index %q", args[1])
	}
	pin := readPin("PIN")

	var sig rpc.SignResult
	err = client.Call("wallet_signMessage", rpc.SignMessageParam{
		KeyID:   args[0],
		Index:   uint32(index),
		Message: args[2],
		Pin:     pin,
	}, &sig)
	if err != nil {
		fatal("%v", err)
	}
	fmt.Println(sig.Signature)
}

func cmdPending(client *rpcclient.Client) {
	var pending []txhub.PendingTx
	if err := client.Call("txhub_pending", map[string]string{}, &pending); err != nil {
		fatal("%v", err)
	}
	if len(pending) == 0 {
		fmt.Println("No pending transactions.")
		return
	}
	printJSON(pending)
}
