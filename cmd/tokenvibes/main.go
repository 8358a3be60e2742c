// Command tokenvibes is a CLI client for the sale-ledger daemon: it
// builds signed operations from a local keystore and submits them over
// JSON-RPC.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/baileyhollabaugh/tokenvibes/core"
	"github.com/baileyhollabaugh/tokenvibes/wallet"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	rpcURL := fs.String("rpc", "http://localhost:8545", "ledger RPC endpoint")
	keyPath := fs.String("key", "tokenvibes.key", "path to keystore file")
	chainID := fs.String("chain", "tokenvibes-dev", "chain ID of the target ledger")

	var err error
	switch cmd {
	case "genkey":
		err = cmdGenKey(fs)
	case "create-token":
		err = cmdCreateToken(fs, rpcURL, keyPath, chainID)
	case "mint":
		err = cmdMint(fs, rpcURL, keyPath, chainID)
	case "transfer":
		err = cmdTransfer(fs, rpcURL, keyPath, chainID)
	case "open-sale":
		err = cmdOpenSale(fs, rpcURL, keyPath, chainID)
	case "buy":
		err = cmdBuy(fs, rpcURL, keyPath, chainID)
	case "withdraw":
		err = cmdWithdraw(fs, rpcURL, keyPath, chainID)
	case "cancel":
		err = cmdCancel(fs, rpcURL, keyPath, chainID)
	case "balance":
		err = cmdBalance(fs, rpcURL)
	case "sale":
		err = cmdQuery(fs, rpcURL, "getSale")
	case "token":
		err = cmdQuery(fs, rpcURL, "getToken")
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: tokenvibes <command> [flags]

commands:
  genkey        generate a keystore file
  create-token  register a new token and mint its supply
  mint          issue additional supply (token authority only)
  transfer      send tokens to another address
  open-sale     escrow tokens for sale at a fixed unit price
  buy           purchase from a sale
  withdraw      drain a sale's proceeds (seller only)
  cancel        cancel a sale and reclaim inventory (seller only)
  balance       show an account's balances and nonce
  sale          show a sale record
  token         show a token record`)
}

func cmdGenKey(fs *flag.FlagSet) error {
	out := fs.String("out", "tokenvibes.key", "output keystore path")
	fs.Parse(os.Args[2:])

	w, err := wallet.Generate()
	if err != nil {
		return err
	}
	if err := wallet.SaveKey(*out, os.Getenv("TOKENVIBES_PASSWORD"), w.PrivKey()); err != nil {
		return err
	}
	fmt.Printf("Address: %s\nSaved to: %s\n", w.PubKey(), *out)
	return nil
}

func cmdCreateToken(fs *flag.FlagSet, rpcURL, keyPath, chainID *string) error {
	name := fs.String("name", "", "token name")
	symbol := fs.String("symbol", "", "token symbol")
	decimals := fs.Uint("decimals", 0, "display decimals")
	supply := fs.Uint64("supply", 0, "initial supply in base units")
	uri := fs.String("metadata-uri", "", "metadata URI")
	fs.Parse(os.Args[2:])

	return signAndSend(*rpcURL, *keyPath, func(w *wallet.Wallet, nonce uint64) (*core.Operation, error) {
		return w.CreateToken(*chainID, nonce, *name, *symbol, uint8(*decimals), *supply, *uri)
	})
}

func cmdMint(fs *flag.FlagSet, rpcURL, keyPath, chainID *string) error {
	tokenID := fs.String("token", "", "token ID")
	to := fs.String("to", "", "recipient address (default: own address)")
	amount := fs.Uint64("amount", 0, "amount in base units")
	fs.Parse(os.Args[2:])

	return signAndSend(*rpcURL, *keyPath, func(w *wallet.Wallet, nonce uint64) (*core.Operation, error) {
		return w.MintToken(*chainID, nonce, *tokenID, *to, *amount)
	})
}

func cmdTransfer(fs *flag.FlagSet, rpcURL, keyPath, chainID *string) error {
	tokenID := fs.String("token", "", "token ID")
	to := fs.String("to", "", "recipient address")
	amount := fs.Uint64("amount", 0, "amount in base units")
	fs.Parse(os.Args[2:])

	return signAndSend(*rpcURL, *keyPath, func(w *wallet.Wallet, nonce uint64) (*core.Operation, error) {
		return w.Transfer(*chainID, nonce, *tokenID, *to, *amount)
	})
}

func cmdOpenSale(fs *flag.FlagSet, rpcURL, keyPath, chainID *string) error {
	saleToken := fs.String("sale-token", "", "token being sold")
	proceedsToken := fs.String("proceeds-token", "", "token accepted as payment")
	price := fs.Uint64("price", 0, "proceeds base units per sale unit")
	qty := fs.Uint64("quantity", 0, "sale-token base units to escrow")
	fs.Parse(os.Args[2:])

	return signAndSend(*rpcURL, *keyPath, func(w *wallet.Wallet, nonce uint64) (*core.Operation, error) {
		return w.OpenSale(*chainID, nonce, *saleToken, *proceedsToken, *price, *qty)
	})
}

func cmdBuy(fs *flag.FlagSet, rpcURL, keyPath, chainID *string) error {
	saleID := fs.String("sale", "", "sale ID")
	qty := fs.Uint64("quantity", 0, "units to buy")
	fs.Parse(os.Args[2:])

	return signAndSend(*rpcURL, *keyPath, func(w *wallet.Wallet, nonce uint64) (*core.Operation, error) {
		return w.Purchase(*chainID, nonce, *saleID, *qty)
	})
}

func cmdWithdraw(fs *flag.FlagSet, rpcURL, keyPath, chainID *string) error {
	saleID := fs.String("sale", "", "sale ID")
	fs.Parse(os.Args[2:])

	return signAndSend(*rpcURL, *keyPath, func(w *wallet.Wallet, nonce uint64) (*core.Operation, error) {
		return w.WithdrawProceeds(*chainID, nonce, *saleID)
	})
}

func cmdCancel(fs *flag.FlagSet, rpcURL, keyPath, chainID *string) error {
	saleID := fs.String("sale", "", "sale ID")
	fs.Parse(os.Args[2:])

	return signAndSend(*rpcURL, *keyPath, func(w *wallet.Wallet, nonce uint64) (*core.Operation, error) {
		return w.CancelSale(*chainID, nonce, *saleID)
	})
}

func cmdBalance(fs *flag.FlagSet, rpcURL *string) error {
	address := fs.String("address", "", "account address")
	token := fs.String("token", "", "optional token ID")
	fs.Parse(os.Args[2:])

	c := newClient(*rpcURL)
	result, err := c.call("getBalance", map[string]string{"address": *address, "token": *token})
	if err != nil {
		return err
	}
	return printJSON(result)
}

func cmdQuery(fs *flag.FlagSet, rpcURL *string, method string) error {
	id := fs.String("id", "", "record ID")
	fs.Parse(os.Args[2:])

	c := newClient(*rpcURL)
	result, err := c.call(method, map[string]string{"id": *id})
	if err != nil {
		return err
	}
	return printJSON(result)
}

// signAndSend loads the keystore, fetches the account nonce, builds the
// operation via build, and submits it.
func signAndSend(rpcURL, keyPath string, build func(w *wallet.Wallet, nonce uint64) (*core.Operation, error)) error {
	priv, err := wallet.LoadKey(keyPath, os.Getenv("TOKENVIBES_PASSWORD"))
	if err != nil {
		return fmt.Errorf("load key: %w", err)
	}
	w := wallet.New(priv)

	c := newClient(rpcURL)
	raw, err := c.call("getBalance", map[string]string{"address": w.PubKey()})
	if err != nil {
		return err
	}
	var acct struct {
		Nonce uint64 `json:"nonce"`
	}
	if err := json.Unmarshal(raw, &acct); err != nil {
		return err
	}

	op, err := build(w, acct.Nonce)
	if err != nil {
		return err
	}
	result, err := c.call("sendOperation", op)
	if err != nil {
		return err
	}
	return printJSON(result)
}

func printJSON(raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return err
	}
	fmt.Println(buf.String())
	return nil
}

// client is a minimal JSON-RPC 2.0 HTTP client.
type client struct {
	url   string
	token string
	hc    *http.Client
}

func newClient(url string) *client {
	return &client{
		url:   url,
		token: os.Getenv("TOKENVIBES_RPC_TOKEN"),
		hc:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *client) call(method string, params any) (json.RawMessage, error) {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	reqBody, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      uuid.NewString(),
		"method":  method,
		"params":  json.RawMessage(rawParams),
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, err
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}
