package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/baileyhollabaugh/tokenvibes/crypto"
)

// OpType identifies the kind of state transition an operation performs.
type OpType string

const (
	OpCreateToken      OpType = "create_token"
	OpMintToken        OpType = "mint_token"
	OpTransfer         OpType = "transfer"
	OpOpenSale         OpType = "open_sale"
	OpPurchase         OpType = "purchase"
	OpWithdrawProceeds OpType = "withdraw_proceeds"
	OpCancelSale       OpType = "cancel_sale"
)

// Operation is the atomic unit of work submitted to the ledger.
// From holds the caller's full hex-encoded ed25519 public key.
// ChainID pins the operation to one network so it cannot be replayed on
// another. Signature covers all fields except Signature itself.
type Operation struct {
	ID        string          `json:"id"`
	ChainID   string          `json:"chain_id"`
	Type      OpType          `json:"type"`
	From      string          `json:"from"` // hex-encoded ed25519 public key
	Nonce     uint64          `json:"nonce"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

// signingBody holds the fields that are covered by the signature.
type signingBody struct {
	ChainID   string          `json:"chain_id"`
	Type      OpType          `json:"type"`
	From      string          `json:"from"`
	Nonce     uint64          `json:"nonce"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Hash returns a deterministic hash of the operation (sans Signature).
// Returns an empty string if marshalling fails (which cannot happen in
// practice).
func (op *Operation) Hash() string {
	body := signingBody{
		ChainID:   op.ChainID,
		Type:      op.Type,
		From:      op.From,
		Nonce:     op.Nonce,
		Timestamp: op.Timestamp,
		Payload:   op.Payload,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return crypto.Hash(data)
}

// Sign computes the signature and sets ID.
func (op *Operation) Sign(priv crypto.PrivateKey) {
	hash := op.Hash()
	op.Signature = crypto.Sign(priv, []byte(hash))
	op.ID = hash
}

// Verify checks the signature and that From is a valid public key.
func (op *Operation) Verify() error {
	if op.From == "" {
		return errors.New("missing from field")
	}
	pub, err := crypto.PubKeyFromHex(op.From)
	if err != nil {
		return fmt.Errorf("invalid from (must be ed25519 pubkey hex): %w", err)
	}
	return crypto.Verify(pub, []byte(op.Hash()), op.Signature)
}

// NewOperation creates an unsigned operation with the current timestamp.
func NewOperation(chainID string, typ OpType, from string, nonce uint64, payload any) (*Operation, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Operation{
		ChainID:   chainID,
		Type:      typ,
		From:      from,
		Nonce:     nonce,
		Timestamp: time.Now().UnixNano(),
		Payload:   raw,
	}, nil
}

// ---- Payload types ----

// CreateTokenPayload registers a new fungible token and credits the
// full initial supply to the creator.
type CreateTokenPayload struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
	Supply      uint64 `json:"supply"` // base units
	MetadataURI string `json:"metadata_uri,omitempty"`
}

// MintTokenPayload issues additional supply. Only the token authority
// may mint.
type MintTokenPayload struct {
	TokenID string `json:"token_id"`
	To      string `json:"to"` // recipient address; empty → caller
	Amount  uint64 `json:"amount"`
}

// TransferPayload moves tokens between accounts.
type TransferPayload struct {
	TokenID string `json:"token_id"`
	To      string `json:"to"`
	Amount  uint64 `json:"amount"`
}

// OpenSalePayload opens an escrowed sale of the caller's tokens.
type OpenSalePayload struct {
	SaleToken     string `json:"sale_token"`
	ProceedsToken string `json:"proceeds_token"`
	UnitPrice     uint64 `json:"unit_price"` // proceeds base units per sale unit
	Quantity      uint64 `json:"quantity"`   // sale-token base units to escrow
}

// PurchasePayload buys part or all of a sale's remaining inventory.
type PurchasePayload struct {
	SaleID   string `json:"sale_id"`
	Quantity uint64 `json:"quantity"`
}

// WithdrawProceedsPayload drains the sale's accumulated payments to the
// seller.
type WithdrawProceedsPayload struct {
	SaleID string `json:"sale_id"`
}

// CancelSalePayload returns unsold inventory to the seller and closes
// the sale for further purchases.
type CancelSalePayload struct {
	SaleID string `json:"sale_id"`
}
