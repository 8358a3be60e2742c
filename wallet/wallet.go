package wallet

import (
	"github.com/baileyhollabaugh/tokenvibes/core"
	"github.com/baileyhollabaugh/tokenvibes/crypto"
)

// Wallet holds a key pair and provides operation-building helpers.
type Wallet struct {
	priv crypto.PrivateKey
	pub  crypto.PublicKey
}

// New creates a Wallet from an existing private key.
func New(priv crypto.PrivateKey) *Wallet {
	return &Wallet{priv: priv, pub: priv.Public()}
}

// Generate creates a Wallet with a freshly generated key pair.
func Generate() (*Wallet, error) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return New(priv), nil
}

// PrivKey returns the raw private key (handle with care).
func (w *Wallet) PrivKey() crypto.PrivateKey {
	return w.priv
}

// PubKey returns the hex-encoded ed25519 public key, which is the
// wallet's ledger address.
func (w *Wallet) PubKey() string {
	return w.pub.Hex()
}

// NewOp creates a signed operation. chainID must match the target
// ledger; nonce must match the account's current nonce.
func (w *Wallet) NewOp(chainID string, typ core.OpType, nonce uint64, payload any) (*core.Operation, error) {
	op, err := core.NewOperation(chainID, typ, w.pub.Hex(), nonce, payload)
	if err != nil {
		return nil, err
	}
	op.Sign(w.priv)
	return op, nil
}

// CreateToken creates a signed create_token operation.
func (w *Wallet) CreateToken(chainID string, nonce uint64, name, symbol string, decimals uint8, supply uint64, metadataURI string) (*core.Operation, error) {
	return w.NewOp(chainID, core.OpCreateToken, nonce, core.CreateTokenPayload{
		Name:        name,
		Symbol:      symbol,
		Decimals:    decimals,
		Supply:      supply,
		MetadataURI: metadataURI,
	})
}

// MintToken creates a signed mint_token operation. An empty to mints to
// the wallet's own address.
func (w *Wallet) MintToken(chainID string, nonce uint64, tokenID, to string, amount uint64) (*core.Operation, error) {
	return w.NewOp(chainID, core.OpMintToken, nonce, core.MintTokenPayload{
		TokenID: tokenID,
		To:      to,
		Amount:  amount,
	})
}

// Transfer creates a signed transfer operation.
func (w *Wallet) Transfer(chainID string, nonce uint64, tokenID, to string, amount uint64) (*core.Operation, error) {
	return w.NewOp(chainID, core.OpTransfer, nonce, core.TransferPayload{
		TokenID: tokenID,
		To:      to,
		Amount:  amount,
	})
}

// OpenSale creates a signed open_sale operation escrowing quantity of
// saleToken at unitPrice per unit, payable in proceedsToken.
func (w *Wallet) OpenSale(chainID string, nonce uint64, saleToken, proceedsToken string, unitPrice, quantity uint64) (*core.Operation, error) {
	return w.NewOp(chainID, core.OpOpenSale, nonce, core.OpenSalePayload{
		SaleToken:     saleToken,
		ProceedsToken: proceedsToken,
		UnitPrice:     unitPrice,
		Quantity:      quantity,
	})
}

// Purchase creates a signed purchase operation.
func (w *Wallet) Purchase(chainID string, nonce uint64, saleID string, quantity uint64) (*core.Operation, error) {
	return w.NewOp(chainID, core.OpPurchase, nonce, core.PurchasePayload{
		SaleID:   saleID,
		Quantity: quantity,
	})
}

// WithdrawProceeds creates a signed withdraw_proceeds operation.
func (w *Wallet) WithdrawProceeds(chainID string, nonce uint64, saleID string) (*core.Operation, error) {
	return w.NewOp(chainID, core.OpWithdrawProceeds, nonce, core.WithdrawProceedsPayload{SaleID: saleID})
}

// CancelSale creates a signed cancel_sale operation.
func (w *Wallet) CancelSale(chainID string, nonce uint64, saleID string) (*core.Operation, error) {
	return w.NewOp(chainID, core.OpCancelSale, nonce, core.CancelSalePayload{SaleID: saleID})
}
