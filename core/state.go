package core

// Account holds per-token balances and a replay-protection nonce.
// Address is the hex-encoded ed25519 public key for user accounts, or a
// derived custody address for accounts controlled by a sale.
//
// Owner is the address whose authority is required to move funds out of
// this account. Empty means self-owned (the usual case for user
// accounts); custody accounts are created with Owner set to the sale ID
// so only the sale ledger itself can sign them out.
type Account struct {
	Address  string            `json:"address"`
	Owner    string            `json:"owner,omitempty"`
	Nonce    uint64            `json:"nonce"`
	Balances map[string]uint64 `json:"balances,omitempty"` // token ID → amount
}

// Balance returns the account's balance of the given token.
func (a *Account) Balance(tokenID string) uint64 {
	return a.Balances[tokenID]
}

// SetBalance records the account's balance of the given token, lazily
// allocating the balance map.
func (a *Account) SetBalance(tokenID string, amount uint64) {
	if a.Balances == nil {
		a.Balances = make(map[string]uint64)
	}
	a.Balances[tokenID] = amount
}

// Authority returns the address allowed to move funds out of the account.
func (a *Account) Authority() string {
	if a.Owner != "" {
		return a.Owner
	}
	return a.Address
}

// Token is a fungible asset registered on the ledger.
// Amounts everywhere are raw base units; Decimals is display metadata
// only, the ledger never scales.
type Token struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
	Supply      uint64 `json:"supply"`
	Authority   string `json:"authority"` // pubkey hex allowed to mint more
	MetadataURI string `json:"metadata_uri,omitempty"`
	CreatedAt   int64  `json:"created_at"`
}

// Sale is an escrow-mediated token sale: a seller's inventory of
// SaleToken sits in a custody account owned by the sale itself, and
// buyers pay into a second custody account in ProceedsToken at
// UnitPrice per unit.
//
// Seller, SaleToken, ProceedsToken, UnitPrice, InventoryTotal and the
// two custody addresses never change after open. InventoryRemaining is
// non-increasing except that cancellation forces it to zero.
type Sale struct {
	ID                 string `json:"id"`
	Seller             string `json:"seller"` // pubkey hex
	SaleToken          string `json:"sale_token"`
	ProceedsToken      string `json:"proceeds_token"`
	UnitPrice          uint64 `json:"unit_price"` // ProceedsToken base units per SaleToken unit
	InventoryRemaining uint64 `json:"inventory_remaining"`
	InventoryTotal     uint64 `json:"inventory_total"`
	CustodySale        string `json:"custody_sale"`     // escrow for unsold inventory
	CustodyProceeds    string `json:"custody_proceeds"` // escrow for accumulated payments
	Cancelled          bool   `json:"cancelled"`
	CreatedAt          int64  `json:"created_at"`
}

// State is the persistent ledger state interface. Implementations must
// be snapshot-able so the host can roll back failed operations.
type State interface {
	// Accounts
	GetAccount(address string) (*Account, error)
	SetAccount(account *Account) error

	// Tokens
	GetToken(id string) (*Token, error)
	SetToken(t *Token) error

	// Sales
	GetSale(id string) (*Sale, error)
	SetSale(s *Sale) error

	// Snapshot / rollback / commit
	Snapshot() (int, error)
	RevertToSnapshot(id int) error
	// ComputeRoot returns the deterministic state root from the current
	// write buffer without flushing.
	ComputeRoot() string
	// Commit flushes the write buffer to the underlying DB and clears it.
	Commit() error
}
