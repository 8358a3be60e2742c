// Package indexer maintains secondary indexes over applied operations
// so clients can query sales by seller or purchase history by buyer
// without scanning full state.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/baileyhollabaugh/tokenvibes/core"
	"github.com/baileyhollabaugh/tokenvibes/events"
	"github.com/baileyhollabaugh/tokenvibes/storage"
)

const (
	prefixSellerSales    = "idx:seller:sale:"
	prefixBuyerPurchases = "idx:buyer:purchase:"
	prefixCreatorTokens  = "idx:creator:token:"
)

// PurchaseReceipt summarises one purchase for buyer history queries.
type PurchaseReceipt struct {
	OpID     string `json:"op_id"`
	SaleID   string `json:"sale_id"`
	Quantity uint64 `json:"quantity"`
	Cost     uint64 `json:"cost"`
	Seq      uint64 `json:"seq"`
}

// Indexer subscribes to ledger events and updates lookup tables.
type Indexer struct {
	db      storage.DB
	emitter *events.Emitter
}

// New creates an Indexer backed by db and subscribes to relevant events.
func New(db storage.DB, emitter *events.Emitter) *Indexer {
	idx := &Indexer{db: db, emitter: emitter}
	emitter.Subscribe(events.EventSaleOpened, idx.onSaleOpened)
	emitter.Subscribe(events.EventSalePurchase, idx.onSalePurchase)
	emitter.Subscribe(events.EventTokenCreated, idx.onTokenCreated)
	return idx
}

// GetSalesBySeller returns all sale IDs opened by the given pubkey.
func (idx *Indexer) GetSalesBySeller(seller string) ([]string, error) {
	return idx.getStrings(prefixSellerSales + seller)
}

// GetTokensByCreator returns all token IDs created by the given pubkey.
func (idx *Indexer) GetTokensByCreator(creator string) ([]string, error) {
	return idx.getStrings(prefixCreatorTokens + creator)
}

// GetPurchasesByBuyer returns the buyer's purchase receipts in apply order.
func (idx *Indexer) GetPurchasesByBuyer(buyer string) ([]PurchaseReceipt, error) {
	data, err := idx.db.Get([]byte(prefixBuyerPurchases + buyer))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var receipts []PurchaseReceipt
	if err := json.Unmarshal(data, &receipts); err != nil {
		return nil, fmt.Errorf("indexer unmarshal: %w", err)
	}
	return receipts, nil
}

// ---- event handlers ----

func (idx *Indexer) onSaleOpened(ev events.Event) {
	seller, _ := ev.Data["seller"].(string)
	saleID, _ := ev.Data["sale_id"].(string)
	if seller == "" || saleID == "" {
		return
	}
	_ = idx.appendString(prefixSellerSales+seller, saleID)
}

func (idx *Indexer) onTokenCreated(ev events.Event) {
	creator, _ := ev.Data["creator"].(string)
	tokenID, _ := ev.Data["token_id"].(string)
	if creator == "" || tokenID == "" {
		return
	}
	_ = idx.appendString(prefixCreatorTokens+creator, tokenID)
}

func (idx *Indexer) onSalePurchase(ev events.Event) {
	buyer, _ := ev.Data["buyer"].(string)
	saleID, _ := ev.Data["sale_id"].(string)
	if buyer == "" || saleID == "" {
		return
	}
	receipt := PurchaseReceipt{
		OpID:     ev.OpID,
		SaleID:   saleID,
		Quantity: asUint64(ev.Data["quantity"]),
		Cost:     asUint64(ev.Data["cost"]),
		Seq:      ev.Seq,
	}

	key := prefixBuyerPurchases + buyer
	receipts, err := idx.GetPurchasesByBuyer(buyer)
	if err != nil {
		return
	}
	receipts = append(receipts, receipt)
	data, err := json.Marshal(receipts)
	if err != nil {
		return
	}
	_ = idx.db.Set([]byte(key), data)
}

// asUint64 tolerates both native uint64 (in-process events) and float64
// (events round-tripped through JSON).
func asUint64(v any) uint64 {
	switch n := v.(type) {
	case uint64:
		return n
	case float64:
		return uint64(n)
	default:
		return 0
	}
}

// ---- list helpers ----

func (idx *Indexer) getStrings(key string) ([]string, error) {
	data, err := idx.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("indexer unmarshal: %w", err)
	}
	return ids, nil
}

func (idx *Indexer) appendString(key, value string) error {
	ids, _ := idx.getStrings(key)
	ids = append(ids, value)
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}
