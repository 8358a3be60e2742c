// Package sale implements the escrow-mediated token sale: a seller
// deposits inventory into a custody account the sale itself controls,
// buyers pay a fixed unit price in a second token, and the seller can
// drain proceeds or cancel at any time.
//
// Every operation here runs inside the host snapshot, so the paired
// transfer-and-bookkeeping mutations are atomic: a buyer can never pay
// without receiving inventory, and inventory never leaves custody
// without the payment being captured.
package sale

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/baileyhollabaugh/tokenvibes/core"
	"github.com/baileyhollabaugh/tokenvibes/crypto"
	"github.com/baileyhollabaugh/tokenvibes/events"
	"github.com/baileyhollabaugh/tokenvibes/ledger"
	"github.com/baileyhollabaugh/tokenvibes/ledger/modules/token"
)

func init() {
	ledger.Register(core.OpOpenSale, handleOpenSale)
	ledger.Register(core.OpPurchase, handlePurchase)
	ledger.Register(core.OpWithdrawProceeds, handleWithdrawProceeds)
	ledger.Register(core.OpCancelSale, handleCancelSale)
}

// ID returns the deterministic sale ID for a (seller, sale token) pair.
// One pair maps to one sale, ever: records are never deleted, so a pair
// that has sold once cannot open again.
func ID(seller, saleToken string) string {
	return crypto.DeriveAddress("sale", seller, saleToken)
}

// custodyAddress derives the address of one of the sale's two escrow
// accounts. The account is owned by the sale ID, not by the seller or
// any buyer; only the ledger, acting as the sale, can move funds out.
func custodyAddress(saleID, tokenID string) string {
	return crypto.DeriveAddress("custody", saleID, tokenID)
}

func handleOpenSale(ctx *ledger.Context, payload json.RawMessage) error {
	var p core.OpenSalePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode open_sale payload: %w", err)
	}
	if p.UnitPrice == 0 {
		return fmt.Errorf("%w: unit price must be > 0", core.ErrInvalidTerms)
	}
	if p.Quantity == 0 {
		return fmt.Errorf("%w: quantity must be > 0", core.ErrInvalidTerms)
	}
	if p.SaleToken == p.ProceedsToken {
		return fmt.Errorf("%w: sale and proceeds token must differ", core.ErrInvalidTerms)
	}
	// The sale token is validated by the deposit transfer below; the
	// proceeds token never moves at open time, so check it here.
	if _, err := ctx.State.GetToken(p.ProceedsToken); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("%w: unknown proceeds token %q", core.ErrInvalidTerms, p.ProceedsToken)
		}
		return err
	}

	seller := ctx.Op.From
	saleID := ID(seller, p.SaleToken)

	// Check the sale doesn't already exist; distinguish DB errors from
	// not-found.
	if _, err := ctx.State.GetSale(saleID); err == nil {
		return fmt.Errorf("%w: seller %s already has a sale of token %s",
			core.ErrSaleExists, seller, p.SaleToken)
	} else if !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("checking sale %q: %w", saleID, err)
	}

	s := &core.Sale{
		ID:                 saleID,
		Seller:             seller,
		SaleToken:          p.SaleToken,
		ProceedsToken:      p.ProceedsToken,
		UnitPrice:          p.UnitPrice,
		InventoryRemaining: p.Quantity,
		InventoryTotal:     p.Quantity,
		CustodySale:        custodyAddress(saleID, p.SaleToken),
		CustodyProceeds:    custodyAddress(saleID, p.ProceedsToken),
		CreatedAt:          ctx.Timestamp,
	}

	// Provision the two escrow accounts under the sale's own authority.
	for _, addr := range []string{s.CustodySale, s.CustodyProceeds} {
		acc, err := ctx.State.GetAccount(addr)
		if err != nil {
			return err
		}
		acc.Owner = saleID
		if err := ctx.State.SetAccount(acc); err != nil {
			return err
		}
	}

	if err := ctx.State.SetSale(s); err != nil {
		return err
	}

	// Exactly one transfer: the full inventory moves from the seller
	// into escrow. If it fails the snapshot unwinds the record too.
	if err := token.Move(ctx.State, p.SaleToken, seller, s.CustodySale, p.Quantity, seller); err != nil {
		return err
	}

	ctx.Emit(events.Event{
		Type: events.EventSaleOpened,
		OpID: ctx.Op.ID,
		Seq:  ctx.Seq,
		Data: map[string]any{
			"sale_id":        saleID,
			"seller":         seller,
			"sale_token":     p.SaleToken,
			"proceeds_token": p.ProceedsToken,
			"unit_price":     p.UnitPrice,
			"quantity":       p.Quantity,
		},
	})
	return nil
}

func handlePurchase(ctx *ledger.Context, payload json.RawMessage) error {
	var p core.PurchasePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode purchase payload: %w", err)
	}
	if p.Quantity == 0 {
		return fmt.Errorf("%w: quantity must be > 0", core.ErrInvalidTerms)
	}

	s, err := ctx.State.GetSale(p.SaleID)
	if err != nil {
		return fmt.Errorf("sale %q not found: %w", p.SaleID, err)
	}
	if p.Quantity > s.InventoryRemaining {
		return fmt.Errorf("%w: requested %d, remaining %d",
			core.ErrInsufficientInventory, p.Quantity, s.InventoryRemaining)
	}

	cost, err := core.CheckedMul(p.Quantity, s.UnitPrice)
	if err != nil {
		return err
	}

	buyer := ctx.Op.From

	// Payment first: cost moves from the buyer into the proceeds escrow,
	// authorized by the buyer.
	if err := token.Move(ctx.State, s.ProceedsToken, buyer, s.CustodyProceeds, cost, buyer); err != nil {
		return err
	}
	// Delivery: inventory moves from escrow to the buyer, authorized by
	// the sale itself.
	if err := token.Move(ctx.State, s.SaleToken, s.CustodySale, buyer, p.Quantity, s.ID); err != nil {
		return err
	}

	// Unreachable given the precondition above; kept as a consistency
	// guard.
	remaining, err := core.CheckedSub(s.InventoryRemaining, p.Quantity)
	if err != nil {
		return err
	}
	s.InventoryRemaining = remaining
	if err := ctx.State.SetSale(s); err != nil {
		return err
	}

	ctx.Emit(events.Event{
		Type: events.EventSalePurchase,
		OpID: ctx.Op.ID,
		Seq:  ctx.Seq,
		Data: map[string]any{
			"sale_id":   s.ID,
			"buyer":     buyer,
			"quantity":  p.Quantity,
			"cost":      cost,
			"remaining": remaining,
		},
	})
	return nil
}

func handleWithdrawProceeds(ctx *ledger.Context, payload json.RawMessage) error {
	var p core.WithdrawProceedsPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode withdraw_proceeds payload: %w", err)
	}

	s, err := ctx.State.GetSale(p.SaleID)
	if err != nil {
		return fmt.Errorf("sale %q not found: %w", p.SaleID, err)
	}
	if ctx.Op.From != s.Seller {
		return fmt.Errorf("%w: only the seller can withdraw proceeds", core.ErrUnauthorized)
	}

	custody, err := ctx.State.GetAccount(s.CustodyProceeds)
	if err != nil {
		return err
	}
	// A zero balance is a legitimate no-op, not an error.
	balance := custody.Balance(s.ProceedsToken)
	if balance > 0 {
		if err := token.Move(ctx.State, s.ProceedsToken, s.CustodyProceeds, s.Seller, balance, s.ID); err != nil {
			return err
		}
	}

	ctx.Emit(events.Event{
		Type: events.EventProceedsWithdrawn,
		OpID: ctx.Op.ID,
		Seq:  ctx.Seq,
		Data: map[string]any{"sale_id": s.ID, "seller": s.Seller, "amount": balance},
	})
	return nil
}

func handleCancelSale(ctx *ledger.Context, payload json.RawMessage) error {
	var p core.CancelSalePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode cancel_sale payload: %w", err)
	}

	s, err := ctx.State.GetSale(p.SaleID)
	if err != nil {
		return fmt.Errorf("sale %q not found: %w", p.SaleID, err)
	}
	if ctx.Op.From != s.Seller {
		return fmt.Errorf("%w: only the seller can cancel the sale", core.ErrUnauthorized)
	}

	custody, err := ctx.State.GetAccount(s.CustodySale)
	if err != nil {
		return err
	}
	returned := custody.Balance(s.SaleToken)
	if returned > 0 {
		if err := token.Move(ctx.State, s.SaleToken, s.CustodySale, s.Seller, returned, s.ID); err != nil {
			return err
		}
	}

	// Zero unconditionally, even if the escrow balance had drifted from
	// the bookkept remainder. Proceeds stay withdrawable afterwards.
	s.InventoryRemaining = 0
	s.Cancelled = true
	if err := ctx.State.SetSale(s); err != nil {
		return err
	}

	ctx.Emit(events.Event{
		Type: events.EventSaleCancelled,
		OpID: ctx.Op.ID,
		Seq:  ctx.Seq,
		Data: map[string]any{"sale_id": s.ID, "seller": s.Seller, "returned": returned},
	})
	return nil
}
