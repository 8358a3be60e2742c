package sale

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baileyhollabaugh/tokenvibes/core"
	"github.com/baileyhollabaugh/tokenvibes/internal/testutil"
	"github.com/baileyhollabaugh/tokenvibes/ledger"
)

const (
	gameToken = "tok-game"
	cashToken = "tok-cash"
)

func newCtx(t *testing.T, st core.State, from string, opID string) *ledger.Context {
	t.Helper()
	return &ledger.Context{
		State:     st,
		Op:        &core.Operation{ID: opID, From: from},
		Seq:       1,
		Timestamp: 1_700_000_000_000_000_000,
	}
}

func mustPayload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

// newMarket seeds a state with the two test tokens, a funded seller and
// a funded buyer.
func newMarket(t *testing.T) core.State {
	t.Helper()
	st := testutil.NewStateDB()
	require.NoError(t, st.SetToken(&core.Token{ID: gameToken, Name: "Game", Symbol: "GAME", Supply: 1_000_000}))
	require.NoError(t, st.SetToken(&core.Token{ID: cashToken, Name: "Cash", Symbol: "CASH", Supply: 1_000_000}))
	fund(t, st, "seller", gameToken, 1000)
	fund(t, st, "buyer", cashToken, 10_000)
	return st
}

func fund(t *testing.T, st core.State, addr, tokenID string, amount uint64) {
	t.Helper()
	acc, err := st.GetAccount(addr)
	require.NoError(t, err)
	acc.SetBalance(tokenID, amount)
	require.NoError(t, st.SetAccount(acc))
}

func balance(t *testing.T, st core.State, addr, tokenID string) uint64 {
	t.Helper()
	acc, err := st.GetAccount(addr)
	require.NoError(t, err)
	return acc.Balance(tokenID)
}

func openSale(t *testing.T, st core.State, seller string, unitPrice, quantity uint64) *core.Sale {
	t.Helper()
	ctx := newCtx(t, st, seller, "op-open-"+seller)
	err := handleOpenSale(ctx, mustPayload(t, core.OpenSalePayload{
		SaleToken:     gameToken,
		ProceedsToken: cashToken,
		UnitPrice:     unitPrice,
		Quantity:      quantity,
	}))
	require.NoError(t, err)
	s, err := st.GetSale(ID(seller, gameToken))
	require.NoError(t, err)
	return s
}

func buy(t *testing.T, st core.State, buyer, saleID string, quantity uint64) error {
	t.Helper()
	ctx := newCtx(t, st, buyer, "op-buy")
	return handlePurchase(ctx, mustPayload(t, core.PurchasePayload{SaleID: saleID, Quantity: quantity}))
}

func TestOpenSaleValidation(t *testing.T) {
	st := newMarket(t)
	ctx := newCtx(t, st, "seller", "op-1")

	cases := []struct {
		name    string
		payload core.OpenSalePayload
	}{
		{"zero price", core.OpenSalePayload{SaleToken: gameToken, ProceedsToken: cashToken, Quantity: 10}},
		{"zero quantity", core.OpenSalePayload{SaleToken: gameToken, ProceedsToken: cashToken, UnitPrice: 5}},
		{"identical tokens", core.OpenSalePayload{SaleToken: gameToken, ProceedsToken: gameToken, UnitPrice: 5, Quantity: 10}},
		{"unknown proceeds token", core.OpenSalePayload{SaleToken: gameToken, ProceedsToken: "tok-nope", UnitPrice: 5, Quantity: 10}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := handleOpenSale(ctx, mustPayload(t, tc.payload))
			assert.ErrorIs(t, err, core.ErrInvalidTerms)
		})
	}
}

func TestOpenSaleEscrowsInventory(t *testing.T) {
	st := newMarket(t)
	s := openSale(t, st, "seller", 10, 100)

	assert.Equal(t, "seller", s.Seller)
	assert.Equal(t, uint64(10), s.UnitPrice)
	assert.Equal(t, uint64(100), s.InventoryRemaining)
	assert.Equal(t, uint64(100), s.InventoryTotal)
	assert.False(t, s.Cancelled)

	assert.Equal(t, uint64(900), balance(t, st, "seller", gameToken))
	assert.Equal(t, uint64(100), balance(t, st, s.CustodySale, gameToken))

	// Escrow accounts answer to the sale, not the seller.
	for _, addr := range []string{s.CustodySale, s.CustodyProceeds} {
		acc, err := st.GetAccount(addr)
		require.NoError(t, err)
		assert.Equal(t, s.ID, acc.Owner)
	}
}

func TestOpenSaleInsufficientBalance(t *testing.T) {
	st := newMarket(t)
	ctx := newCtx(t, st, "seller", "op-1")
	err := handleOpenSale(ctx, mustPayload(t, core.OpenSalePayload{
		SaleToken:     gameToken,
		ProceedsToken: cashToken,
		UnitPrice:     10,
		Quantity:      1001,
	}))
	assert.ErrorIs(t, err, core.ErrTransferFailed)
}

func TestOpenSaleOncePerPair(t *testing.T) {
	st := newMarket(t)
	openSale(t, st, "seller", 10, 100)

	ctx := newCtx(t, st, "seller", "op-2")
	err := handleOpenSale(ctx, mustPayload(t, core.OpenSalePayload{
		SaleToken:     gameToken,
		ProceedsToken: cashToken,
		UnitPrice:     20,
		Quantity:      50,
	}))
	assert.ErrorIs(t, err, core.ErrSaleExists)

	// A different seller of the same token is a different sale.
	fund(t, st, "seller2", gameToken, 100)
	ctx = newCtx(t, st, "seller2", "op-3")
	err = handleOpenSale(ctx, mustPayload(t, core.OpenSalePayload{
		SaleToken:     gameToken,
		ProceedsToken: cashToken,
		UnitPrice:     20,
		Quantity:      50,
	}))
	require.NoError(t, err)
}

func TestPurchase(t *testing.T) {
	st := newMarket(t)
	s := openSale(t, st, "seller", 10, 100)

	require.NoError(t, buy(t, st, "buyer", s.ID, 30))

	assert.Equal(t, uint64(30), balance(t, st, "buyer", gameToken))
	assert.Equal(t, uint64(10_000-300), balance(t, st, "buyer", cashToken))
	assert.Equal(t, uint64(70), balance(t, st, s.CustodySale, gameToken))
	assert.Equal(t, uint64(300), balance(t, st, s.CustodyProceeds, cashToken))

	s, err := st.GetSale(s.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(70), s.InventoryRemaining)
	assert.Equal(t, uint64(100), s.InventoryTotal, "total never changes")
}

func TestPurchaseExhaustsInventory(t *testing.T) {
	st := newMarket(t)
	s := openSale(t, st, "seller", 10, 100)

	require.NoError(t, buy(t, st, "buyer", s.ID, 100))

	err := buy(t, st, "buyer", s.ID, 1)
	assert.ErrorIs(t, err, core.ErrInsufficientInventory)
}

func TestPurchaseValidation(t *testing.T) {
	st := newMarket(t)
	s := openSale(t, st, "seller", 10, 100)

	err := buy(t, st, "buyer", s.ID, 0)
	assert.ErrorIs(t, err, core.ErrInvalidTerms)

	err = buy(t, st, "buyer", "no-such-sale", 5)
	assert.ErrorIs(t, err, core.ErrNotFound)

	err = buy(t, st, "buyer", s.ID, 101)
	assert.ErrorIs(t, err, core.ErrInsufficientInventory)
	assert.Contains(t, err.Error(), "requested 101, remaining 100")
}

func TestPurchaseCostOverflow(t *testing.T) {
	st := newMarket(t)
	fund(t, st, "seller", gameToken, 1000)
	ctx := newCtx(t, st, "seller", "op-open")
	require.NoError(t, handleOpenSale(ctx, mustPayload(t, core.OpenSalePayload{
		SaleToken:     gameToken,
		ProceedsToken: cashToken,
		UnitPrice:     math.MaxUint64 / 2,
		Quantity:      1000,
	})))
	s, err := st.GetSale(ID("seller", gameToken))
	require.NoError(t, err)

	err = buy(t, st, "buyer", s.ID, 3)
	assert.ErrorIs(t, err, core.ErrOverflow)
}

func TestPurchaseBuyerCannotPay(t *testing.T) {
	st := newMarket(t)
	s := openSale(t, st, "seller", 10, 100)

	err := buy(t, st, "broke", s.ID, 1)
	assert.ErrorIs(t, err, core.ErrTransferFailed)

	// Inventory untouched.
	s, getErr := st.GetSale(s.ID)
	require.NoError(t, getErr)
	assert.Equal(t, uint64(100), s.InventoryRemaining)
}

func TestSplitEqualsBulk(t *testing.T) {
	bulk := newMarket(t)
	sBulk := openSale(t, bulk, "seller", 7, 60)
	require.NoError(t, buy(t, bulk, "buyer", sBulk.ID, 60))

	split := newMarket(t)
	sSplit := openSale(t, split, "seller", 7, 60)
	for _, q := range []uint64{25, 25, 10} {
		require.NoError(t, buy(t, split, "buyer", sSplit.ID, q))
	}

	assert.Equal(t,
		balance(t, bulk, sBulk.CustodyProceeds, cashToken),
		balance(t, split, sSplit.CustodyProceeds, cashToken))
	assert.Equal(t,
		balance(t, bulk, "buyer", gameToken),
		balance(t, split, "buyer", gameToken))
	assert.Equal(t,
		balance(t, bulk, "buyer", cashToken),
		balance(t, split, "buyer", cashToken))
}

func TestWithdrawProceeds(t *testing.T) {
	st := newMarket(t)
	s := openSale(t, st, "seller", 10, 100)
	require.NoError(t, buy(t, st, "buyer", s.ID, 30))

	ctx := newCtx(t, st, "seller", "op-wd")
	require.NoError(t, handleWithdrawProceeds(ctx, mustPayload(t, core.WithdrawProceedsPayload{SaleID: s.ID})))

	assert.Equal(t, uint64(300), balance(t, st, "seller", cashToken))
	assert.Equal(t, uint64(0), balance(t, st, s.CustodyProceeds, cashToken))

	// Withdrawing again with nothing accrued is a no-op, not an error.
	ctx = newCtx(t, st, "seller", "op-wd2")
	require.NoError(t, handleWithdrawProceeds(ctx, mustPayload(t, core.WithdrawProceedsPayload{SaleID: s.ID})))
	assert.Equal(t, uint64(300), balance(t, st, "seller", cashToken))
}

func TestWithdrawRequiresSeller(t *testing.T) {
	st := newMarket(t)
	s := openSale(t, st, "seller", 10, 100)
	require.NoError(t, buy(t, st, "buyer", s.ID, 30))

	ctx := newCtx(t, st, "buyer", "op-wd")
	err := handleWithdrawProceeds(ctx, mustPayload(t, core.WithdrawProceedsPayload{SaleID: s.ID}))
	assert.ErrorIs(t, err, core.ErrUnauthorized)
	assert.Equal(t, uint64(300), balance(t, st, s.CustodyProceeds, cashToken))
}

func TestCancelSale(t *testing.T) {
	st := newMarket(t)
	s := openSale(t, st, "seller", 10, 100)
	require.NoError(t, buy(t, st, "buyer", s.ID, 30))

	ctx := newCtx(t, st, "seller", "op-cancel")
	require.NoError(t, handleCancelSale(ctx, mustPayload(t, core.CancelSalePayload{SaleID: s.ID})))

	// Unsold inventory comes back; sold units stay with the buyer.
	assert.Equal(t, uint64(970), balance(t, st, "seller", gameToken))
	assert.Equal(t, uint64(0), balance(t, st, s.CustodySale, gameToken))
	assert.Equal(t, uint64(30), balance(t, st, "buyer", gameToken))

	s, err := st.GetSale(s.ID)
	require.NoError(t, err)
	assert.True(t, s.Cancelled)
	assert.Equal(t, uint64(0), s.InventoryRemaining)

	// No more purchases.
	err = buy(t, st, "buyer", s.ID, 1)
	assert.ErrorIs(t, err, core.ErrInsufficientInventory)

	// Proceeds remain withdrawable after cancellation.
	ctx = newCtx(t, st, "seller", "op-wd")
	require.NoError(t, handleWithdrawProceeds(ctx, mustPayload(t, core.WithdrawProceedsPayload{SaleID: s.ID})))
	assert.Equal(t, uint64(300), balance(t, st, "seller", cashToken))
}

func TestCancelRequiresSeller(t *testing.T) {
	st := newMarket(t)
	s := openSale(t, st, "seller", 10, 100)

	ctx := newCtx(t, st, "buyer", "op-cancel")
	err := handleCancelSale(ctx, mustPayload(t, core.CancelSalePayload{SaleID: s.ID}))
	assert.ErrorIs(t, err, core.ErrUnauthorized)
	assert.Equal(t, uint64(100), balance(t, st, s.CustodySale, gameToken))
}

func TestCancelEmptySale(t *testing.T) {
	st := newMarket(t)
	s := openSale(t, st, "seller", 10, 100)
	require.NoError(t, buy(t, st, "buyer", s.ID, 100))

	// Nothing left in escrow; cancel still closes the record cleanly.
	ctx := newCtx(t, st, "seller", "op-cancel")
	require.NoError(t, handleCancelSale(ctx, mustPayload(t, core.CancelSalePayload{SaleID: s.ID})))
	assert.Equal(t, uint64(900), balance(t, st, "seller", gameToken))

	s, err := st.GetSale(s.ID)
	require.NoError(t, err)
	assert.True(t, s.Cancelled)
}

func TestDeterministicIDs(t *testing.T) {
	assert.Equal(t, ID("a", "t"), ID("a", "t"))
	assert.NotEqual(t, ID("a", "t"), ID("b", "t"))
	assert.NotEqual(t, ID("a", "t"), ID("a", "u"))
	assert.NotEqual(t,
		custodyAddress("s", gameToken),
		custodyAddress("s", cashToken))
}
