package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/baileyhollabaugh/tokenvibes/core"
	"github.com/baileyhollabaugh/tokenvibes/indexer"
	"github.com/baileyhollabaugh/tokenvibes/journal"
	"github.com/baileyhollabaugh/tokenvibes/ledger"
)

// Handler holds all dependencies needed to serve RPC methods.
type Handler struct {
	ledger  *ledger.Ledger
	state   core.State
	journal *journal.Journal
	indexer *indexer.Indexer
}

// NewHandler creates an RPC Handler.
func NewHandler(l *ledger.Ledger, state core.State, jrnl *journal.Journal, idx *indexer.Indexer) *Handler {
	return &Handler{ledger: l, state: state, journal: jrnl, indexer: idx}
}

// Dispatch routes an RPC request to the correct method.
func (h *Handler) Dispatch(req Request) Response {
	switch req.Method {
	case "sendOperation":
		return h.sendOperation(req)

	case "getBalance":
		return h.getBalance(req)

	case "getToken":
		return h.getToken(req)

	case "getSale":
		return h.getSale(req)

	case "getSalesBySeller":
		return h.getSalesBySeller(req)

	case "getPurchasesByBuyer":
		return h.getPurchasesByBuyer(req)

	case "getTokensByCreator":
		return h.getTokensByCreator(req)

	case "getOperation":
		return h.getOperation(req)

	case "getSequence":
		return okResponse(req.ID, h.journal.Seq())

	case "getStateRoot":
		return okResponse(req.ID, h.state.ComputeRoot())

	default:
		return errResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
}

// sendOperation applies a signed operation synchronously, so the caller
// gets either a journal receipt or the named failure in one round trip.
func (h *Handler) sendOperation(req Request) Response {
	var op core.Operation
	if err := json.Unmarshal(req.Params, &op); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	entry, err := h.ledger.Apply(&op)
	if err != nil {
		return errResponse(req.ID, CodeOpRejected, err.Error())
	}
	return okResponse(req.ID, map[string]any{"op_id": entry.Op.ID, "seq": entry.Seq})
}

func (h *Handler) getBalance(req Request) Response {
	var params struct {
		Address string `json:"address"`
		Token   string `json:"token"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.Address == "" {
		return errResponse(req.ID, CodeInvalidParams, "address is required")
	}
	acc, err := h.state.GetAccount(params.Address)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	if params.Token != "" {
		return okResponse(req.ID, map[string]any{
			"address": params.Address,
			"token":   params.Token,
			"balance": acc.Balance(params.Token),
			"nonce":   acc.Nonce,
		})
	}
	return okResponse(req.ID, map[string]any{
		"address":  params.Address,
		"balances": acc.Balances,
		"nonce":    acc.Nonce,
	})
}

func (h *Handler) getToken(req Request) Response {
	var params struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.ID == "" {
		return errResponse(req.ID, CodeInvalidParams, "id is required")
	}
	t, err := h.state.GetToken(params.ID)
	if err != nil {
		return errResponse(req.ID, codeForLookup(err), err.Error())
	}
	return okResponse(req.ID, t)
}

func (h *Handler) getSale(req Request) Response {
	var params struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.ID == "" {
		return errResponse(req.ID, CodeInvalidParams, "id is required")
	}
	s, err := h.state.GetSale(params.ID)
	if err != nil {
		return errResponse(req.ID, codeForLookup(err), err.Error())
	}
	return okResponse(req.ID, s)
}

func (h *Handler) getSalesBySeller(req Request) Response {
	var params struct {
		Seller string `json:"seller"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.Seller == "" {
		return errResponse(req.ID, CodeInvalidParams, "seller is required")
	}
	ids, err := h.indexer.GetSalesBySeller(params.Seller)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, ids)
}

func (h *Handler) getPurchasesByBuyer(req Request) Response {
	var params struct {
		Buyer string `json:"buyer"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.Buyer == "" {
		return errResponse(req.ID, CodeInvalidParams, "buyer is required")
	}
	receipts, err := h.indexer.GetPurchasesByBuyer(params.Buyer)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, receipts)
}

func (h *Handler) getTokensByCreator(req Request) Response {
	var params struct {
		Creator string `json:"creator"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.Creator == "" {
		return errResponse(req.ID, CodeInvalidParams, "creator is required")
	}
	ids, err := h.indexer.GetTokensByCreator(params.Creator)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, ids)
}

func (h *Handler) getOperation(req Request) Response {
	var params struct {
		Seq *uint64 `json:"seq"`
		ID  string  `json:"id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}

	var entry *journal.Entry
	var err error
	if params.ID != "" {
		entry, err = h.journal.GetByID(params.ID)
	} else if params.Seq != nil {
		entry, err = h.journal.GetBySeq(*params.Seq)
	} else {
		return errResponse(req.ID, CodeInvalidParams, "seq or id is required")
	}
	if err != nil {
		return errResponse(req.ID, codeForLookup(err), err.Error())
	}
	return okResponse(req.ID, entry)
}

// codeForLookup distinguishes a missing record from a storage fault.
func codeForLookup(err error) int {
	if errors.Is(err, core.ErrNotFound) {
		return CodeNotFound
	}
	return CodeInternalError
}
