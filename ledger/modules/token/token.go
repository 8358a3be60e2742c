// Package token implements the fungible-token operations and the
// balance-movement primitive the rest of the ledger builds on.
package token

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/baileyhollabaugh/tokenvibes/core"
	"github.com/baileyhollabaugh/tokenvibes/crypto"
	"github.com/baileyhollabaugh/tokenvibes/events"
	"github.com/baileyhollabaugh/tokenvibes/ledger"
)

// maxDecimals caps display decimals for created tokens.
const maxDecimals = 9

func init() {
	ledger.Register(core.OpCreateToken, handleCreateToken)
	ledger.Register(core.OpMintToken, handleMintToken)
	ledger.Register(core.OpTransfer, handleTransfer)
}

// Move transfers amount of tokenID from one account to another.
// authority must match the source account's owner: its own address for
// self-owned accounts, or the sale ID for custody accounts. Fails, with
// nothing moved, if the token is unknown, the source balance is
// insufficient, the authority does not match, or crediting the
// destination would overflow. All failures wrap core.ErrTransferFailed.
//
// Callers rely on the host snapshot for atomicity across multiple
// moves; a single Move mutates no state on failure.
func Move(st core.State, tokenID, from, to string, amount uint64, authority string) error {
	if _, err := st.GetToken(tokenID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("%w: unknown token %q", core.ErrTransferFailed, tokenID)
		}
		return err
	}

	src, err := st.GetAccount(from)
	if err != nil {
		return err
	}
	if src.Authority() != authority {
		return fmt.Errorf("%w: %s holds no authority over account %s",
			core.ErrTransferFailed, authority, from)
	}
	bal := src.Balance(tokenID)
	if bal < amount {
		return fmt.Errorf("%w: insufficient balance of %s in %s: have %d need %d",
			core.ErrTransferFailed, tokenID, from, bal, amount)
	}
	if amount == 0 || from == to {
		return nil
	}

	src.SetBalance(tokenID, bal-amount)
	if err := st.SetAccount(src); err != nil {
		return err
	}

	dst, err := st.GetAccount(to)
	if err != nil {
		return err
	}
	credited, err := core.CheckedAdd(dst.Balance(tokenID), amount)
	if err != nil {
		return fmt.Errorf("%w: crediting %s: %w", core.ErrTransferFailed, to, err)
	}
	dst.SetBalance(tokenID, credited)
	return st.SetAccount(dst)
}

func handleCreateToken(ctx *ledger.Context, payload json.RawMessage) error {
	var p core.CreateTokenPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode create_token payload: %w", err)
	}
	if p.Name == "" || p.Symbol == "" {
		return errors.New("token name and symbol required")
	}
	if p.Decimals > maxDecimals {
		return fmt.Errorf("decimals must be <= %d, got %d", maxDecimals, p.Decimals)
	}

	// Deterministic token ID: hash of op ID + symbol.
	tokenID := crypto.Hash([]byte(ctx.Op.ID + ":token:" + p.Symbol))

	t := &core.Token{
		ID:          tokenID,
		Name:        p.Name,
		Symbol:      p.Symbol,
		Decimals:    p.Decimals,
		Supply:      p.Supply,
		Authority:   ctx.Op.From,
		MetadataURI: p.MetadataURI,
		CreatedAt:   ctx.Timestamp,
	}
	if err := ctx.State.SetToken(t); err != nil {
		return err
	}

	if p.Supply > 0 {
		creator, err := ctx.State.GetAccount(ctx.Op.From)
		if err != nil {
			return err
		}
		credited, err := core.CheckedAdd(creator.Balance(tokenID), p.Supply)
		if err != nil {
			return err
		}
		creator.SetBalance(tokenID, credited)
		if err := ctx.State.SetAccount(creator); err != nil {
			return err
		}
	}

	ctx.Emit(events.Event{
		Type: events.EventTokenCreated,
		OpID: ctx.Op.ID,
		Seq:  ctx.Seq,
		Data: map[string]any{
			"token_id": tokenID,
			"symbol":   p.Symbol,
			"supply":   p.Supply,
			"creator":  ctx.Op.From,
		},
	})
	return nil
}

func handleMintToken(ctx *ledger.Context, payload json.RawMessage) error {
	var p core.MintTokenPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode mint_token payload: %w", err)
	}
	if p.Amount == 0 {
		return errors.New("mint amount must be > 0")
	}

	t, err := ctx.State.GetToken(p.TokenID)
	if err != nil {
		return fmt.Errorf("token %q not found: %w", p.TokenID, err)
	}
	if t.Authority != ctx.Op.From {
		return fmt.Errorf("%w: only the token authority can mint", core.ErrUnauthorized)
	}

	to := p.To
	if to == "" {
		to = ctx.Op.From
	}

	supply, err := core.CheckedAdd(t.Supply, p.Amount)
	if err != nil {
		return err
	}
	t.Supply = supply
	if err := ctx.State.SetToken(t); err != nil {
		return err
	}

	recipient, err := ctx.State.GetAccount(to)
	if err != nil {
		return err
	}
	credited, err := core.CheckedAdd(recipient.Balance(p.TokenID), p.Amount)
	if err != nil {
		return err
	}
	recipient.SetBalance(p.TokenID, credited)
	if err := ctx.State.SetAccount(recipient); err != nil {
		return err
	}

	ctx.Emit(events.Event{
		Type: events.EventTokenMinted,
		OpID: ctx.Op.ID,
		Seq:  ctx.Seq,
		Data: map[string]any{"token_id": p.TokenID, "to": to, "amount": p.Amount},
	})
	return nil
}

func handleTransfer(ctx *ledger.Context, payload json.RawMessage) error {
	var p core.TransferPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode transfer payload: %w", err)
	}
	if p.Amount == 0 {
		return errors.New("transfer amount must be > 0")
	}
	if p.To == "" {
		return errors.New("transfer to address required")
	}

	if err := Move(ctx.State, p.TokenID, ctx.Op.From, p.To, p.Amount, ctx.Op.From); err != nil {
		return err
	}

	ctx.Emit(events.Event{
		Type: events.EventTokenTransfer,
		OpID: ctx.Op.ID,
		Seq:  ctx.Seq,
		Data: map[string]any{
			"token_id": p.TokenID,
			"from":     ctx.Op.From,
			"to":       p.To,
			"amount":   p.Amount,
		},
	})
	return nil
}
