package config

import (
	"fmt"

	"github.com/baileyhollabaugh/tokenvibes/core"
	"github.com/baileyhollabaugh/tokenvibes/crypto"
)

// ApplyGenesis creates the configured genesis tokens and credits their
// owners, then commits. Call only on a fresh ledger (empty journal);
// re-running would double-credit.
//
// Token IDs are derived from the chain ID and symbol, so every fresh
// boot of the same config yields the same IDs.
func ApplyGenesis(state core.State, g GenesisConfig, now int64) error {
	for _, gt := range g.Tokens {
		if gt.Symbol == "" || gt.Owner == "" {
			return fmt.Errorf("genesis token needs symbol and owner (got symbol %q)", gt.Symbol)
		}
		if _, err := crypto.PubKeyFromHex(gt.Owner); err != nil {
			return fmt.Errorf("genesis token %s owner: %w", gt.Symbol, err)
		}

		tokenID := crypto.DeriveAddress("genesis-token", g.ChainID, gt.Symbol)
		t := &core.Token{
			ID:        tokenID,
			Name:      gt.Name,
			Symbol:    gt.Symbol,
			Decimals:  gt.Decimals,
			Supply:    gt.Supply,
			Authority: gt.Owner,
			CreatedAt: now,
		}
		if err := state.SetToken(t); err != nil {
			return err
		}

		if gt.Supply > 0 {
			acc, err := state.GetAccount(gt.Owner)
			if err != nil {
				return err
			}
			credited, err := core.CheckedAdd(acc.Balance(tokenID), gt.Supply)
			if err != nil {
				return fmt.Errorf("genesis token %s: %w", gt.Symbol, err)
			}
			acc.SetBalance(tokenID, credited)
			if err := state.SetAccount(acc); err != nil {
				return err
			}
		}
	}
	return state.Commit()
}
