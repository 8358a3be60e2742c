package core

import "errors"

// ErrNotFound is returned when a requested record does not exist in storage.
var ErrNotFound = errors.New("not found")

// Operation failure kinds. Handlers wrap these with fmt.Errorf("%w: ...")
// so callers can test the kind with errors.Is while still seeing the
// offending values in the message.
var (
	// ErrInsufficientInventory: a purchase asked for more than the sale
	// has left.
	ErrInsufficientInventory = errors.New("insufficient inventory")

	// ErrOverflow: a checked add/mul/sub on a u64 amount would wrap.
	ErrOverflow = errors.New("arithmetic overflow")

	// ErrUnauthorized: the caller is not allowed to perform a
	// seller-only operation, or an authority does not match an account
	// owner.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTransferFailed: the token movement primitive rejected the
	// transfer (unknown token, insufficient balance, bad authority).
	ErrTransferFailed = errors.New("transfer failed")

	// ErrInvalidTerms: open_sale was given degenerate terms (zero
	// price, zero quantity, or identical sale and proceeds tokens).
	ErrInvalidTerms = errors.New("invalid sale terms")

	// ErrSaleExists: the (seller, sale token) pair already has a sale
	// record. Sale records are never deleted, so a pair can sell once.
	ErrSaleExists = errors.New("sale already exists")
)
