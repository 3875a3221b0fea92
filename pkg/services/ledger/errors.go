package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount     = errors.New("amount must be a positive integer")
	ErrSelfTransfer      = errors.New("cannot transfer to yourself")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// FundsError is returned when a debit exceeds the balance. It matches
// ErrInsufficientFunds with errors.Is.
type FundsError struct {
	UserID    string
	Balance   int64
	Requested int64
}

func (e *FundsError) Error() string {
	return fmt.Sprintf("insufficient funds for user %s: balance %d, requested %d", e.UserID, e.Balance, e.Requested)
}

// Is reports whether target is ErrInsufficientFunds
func (e *FundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}

// TransferError is returned when the credit step of a transfer fails after
// the sender was debited. Compensated tells whether the sender got the money back.
type TransferError struct {
	FromUserID      string
	ToUserID        string
	Amount          int64
	Err             error
	Compensated     bool
	CompensationErr error
}

func (e *TransferError) Error() string {
	if e.Compensated {
		return fmt.Sprintf("transfer %s -> %s of %d failed and was rolled back: %v", e.FromUserID, e.ToUserID, e.Amount, e.Err)
	}
	return fmt.Sprintf("transfer %s -> %s of %d failed, rollback pending: %v (rollback: %v)", e.FromUserID, e.ToUserID, e.Amount, e.Err, e.CompensationErr)
}

// Unwrap returns the credit failure
func (e *TransferError) Unwrap() error {
	return e.Err
}
