package ledger

import (
	"context"

	"github.com/fadedpez/pagebot/pkg/entities"
)

// Ledger is the economy surface handed to command handlers
type Ledger interface {
	GetOrCreate(ctx context.Context, userID string) (*entities.Account, error)
	Credit(ctx context.Context, userID string, amount int64) (*Receipt, error)
	Debit(ctx context.Context, userID string, amount int64) (*Receipt, error)
	Transfer(ctx context.Context, fromUserID, toUserID string, amount int64) (*TransferReceipt, error)
	SetBalance(ctx context.Context, userID string, amount int64) (*Receipt, error)
	Update(ctx context.Context, userID string, patch entities.AccountPatch) (*entities.Account, error)
	Modify(ctx context.Context, userID string, fn ModifyFunc) (*entities.Account, error)
	History(ctx context.Context, userID string, limit int) ([]*entities.Transaction, error)
}

// ModifyFunc computes a patch from the current account. It runs under the
// user's lock, so it must not call back into the Ledger for the same user.
type ModifyFunc func(account *entities.Account) entities.AccountPatch

// Receipt reports a single balance change
type Receipt struct {
	UserID     string
	OldBalance int64
	NewBalance int64
}

// TransferReceipt reports both sides of a completed transfer
type TransferReceipt struct {
	From        Receipt
	To          Receipt
	Transaction *entities.Transaction
}

// Observer receives ledger outcomes, typically for metrics
type Observer interface {
	LedgerOperation(op, result string)
	Compensation(result string)
}

type nopObserver struct{}

func (nopObserver) LedgerOperation(string, string) {}
func (nopObserver) Compensation(string) {}
