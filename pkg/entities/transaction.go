package entities

import (
	"time"
)

// TransactionType represents the kind of balance change
type TransactionType string

const (
	TransactionTypeAdd      TransactionType = "add"
	TransactionTypeDeduct   TransactionType = "deduct"
	TransactionTypeTransfer TransactionType = "transfer"
	TransactionTypeSet      TransactionType = "set"
)

// Transaction is an append-only audit record of a balance change.
// The account balance stays the source of truth.
type Transaction struct {
	ID           string          `json:"id" bson:"_id"`
	Type         TransactionType `json:"type" bson:"type"`
	UserID       string          `json:"userId,omitempty" bson:"userId,omitempty"`         // add, deduct, set
	FromUserID   string          `json:"fromUserId,omitempty" bson:"fromUserId,omitempty"` // transfer
	ToUserID     string          `json:"toUserId,omitempty" bson:"toUserId,omitempty"`     // transfer
	Amount       int64           `json:"amount" bson:"amount"`
	BalanceAfter int64           `json:"balanceAfter,omitempty" bson:"balanceAfter,omitempty"`
	Timestamp    time.Time       `json:"timestamp" bson:"timestamp"`
}

// Involves reports whether the user is a party to the transaction
func (t *Transaction) Involves(userID string) bool {
	return t.UserID == userID || t.FromUserID == userID || t.ToUserID == userID
}

// Summary returns the denormalised form stored on the account
func (t *Transaction) Summary() *TransactionSummary {
	return &TransactionSummary{
		Type:      t.Type,
		Amount:    t.Amount,
		Timestamp: t.Timestamp,
	}
}
