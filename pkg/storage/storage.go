package storage

import (
	"context"
	"errors"
	"time"

	"github.com/fadedpez/pagebot/pkg/entities"
	"github.com/google/uuid"
)

// Common storage errors
var (
	ErrUserNotFound = errors.New("user not found")
)

// Storage defines the interface for account and transaction persistence
//
//go:generate mockgen -source=$GOFILE -destination=mock/storage.go -package=mock_storage
type Storage interface {
	// FindUserByID loads an account, returning ErrUserNotFound when absent
	FindUserByID(ctx context.Context, userID string) (*entities.Account, error)

	// UpsertUser applies a partial update, creating the account with
	// default fields first when it does not exist
	UpsertUser(ctx context.Context, userID string, patch entities.AccountPatch) error

	// AppendTransaction records a transaction. Delivery is at-least-once.
	AppendTransaction(ctx context.Context, tx *entities.Transaction) error

	// Transactions returns the most recent transactions involving the user,
	// newest first. A limit of zero or less returns all of them.
	Transactions(ctx context.Context, userID string, limit int) ([]*entities.Transaction, error)

	// Close releases backend resources
	Close() error
}

// PrepareTransaction fills in the ID and timestamp when the caller left them empty
func PrepareTransaction(tx *entities.Transaction, now time.Time) {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = now
	}
}

// NewAccount returns the record a backend inserts for an unknown user before
// applying the first patch. Starting balances arrive through the patch.
func NewAccount(userID string, now time.Time) *entities.Account {
	return entities.NewAccount(userID, 0, now)
}

// Recent filters txs down to those involving userID, newest first, capped at limit.
// txs must be in append order.
func Recent(txs []*entities.Transaction, userID string, limit int) []*entities.Transaction {
	result := make([]*entities.Transaction, 0)
	for i := len(txs) - 1; i >= 0; i-- {
		if limit > 0 && len(result) >= limit {
			break
		}
		if txs[i].Involves(userID) {
			txCopy := *txs[i]
			result = append(result, &txCopy)
		}
	}
	return result
}
