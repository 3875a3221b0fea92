package memory

import (
	"context"
	"sync"

	"github.com/fadedpez/pagebot/pkg/entities"
	"github.com/fadedpez/pagebot/pkg/storage"
	"github.com/jonboulle/clockwork"
)

// Storage implements storage.Storage in process memory
type Storage struct {
	accounts     map[string]*entities.Account
	transactions []*entities.Transaction
	clock        clockwork.Clock
	mu           sync.RWMutex
}

// New creates an empty in-memory store
func New(clock clockwork.Clock) *Storage {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Storage{
		accounts: make(map[string]*entities.Account),
		clock:    clock,
	}
}

// FindUserByID retrieves an account by user ID
func (s *Storage) FindUserByID(ctx context.Context, userID string) (*entities.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, exists := s.accounts[userID]
	if !exists {
		return nil, storage.ErrUserNotFound
	}

	// Return a copy to prevent concurrent modification
	return account.Clone(), nil
}

// UpsertUser creates or updates an account
func (s *Storage) UpsertUser(ctx context.Context, userID string, patch entities.AccountPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	account, exists := s.accounts[userID]
	if !exists {
		account = storage.NewAccount(userID, now)
		s.accounts[userID] = account
	}
	patch.Apply(account, now)

	return nil
}

// AppendTransaction records a new transaction
func (s *Storage) AppendTransaction(ctx context.Context, tx *entities.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	storage.PrepareTransaction(tx, s.clock.Now())

	// Make a copy to prevent concurrent modification
	txCopy := *tx
	s.transactions = append(s.transactions, &txCopy)

	return nil
}

// Transactions retrieves recent transactions for a user
func (s *Storage) Transactions(ctx context.Context, userID string, limit int) ([]*entities.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return storage.Recent(s.transactions, userID, limit), nil
}

// Close is a no-op for the memory store
func (s *Storage) Close() error {
	return nil
}
