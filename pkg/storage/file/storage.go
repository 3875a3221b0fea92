package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fadedpez/pagebot/pkg/entities"
	"github.com/fadedpez/pagebot/pkg/storage"
	"github.com/jonboulle/clockwork"
)

const (
	usersFile        = "users.json"
	transactionsFile = "transactions.json"
)

// Options represents file storage configuration
type Options struct {
	Dir   string
	Clock clockwork.Clock
}

// Storage implements JSON flat-file storage for accounts and transactions
type Storage struct {
	dir          string
	clock        clockwork.Clock
	mu           sync.RWMutex
	accounts     map[string]*entities.Account
	transactions []*entities.Transaction
}

// New creates a new file storage instance, loading any existing data
func New(options Options) (*Storage, error) {
	if options.Dir == "" {
		options.Dir = "data"
	}
	if options.Clock == nil {
		options.Clock = clockwork.NewRealClock()
	}

	s := &Storage{
		dir:      options.Dir,
		clock:    options.Clock,
		accounts: make(map[string]*entities.Account),
	}

	if err := s.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return s, nil
}

// FindUserByID loads an account by user ID
func (s *Storage) FindUserByID(ctx context.Context, userID string) (*entities.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[userID]
	if !ok {
		return nil, storage.ErrUserNotFound
	}

	return account.Clone(), nil
}

// UpsertUser creates or updates an account and flushes users to disk
func (s *Storage) UpsertUser(ctx context.Context, userID string, patch entities.AccountPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	account, ok := s.accounts[userID]
	if !ok {
		account = storage.NewAccount(userID, now)
	} else {
		account = account.Clone()
	}
	patch.Apply(account, now)

	previous := s.accounts[userID]
	s.accounts[userID] = account
	if err := s.save(usersFile, s.accounts); err != nil {
		// Keep memory consistent with what is on disk
		if previous == nil {
			delete(s.accounts, userID)
		} else {
			s.accounts[userID] = previous
		}
		return err
	}

	return nil
}

// AppendTransaction records a transaction and flushes the log to disk
func (s *Storage) AppendTransaction(ctx context.Context, tx *entities.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	storage.PrepareTransaction(tx, s.clock.Now())
	txCopy := *tx
	s.transactions = append(s.transactions, &txCopy)

	if err := s.save(transactionsFile, s.transactions); err != nil {
		s.transactions = s.transactions[:len(s.transactions)-1]
		return err
	}

	return nil
}

// Transactions lists recent transactions for a user
func (s *Storage) Transactions(ctx context.Context, userID string, limit int) ([]*entities.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return storage.Recent(s.transactions, userID, limit), nil
}

// Close is a no-op; every write is flushed immediately
func (s *Storage) Close() error {
	return nil
}

// Helper functions

func (s *Storage) load() error {
	if err := s.readJSON(usersFile, &s.accounts); err != nil {
		return err
	}
	if s.accounts == nil {
		s.accounts = make(map[string]*entities.Account)
	}
	return s.readJSON(transactionsFile, &s.transactions)
}

func (s *Storage) readJSON(name string, v interface{}) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	return json.Unmarshal(data, v)
}

func (s *Storage) save(name string, v interface{}) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	// Write to a temp file first so a crash never leaves a truncated file
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace file: %w", err)
	}

	return nil
}
