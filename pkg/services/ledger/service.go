package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fadedpez/pagebot/internal/logging"
	"github.com/fadedpez/pagebot/pkg/entities"
	"github.com/fadedpez/pagebot/pkg/storage"
	"github.com/jonboulle/clockwork"
)

// DefaultCacheTTL is how long an account read stays cached
const DefaultCacheTTL = 5 * time.Minute

// Operation names reported to the Observer
const (
	OpGetOrCreate = "get_or_create"
	OpCredit      = "credit"
	OpDebit       = "debit"
	OpTransfer    = "transfer"
	OpSet         = "set"
	OpUpdate      = "update"
	OpModify      = "modify"
)

// Options configures the Service
type Options struct {
	StartBalance int64
	CacheTTL     time.Duration
	Clock        clockwork.Clock
	Logger       *logging.Logger
	Observer     Observer
}

// Service handles balances and transaction records on top of a Storage
type Service struct {
	store        storage.Storage
	startBalance int64
	clock        clockwork.Clock
	logger       *logging.Logger
	observer     Observer
	cache        *accountCache
	locks        *keyedMutex
	compensator  *compensator
}

var _ Ledger = (*Service)(nil)

// NewService creates a new ledger service
func NewService(store storage.Storage, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = DefaultCacheTTL
	}

	s := &Service{
		store:        store,
		startBalance: opts.StartBalance,
		clock:        opts.Clock,
		logger:       opts.Logger.With("component", "ledger"),
		observer:     opts.Observer,
		cache:        newAccountCache(opts.Clock, opts.CacheTTL),
		locks:        newKeyedMutex(),
	}
	s.compensator = newCompensator(s)
	return s
}

// GetOrCreate returns the account, creating it with the starting balance on first sight
func (s *Service) GetOrCreate(ctx context.Context, userID string) (*entities.Account, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	account, err := s.loadOrCreate(ctx, userID)
	s.report(OpGetOrCreate, err)
	if err != nil {
		return nil, err
	}
	return account.Clone(), nil
}

// Credit adds amount to the user's balance
func (s *Service) Credit(ctx context.Context, userID string, amount int64) (*Receipt, error) {
	if amount <= 0 {
		s.report(OpCredit, ErrInvalidAmount)
		return nil, ErrInvalidAmount
	}

	receipt, err := s.credit(ctx, userID, amount, entities.TransactionTypeAdd, true)
	s.report(OpCredit, err)
	return receipt, err
}

// Debit removes amount from the user's balance if it is covered
func (s *Service) Debit(ctx context.Context, userID string, amount int64) (*Receipt, error) {
	if amount <= 0 {
		s.report(OpDebit, ErrInvalidAmount)
		return nil, ErrInvalidAmount
	}

	receipt, err := s.debit(ctx, userID, amount, entities.TransactionTypeDeduct, true)
	s.report(OpDebit, err)
	return receipt, err
}

// Transfer moves amount from one user to another. The sender is debited
// first; when crediting the receiver fails the sender is credited back.
func (s *Service) Transfer(ctx context.Context, fromUserID, toUserID string, amount int64) (*TransferReceipt, error) {
	receipt, err := s.transfer(ctx, fromUserID, toUserID, amount)
	s.report(OpTransfer, err)
	return receipt, err
}

func (s *Service) transfer(ctx context.Context, fromUserID, toUserID string, amount int64) (*TransferReceipt, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if fromUserID == toUserID {
		return nil, ErrSelfTransfer
	}

	from, err := s.debit(ctx, fromUserID, amount, entities.TransactionTypeTransfer, false)
	if err != nil {
		return nil, err
	}

	to, err := s.credit(ctx, toUserID, amount, entities.TransactionTypeTransfer, false)
	if err != nil {
		transferErr := &TransferError{
			FromUserID: fromUserID,
			ToUserID:   toUserID,
			Amount:     amount,
			Err:        err,
		}

		// Compensate the sender
		if _, compErr := s.credit(ctx, fromUserID, amount, entities.TransactionTypeTransfer, false); compErr != nil {
			transferErr.CompensationErr = compErr
			s.compensator.enqueue(fromUserID, amount, fmt.Sprintf("transfer to %s", toUserID), compErr)
			s.observer.Compensation("queued")
			s.logger.Error("Compensation for transfer %s -> %s of %d failed, queued for retry: %v",
				fromUserID, toUserID, amount, compErr)
		} else {
			transferErr.Compensated = true
			s.observer.Compensation("applied")
			s.logger.Warn("Transfer %s -> %s of %d rolled back: %v", fromUserID, toUserID, amount, err)
		}
		return nil, transferErr
	}

	tx := &entities.Transaction{
		Type:       entities.TransactionTypeTransfer,
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Amount:     amount,
		Timestamp:  s.clock.Now(),
	}
	s.record(ctx, tx)

	return &TransferReceipt{From: *from, To: *to, Transaction: tx}, nil
}

// SetBalance overwrites the balance, for administrative corrections
func (s *Service) SetBalance(ctx context.Context, userID string, amount int64) (*Receipt, error) {
	receipt, err := s.setBalance(ctx, userID, amount)
	s.report(OpSet, err)
	return receipt, err
}

func (s *Service) setBalance(ctx context.Context, userID string, amount int64) (*Receipt, error) {
	if amount < 0 {
		return nil, ErrInvalidAmount
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	account, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.applyBalance(ctx, account, amount, amount, entities.TransactionTypeSet, true)
}

// Update applies a direct field update on behalf of a handler
func (s *Service) Update(ctx context.Context, userID string, patch entities.AccountPatch) (*entities.Account, error) {
	account, err := s.update(ctx, userID, patch)
	s.report(OpUpdate, err)
	return account, err
}

func (s *Service) update(ctx context.Context, userID string, patch entities.AccountPatch) (*entities.Account, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	account, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return account.Clone(), nil
	}

	if err := s.persist(ctx, account, patch); err != nil {
		return nil, err
	}
	return account.Clone(), nil
}

// Modify reads the account, computes a patch with fn and persists it, all
// under the user's lock
func (s *Service) Modify(ctx context.Context, userID string, fn ModifyFunc) (*entities.Account, error) {
	account, err := s.modify(ctx, userID, fn)
	s.report(OpModify, err)
	return account, err
}

func (s *Service) modify(ctx context.Context, userID string, fn ModifyFunc) (*entities.Account, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	account, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	patch := fn(account.Clone())
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return account.Clone(), nil
	}

	if err := s.persist(ctx, account, patch); err != nil {
		return nil, err
	}
	return account.Clone(), nil
}

// History returns the user's most recent transactions, newest first
func (s *Service) History(ctx context.Context, userID string, limit int) ([]*entities.Transaction, error) {
	return s.store.Transactions(ctx, userID, limit)
}

// PendingCompensations lists sender refunds that could not be applied yet
func (s *Service) PendingCompensations() []Compensation {
	return s.compensator.pending()
}

// RetryCompensations re-applies queued refunds. It returns an error while any remain.
func (s *Service) RetryCompensations(ctx context.Context) error {
	return s.compensator.retry(ctx)
}

func (s *Service) credit(ctx context.Context, userID string, amount int64, txType entities.TransactionType, record bool) (*Receipt, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	account, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.applyBalance(ctx, account, account.Balance+amount, amount, txType, record)
}

func (s *Service) debit(ctx context.Context, userID string, amount int64, txType entities.TransactionType, record bool) (*Receipt, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	account, err := s.loadOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	if account.Balance < amount {
		return nil, &FundsError{UserID: userID, Balance: account.Balance, Requested: amount}
	}

	return s.applyBalance(ctx, account, account.Balance-amount, amount, txType, record)
}

// applyBalance persists newBalance and, when record is set, appends the
// matching transaction. Callers hold the user's lock.
func (s *Service) applyBalance(ctx context.Context, account *entities.Account, newBalance, amount int64, txType entities.TransactionType, record bool) (*Receipt, error) {
	now := s.clock.Now()
	oldBalance := account.Balance

	patch := entities.AccountPatch{
		Balance: entities.Int64(newBalance),
		LastTransaction: &entities.TransactionSummary{
			Type:      txType,
			Amount:    amount,
			Timestamp: now,
		},
	}
	if err := s.persist(ctx, account, patch); err != nil {
		return nil, err
	}

	if record {
		s.record(ctx, &entities.Transaction{
			Type:         txType,
			UserID:       account.UserID,
			Amount:       amount,
			BalanceAfter: newBalance,
			Timestamp:    now,
		})
	}

	return &Receipt{UserID: account.UserID, OldBalance: oldBalance, NewBalance: newBalance}, nil
}

// persist writes the patch and keeps the cache coherent: the entry is
// dropped before the write and refilled only once the write succeeded.
func (s *Service) persist(ctx context.Context, account *entities.Account, patch entities.AccountPatch) error {
	s.cache.invalidate(account.UserID)

	if err := s.store.UpsertUser(ctx, account.UserID, patch); err != nil {
		return fmt.Errorf("error saving account %s: %w", account.UserID, err)
	}

	patch.Apply(account, s.clock.Now())
	s.cache.put(account)
	return nil
}

// record appends a transaction. Records are informational, so a failure is
// logged and the balance change stands.
func (s *Service) record(ctx context.Context, tx *entities.Transaction) {
	if err := s.store.AppendTransaction(ctx, tx); err != nil {
		s.logger.Warn("Failed to record %s transaction of %d: %v", tx.Type, tx.Amount, err)
	}
}

// loadOrCreate reads through the cache and creates missing accounts.
// Callers hold the user's lock.
func (s *Service) loadOrCreate(ctx context.Context, userID string) (*entities.Account, error) {
	if account, ok := s.cache.get(userID); ok {
		return account, nil
	}

	account, err := s.store.FindUserByID(ctx, userID)
	if err == nil {
		s.cache.put(account)
		return account, nil
	}
	if !errors.Is(err, storage.ErrUserNotFound) {
		return nil, fmt.Errorf("error loading account %s: %w", userID, err)
	}

	if err := s.store.UpsertUser(ctx, userID, entities.AccountPatch{Balance: entities.Int64(s.startBalance)}); err != nil {
		return nil, fmt.Errorf("error creating account %s: %w", userID, err)
	}

	account, err = s.store.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error loading new account %s: %w", userID, err)
	}

	s.logger.Info("Created account for user %s with balance %d", userID, s.startBalance)
	s.cache.put(account)
	return account, nil
}

func (s *Service) report(op string, err error) {
	s.observer.LedgerOperation(op, resultOf(err))
}

func resultOf(err error) string {
	var transferErr *TransferError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrSelfTransfer), errors.Is(err, entities.ErrNegativeBalance):
		return "invalid"
	case errors.As(err, &transferErr):
		if transferErr.Compensated {
			return "rolled_back"
		}
		return "rollback_pending"
	default:
		return "error"
	}
}
