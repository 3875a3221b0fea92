package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fadedpez/pagebot/internal/logging"
	"github.com/fadedpez/pagebot/pkg/db/migrations"
	"github.com/fadedpez/pagebot/pkg/entities"
	"github.com/fadedpez/pagebot/pkg/storage"
	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	_ "github.com/mattn/go-sqlite3"
)

const (
	upsertUserSQL = `
	INSERT INTO users (user_id, name, money, level, experience, settings, inventory, game_stats, last_transaction, created_at, updated_at)
	VALUES (:user_id, :name, :money, :level, :experience, :settings, :inventory, :game_stats, :last_transaction, :created_at, :updated_at)
	ON CONFLICT(user_id) DO UPDATE SET
		name = excluded.name,
		money = excluded.money,
		level = excluded.level,
		experience = excluded.experience,
		settings = excluded.settings,
		inventory = excluded.inventory,
		game_stats = excluded.game_stats,
		last_transaction = excluded.last_transaction,
		updated_at = excluded.updated_at`

	insertTransactionSQL = `
	INSERT INTO transactions (id, type, user_id, from_user_id, to_user_id, amount, balance_after, timestamp)
	VALUES (:id, :type, :user_id, :from_user_id, :to_user_id, :amount, :balance_after, :timestamp)
	ON CONFLICT(id) DO NOTHING`

	selectTransactionsSQL = `
	SELECT id, type, user_id, from_user_id, to_user_id, amount, balance_after, timestamp
	FROM transactions
	WHERE user_id = ? OR from_user_id = ? OR to_user_id = ?
	ORDER BY timestamp DESC, rowid DESC
	LIMIT ?`
)

// userRow is the users table layout. Nested values are stored as JSON text.
type userRow struct {
	UserID          string         `db:"user_id"`
	Name            string         `db:"name"`
	Money           int64          `db:"money"`
	Level           int            `db:"level"`
	Experience      int            `db:"experience"`
	Settings        string         `db:"settings"`
	Inventory       string         `db:"inventory"`
	GameStats       string         `db:"game_stats"`
	LastTransaction sql.NullString `db:"last_transaction"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

type transactionRow struct {
	ID           string    `db:"id"`
	Type         string    `db:"type"`
	UserID       string    `db:"user_id"`
	FromUserID   string    `db:"from_user_id"`
	ToUserID     string    `db:"to_user_id"`
	Amount       int64     `db:"amount"`
	BalanceAfter int64     `db:"balance_after"`
	Timestamp    time.Time `db:"timestamp"`
}

// Storage implements storage.Storage on SQLite through sqlx
type Storage struct {
	db    *sqlx.DB
	clock clockwork.Clock
}

// New opens (or creates) the database at dbPath and applies pending migrations
func New(ctx context.Context, dbPath string, clock clockwork.Clock, logger *logging.Logger) (*Storage, error) {
	if dbPath != ":memory:" {
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// SQLite allows a single writer; one connection also keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	if _, err := migrations.NewMigrator(db, migrations.Embedded(), logger).MigrateUp(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error migrating database: %w", err)
	}

	return NewWithDB(db, clock), nil
}

// NewWithDB wraps an already migrated database
func NewWithDB(db *sqlx.DB, clock clockwork.Clock) *Storage {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Storage{db: db, clock: clock}
}

// FindUserByID retrieves an account by user ID
func (s *Storage) FindUserByID(ctx context.Context, userID string) (*entities.Account, error) {
	return s.findUser(ctx, s.db, userID)
}

func (s *Storage) findUser(ctx context.Context, q sqlx.QueryerContext, userID string) (*entities.Account, error) {
	var row userRow
	err := sqlx.GetContext(ctx, q, &row, "SELECT * FROM users WHERE user_id = ?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	return row.toAccount()
}

// UpsertUser applies a patch inside a transaction, inserting defaults first when needed
func (s *Storage) UpsertUser(ctx context.Context, userID string, patch entities.AccountPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.clock.Now().UTC()
	account, err := s.findUser(ctx, tx, userID)
	if errors.Is(err, storage.ErrUserNotFound) {
		account = storage.NewAccount(userID, now)
	} else if err != nil {
		return err
	}
	patch.Apply(account, now)

	row, err := fromAccount(account)
	if err != nil {
		return err
	}
	if _, err := tx.NamedExecContext(ctx, upsertUserSQL, row); err != nil {
		return fmt.Errorf("error saving user: %w", err)
	}

	return tx.Commit()
}

// AppendTransaction records a transaction. Replays of the same ID are ignored.
func (s *Storage) AppendTransaction(ctx context.Context, tx *entities.Transaction) error {
	storage.PrepareTransaction(tx, s.clock.Now())

	row := transactionRow{
		ID:           tx.ID,
		Type:         string(tx.Type),
		UserID:       tx.UserID,
		FromUserID:   tx.FromUserID,
		ToUserID:     tx.ToUserID,
		Amount:       tx.Amount,
		BalanceAfter: tx.BalanceAfter,
		Timestamp:    tx.Timestamp.UTC(),
	}
	if _, err := s.db.NamedExecContext(ctx, insertTransactionSQL, row); err != nil {
		return fmt.Errorf("error recording transaction: %w", err)
	}

	return nil
}

// Transactions retrieves recent transactions for a user
func (s *Storage) Transactions(ctx context.Context, userID string, limit int) ([]*entities.Transaction, error) {
	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}

	var rows []transactionRow
	if err := s.db.SelectContext(ctx, &rows, selectTransactionsSQL, userID, userID, userID, limit); err != nil {
		return nil, fmt.Errorf("error querying transactions: %w", err)
	}

	result := make([]*entities.Transaction, 0, len(rows))
	for _, r := range rows {
		result = append(result, &entities.Transaction{
			ID:           r.ID,
			Type:         entities.TransactionType(r.Type),
			UserID:       r.UserID,
			FromUserID:   r.FromUserID,
			ToUserID:     r.ToUserID,
			Amount:       r.Amount,
			BalanceAfter: r.BalanceAfter,
			Timestamp:    r.Timestamp,
		})
	}
	return result, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

func fromAccount(a *entities.Account) (*userRow, error) {
	settings, err := json.Marshal(a.Settings)
	if err != nil {
		return nil, fmt.Errorf("error encoding settings: %w", err)
	}
	inventory, err := json.Marshal(a.Inventory)
	if err != nil {
		return nil, fmt.Errorf("error encoding inventory: %w", err)
	}
	gameStats, err := json.Marshal(a.GameStats)
	if err != nil {
		return nil, fmt.Errorf("error encoding game stats: %w", err)
	}

	row := &userRow{
		UserID:     a.UserID,
		Name:       a.Name,
		Money:      a.Balance,
		Level:      a.Level,
		Experience: a.Experience,
		Settings:   string(settings),
		Inventory:  string(inventory),
		GameStats:  string(gameStats),
		CreatedAt:  a.CreatedAt.UTC(),
		UpdatedAt:  a.UpdatedAt.UTC(),
	}
	if a.LastTransaction != nil {
		last, err := json.Marshal(a.LastTransaction)
		if err != nil {
			return nil, fmt.Errorf("error encoding last transaction: %w", err)
		}
		row.LastTransaction = sql.NullString{String: string(last), Valid: true}
	}
	return row, nil
}

func (r *userRow) toAccount() (*entities.Account, error) {
	a := &entities.Account{
		UserID:     r.UserID,
		Name:       r.Name,
		Balance:    r.Money,
		Level:      r.Level,
		Experience: r.Experience,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(r.Settings), &a.Settings); err != nil {
		return nil, fmt.Errorf("error decoding settings: %w", err)
	}
	if err := json.Unmarshal([]byte(r.Inventory), &a.Inventory); err != nil {
		return nil, fmt.Errorf("error decoding inventory: %w", err)
	}
	if err := json.Unmarshal([]byte(r.GameStats), &a.GameStats); err != nil {
		return nil, fmt.Errorf("error decoding game stats: %w", err)
	}
	if a.GameStats == nil {
		a.GameStats = map[string]entities.GameStat{}
	}
	if r.LastTransaction.Valid {
		a.LastTransaction = &entities.TransactionSummary{}
		if err := json.Unmarshal([]byte(r.LastTransaction.String), a.LastTransaction); err != nil {
			return nil, fmt.Errorf("error decoding last transaction: %w", err)
		}
	}
	return a, nil
}
