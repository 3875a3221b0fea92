// Package storagetest holds the behaviour every storage.Storage backend must share.
package storagetest

import (
	"context"
	"time"

	"github.com/fadedpez/pagebot/pkg/entities"
	"github.com/fadedpez/pagebot/pkg/storage"
	"github.com/stretchr/testify/suite"
)

// Suite runs the common storage contract against a backend.
// Embedding suites set Store in their SetupTest.
type Suite struct {
	suite.Suite
	Store storage.Storage
}

func (s *Suite) TestFindMissingUser() {
	// Execute
	account, err := s.Store.FindUserByID(context.Background(), "missing")

	// Assert
	s.Nil(account)
	s.ErrorIs(err, storage.ErrUserNotFound)
}

func (s *Suite) TestUpsertCreatesWithDefaults() {
	// Setup
	ctx := context.Background()

	// Execute
	err := s.Store.UpsertUser(ctx, "100012345", entities.AccountPatch{Balance: entities.Int64(1000)})
	s.Require().NoError(err)
	account, err := s.Store.FindUserByID(ctx, "100012345")

	// Assert
	s.Require().NoError(err)
	s.Equal("100012345", account.UserID)
	s.Equal("User_2345", account.Name)
	s.Equal(int64(1000), account.Balance)
	s.Equal(1, account.Level)
	s.Equal("dark", account.Settings.Theme)
	s.True(account.Settings.Notifications)
	s.Equal("en", account.Settings.Language)
	s.False(account.CreatedAt.IsZero())
}

func (s *Suite) TestUpsertUpdatesAndMergesGameStats() {
	// Setup
	ctx := context.Background()
	s.Require().NoError(s.Store.UpsertUser(ctx, "u1", entities.AccountPatch{
		Balance:   entities.Int64(500),
		GameStats: map[string]entities.GameStat{"dice": {Plays: 2, Wins: 1, MaxWin: 40}},
	}))

	// Execute
	err := s.Store.UpsertUser(ctx, "u1", entities.AccountPatch{
		Experience: entities.Int(15),
		GameStats:  map[string]entities.GameStat{"slot": {Plays: 1}},
		LastTransaction: &entities.TransactionSummary{
			Type:      entities.TransactionTypeAdd,
			Amount:    10,
			Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		},
	})

	// Assert
	s.Require().NoError(err)
	account, err := s.Store.FindUserByID(ctx, "u1")
	s.Require().NoError(err)
	s.Equal(int64(500), account.Balance)
	s.Equal(15, account.Experience)
	s.Equal(entities.GameStat{Plays: 2, Wins: 1, MaxWin: 40}, account.GameStats["dice"])
	s.Equal(1, account.GameStats["slot"].Plays)
	s.Require().NotNil(account.LastTransaction)
	s.Equal(int64(10), account.LastTransaction.Amount)
}

func (s *Suite) TestUpsertRejectsNegativeBalance() {
	err := s.Store.UpsertUser(context.Background(), "u1", entities.AccountPatch{Balance: entities.Int64(-5)})

	s.ErrorIs(err, entities.ErrNegativeBalance)
}

func (s *Suite) TestTransactionsNewestFirst() {
	// Setup
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	txs := []*entities.Transaction{
		{Type: entities.TransactionTypeAdd, UserID: "a", Amount: 1, BalanceAfter: 1, Timestamp: base},
		{Type: entities.TransactionTypeDeduct, UserID: "b", Amount: 2, BalanceAfter: 3, Timestamp: base.Add(time.Second)},
		{Type: entities.TransactionTypeTransfer, FromUserID: "a", ToUserID: "b", Amount: 3, Timestamp: base.Add(2 * time.Second)},
		{Type: entities.TransactionTypeSet, UserID: "a", Amount: 9, BalanceAfter: 9, Timestamp: base.Add(3 * time.Second)},
	}
	for _, tx := range txs {
		s.Require().NoError(s.Store.AppendTransaction(ctx, tx))
		s.NotEmpty(tx.ID, "ID should be assigned")
	}

	// Execute
	all, err := s.Store.Transactions(ctx, "a", 0)
	s.Require().NoError(err)
	limited, err := s.Store.Transactions(ctx, "a", 2)
	s.Require().NoError(err)
	none, err := s.Store.Transactions(ctx, "nobody", 10)
	s.Require().NoError(err)

	// Assert
	s.Require().Len(all, 3)
	s.Equal(entities.TransactionTypeSet, all[0].Type)
	s.Equal(entities.TransactionTypeTransfer, all[1].Type)
	s.Equal(entities.TransactionTypeAdd, all[2].Type)
	s.Len(limited, 2)
	s.Equal(entities.TransactionTypeSet, limited[0].Type)
	s.Empty(none)
}
