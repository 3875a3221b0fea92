package memory

import (
	"context"
	"testing"
	"time"

	"github.com/fadedpez/pagebot/pkg/entities"
	"github.com/fadedpez/pagebot/pkg/storage/storagetest"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/suite"
)

type MemoryStorageTestSuite struct {
	storagetest.Suite
	clock *clockwork.FakeClock
	mem   *Storage
}

func TestMemoryStorage(t *testing.T) {
	suite.Run(t, new(MemoryStorageTestSuite))
}

func (s *MemoryStorageTestSuite) SetupTest() {
	s.clock = clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	s.mem = New(s.clock)
	s.Store = s.mem
}

func (s *MemoryStorageTestSuite) TestReturnsCopies() {
	// Setup
	ctx := context.Background()
	s.Require().NoError(s.mem.UpsertUser(ctx, "u1", entities.AccountPatch{Balance: entities.Int64(10)}))

	// Execute
	first, err := s.mem.FindUserByID(ctx, "u1")
	s.Require().NoError(err)
	first.Balance = 9999
	second, err := s.mem.FindUserByID(ctx, "u1")
	s.Require().NoError(err)

	// Assert
	s.Equal(int64(10), second.Balance)
}

func (s *MemoryStorageTestSuite) TestUpdatedAtFollowsClock() {
	// Setup
	ctx := context.Background()
	s.Require().NoError(s.mem.UpsertUser(ctx, "u1", entities.AccountPatch{}))
	s.clock.Advance(time.Hour)

	// Execute
	s.Require().NoError(s.mem.UpsertUser(ctx, "u1", entities.AccountPatch{Level: entities.Int(2)}))

	// Assert
	account, err := s.mem.FindUserByID(ctx, "u1")
	s.Require().NoError(err)
	s.Equal(s.clock.Now(), account.UpdatedAt)
	s.Equal(s.clock.Now().Add(-time.Hour), account.CreatedAt)
}
