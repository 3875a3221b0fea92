package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/fadedpez/pagebot/pkg/entities"
	"github.com/fadedpez/pagebot/pkg/storage/storagetest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

type UpsertDocumentTestSuite struct {
	suite.Suite
	now time.Time
}

func TestUpsertDocumentSuite(t *testing.T) {
	suite.Run(t, new(UpsertDocumentTestSuite))
}

func (s *UpsertDocumentTestSuite) SetupTest() {
	s.now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
}

func (s *UpsertDocumentTestSuite) TestBalancePatchKeepsOtherDefaults() {
	// Execute
	doc := upsertDocument("12345", entities.AccountPatch{Balance: entities.Int64(1000)}, s.now)

	// Assert
	set := doc["$set"].(bson.M)
	onInsert := doc["$setOnInsert"].(bson.M)
	s.Equal(int64(1000), set["money"])
	s.Equal(s.now, set["updatedAt"])
	s.NotContains(onInsert, "money", "patched fields must not appear in both operators")
	s.NotContains(onInsert, "updatedAt")
	s.Equal("User_2345", onInsert["name"])
	s.Equal(1, onInsert["level"])
	s.Contains(onInsert, "gameStats")
}

func (s *UpsertDocumentTestSuite) TestGameStatsUseDottedPaths() {
	// Execute
	doc := upsertDocument("u1", entities.AccountPatch{
		GameStats: map[string]entities.GameStat{"dice": {Plays: 1, Wins: 1, MaxWin: 20}},
	}, s.now)

	// Assert
	set := doc["$set"].(bson.M)
	onInsert := doc["$setOnInsert"].(bson.M)
	s.Equal(entities.GameStat{Plays: 1, Wins: 1, MaxWin: 20}, set["gameStats.dice"])
	s.NotContains(set, "gameStats")
	s.NotContains(onInsert, "gameStats", "a parent path would conflict with the dotted $set")
}

// MongoStorageTestSuite runs the shared contract against a live server when MONGO_URI is set.
type MongoStorageTestSuite struct {
	storagetest.Suite
	store *Store
}

func TestMongoStorage(t *testing.T) {
	if os.Getenv("MONGO_URI") == "" {
		t.Skip("MONGO_URI not set")
	}
	suite.Run(t, new(MongoStorageTestSuite))
}

func (s *MongoStorageTestSuite) SetupTest() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := Connect(ctx, os.Getenv("MONGO_URI"), "pagebot_test_"+uuid.NewString()[:8], nil)
	s.Require().NoError(err)
	s.store = store
	s.Store = store
}

func (s *MongoStorageTestSuite) TearDownTest() {
	ctx := context.Background()
	s.store.db.Drop(ctx)
	s.store.Close()
}
