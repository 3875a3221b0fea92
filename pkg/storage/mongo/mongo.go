package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/fadedpez/pagebot/pkg/entities"
	"github.com/fadedpez/pagebot/pkg/storage"
	"github.com/jonboulle/clockwork"
)

// Collection name constants.
const (
	colUsers        = "users"
	colTransactions = "transactions"
)

// compile-time interface check
var _ storage.Storage = (*Store)(nil)

// Store implements storage.Storage on MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	clock  clockwork.Clock
}

// Connect dials MongoDB, checks connectivity and ensures indexes.
func Connect(ctx context.Context, uri, database string, clock clockwork.Clock) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("pagebot/mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("pagebot/mongo: ping: %w", err)
	}

	s := New(client, database, clock)
	if err := s.Migrate(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// New wraps an existing client.
func New(client *mongo.Client, database string, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		client: client,
		db:     client.Database(database),
		clock:  clock,
	}
}

// Migrate creates indexes for all collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("pagebot/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// FindUserByID loads an account by its platform user ID.
func (s *Store) FindUserByID(ctx context.Context, userID string) (*entities.Account, error) {
	var account entities.Account
	err := s.db.Collection(colUsers).
		FindOne(ctx, bson.M{"userId": userID}).
		Decode(&account)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pagebot/mongo: find user: %w", err)
	}
	if account.GameStats == nil {
		account.GameStats = map[string]entities.GameStat{}
	}
	return &account, nil
}

// UpsertUser applies the patch with $set and fills defaults with $setOnInsert
// in a single atomic update.
func (s *Store) UpsertUser(ctx context.Context, userID string, patch entities.AccountPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}

	update := upsertDocument(userID, patch, s.clock.Now().UTC())
	_, err := s.db.Collection(colUsers).UpdateOne(ctx,
		bson.M{"userId": userID},
		update,
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("pagebot/mongo: upsert user: %w", err)
	}
	return nil
}

// AppendTransaction inserts a transaction. Replays of the same ID are ignored.
func (s *Store) AppendTransaction(ctx context.Context, tx *entities.Transaction) error {
	storage.PrepareTransaction(tx, s.clock.Now().UTC())

	if _, err := s.db.Collection(colTransactions).InsertOne(ctx, tx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("pagebot/mongo: insert transaction: %w", err)
	}
	return nil
}

// Transactions lists recent transactions involving the user, newest first.
func (s *Store) Transactions(ctx context.Context, userID string, limit int) ([]*entities.Transaction, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"userId": userID},
		bson.M{"fromUserId": userID},
		bson.M{"toUserId": userID},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.db.Collection(colTransactions).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("pagebot/mongo: find transactions: %w", err)
	}

	result := make([]*entities.Transaction, 0)
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("pagebot/mongo: decode transactions: %w", err)
	}
	return result, nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// upsertDocument builds the update for UpsertUser. Fields named by the patch
// go to $set; the remaining defaults of a new account go to $setOnInsert so
// the two never touch the same path.
func upsertDocument(userID string, patch entities.AccountPatch, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Balance != nil {
		set["money"] = *patch.Balance
	}
	if patch.Level != nil {
		set["level"] = *patch.Level
	}
	if patch.Experience != nil {
		set["experience"] = *patch.Experience
	}
	if patch.Settings != nil {
		set["settings"] = *patch.Settings
	}
	if patch.Inventory != nil {
		set["inventory"] = patch.Inventory
	}
	for game, stat := range patch.GameStats {
		set["gameStats."+game] = stat
	}
	if patch.LastTransaction != nil {
		set["lastTransaction"] = *patch.LastTransaction
	}

	defaults := storage.NewAccount(userID, now)
	onInsert := bson.M{
		"userId":     defaults.UserID,
		"name":       defaults.Name,
		"money":      defaults.Balance,
		"level":      defaults.Level,
		"experience": defaults.Experience,
		"settings":   defaults.Settings,
		"inventory":  defaults.Inventory,
		"gameStats":  defaults.GameStats,
		"createdAt":  defaults.CreatedAt,
	}
	for key := range set {
		delete(onInsert, key)
	}
	if len(patch.GameStats) > 0 {
		delete(onInsert, "gameStats")
	}

	return bson.M{"$set": set, "$setOnInsert": onInsert}
}

func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colUsers: {
			{
				Keys:    bson.D{{Key: "userId", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colTransactions: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "fromUserId", Value: 1}, {Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "toUserId", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
	}
}
