package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/fadedpez/pagebot/internal/logging"
	"github.com/fadedpez/pagebot/pkg/entities"
	"github.com/fadedpez/pagebot/pkg/storage"
)

const transactionMapping = `{
	"mappings": {
		"properties": {
			"id":           { "type": "keyword" },
			"type":         { "type": "keyword" },
			"userId":       { "type": "keyword" },
			"fromUserId":   { "type": "keyword" },
			"toUserId":     { "type": "keyword" },
			"amount":       { "type": "long" },
			"balanceAfter": { "type": "long" },
			"timestamp":    { "type": "date" }
		}
	}
}`

// Config holds configuration options for the audit index
type Config struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
	Transport http.RoundTripper // optional, used by tests
}

// Store decorates a storage.Storage and mirrors every transaction into an
// Elasticsearch index for search and dashboards. The wrapped store stays the
// source of truth; indexing failures are logged, not returned.
type Store struct {
	storage.Storage
	client *elasticsearch.Client
	index  string
	logger *logging.Logger
}

// New creates the client, ensures the index exists and wraps base
func New(ctx context.Context, base storage.Storage, config Config, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	if config.Index == "" {
		config.Index = "pagebot-transactions"
	}

	cfg := elasticsearch.Config{
		Addresses: config.Addresses,
		Transport: config.Transport,
	}
	// Add authentication if provided
	if config.Username != "" && config.Password != "" {
		cfg.Username = config.Username
		cfg.Password = config.Password
	}

	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating Elasticsearch client: %w", err)
	}

	s := &Store{
		Storage: base,
		client:  client,
		index:   config.Index,
		logger:  logger.With("component", "elasticsearch"),
	}
	if err := s.ensureIndex(ctx); err != nil {
		return nil, fmt.Errorf("error initializing index: %w", err)
	}
	return s, nil
}

// ensureIndex creates the transaction index if it doesn't exist
func (s *Store) ensureIndex(ctx context.Context) error {
	res, err := s.client.Indices.Exists([]string{s.index}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("error checking if index exists: %w", err)
	}
	res.Body.Close()

	if res.StatusCode != http.StatusNotFound {
		return nil
	}

	req := esapi.IndicesCreateRequest{
		Index: s.index,
		Body:  bytes.NewReader([]byte(transactionMapping)),
	}
	res, err = req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("error creating index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error creating index: %s", res.String())
	}
	s.logger.Info("Created index %s", s.index)
	return nil
}

// AppendTransaction saves to the wrapped store, then indexes the record
func (s *Store) AppendTransaction(ctx context.Context, tx *entities.Transaction) error {
	// First save to the base storage
	if err := s.Storage.AppendTransaction(ctx, tx); err != nil {
		return err
	}

	if err := s.IndexTransaction(ctx, tx); err != nil {
		s.logger.Warn("Failed to index transaction %s: %v", tx.ID, err)
	}
	return nil
}

// IndexTransaction writes one transaction document, keyed by its ID so
// replays overwrite instead of duplicating
func (s *Store) IndexTransaction(ctx context.Context, tx *entities.Transaction) error {
	body, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("error marshaling transaction: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: tx.ID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return fmt.Errorf("error indexing transaction: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing transaction: %s", res.String())
	}
	return nil
}
