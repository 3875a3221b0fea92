package elasticsearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/fadedpez/pagebot/pkg/entities"
	"github.com/fadedpez/pagebot/pkg/storage/memory"
	"github.com/stretchr/testify/suite"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

// fakeTransport answers like an Elasticsearch node and records every request
type fakeTransport struct {
	mu          sync.Mutex
	requests    []recordedRequest
	indexExists bool
	indexStatus int
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body string
	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		body = string(data)
	}

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Method: req.Method, Path: req.URL.Path, Body: body})
	f.mu.Unlock()

	status := http.StatusOK
	switch {
	case req.Method == http.MethodHead:
		if !f.indexExists {
			status = http.StatusNotFound
		}
	case req.Method == http.MethodPut && strings.Contains(req.URL.Path, "/_doc/"):
		status = f.indexStatus
	}

	header := http.Header{}
	header.Set("X-Elastic-Product", "Elasticsearch")
	header.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(`{}`)),
		Request:    req,
	}, nil
}

func (f *fakeTransport) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.requests {
		out = append(out, r.Method+" "+r.Path)
	}
	return out
}

type ElasticsearchTestSuite struct {
	suite.Suite
	transport *fakeTransport
	base      *memory.Storage
}

func TestElasticsearchSuite(t *testing.T) {
	suite.Run(t, new(ElasticsearchTestSuite))
}

func (s *ElasticsearchTestSuite) SetupTest() {
	s.transport = &fakeTransport{indexStatus: http.StatusCreated}
	s.base = memory.New(nil)
}

func (s *ElasticsearchTestSuite) newStore() *Store {
	store, err := New(context.Background(), s.base, Config{
		Addresses: []string{"http://es.local:9200"},
		Index:     "audit",
		Transport: s.transport,
	}, nil)
	s.Require().NoError(err)
	return store
}

func (s *ElasticsearchTestSuite) TestCreatesMissingIndex() {
	// Execute
	s.newStore()

	// Assert
	s.Equal([]string{"HEAD /audit", "PUT /audit"}, s.transport.methods())
	s.Contains(s.transport.requests[1].Body, `"balanceAfter"`)
}

func (s *ElasticsearchTestSuite) TestExistingIndexNotRecreated() {
	// Setup
	s.transport.indexExists = true

	// Execute
	s.newStore()

	// Assert
	s.Equal([]string{"HEAD /audit"}, s.transport.methods())
}

func (s *ElasticsearchTestSuite) TestAppendTransactionIndexesDocument() {
	// Setup
	store := s.newStore()
	tx := &entities.Transaction{Type: entities.TransactionTypeAdd, UserID: "u1", Amount: 50, BalanceAfter: 1050}

	// Execute
	err := store.AppendTransaction(context.Background(), tx)

	// Assert
	s.Require().NoError(err)
	s.NotEmpty(tx.ID)
	last := s.transport.requests[len(s.transport.requests)-1]
	s.Equal(http.MethodPut, last.Method)
	s.Equal("/audit/_doc/"+tx.ID, last.Path)
	var doc map[string]interface{}
	s.Require().NoError(json.Unmarshal([]byte(last.Body), &doc))
	s.Equal("add", doc["type"])
	s.Equal(float64(1050), doc["balanceAfter"])

	txs, err := store.Transactions(context.Background(), "u1", 0)
	s.Require().NoError(err)
	s.Len(txs, 1, "base store keeps the record")
}

func (s *ElasticsearchTestSuite) TestIndexFailureDoesNotFailAppend() {
	// Setup
	s.transport.indexStatus = http.StatusInternalServerError
	store := s.newStore()

	// Execute
	err := store.AppendTransaction(context.Background(), &entities.Transaction{
		Type: entities.TransactionTypeDeduct, UserID: "u1", Amount: 5,
	})

	// Assert
	s.NoError(err)
	s.Error(store.IndexTransaction(context.Background(), &entities.Transaction{ID: "x"}))
}
