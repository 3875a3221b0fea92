package mock

import (
	"context"

	"github.com/fadedpez/pagebot/internal/messenger"
	"github.com/stretchr/testify/mock"
)

// Messenger is a mock implementation of messenger.Messenger
type Messenger struct {
	mock.Mock
}

// Deliver implements messenger.Messenger
func (m *Messenger) Deliver(ctx context.Context, userID string, msg messenger.Message) error {
	args := m.Called(ctx, userID, msg)
	return args.Error(0)
}
