package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fadedpez/pagebot/pkg/entities"
)

// Compensation is a sender refund that could not be applied when a transfer failed
type Compensation struct {
	UserID    string
	Amount    int64
	Reason    string
	Attempts  int
	LastError error
	CreatedAt time.Time
}

// compensator holds refunds in process memory until a retry succeeds.
// Pending entries do not survive a restart; each one is logged at error
// level when queued so an operator can settle it by hand.
type compensator struct {
	service *Service
	mu      sync.Mutex
	queue   []*Compensation
}

func newCompensator(service *Service) *compensator {
	return &compensator{service: service}
}

func (c *compensator) enqueue(userID string, amount int64, reason string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.queue = append(c.queue, &Compensation{
		UserID:    userID,
		Amount:    amount,
		Reason:    reason,
		Attempts:  1,
		LastError: err,
		CreatedAt: c.service.clock.Now(),
	})
}

func (c *compensator) pending() []Compensation {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Compensation, 0, len(c.queue))
	for _, comp := range c.queue {
		out = append(out, *comp)
	}
	return out
}

func (c *compensator) retry(ctx context.Context) error {
	c.mu.Lock()
	batch := c.queue
	c.queue = nil
	c.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	var remaining []*Compensation
	for _, comp := range batch {
		if ctx.Err() != nil {
			remaining = append(remaining, comp)
			continue
		}

		_, err := c.service.credit(ctx, comp.UserID, comp.Amount, entities.TransactionTypeTransfer, false)
		if err != nil {
			comp.Attempts++
			comp.LastError = err
			remaining = append(remaining, comp)
			c.service.observer.Compensation("retry_failed")
			continue
		}

		c.service.observer.Compensation("applied")
		c.service.logger.Info("Applied pending compensation of %d to user %s after %d attempts (%s)",
			comp.Amount, comp.UserID, comp.Attempts, comp.Reason)
	}

	if len(remaining) == 0 {
		return nil
	}

	c.mu.Lock()
	c.queue = append(remaining, c.queue...)
	c.mu.Unlock()

	return fmt.Errorf("%d compensations still pending", len(remaining))
}
