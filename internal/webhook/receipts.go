package webhook

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Receipt is the latest delivery status reported for an outbound message.
type Receipt struct {
	ProviderMessageID string    `json:"provider_message_id"`
	Recipient         string    `json:"recipient"`
	Status            string    `json:"status"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ReceiptStore keeps the last reported status per provider message id.
type ReceiptStore interface {
	Upsert(ctx context.Context, providerMessageID, recipient, status string) error
}

// PostgresReceipts backs ReceiptStore with the message_receipts table.
type PostgresReceipts struct {
	pool *pgxpool.Pool
}

func NewPostgresReceipts(pool *pgxpool.Pool) *PostgresReceipts {
	return &PostgresReceipts{pool: pool}
}

func (s *PostgresReceipts) Upsert(ctx context.Context, providerMessageID, recipient, status string) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO message_receipts (provider_message_id, recipient, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider_message_id) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = now()`,
		providerMessageID, recipient, status)
	if err != nil {
		return fmt.Errorf("upsert receipt: %w", err)
	}
	return nil
}

// InMemoryReceipts implements ReceiptStore for unit tests.
type InMemoryReceipts struct {
	mu       sync.Mutex
	receipts map[string]*Receipt
}

func NewInMemoryReceipts() *InMemoryReceipts {
	return &InMemoryReceipts{receipts: make(map[string]*Receipt)}
}

func (s *InMemoryReceipts) Upsert(_ context.Context, providerMessageID, recipient, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts[providerMessageID] = &Receipt{
		ProviderMessageID: providerMessageID,
		Recipient:         recipient,
		Status:            status,
		UpdatedAt:         time.Now(),
	}
	return nil
}

// Get returns a receipt by message id; tests only.
func (s *InMemoryReceipts) Get(providerMessageID string) (*Receipt, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	receipt, ok := s.receipts[providerMessageID]
	if !ok {
		return nil, false
	}
	clone := *receipt
	return &clone, true
}
