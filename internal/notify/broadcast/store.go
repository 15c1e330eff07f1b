package broadcast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SentMessage is the audit record of one bulk broadcast.
type SentMessage struct {
	ID            int64     `json:"id"`
	Text          string    `json:"message_text"`
	MediaName     string    `json:"media_name"`
	RecipientType string    `json:"recipient_type"`
	Recipients    []string  `json:"recipients"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// HistoryStore records finished broadcasts.
type HistoryStore interface {
	Record(ctx context.Context, msg *SentMessage) error
	Recent(ctx context.Context, limit int) ([]*SentMessage, error)
}

// PostgresHistory persists broadcasts in the sent_messages table.
type PostgresHistory struct {
	pool *pgxpool.Pool
}

func NewPostgresHistory(pool *pgxpool.Pool) *PostgresHistory {
	return &PostgresHistory{pool: pool}
}

func (s *PostgresHistory) Record(ctx context.Context, msg *SentMessage) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO sent_messages
			(message_text, media_name, recipient_type, recipients, status)
		VALUES ($1, $2, $3, $4, $5)`,
		msg.Text, msg.MediaName, msg.RecipientType, msg.Recipients, msg.Status)
	if err != nil {
		return fmt.Errorf("record broadcast: %w", err)
	}
	return nil
}

func (s *PostgresHistory) Recent(ctx context.Context, limit int) ([]*SentMessage, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, COALESCE(message_text, ''), COALESCE(media_name, ''),
			recipient_type, recipients, status, created_at
		FROM sent_messages ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent broadcasts: %w", err)
	}
	defer rows.Close()

	var msgs []*SentMessage
	for rows.Next() {
		var msg SentMessage
		err := rows.Scan(&msg.ID, &msg.Text, &msg.MediaName, &msg.RecipientType,
			&msg.Recipients, &msg.Status, &msg.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan broadcast: %w", err)
		}
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

// InMemoryHistory implements HistoryStore for unit tests.
type InMemoryHistory struct {
	mu   sync.Mutex
	msgs []*SentMessage
}

func NewInMemoryHistory() *InMemoryHistory {
	return &InMemoryHistory{}
}

func (s *InMemoryHistory) Record(_ context.Context, msg *SentMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *msg
	clone.ID = int64(len(s.msgs) + 1)
	clone.CreatedAt = time.Now()
	clone.Recipients = append([]string(nil), msg.Recipients...)
	s.msgs = append(s.msgs, &clone)
	return nil
}

func (s *InMemoryHistory) Recent(_ context.Context, limit int) ([]*SentMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var msgs []*SentMessage
	for i := len(s.msgs) - 1; i >= 0 && len(msgs) < limit; i-- {
		clone := *s.msgs[i]
		msgs = append(msgs, &clone)
	}
	return msgs, nil
}
