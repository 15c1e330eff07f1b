package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"regnotify/pkg/sentinel"
)

// PostgresStore keeps a single settings row; Save updates it in place and
// creates it on first use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Load(ctx context.Context) (*Settings, error) {
	var loaded Settings
	err := s.pool.QueryRow(ctx, `SELECT selected_groups, admin_numbers, registration_message, pass_template_path
		FROM notifier_settings ORDER BY id DESC LIMIT 1`).Scan(
		&loaded.SelectedGroups, &loaded.AdminNumbers,
		&loaded.RegistrationMessage, &loaded.PassTemplatePath)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return &loaded, nil
}

func (s *PostgresStore) Save(ctx context.Context, next *Settings) error {
	tag, err := s.pool.Exec(ctx, `UPDATE notifier_settings SET
			selected_groups = $1,
			admin_numbers = $2,
			registration_message = $3,
			pass_template_path = $4,
			updated_at = now()
		WHERE id = (SELECT MAX(id) FROM notifier_settings)`,
		next.SelectedGroups, next.AdminNumbers,
		next.RegistrationMessage, next.PassTemplatePath)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	_, err = s.pool.Exec(ctx, `INSERT INTO notifier_settings
			(selected_groups, admin_numbers, registration_message, pass_template_path)
		VALUES ($1, $2, $3, $4)`,
		next.SelectedGroups, next.AdminNumbers,
		next.RegistrationMessage, next.PassTemplatePath)
	if err != nil {
		return fmt.Errorf("insert settings: %w", err)
	}
	return nil
}
