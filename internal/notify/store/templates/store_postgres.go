package templates

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"regnotify/internal/notify/models"
	"regnotify/internal/notify/template"
	"regnotify/pkg/sentinel"
)

// PostgresStore persists templates in the message_templates table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) GetByStage(ctx context.Context, stage models.Stage) (*models.Template, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, name, template_type, message_text, is_active, created_at, updated_at
		FROM message_templates WHERE template_type = $1 AND is_active`, string(stage))
	tmpl, err := scanTemplate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template %s: %w", stage, err)
	}
	return tmpl, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Template, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, template_type, message_text, is_active, created_at, updated_at
		FROM message_templates ORDER BY template_type`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var tmpls []*models.Template
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		tmpls = append(tmpls, tmpl)
	}
	return tmpls, rows.Err()
}

func (s *PostgresStore) Save(ctx context.Context, stage models.Stage, name, text string) error {
	if !stage.Valid() {
		return fmt.Errorf("unknown stage %q: %w", stage, sentinel.ErrNotFound)
	}
	if err := template.Validate(text, knownFieldsFor(stage)); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO message_templates (name, template_type, message_text)
		VALUES ($1, $2, $3)
		ON CONFLICT (template_type) DO UPDATE SET
			name = EXCLUDED.name,
			message_text = EXCLUDED.message_text,
			is_active = TRUE,
			updated_at = now()`,
		name, string(stage), text)
	if err != nil {
		return fmt.Errorf("save template %s: %w", stage, err)
	}
	return nil
}

func scanTemplate(row pgx.Row) (*models.Template, error) {
	var tmpl models.Template
	var stage string
	err := row.Scan(&tmpl.ID, &tmpl.Name, &stage, &tmpl.Text, &tmpl.IsActive,
		&tmpl.CreatedAt, &tmpl.UpdatedAt)
	if err != nil {
		return nil, err
	}
	tmpl.Stage = models.Stage(stage)
	return &tmpl, nil
}
