package registrations

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"regnotify/internal/notify/models"
)

const registrationColumns = `id, registration_no, name, mobile,
	COALESCE(village, ''), COALESCE(state, ''), COALESCE(position, ''),
	COALESCE(age, 0), COALESCE(gender, ''),
	COALESCE(male_members, 0), COALESCE(female_members, 0), COALESCE(child_members, 0),
	COALESCE(total_members, 0), COALESCE(connected, ''), COALESCE(message, '')`

// PostgresSource reads the registrations table over pgx.
type PostgresSource struct {
	pool *pgxpool.Pool
}

func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

func (s *PostgresSource) ListAfter(ctx context.Context, afterID int64) ([]models.Registration, error) {
	query := fmt.Sprintf(`SELECT %s FROM registrations WHERE id > $1 ORDER BY id ASC`,
		registrationColumns)
	rows, err := s.pool.Query(ctx, query, afterID)
	if err != nil {
		return nil, fmt.Errorf("list registrations after %d: %w", afterID, err)
	}
	defer rows.Close()
	return collectRegistrations(rows)
}

func (s *PostgresSource) Latest(ctx context.Context, limit int) ([]models.Registration, error) {
	query := fmt.Sprintf(`SELECT %s FROM registrations ORDER BY id DESC LIMIT $1`,
		registrationColumns)
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("latest registrations: %w", err)
	}
	defer rows.Close()
	return collectRegistrations(rows)
}

func (s *PostgresSource) All(ctx context.Context) ([]models.Registration, error) {
	query := fmt.Sprintf(`SELECT %s FROM registrations ORDER BY id ASC`, registrationColumns)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("all registrations: %w", err)
	}
	defer rows.Close()
	return collectRegistrations(rows)
}

func (s *PostgresSource) Mobiles(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT mobile FROM registrations
		WHERE mobile IS NOT NULL AND mobile <> '' ORDER BY mobile`)
	if err != nil {
		return nil, fmt.Errorf("registration mobiles: %w", err)
	}
	defer rows.Close()

	var mobiles []string
	for rows.Next() {
		var mobile string
		if err := rows.Scan(&mobile); err != nil {
			return nil, fmt.Errorf("scan mobile: %w", err)
		}
		mobiles = append(mobiles, mobile)
	}
	return mobiles, rows.Err()
}

func (s *PostgresSource) CountAll(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM registrations`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return count, nil
}

func (s *PostgresSource) CountToday(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE created_at >= CURRENT_DATE`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count today's registrations: %w", err)
	}
	return count, nil
}

func (s *PostgresSource) GenderCounts(ctx context.Context) (map[string]int, error) {
	return s.groupCount(ctx, "gender")
}

func (s *PostgresSource) PositionCounts(ctx context.Context) (map[string]int, error) {
	return s.groupCount(ctx, "position")
}

func (s *PostgresSource) groupCount(ctx context.Context, column string) (map[string]int, error) {
	query := fmt.Sprintf(`SELECT COALESCE(%s, ''), COUNT(*) FROM registrations GROUP BY 1`, column)
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count registrations by %s: %w", column, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("scan %s count: %w", column, err)
		}
		counts[key] = count
	}
	return counts, rows.Err()
}

func collectRegistrations(rows pgx.Rows) ([]models.Registration, error) {
	var regs []models.Registration
	for rows.Next() {
		var r models.Registration
		err := rows.Scan(
			&r.ID, &r.RegistrationNo, &r.Name, &r.Mobile, &r.Village, &r.State,
			&r.Position, &r.Age, &r.Gender, &r.MaleMembers, &r.FemaleMembers,
			&r.ChildMembers, &r.TotalMembers, &r.Connected, &r.Message,
		)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, r)
	}
	return regs, rows.Err()
}
