package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"regnotify/internal/notify/models"
	"regnotify/pkg/sentinel"
)

// PostgresStore persists tracking records in PostgreSQL. All mutations are
// single-row, single-statement updates; the claim primitive relies on the
// conditional UPDATE's affected-row count for mutual exclusion.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a PostgreSQL-backed tracking store.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// stageColumns maps a stage onto its bookkeeping columns.
type stageColumns struct {
	sent, sentAt, retry, attempt string
}

func columnsFor(stage models.Stage) (stageColumns, error) {
	switch stage {
	case models.StageConfirmation:
		return stageColumns{"user_message_sent", "user_sent_at", "retry_count", "last_attempt"}, nil
	case models.StageAdmin:
		return stageColumns{"admin_notification_sent", "admin_sent_at", "admin_retry_count", "admin_last_attempt"}, nil
	case models.StageBarcode:
		return stageColumns{"barcode_sent", "barcode_sent_at", "barcode_retry_count", "barcode_last_attempt"}, nil
	case models.StageChangeRequest:
		return stageColumns{"change_request_sent", "change_request_sent_at", "change_request_retry_count", "change_request_last_attempt"}, nil
	}
	return stageColumns{}, fmt.Errorf("unknown stage %q", stage)
}

const trackingColumns = `id, registration_id, registration_no, name, mobile, village, state, position,
	age, gender, male_members, female_members, child_members, total_members, connected, COALESCE(message, ''),
	user_message_sent, user_sent_at, retry_count, last_attempt,
	admin_notification_sent, admin_sent_at, admin_retry_count, admin_last_attempt,
	barcode_sent, barcode_sent_at, barcode_retry_count, barcode_last_attempt,
	change_request_sent, change_request_sent_at, change_request_retry_count, change_request_last_attempt,
	is_processing, created_at, updated_at`

func (s *PostgresStore) Upsert(ctx context.Context, reg models.Registration) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO registration_sync
			(registration_id, registration_no, name, mobile, village, state, position, age, gender,
			 male_members, female_members, child_members, total_members, connected, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (registration_id) DO UPDATE SET
			registration_no = EXCLUDED.registration_no,
			name = EXCLUDED.name,
			mobile = EXCLUDED.mobile,
			village = EXCLUDED.village,
			state = EXCLUDED.state,
			position = EXCLUDED.position,
			age = EXCLUDED.age,
			gender = EXCLUDED.gender,
			male_members = EXCLUDED.male_members,
			female_members = EXCLUDED.female_members,
			child_members = EXCLUDED.child_members,
			total_members = EXCLUDED.total_members,
			connected = EXCLUDED.connected,
			message = EXCLUDED.message,
			updated_at = now()`,
		reg.ID, reg.RegistrationNo, reg.Name, reg.Mobile, reg.Village, reg.State,
		reg.Position, reg.Age, reg.Gender, reg.MaleMembers, reg.FemaleMembers,
		reg.ChildMembers, reg.TotalMembers, reg.Connected, reg.Message,
	)
	if err != nil {
		return fmt.Errorf("upsert tracking row: %w", err)
	}
	return nil
}

func (s *PostgresStore) MaxRegistrationID(ctx context.Context) (int64, error) {
	var max int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(registration_id), 0) FROM registration_sync`).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max registration id: %w", err)
	}
	return max, nil
}

func (s *PostgresStore) Pending(ctx context.Context, stage models.Stage, limit int) ([]*models.TrackingRecord, error) {
	cols, err := columnsFor(stage)
	if err != nil {
		return nil, err
	}

	predicate := fmt.Sprintf(`NOT %s
		AND (%s IS NULL OR %s < now() - interval '30 seconds')
		AND %s < $2`, cols.sent, cols.attempt, cols.attempt, cols.retry)

	switch stage {
	case models.StageBarcode:
		predicate += ` AND user_message_sent AND NOT is_processing
			AND user_sent_at <= now() - interval '2 seconds'`
	case models.StageChangeRequest:
		predicate += ` AND user_message_sent
			AND user_sent_at <= now() - interval '1 minute'`
	}

	query := fmt.Sprintf(`SELECT %s FROM registration_sync
		WHERE %s
		ORDER BY registration_id ASC
		LIMIT $1`, trackingColumns, predicate)

	rows, err := s.pool.Query(ctx, query, limit, models.MaxAttempts)
	if err != nil {
		return nil, fmt.Errorf("select pending %s: %w", stage, err)
	}
	defer rows.Close()

	var records []*models.TrackingRecord
	for rows.Next() {
		record, err := scanTracking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending %s: %w", stage, err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *PostgresStore) MarkSent(ctx context.Context, registrationID int64, stage models.Stage) error {
	cols, err := columnsFor(stage)
	if err != nil {
		return err
	}
	lock := ""
	if stage == models.StageBarcode {
		lock = ", is_processing = FALSE"
	}
	query := fmt.Sprintf(`UPDATE registration_sync
		SET %s = TRUE, %s = now(), %s = 0, updated_at = now()%s
		WHERE registration_id = $1`, cols.sent, cols.sentAt, cols.retry, lock)
	tag, err := s.pool.Exec(ctx, query, registrationID)
	if err != nil {
		return fmt.Errorf("mark %s sent: %w", stage, err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, registrationID int64, stage models.Stage, permanent bool) error {
	cols, err := columnsFor(stage)
	if err != nil {
		return err
	}
	retryExpr := fmt.Sprintf("%s + 1", cols.retry)
	if permanent {
		retryExpr = fmt.Sprintf("GREATEST(%s + 1, %d)", cols.retry, models.MaxAttempts)
	}
	lock := ""
	if stage == models.StageBarcode {
		lock = ", is_processing = FALSE"
	}
	query := fmt.Sprintf(`UPDATE registration_sync
		SET %s = %s, %s = now(), updated_at = now()%s
		WHERE registration_id = $1`, cols.retry, retryExpr, cols.attempt, lock)
	tag, err := s.pool.Exec(ctx, query, registrationID)
	if err != nil {
		return fmt.Errorf("mark %s failed: %w", stage, err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ClaimProcessing(ctx context.Context, registrationID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE registration_sync
		SET is_processing = TRUE, updated_at = now()
		WHERE registration_id = $1 AND NOT is_processing`, registrationID)
	if err != nil {
		return false, fmt.Errorf("claim processing: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) ReleaseProcessing(ctx context.Context, registrationID int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE registration_sync
		SET is_processing = FALSE, updated_at = now()
		WHERE registration_id = $1`, registrationID)
	if err != nil {
		return fmt.Errorf("release processing: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReleaseStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE registration_sync
		SET is_processing = FALSE, updated_at = now()
		WHERE is_processing AND updated_at < now() - $1::interval`,
		olderThan.String())
	if err != nil {
		return 0, fmt.Errorf("release stale locks: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) FindByNoOrMobile(ctx context.Context, registrationNo, mobile string) (*models.TrackingRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM registration_sync
		WHERE registration_no = $1 OR mobile = $2
		ORDER BY registration_id ASC
		LIMIT 1`, trackingColumns)
	row := s.pool.QueryRow(ctx, query, registrationNo, mobile)
	record, err := scanTracking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find tracking row: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) Stats(ctx context.Context) (*models.SyncStats, error) {
	stats := &models.SyncStats{}
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE user_message_sent),
			COUNT(*) FILTER (WHERE admin_notification_sent),
			COUNT(*) FILTER (WHERE barcode_sent),
			COUNT(*) FILTER (WHERE change_request_sent),
			COUNT(*) FILTER (WHERE NOT user_message_sent OR NOT admin_notification_sent
				OR NOT barcode_sent OR NOT change_request_sent),
			COUNT(*) FILTER (WHERE
				(NOT user_message_sent AND retry_count >= %[1]d)
				OR (NOT admin_notification_sent AND admin_retry_count >= %[1]d)
				OR (NOT barcode_sent AND barcode_retry_count >= %[1]d)
				OR (NOT change_request_sent AND change_request_retry_count >= %[1]d))
		FROM registration_sync`, models.MaxAttempts)).Scan(
		&stats.TotalSynced, &stats.ConfirmationsSent, &stats.AdminAlertsSent,
		&stats.BarcodesSent, &stats.ChangeRequestsSent, &stats.Pending,
		&stats.PermanentlyFailed,
	)
	if err != nil {
		return nil, fmt.Errorf("tracking stats: %w", err)
	}
	return stats, nil
}

func scanTracking(row pgx.Row) (*models.TrackingRecord, error) {
	var r models.TrackingRecord
	err := row.Scan(
		&r.ID, &r.RegistrationID, &r.RegistrationNo, &r.Name, &r.Mobile, &r.Village,
		&r.State, &r.Position, &r.Age, &r.Gender, &r.MaleMembers, &r.FemaleMembers,
		&r.ChildMembers, &r.TotalMembers, &r.Connected, &r.Message,
		&r.Confirmation.Sent, &r.Confirmation.SentAt, &r.Confirmation.RetryCount, &r.Confirmation.LastAttempt,
		&r.Admin.Sent, &r.Admin.SentAt, &r.Admin.RetryCount, &r.Admin.LastAttempt,
		&r.Barcode.Sent, &r.Barcode.SentAt, &r.Barcode.RetryCount, &r.Barcode.LastAttempt,
		&r.ChangeRequest.Sent, &r.ChangeRequest.SentAt, &r.ChangeRequest.RetryCount, &r.ChangeRequest.LastAttempt,
		&r.IsProcessing, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}
