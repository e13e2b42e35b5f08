package deadletter

import (
	"context"
	"database/sql"
	"encoding/json"
)

type Repository interface {
	Save(ctx context.Context, msg *Message) error
	List(ctx context.Context, limit int) ([]Message, error)
	Get(ctx context.Context, dlqID string) (*Message, error)
	MarkRequeued(ctx context.Context, dlqID string) error
	Count(ctx context.Context) (int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Save(ctx context.Context, msg *Message) error {
	query := `INSERT INTO dead_letters (dlq_id, original_message, error_type, error_message, attempt_count, failed_at, failure_reason, chunk_id, tenant_id, document_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.ExecContext(ctx, query,
		msg.DLQID, []byte(msg.OriginalMessage), msg.ErrorType, msg.ErrorMessage,
		msg.AttemptCount, msg.FailedAt, msg.FailureReason,
		msg.ChunkID, msg.TenantID, msg.DocumentID)
	return err
}

func (r *PostgresRepo) List(ctx context.Context, limit int) ([]Message, error) {
	query := `SELECT dlq_id, original_message, error_type, error_message, attempt_count, failed_at, failure_reason, chunk_id, tenant_id, document_id
		FROM dead_letters WHERE NOT requeued ORDER BY failed_at DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

func (r *PostgresRepo) Get(ctx context.Context, dlqID string) (*Message, error) {
	query := `SELECT dlq_id, original_message, error_type, error_message, attempt_count, failed_at, failure_reason, chunk_id, tenant_id, document_id
		FROM dead_letters WHERE dlq_id = $1`
	row := r.db.QueryRowContext(ctx, query, dlqID)
	return scanMessage(row.Scan)
}

func (r *PostgresRepo) MarkRequeued(ctx context.Context, dlqID string) error {
	query := `UPDATE dead_letters SET requeued = TRUE WHERE dlq_id = $1`
	res, err := r.db.ExecContext(ctx, query, dlqID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM dead_letters WHERE NOT requeued`
	err := r.db.QueryRowContext(ctx, query).Scan(&count)
	return count, err
}

func scanMessage(scan func(dest ...any) error) (*Message, error) {
	m := &Message{}
	var payload []byte
	err := scan(&m.DLQID, &payload, &m.ErrorType, &m.ErrorMessage, &m.AttemptCount,
		&m.FailedAt, &m.FailureReason, &m.ChunkID, &m.TenantID, &m.DocumentID)
	if err != nil {
		return nil, err
	}
	m.OriginalMessage = json.RawMessage(payload)
	return m, nil
}
