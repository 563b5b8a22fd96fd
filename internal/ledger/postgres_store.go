package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const createOrdersTable = `
CREATE TABLE IF NOT EXISTS trader_orders (
	order_id           TEXT PRIMARY KEY,
	user_id            TEXT NOT NULL,
	order_type         TEXT NOT NULL,
	items              JSONB NOT NULL,
	total              INTEGER NOT NULL,
	status             TEXT NOT NULL,
	confirmed          BOOLEAN NOT NULL DEFAULT FALSE,
	confirmed_by       TEXT NOT NULL DEFAULT '',
	paid               BOOLEAN NOT NULL DEFAULT FALSE,
	payment_message_id TEXT,
	storage_location   TEXT NOT NULL DEFAULT '',
	access_code        TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL,
	seq                BIGSERIAL
);
CREATE INDEX IF NOT EXISTS idx_trader_orders_user ON trader_orders (user_id, seq);
`

// PostgresStore is the transactional ledger backend. It keeps the same
// record semantics as the file store but with per-row updates instead of
// whole-document rewrites.
type PostgresStore struct {
	db *sql.DB
}

// ConnectPostgres opens and verifies a PostgreSQL connection.
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// NewPostgresStore creates the ledger table if needed and returns the store.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if _, err := db.Exec(createOrdersTable); err != nil {
		return nil, fmt.Errorf("failed to create orders table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

const orderColumns = `order_id, user_id, order_type, items, total, status,
	confirmed, confirmed_by, paid, payment_message_id,
	storage_location, access_code, created_at, updated_at`

func scanRecord(row interface{ Scan(...any) error }) (*Record, error) {
	var rec Record
	var items []byte
	err := row.Scan(&rec.OrderID, &rec.UserID, &rec.Type, &items, &rec.Total, &rec.Status,
		&rec.Confirmed, &rec.ConfirmedBy, &rec.Paid, &rec.PaymentMessageID,
		&rec.StorageLocation, &rec.AccessCode, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &rec.Items); err != nil {
		return nil, fmt.Errorf("failed to decode order items: %w", err)
	}
	return &rec, nil
}

func (s *PostgresStore) Append(ctx context.Context, rec Record) error {
	items, err := json.Marshal(rec.Items)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trader_orders (`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		rec.OrderID, rec.UserID, rec.Type, items, rec.Total, rec.Status,
		rec.Confirmed, rec.ConfirmedBy, rec.Paid, rec.PaymentMessageID,
		rec.StorageLocation, rec.AccessCode, rec.CreatedAt, rec.UpdatedAt)
	return err
}

func (s *PostgresStore) queryRecords(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) Orders(ctx context.Context, userID string) ([]Record, error) {
	return s.queryRecords(ctx,
		`SELECT `+orderColumns+` FROM trader_orders WHERE user_id = $1 ORDER BY seq`, userID)
}

func (s *PostgresStore) All(ctx context.Context) (map[string][]Record, error) {
	records, err := s.queryRecords(ctx,
		`SELECT `+orderColumns+` FROM trader_orders ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	doc := make(map[string][]Record)
	for _, rec := range records {
		doc[rec.UserID] = append(doc[rec.UserID], rec)
	}
	return doc, nil
}

func (s *PostgresStore) Find(ctx context.Context, orderID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM trader_orders WHERE order_id = $1`, orderID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	return rec, err
}

func (s *PostgresStore) FindLatestUnpaidConfirmed(ctx context.Context, userID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+` FROM trader_orders
		WHERE user_id = $1 AND confirmed AND NOT paid
		ORDER BY seq DESC LIMIT 1`, userID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (s *PostgresStore) Update(ctx context.Context, orderID string, mutate func(*Record) error) (*Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM trader_orders WHERE order_id = $1 FOR UPDATE`, orderID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := mutate(rec); err != nil {
		return nil, err
	}

	items, err := json.Marshal(rec.Items)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE trader_orders SET
			items = $2, total = $3, status = $4, confirmed = $5, confirmed_by = $6,
			paid = $7, payment_message_id = $8, storage_location = $9,
			access_code = $10, updated_at = $11
		WHERE order_id = $1`,
		rec.OrderID, items, rec.Total, rec.Status, rec.Confirmed, rec.ConfirmedBy,
		rec.Paid, rec.PaymentMessageID, rec.StorageLocation, rec.AccessCode, rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM trader_orders`)
	return err
}
