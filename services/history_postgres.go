package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"order-display/models"
)

// PostgresHistory archives completed orders into the order_history table.
type PostgresHistory struct {
	pool *pgxpool.Pool
}

func NewPostgresHistory(pool *pgxpool.Pool) *PostgresHistory {
	return &PostgresHistory{pool: pool}
}

// EnsureOrderHistoryTable creates order_history if missing (safety net when migrate was not run).
func (h *PostgresHistory) EnsureOrderHistoryTable(ctx context.Context) error {
	_, err := h.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS order_history (
			seq          BIGSERIAL,
			order_id     TEXT PRIMARY KEY,
			payload      JSONB NOT NULL,
			completed_at TIMESTAMPTZ,
			archived_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_order_history_seq ON order_history(seq);
	`)
	return err
}

func isHistoryRelationMissing(err error) bool {
	return err != nil && strings.Contains(err.Error(), "order_history") && strings.Contains(err.Error(), "does not exist")
}

// Archive inserts the order; a second archive of the same id keeps the first row.
func (h *PostgresHistory) Archive(ctx context.Context, o *models.Order) error {
	if o == nil {
		return nil
	}
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal order %s: %w", o.OrderID, err)
	}
	err = h.insert(ctx, o, payload)
	if isHistoryRelationMissing(err) {
		if ensureErr := h.EnsureOrderHistoryTable(ctx); ensureErr != nil {
			return ensureErr
		}
		err = h.insert(ctx, o, payload)
	}
	if err != nil {
		return fmt.Errorf("archive order %s: %w", o.OrderID, err)
	}
	return nil
}

func (h *PostgresHistory) insert(ctx context.Context, o *models.Order, payload []byte) error {
	_, err := h.pool.Exec(ctx, `
		INSERT INTO order_history (order_id, payload, completed_at, archived_at)
		VALUES ($1, $2::jsonb, $3, now())
		ON CONFLICT (order_id) DO NOTHING`,
		o.OrderID, string(payload), o.CompletedAt,
	)
	return err
}

func (h *PostgresHistory) Get(ctx context.Context, orderID string) (*models.Order, error) {
	var payload []byte
	err := h.pool.QueryRow(ctx, `SELECT payload FROM order_history WHERE order_id = $1`, orderID).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isHistoryRelationMissing(err) {
			return nil, NewNotFoundError(ErrMsgHistoryNotFound)
		}
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	var o models.Order
	if err := json.Unmarshal(payload, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order %s: %w", orderID, err)
	}
	return &o, nil
}

func (h *PostgresHistory) List(ctx context.Context) ([]*models.Order, error) {
	rows, err := h.pool.Query(ctx, `SELECT payload FROM order_history ORDER BY seq ASC`)
	if err != nil {
		if isHistoryRelationMissing(err) {
			return []*models.Order{}, nil
		}
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()
	list := []*models.Order{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var o models.Order
		if err := json.Unmarshal(payload, &o); err != nil {
			return nil, fmt.Errorf("unmarshal history row: %w", err)
		}
		list = append(list, &o)
	}
	return list, rows.Err()
}
