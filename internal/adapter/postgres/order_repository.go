package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/YelzhanWeb/catering/internal/domain"
	"github.com/YelzhanWeb/catering/internal/interfaces"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type orderRepository struct {
	db DB
}

func NewOrderRepository(db DB) interfaces.OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `
	id, number, status, selections, promotion_code, promotion_id,
	subtotal, discount_amount, tax, delivery_fee, total,
	payment, delivery_tracking, version, created_at, updated_at`

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	selections, err := json.Marshal(order.Selections)
	if err != nil {
		return fmt.Errorf("failed to encode selections: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO orders (id, number, status, customer_id, selections, promotion_code, promotion_id,
		                    subtotal, discount_amount, tax, delivery_fee, total, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = tx.Exec(ctx, query,
		order.ID, order.Number, order.Status, order.CustomerID(), selections, order.PromotionCode, order.PromotionID,
		order.Pricing.Subtotal, order.Pricing.DiscountAmount, order.Pricing.Tax, order.Pricing.DeliveryFee, order.Pricing.Total,
		order.Version, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	logQuery := `
		INSERT INTO order_status_log (order_id, status, event, changed_by, changed_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = tx.Exec(ctx, logQuery, order.ID, order.Status, domain.EventOrderCreated, "order-service", order.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to log status: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *orderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrOrderNotFound
	}
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *orderRepository) FindByExternalDeliveryID(ctx context.Context, externalID string) (*domain.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE external_delivery_id = $1`, externalID)
}

func (r *orderRepository) findOne(ctx context.Context, query string, arg any) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return order, nil
}

func scanOrder(row Row) (*domain.Order, error) {
	var (
		order                         domain.Order
		selections, payment, tracking []byte
	)
	err := row.Scan(
		&order.ID, &order.Number, &order.Status, &selections, &order.PromotionCode, &order.PromotionID,
		&order.Pricing.Subtotal, &order.Pricing.DiscountAmount, &order.Pricing.Tax, &order.Pricing.DeliveryFee, &order.Pricing.Total,
		&payment, &tracking, &order.Version, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(selections, &order.Selections); err != nil {
		return nil, fmt.Errorf("failed to decode selections: %w", err)
	}
	if len(payment) > 0 {
		order.Payment = &domain.Payment{}
		if err := json.Unmarshal(payment, order.Payment); err != nil {
			return nil, fmt.Errorf("failed to decode payment: %w", err)
		}
	}
	if len(tracking) > 0 {
		order.DeliveryTracking = &domain.DeliveryTracking{}
		if err := json.Unmarshal(tracking, order.DeliveryTracking); err != nil {
			return nil, fmt.Errorf("failed to decode delivery tracking: %w", err)
		}
	}
	return &order, nil
}

// UpdateWithLog is a compare-and-set on the version column.
func (r *orderRepository) UpdateWithLog(ctx context.Context, order *domain.Order, expectedVersion int, entry *domain.StatusLog) error {
	payment, err := nullableJSON(order.Payment != nil, order.Payment)
	if err != nil {
		return fmt.Errorf("failed to encode payment: %w", err)
	}
	tracking, err := nullableJSON(order.DeliveryTracking != nil, order.DeliveryTracking)
	if err != nil {
		return fmt.Errorf("failed to encode delivery tracking: %w", err)
	}
	var externalID *string
	if order.DeliveryTracking != nil && order.DeliveryTracking.ExternalDeliveryID != "" {
		externalID = &order.DeliveryTracking.ExternalDeliveryID
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE orders
		SET status = $1, payment = $2, delivery_tracking = $3, external_delivery_id = $4,
		    updated_at = $5, version = version + 1
		WHERE id = $6 AND version = $7
	`
	tag, err := tx.Exec(ctx, query, order.Status, payment, tracking, externalID, order.UpdatedAt, order.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, order.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check order: %w", err)
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrConcurrentUpdate
	}

	if entry != nil {
		changedAt := entry.ChangedAt
		if changedAt.IsZero() {
			changedAt = time.Now()
		}
		logQuery := `
			INSERT INTO order_status_log (order_id, status, event, changed_by, changed_at, notes)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		if _, err := tx.Exec(ctx, logQuery, order.ID, entry.Status, entry.Event, entry.ChangedBy, changedAt, entry.Notes); err != nil {
			return fmt.Errorf("failed to log status: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit order update: %w", err)
	}
	order.Version = expectedVersion + 1
	return nil
}

func nullableJSON(present bool, v any) ([]byte, error) {
	if !present {
		return nil, nil
	}
	return json.Marshal(v)
}

func (r *orderRepository) GetStatusHistory(ctx context.Context, orderID string) ([]*domain.StatusLog, error) {
	query := `
		SELECT id, order_id, status, event, changed_by, changed_at, notes
		FROM order_status_log
		WHERE order_id = $1
		ORDER BY changed_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query status history: %w", err)
	}
	defer rows.Close()

	var logs []*domain.StatusLog
	for rows.Next() {
		var log domain.StatusLog
		if err := rows.Scan(&log.ID, &log.OrderID, &log.Status, &log.Event, &log.ChangedBy, &log.ChangedAt, &log.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan status log: %w", err)
		}
		logs = append(logs, &log)
	}

	return logs, nil
}

// GenerateOrderNumber numbers orders per UTC day: CAT_YYYYMMDD_NNN. The upsert
// locks the day's counter row, so concurrent callers never share a number.
func (r *orderRepository) GenerateOrderNumber(ctx context.Context) (string, error) {
	now := time.Now().UTC()

	query := `
		INSERT INTO order_number_counters (day, last_value) VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET last_value = order_number_counters.last_value + 1
		RETURNING last_value
	`

	var seq int
	if err := r.db.QueryRow(ctx, query, now.Format(time.DateOnly)).Scan(&seq); err != nil {
		return "", fmt.Errorf("failed to allocate order number: %w", err)
	}

	return fmt.Sprintf("CAT_%s_%03d", now.Format("20060102"), seq), nil
}

func (r *orderRepository) CountActiveOrdersByCustomer(ctx context.Context, customerID string) (int, error) {
	query := `SELECT COUNT(*) FROM orders WHERE customer_id = $1 AND status <> $2`

	var count int
	if err := r.db.QueryRow(ctx, query, customerID, domain.StatusCancelled).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count customer orders: %w", err)
	}
	return count, nil
}
