package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/YelzhanWeb/catering/internal/domain"
	"github.com/YelzhanWeb/catering/internal/interfaces"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type promotionRepository struct {
	db DB
}

func NewPromotionRepository(db DB) interfaces.PromotionRepository {
	return &promotionRepository{db: db}
}

// FindByCode matches codes case-insensitively.
func (r *promotionRepository) FindByCode(ctx context.Context, code string) (*domain.Promotion, error) {
	query := `
		SELECT id, code, description, type, value, minimum_order_amount, maximum_discount,
		       usage_limit, usage_count, per_user_limit, valid_from, valid_until, status, first_time_customer_only
		FROM promotions
		WHERE upper(code) = upper($1)
	`

	var (
		p                    domain.Promotion
		minimum, maxDiscount decimal.NullDecimal
	)
	err := r.db.QueryRow(ctx, query, code).Scan(
		&p.ID, &p.Code, &p.Description, &p.Type, &p.Value, &minimum, &maxDiscount,
		&p.UsageLimit, &p.UsageCount, &p.PerUserLimit, &p.ValidFrom, &p.ValidUntil, &p.Status, &p.FirstTimeCustomerOnly,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPromotionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load promotion: %w", err)
	}

	if minimum.Valid {
		p.MinimumOrderAmount = &minimum.Decimal
	}
	if maxDiscount.Valid {
		p.MaximumDiscount = &maxDiscount.Decimal
	}
	return &p, nil
}

func (r *promotionRepository) CountUsagesByCustomer(ctx context.Context, promotionID, customerID string) (int, error) {
	query := `SELECT COUNT(*) FROM promotion_usages WHERE promotion_id = $1 AND customer_id = $2`

	var count int
	if err := r.db.QueryRow(ctx, query, promotionID, customerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count promotion usages: %w", err)
	}
	return count, nil
}

// RecordUsage inserts the usage and claims one redemption in a single transaction.
// A second usage for the same order changes nothing. The claim only succeeds
// while redemptions are left, and the row lock it takes makes the per-customer
// count below see every committed usage of the promotion.
func (r *promotionRepository) RecordUsage(ctx context.Context, usage domain.PromotionUsage) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO promotion_usages (id, promotion_id, customer_id, order_id, discount_amount, used_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (order_id) DO NOTHING
	`
	tag, err := tx.Exec(ctx, insert, usage.ID, usage.PromotionID, usage.CustomerID, usage.OrderID, usage.DiscountAmount, usage.UsedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert promotion usage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	claim := `
		UPDATE promotions SET usage_count = usage_count + 1
		WHERE id = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)
	`
	tag, err = tx.Exec(ctx, claim, usage.PromotionID)
	if err != nil {
		return false, fmt.Errorf("failed to increment usage count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM promotions WHERE id = $1)`, usage.PromotionID).Scan(&exists); err != nil {
			return false, fmt.Errorf("failed to check promotion: %w", err)
		}
		if !exists {
			return false, domain.ErrPromotionNotFound
		}
		return false, domain.ErrUsageLimitReached
	}

	if usage.CustomerID != "" {
		perUser := `
			SELECT per_user_limit,
			       (SELECT COUNT(*) FROM promotion_usages WHERE promotion_id = $1 AND customer_id = $2)
			FROM promotions WHERE id = $1
		`
		var (
			limit *int
			used  int
		)
		if err := tx.QueryRow(ctx, perUser, usage.PromotionID, usage.CustomerID).Scan(&limit, &used); err != nil {
			return false, fmt.Errorf("failed to count promotion usages: %w", err)
		}
		// used includes the row inserted above
		if limit != nil && used > *limit {
			return false, domain.ErrPerUserLimitReached
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit promotion usage: %w", err)
	}
	return true, nil
}
