package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/YelzhanWeb/catering/internal/domain"
	"github.com/YelzhanWeb/catering/internal/interfaces"

	"github.com/shopspring/decimal"
)

type statsRepository struct {
	db DB
}

func NewStatsRepository(db DB) interfaces.StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) SalesStats(ctx context.Context, from, to time.Time, topN int) (*domain.SalesStats, error) {
	stats := &domain.SalesStats{
		From:          from,
		To:            to,
		GrossRevenue:  decimal.Zero,
		DiscountTotal: decimal.Zero,
		TaxTotal:      decimal.Zero,
		ByStatus:      map[domain.Status]int{},
	}
	paid := make(map[domain.Status]bool, len(domain.PaidStatuses))
	paidList := make([]string, 0, len(domain.PaidStatuses))
	for _, st := range domain.PaidStatuses {
		paid[st] = true
		paidList = append(paidList, string(st))
	}

	byStatus := `
		SELECT status, COUNT(*), COALESCE(SUM(total), 0), COALESCE(SUM(discount_amount), 0), COALESCE(SUM(tax), 0)
		FROM orders
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY status
	`
	rows, err := r.db.Query(ctx, byStatus, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query order totals: %w", err)
	}
	for rows.Next() {
		var (
			status             domain.Status
			count              int
			total, disc, taxes decimal.Decimal
		)
		if err := rows.Scan(&status, &count, &total, &disc, &taxes); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan order totals: %w", err)
		}
		stats.OrderCount += count
		stats.ByStatus[status] = count
		if paid[status] {
			stats.GrossRevenue = stats.GrossRevenue.Add(total)
			stats.DiscountTotal = stats.DiscountTotal.Add(disc)
			stats.TaxTotal = stats.TaxTotal.Add(taxes)
		}
	}
	rows.Close()

	topItems := `
		SELECT sel->>'menu_item_id', MAX(sel->>'menu_item_name'), COUNT(*)
		FROM orders o,
		     jsonb_array_elements(CASE WHEN jsonb_typeof(o.selections->'lunch_selections') = 'array'
		                               THEN o.selections->'lunch_selections' ELSE '[]'::jsonb END) AS sel
		WHERE o.created_at >= $1 AND o.created_at < $2 AND o.status = ANY($3)
		GROUP BY 1
		ORDER BY 3 DESC, 1
		LIMIT $4
	`
	rows, err = r.db.Query(ctx, topItems, from, to, paidList, topN)
	if err != nil {
		return nil, fmt.Errorf("failed to query menu volumes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v domain.MenuItemVolume
		if err := rows.Scan(&v.MenuItemID, &v.MenuItemName, &v.Count); err != nil {
			return nil, fmt.Errorf("failed to scan menu volume: %w", err)
		}
		stats.TopMenuItems = append(stats.TopMenuItems, v)
	}

	stats.Finalize()
	return stats, nil
}
