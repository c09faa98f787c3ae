package interfaces

import (
	"context"
	"time"

	"github.com/YelzhanWeb/catering/internal/domain"
)

// Repository interfaces (Adapter/Postgres)
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	FindByExternalDeliveryID(ctx context.Context, externalID string) (*domain.Order, error)
	GenerateOrderNumber(ctx context.Context) (string, error)
	// UpdateWithLog writes status, payment and tracking only if the stored
	// version still equals expectedVersion, and appends entry when it is not nil.
	// It returns domain.ErrConcurrentUpdate otherwise.
	UpdateWithLog(ctx context.Context, order *domain.Order, expectedVersion int, entry *domain.StatusLog) error
	GetStatusHistory(ctx context.Context, orderID string) ([]*domain.StatusLog, error)
	CountActiveOrdersByCustomer(ctx context.Context, customerID string) (int, error)
}

type PromotionRepository interface {
	FindByCode(ctx context.Context, code string) (*domain.Promotion, error)
	CountUsagesByCustomer(ctx context.Context, promotionID, customerID string) (int, error)
	// RecordUsage is idempotent per order id. It reports whether a new usage was stored.
	RecordUsage(ctx context.Context, usage domain.PromotionUsage) (bool, error)
}

type MenuRepository interface {
	Create(ctx context.Context, item *domain.MenuItem) error
	Update(ctx context.Context, item *domain.MenuItem) error
	FindByID(ctx context.Context, id string) (*domain.MenuItem, error)
	List(ctx context.Context, category *domain.MenuCategory, onlyAvailable bool) ([]*domain.MenuItem, error)
}

type StatsRepository interface {
	SalesStats(ctx context.Context, from, to time.Time, topN int) (*domain.SalesStats, error)
}
