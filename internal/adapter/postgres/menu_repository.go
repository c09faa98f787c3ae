package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/YelzhanWeb/catering/internal/domain"
	"github.com/YelzhanWeb/catering/internal/interfaces"

	"github.com/jackc/pgx/v5"
)

type menuRepository struct {
	db DB
}

func NewMenuRepository(db DB) interfaces.MenuRepository {
	return &menuRepository{db: db}
}

const menuColumns = `id, name, category, description, price, dietary_tags, available, created_at, updated_at`

func (r *menuRepository) Create(ctx context.Context, item *domain.MenuItem) error {
	query := `
		INSERT INTO menu_items (name, category, description, price, dietary_tags, available, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		item.Name, item.Category, item.Description, item.Price, tags(item.DietaryTags), item.Available, item.CreatedAt, item.UpdatedAt,
	).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("failed to create menu item: %w", err)
	}
	return nil
}

func (r *menuRepository) Update(ctx context.Context, item *domain.MenuItem) error {
	query := `
		UPDATE menu_items
		SET name = $1, category = $2, description = $3, price = $4, dietary_tags = $5, available = $6, updated_at = $7
		WHERE id = $8
	`
	tag, err := r.db.Exec(ctx, query,
		item.Name, item.Category, item.Description, item.Price, tags(item.DietaryTags), item.Available, item.UpdatedAt, item.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update menu item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMenuItemNotFound
	}
	return nil
}

func (r *menuRepository) FindByID(ctx context.Context, id string) (*domain.MenuItem, error) {
	item, err := scanMenuItem(r.db.QueryRow(ctx, `SELECT `+menuColumns+` FROM menu_items WHERE id::text = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrMenuItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load menu item: %w", err)
	}
	return item, nil
}

func (r *menuRepository) List(ctx context.Context, category *domain.MenuCategory, onlyAvailable bool) ([]*domain.MenuItem, error) {
	query := `SELECT ` + menuColumns + `
		FROM menu_items
		WHERE ($1::text IS NULL OR category = $1) AND (NOT $2 OR available)
		ORDER BY lower(name)
	`
	var cat *string
	if category != nil {
		c := string(*category)
		cat = &c
	}

	rows, err := r.db.Query(ctx, query, cat, onlyAvailable)
	if err != nil {
		return nil, fmt.Errorf("failed to query menu items: %w", err)
	}
	defer rows.Close()

	var items []*domain.MenuItem
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan menu item: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}

func scanMenuItem(row Row) (*domain.MenuItem, error) {
	var item domain.MenuItem
	err := row.Scan(&item.ID, &item.Name, &item.Category, &item.Description, &item.Price,
		&item.DietaryTags, &item.Available, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func tags(t []string) []string {
	if t == nil {
		return []string{}
	}
	return t
}
