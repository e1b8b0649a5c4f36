package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/schnillerman/care-contracts-api/internal/models"
)

// CategoryRepository provides lookups for care categories.
type CategoryRepository struct {
	db *sqlx.DB
}

// NewCategoryRepository creates a new category repository.
func NewCategoryRepository(db *sqlx.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// List returns all care categories ordered by code.
func (r *CategoryRepository) List(ctx context.Context) ([]models.CareCategory, error) {
	const query = `SELECT id, code, name FROM care_categories ORDER BY code ASC`
	var categories []models.CareCategory
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("list care categories: %w", err)
	}
	return categories, nil
}

// FindByID loads a care category by id.
func (r *CategoryRepository) FindByID(ctx context.Context, id string) (*models.CareCategory, error) {
	const query = `SELECT id, code, name FROM care_categories WHERE id = $1`
	var category models.CareCategory
	if err := r.db.GetContext(ctx, &category, query, id); err != nil {
		return nil, err
	}
	return &category, nil
}
