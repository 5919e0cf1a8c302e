package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

type CategoryRepository struct {
	db     DBTX
	logger *log.Logger
}

func NewCategoryRepository(db DBTX, logger *log.Logger) *CategoryRepository {
	return &CategoryRepository{db: db, logger: logger}
}

// List returns categories by name, case-insensitively, then by id.
func (r *CategoryRepository) List(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, icon
		FROM categories
		ORDER BY name COLLATE NOCASE ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

func (r *CategoryRepository) Get(ctx context.Context, id int64) (core.Category, error) {
	var c core.Category
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, icon FROM categories WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Icon)
	if errors.Is(err, sql.ErrNoRows) {
		return c, fmt.Errorf("category %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return c, fmt.Errorf("get category %d: %w", id, err)
	}
	return c, nil
}

func (r *CategoryRepository) Create(ctx context.Context, name, icon string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (name, icon) VALUES (?, ?)`, name, icon)
	if err != nil {
		return 0, fmt.Errorf("create category: %w", mapWriteError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("category id: %w", err)
	}

	r.logger.InfoContext(ctx, "Category created",
		log.FieldOperation, log.OpCreate,
		log.FieldCategoryID, id,
		log.FieldName, name)
	return id, nil
}

func (r *CategoryRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	return n, nil
}
