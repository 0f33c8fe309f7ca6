package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/khakishop/server/database"
	"github.com/khakishop/server/models"
	"github.com/khakishop/server/pkg"
)

type sqliteProductRepo struct {
	db database.TxQuerier
}

// NewSQLiteProductRepo returns the SQLite ProductRepository.
func NewSQLiteProductRepo(db database.TxQuerier) ProductRepository {
	return &sqliteProductRepo{db: db}
}

// The cover image URL comes from a LEFT JOIN so a missing cover is "".
const productSelect = `
	SELECT p.id, p.slug, p.category, p.name, p.price, p.description, p.cover_image_id,
		COALESCE(i.url, ''), p.is_published, p.created_at, p.updated_at
	FROM products p
	LEFT JOIN images i ON i.id = p.cover_image_id`

func scanProduct(row rowScanner) (*models.Product, error) {
	var p models.Product
	if err := row.Scan(
		&p.ID, &p.Slug, &p.Category, &p.Name, &p.Price, &p.Description, &p.CoverImageID,
		&p.CoverImageURL, &p.IsPublished, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *sqliteProductRepo) Create(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (id, slug, category, name, price, description, cover_image_id, is_published)
		VALUES (lower(hex(randomblob(8))), ?, ?, ?, ?, ?, ?, ?)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		product.Slug, product.Category, product.Name, product.Price,
		product.Description, product.CoverImageID, product.IsPublished,
	).Scan(&product.ID, &product.CreatedAt, &product.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: slug %q already used in %s", pkg.ErrAlreadyExists, product.Slug, product.Category)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: cover image does not exist", pkg.ErrBadRequest)
		}
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

func (r *sqliteProductRepo) GetByID(ctx context.Context, id string) (*models.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, productSelect+` WHERE p.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product by id: %w", err)
	}
	return p, nil
}

func (r *sqliteProductRepo) GetBySlug(ctx context.Context, category, slug string) (*models.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx,
		productSelect+` WHERE p.category = ? AND p.slug = ?`, category, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product by slug: %w", err)
	}
	return p, nil
}

func (r *sqliteProductRepo) ListByCategory(ctx context.Context, category string, publishedOnly bool) ([]models.Product, error) {
	query := productSelect + `
		WHERE p.category = ? AND (? = 0 OR p.is_published = 1)
		ORDER BY p.created_at, p.id`

	rows, err := r.db.QueryContext(ctx, query, category, publishedOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product rows: %w", err)
	}

	return products, nil
}

func (r *sqliteProductRepo) Update(ctx context.Context, product *models.Product) error {
	query := `
		UPDATE products SET slug = ?, category = ?, name = ?, price = ?, description = ?,
			cover_image_id = ?, is_published = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query,
		product.Slug, product.Category, product.Name, product.Price, product.Description,
		product.CoverImageID, product.IsPublished, product.ID,
	).Scan(&product.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return pkg.ErrNotFound
	}
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: slug %q already used in %s", pkg.ErrAlreadyExists, product.Slug, product.Category)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: cover image does not exist", pkg.ErrBadRequest)
		}
		return fmt.Errorf("failed to update product: %w", err)
	}
	return nil
}

func (r *sqliteProductRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return requireAffected(result)
}
