package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/khakishop/server/database"
	"github.com/khakishop/server/models"
	"github.com/khakishop/server/pkg"
)

type sqliteImageRepo struct {
	db database.TxQuerier
}

// NewSQLiteImageRepo returns the SQLite ImageRepository.
func NewSQLiteImageRepo(db database.TxQuerier) ImageRepository {
	return &sqliteImageRepo{db: db}
}

const imageColumns = `id, url, storage_key, filename, mime_type, size, category, subcategory,
	display_order, tags, keywords, metadata, is_protected, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(row rowScanner) (*models.Image, error) {
	var (
		img      models.Image
		tags     string
		keywords string
		metadata sql.NullString
	)
	if err := row.Scan(
		&img.ID, &img.URL, &img.StorageKey, &img.Filename, &img.MimeType, &img.Size,
		&img.Category, &img.Subcategory, &img.DisplayOrder, &tags, &keywords, &metadata,
		&img.IsProtected, &img.CreatedAt, &img.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if img.Tags, err = decodeStrings(tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags of image %s: %w", img.ID, err)
	}
	if img.Keywords, err = decodeStrings(keywords); err != nil {
		return nil, fmt.Errorf("failed to decode keywords of image %s: %w", img.ID, err)
	}
	if metadata.Valid && metadata.String != "" {
		img.Metadata = &models.ImageMetadata{}
		if err := json.Unmarshal([]byte(metadata.String), img.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata of image %s: %w", img.ID, err)
		}
	}

	return &img, nil
}

// encodeImageJSON returns the tags, keywords and metadata columns.
func encodeImageJSON(img *models.Image) (tags, keywords string, metadata sql.NullString, err error) {
	if tags, err = encodeStrings(img.Tags); err != nil {
		return "", "", metadata, fmt.Errorf("failed to encode tags: %w", err)
	}
	if keywords, err = encodeStrings(img.Keywords); err != nil {
		return "", "", metadata, fmt.Errorf("failed to encode keywords: %w", err)
	}
	if img.Metadata != nil {
		b, mErr := json.Marshal(img.Metadata)
		if mErr != nil {
			return "", "", metadata, fmt.Errorf("failed to encode metadata: %w", mErr)
		}
		metadata = sql.NullString{String: string(b), Valid: true}
	}
	return tags, keywords, metadata, nil
}

func (r *sqliteImageRepo) Create(ctx context.Context, img *models.Image) error {
	tags, keywords, metadata, err := encodeImageJSON(img)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO images (id, url, storage_key, filename, mime_type, size, category, subcategory,
			display_order, tags, keywords, metadata, is_protected)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING created_at, updated_at`

	err = r.db.QueryRowContext(ctx, query,
		img.ID, img.URL, img.StorageKey, img.Filename, img.MimeType, img.Size,
		img.Category, img.Subcategory, img.DisplayOrder, tags, keywords, metadata, img.IsProtected,
	).Scan(&img.CreatedAt, &img.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: image %s already exists", pkg.ErrAlreadyExists, img.ID)
		}
		return fmt.Errorf("failed to create image: %w", err)
	}

	if img.Tags == nil {
		img.Tags = []string{}
	}
	if img.Keywords == nil {
		img.Keywords = []string{}
	}
	return nil
}

func (r *sqliteImageRepo) GetByID(ctx context.Context, id string) (*models.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE id = ?`

	img, err := scanImage(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkg.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get image by id: %w", err)
	}
	return img, nil
}

func (r *sqliteImageRepo) List(ctx context.Context, category string) ([]models.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images
		WHERE (? = '' OR category = ?)
		ORDER BY category, subcategory, display_order, created_at`

	return r.queryImages(ctx, query, category, category)
}

func (r *sqliteImageRepo) ListBucket(ctx context.Context, category, subcategory string) ([]models.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images
		WHERE category = ? AND subcategory = ?
		ORDER BY display_order, created_at`

	return r.queryImages(ctx, query, category, subcategory)
}

func (r *sqliteImageRepo) queryImages(ctx context.Context, query string, args ...any) ([]models.Image, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	images := []models.Image{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image row: %w", err)
		}
		images = append(images, *img)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating image rows: %w", err)
	}

	return images, nil
}

func (r *sqliteImageRepo) Update(ctx context.Context, img *models.Image) error {
	tags, keywords, metadata, err := encodeImageJSON(img)
	if err != nil {
		return err
	}

	query := `
		UPDATE images SET category = ?, subcategory = ?, display_order = ?, tags = ?, keywords = ?,
			metadata = ?, is_protected = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
		RETURNING updated_at`

	err = r.db.QueryRowContext(ctx, query,
		img.Category, img.Subcategory, img.DisplayOrder, tags, keywords, metadata, img.IsProtected, img.ID,
	).Scan(&img.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return pkg.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update image: %w", err)
	}
	return nil
}

func (r *sqliteImageRepo) SetProtected(ctx context.Context, id string, protected bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE images SET is_protected = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, protected, id)
	if err != nil {
		return fmt.Errorf("failed to set image protection: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteImageRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return requireAffected(result)
}

func (r *sqliteImageRepo) MaxOrder(ctx context.Context, category, subcategory string) (int, error) {
	query := `SELECT COALESCE(MAX(display_order), -1) FROM images WHERE category = ? AND subcategory = ?`

	var maxOrder int
	if err := r.db.QueryRowContext(ctx, query, category, subcategory).Scan(&maxOrder); err != nil {
		return 0, fmt.Errorf("failed to get max display order: %w", err)
	}
	return maxOrder, nil
}

func (r *sqliteImageRepo) UpdateOrders(ctx context.Context, positions []models.ImagePosition) error {
	for _, p := range positions {
		result, err := r.db.ExecContext(ctx,
			`UPDATE images SET display_order = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			p.DisplayOrder, p.ID)
		if err != nil {
			return fmt.Errorf("failed to update display order for image %s: %w", p.ID, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected for image %s: %w", p.ID, err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: image %s", pkg.ErrNotFound, p.ID)
		}
	}
	return nil
}

func (r *sqliteImageRepo) CountByBucket(ctx context.Context) ([]models.BucketCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, subcategory, COUNT(*) FROM images
		GROUP BY category, subcategory
		ORDER BY category, subcategory`)
	if err != nil {
		return nil, fmt.Errorf("failed to count images: %w", err)
	}
	defer rows.Close()

	var counts []models.BucketCount
	for rows.Next() {
		var c models.BucketCount
		if err := rows.Scan(&c.Category, &c.Subcategory, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan bucket count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

func (r *sqliteImageRepo) ListStorageKeys(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT storage_key, id FROM images`)
	if err != nil {
		return nil, fmt.Errorf("failed to list storage keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]string)
	for rows.Next() {
		var key, id string
		if err := rows.Scan(&key, &id); err != nil {
			return nil, fmt.Errorf("failed to scan storage key: %w", err)
		}
		keys[key] = id
	}
	return keys, rows.Err()
}

func (r *sqliteImageRepo) DuplicateOrderSlots(ctx context.Context) ([]models.OrderSlot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, subcategory, display_order, COUNT(*) AS n FROM images
		GROUP BY category, subcategory, display_order
		HAVING n > 1
		ORDER BY category, subcategory, display_order`)
	if err != nil {
		return nil, fmt.Errorf("failed to find duplicate order slots: %w", err)
	}
	defer rows.Close()

	var slots []models.OrderSlot
	for rows.Next() {
		var s models.OrderSlot
		if err := rows.Scan(&s.Category, &s.Subcategory, &s.DisplayOrder, &s.Count); err != nil {
			return nil, fmt.Errorf("failed to scan order slot: %w", err)
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// requireAffected maps "0 rows affected" to pkg.ErrNotFound.
func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return pkg.ErrNotFound
	}
	return nil
}
