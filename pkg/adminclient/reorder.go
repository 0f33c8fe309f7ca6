package adminclient

import (
	"context"
	"fmt"
	"net/url"

	"github.com/khakishop/server/models"
	"github.com/khakishop/server/pkg/ordering"
)

// BucketBoard is the reorder grid of one (category, subcategory) bucket.
// Drops are shown immediately and reverted when the server rejects them.
type BucketBoard struct {
	client      *Client
	category    string
	subcategory string
	board       *ordering.Board[models.Image]
}

func setOrder(img models.Image, order int) models.Image {
	img.DisplayOrder = order
	return img
}

// LoadBucket fetches every image of a bucket in display order and returns a
// board over them.
func (c *Client) LoadBucket(ctx context.Context, category, subcategory string) (*BucketBoard, error) {
	images, err := c.bucketImages(ctx, category, subcategory)
	if err != nil {
		return nil, err
	}
	return &BucketBoard{
		client:      c,
		category:    category,
		subcategory: subcategory,
		board:       ordering.NewBoard(images, setOrder),
	}, nil
}

func (c *Client) bucketImages(ctx context.Context, category, subcategory string) ([]models.Image, error) {
	var images []models.Image
	for page := 1; ; page++ {
		q := url.Values{
			"category":  {category},
			"sort":      {"order"},
			"page":      {fmt.Sprint(page)},
			"page_size": {"100"},
		}
		if subcategory != "" {
			q.Set("subcategory", subcategory)
		}
		p, err := c.ListImages(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, img := range p.Items {
			// The list filter treats an empty subcategory as "any".
			if img.Subcategory == subcategory {
				images = append(images, img)
			}
		}
		if page >= p.TotalPages {
			return images, nil
		}
	}
}

// Images returns the order currently shown.
func (b *BucketBoard) Images() []models.Image { return b.board.Items() }

// Drop moves the image at from to to and persists the bucket order. On
// failure the previous order is restored and returned with the error.
func (b *BucketBoard) Drop(ctx context.Context, from, to int) ([]models.Image, error) {
	return b.board.Drop(ctx, from, to, func(ctx context.Context, images []models.Image) error {
		ids := make([]string, len(images))
		for i, img := range images {
			ids[i] = img.ID
		}
		_, err := b.client.Reorder(ctx, models.ReorderImagesRequest{
			Category:    b.category,
			Subcategory: b.subcategory,
			IDs:         ids,
		})
		return err
	})
}

// Refresh reloads the bucket, e.g. after an image_reorder event.
func (b *BucketBoard) Refresh(ctx context.Context) error {
	images, err := b.client.bucketImages(ctx, b.category, b.subcategory)
	if err != nil {
		return err
	}
	b.board.Reset(images)
	return nil
}
