package repository

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/khakishop/server/database"
	"github.com/khakishop/server/models"
	"github.com/khakishop/server/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newImage(id, category, subcategory string, order int) *models.Image {
	return &models.Image{
		ID:           id,
		URL:          "/api/uploads/" + id + ".jpg",
		StorageKey:   id + ".jpg",
		Filename:     id + ".jpg",
		MimeType:     "image/jpeg",
		Size:         1024,
		Category:     category,
		Subcategory:  subcategory,
		DisplayOrder: order,
	}
}

func TestImageRepo_CreateAndGet(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteImageRepo(db.Conn)
	ctx := context.Background()

	img := newImage("img1", "curtain", "linen", 0)
	img.Tags = []string{"linen", "beige"}
	img.Metadata = &models.ImageMetadata{Alt: "Beige linen", Priority: 3}
	require.NoError(t, repo.Create(ctx, img))
	assert.False(t, img.CreatedAt.IsZero())
	assert.Equal(t, []string{}, img.Keywords)

	got, err := repo.GetByID(ctx, "img1")
	require.NoError(t, err)
	assert.Equal(t, []string{"linen", "beige"}, got.Tags)
	assert.Equal(t, []string{}, got.Keywords)
	require.NotNil(t, got.Metadata)
	assert.Equal(t, "Beige linen", got.Metadata.Alt)
	assert.Equal(t, 3, got.Metadata.Priority)
	assert.Equal(t, "img1.jpg", got.StorageKey)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestImageRepo_CreateDuplicateID(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteImageRepo(db.Conn)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newImage("dup", "blind", "", 0)))

	again := newImage("dup", "blind", "", 1)
	again.StorageKey = "other.jpg"
	err := repo.Create(ctx, again)
	assert.ErrorIs(t, err, pkg.ErrAlreadyExists)
}

func TestImageRepo_ListAndBuckets(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteImageRepo(db.Conn)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newImage("c2", "curtain", "", 1)))
	require.NoError(t, repo.Create(ctx, newImage("c1", "curtain", "", 0)))
	require.NoError(t, repo.Create(ctx, newImage("s1", "curtain", "sheer", 0)))
	require.NoError(t, repo.Create(ctx, newImage("b1", "blind", "roller", 0)))

	all, err := repo.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	curtains, err := repo.List(ctx, "curtain")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2", "s1"}, imageIDs(curtains))

	bucket, err := repo.ListBucket(ctx, "curtain", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, imageIDs(bucket))

	maxOrder, err := repo.MaxOrder(ctx, "curtain", "")
	require.NoError(t, err)
	assert.Equal(t, 1, maxOrder)

	empty, err := repo.MaxOrder(ctx, "gallery", "living")
	require.NoError(t, err)
	assert.Equal(t, -1, empty)

	counts, err := repo.CountByBucket(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.BucketCount{
		{Category: "blind", Subcategory: "roller", Count: 1},
		{Category: "curtain", Subcategory: "", Count: 2},
		{Category: "curtain", Subcategory: "sheer", Count: 1},
	}, counts)
}

func TestImageRepo_UpdateOrdersInTx(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteImageRepo(db.Conn)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, newImage(fmt.Sprintf("i%d", i), "gallery", "office", i)))
	}

	err := database.WithTx(ctx, db.Conn, func(tx *sql.Tx) error {
		return NewSQLiteImageRepo(tx).UpdateOrders(ctx, []models.ImagePosition{
			{ID: "i2", DisplayOrder: 0},
			{ID: "i0", DisplayOrder: 1},
			{ID: "i1", DisplayOrder: 2},
		})
	})
	require.NoError(t, err)

	bucket, err := repo.ListBucket(ctx, "gallery", "office")
	require.NoError(t, err)
	assert.Equal(t, []string{"i2", "i0", "i1"}, imageIDs(bucket))

	// A missing id rolls the whole batch back.
	err = database.WithTx(ctx, db.Conn, func(tx *sql.Tx) error {
		return NewSQLiteImageRepo(tx).UpdateOrders(ctx, []models.ImagePosition{
			{ID: "i0", DisplayOrder: 0},
			{ID: "ghost", DisplayOrder: 1},
		})
	})
	assert.ErrorIs(t, err, pkg.ErrNotFound)

	bucket, err = repo.ListBucket(ctx, "gallery", "office")
	require.NoError(t, err)
	assert.Equal(t, []string{"i2", "i0", "i1"}, imageIDs(bucket))
}

func TestImageRepo_UpdateProtectDelete(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteImageRepo(db.Conn)
	ctx := context.Background()

	img := newImage("u1", "accessory", "rail", 0)
	require.NoError(t, repo.Create(ctx, img))

	img.Category = "accessory"
	img.Subcategory = "hook"
	img.Keywords = []string{"Brass Hook"}
	img.Metadata = nil
	require.NoError(t, repo.Update(ctx, img))

	got, err := repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "hook", got.Subcategory)
	assert.Equal(t, []string{"Brass Hook"}, got.Keywords)
	assert.Nil(t, got.Metadata)

	require.NoError(t, repo.SetProtected(ctx, "u1", true))
	got, err = repo.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.IsProtected)

	assert.ErrorIs(t, repo.SetProtected(ctx, "nope", true), pkg.ErrNotFound)

	require.NoError(t, repo.Delete(ctx, "u1"))
	assert.ErrorIs(t, repo.Delete(ctx, "u1"), pkg.ErrNotFound)

	missing := newImage("ghost", "blind", "", 0)
	assert.ErrorIs(t, repo.Update(ctx, missing), pkg.ErrNotFound)
}

func TestImageRepo_MaintenanceQueries(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteImageRepo(db.Conn)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newImage("a", "blind", "roman", 0)))
	require.NoError(t, repo.Create(ctx, newImage("b", "blind", "roman", 0)))
	require.NoError(t, repo.Create(ctx, newImage("c", "blind", "roman", 1)))

	keys, err := repo.ListStorageKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a.jpg": "a", "b.jpg": "b", "c.jpg": "c"}, keys)

	slots, err := repo.DuplicateOrderSlots(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.OrderSlot{{Category: "blind", Subcategory: "roman", DisplayOrder: 0, Count: 2}}, slots)
}

func TestUserAndSessionRepos(t *testing.T) {
	db := openTestDB(t)
	users := NewSQLiteUserRepo(db.Conn)
	sessions := NewSQLiteSessionRepo(db.Conn)
	ctx := context.Background()

	u := &models.User{Username: "admin", PasswordHash: "hash", IsAdmin: true}
	require.NoError(t, users.Create(ctx, u))
	assert.Len(t, u.ID, 16)

	err := users.Create(ctx, &models.User{Username: "admin", PasswordHash: "x"})
	assert.ErrorIs(t, err, pkg.ErrAlreadyExists)

	got, err := users.GetByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, got.IsAdmin)

	n, err := users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	live := &models.Session{UserID: u.ID, RefreshToken: "live", ExpiresAt: time.Now().UTC().Add(time.Hour)}
	dead := &models.Session{UserID: u.ID, RefreshToken: "dead", ExpiresAt: time.Now().UTC().Add(-time.Hour)}
	require.NoError(t, sessions.Create(ctx, live))
	require.NoError(t, sessions.Create(ctx, dead))

	require.NoError(t, sessions.DeleteExpired(ctx))
	_, err = sessions.GetByRefreshToken(ctx, "dead")
	assert.ErrorIs(t, err, pkg.ErrNotFound)

	s, err := sessions.GetByRefreshToken(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, u.ID, s.UserID)

	require.NoError(t, sessions.DeleteByUserID(ctx, u.ID))
	_, err = sessions.GetByRefreshToken(ctx, "live")
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestProductRepo(t *testing.T) {
	db := openTestDB(t)
	images := NewSQLiteImageRepo(db.Conn)
	products := NewSQLiteProductRepo(db.Conn)
	ctx := context.Background()

	require.NoError(t, images.Create(ctx, newImage("cover", "curtain", "", 0)))
	cover := "cover"

	p := &models.Product{Slug: "linen-sheer", Category: "curtain", Name: "Linen sheer", Price: 89000, CoverImageID: &cover, IsPublished: true}
	require.NoError(t, products.Create(ctx, p))
	draft := &models.Product{Slug: "draft", Category: "curtain", Name: "Draft"}
	require.NoError(t, products.Create(ctx, draft))

	dup := &models.Product{Slug: "linen-sheer", Category: "curtain", Name: "Again"}
	assert.ErrorIs(t, products.Create(ctx, dup), pkg.ErrAlreadyExists)

	ghost := "ghost"
	bad := &models.Product{Slug: "bad-cover", Category: "curtain", Name: "Bad", CoverImageID: &ghost}
	assert.ErrorIs(t, products.Create(ctx, bad), pkg.ErrBadRequest)

	published, err := products.ListByCategory(ctx, "curtain", true)
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, "/api/uploads/cover.jpg", published[0].CoverImageURL)

	all, err := products.ListByCategory(ctx, "curtain", false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	got, err := products.GetBySlug(ctx, "curtain", "linen-sheer")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	// Deleting the cover image clears the reference.
	require.NoError(t, images.Delete(ctx, "cover"))
	got, err = products.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CoverImageID)
	assert.Equal(t, "", got.CoverImageURL)

	got.Price = 99000
	require.NoError(t, products.Update(ctx, got))
	require.NoError(t, products.Delete(ctx, got.ID))
	assert.ErrorIs(t, products.Delete(ctx, got.ID), pkg.ErrNotFound)
}

func imageIDs(images []models.Image) []string {
	ids := make([]string, len(images))
	for i, img := range images {
		ids[i] = img.ID
	}
	return ids
}
