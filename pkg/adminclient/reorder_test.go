package adminclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/khakishop/server/models"
	"github.com/khakishop/server/pkg/browse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bucketServer serves one bucket two images per page and records reorders.
type bucketServer struct {
	mu       sync.Mutex
	images   []models.Image
	reorders [][]string
	reject   bool
}

func (s *bucketServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/admin/images", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "blind", r.URL.Query().Get("category"))
		assert.Equal(t, "roller", r.URL.Query().Get("subcategory"))
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))

		s.mu.Lock()
		defer s.mu.Unlock()
		writeEnvelope(w, http.StatusOK, browse.Apply(s.images, browse.Query{Page: page, PageSize: 2}), "")
	})
	mux.HandleFunc("PATCH /api/admin/images/reorder", func(w http.ResponseWriter, r *http.Request) {
		var req models.ReorderImagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "blind", req.Category)
		assert.Equal(t, "roller", req.Subcategory)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.reorders = append(s.reorders, req.IDs)
		if s.reject {
			writeEnvelope(w, http.StatusBadRequest, nil, "ids do not match the bucket")
			return
		}
		writeEnvelope(w, http.StatusOK, []models.Image{}, "")
	})
	return mux
}

func ids(images []models.Image) []string {
	out := make([]string, len(images))
	for i, img := range images {
		out[i] = img.ID
	}
	return out
}

func TestBucketBoard(t *testing.T) {
	s := &bucketServer{}
	for i, id := range []string{"a", "b", "c"} {
		s.images = append(s.images, models.Image{ID: id, Category: "blind", Subcategory: "roller", DisplayOrder: i})
	}
	srv := httptest.NewServer(s.handler(t))
	defer srv.Close()

	ctx := context.Background()
	board, err := New(srv.URL, WithToken("tok")).LoadBucket(ctx, "blind", "roller")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(board.Images()), "both pages loaded")

	images, err := board.Drop(ctx, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, ids(images))
	for i, img := range images {
		assert.Equal(t, i, img.DisplayOrder)
	}
	assert.Equal(t, [][]string{{"c", "a", "b"}}, s.reorders)

	s.mu.Lock()
	s.reject = true
	s.mu.Unlock()

	images, err = board.Drop(ctx, 0, 1)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, []string{"c", "a", "b"}, ids(images), "reverted to last good order")
	assert.Equal(t, []string{"c", "a", "b"}, ids(board.Images()))

	_, err = board.Drop(ctx, 0, 7)
	assert.Error(t, err)

	require.NoError(t, board.Refresh(ctx))
	assert.Equal(t, []string{"a", "b", "c"}, ids(board.Images()), "server order wins on refresh")
}
