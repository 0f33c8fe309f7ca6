package static

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"index.html":               {Data: []byte("<div id=root></div>")},
		"assets/index.CU4W1PlC.js": {Data: []byte("console.log(1)")},
		"favicon.ico":              {Data: []byte{0, 0, 1, 0}},
	}
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHandler_SPAFallback(t *testing.T) {
	h := newHandler(testFS())

	for _, target := range []string{"/", "/curtain/linen", "/admin/images"} {
		rec := get(h, target)
		assert.Equal(t, http.StatusOK, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "id=root", target)
	}
}

func TestHandler_Assets(t *testing.T) {
	h := newHandler(testFS())

	rec := get(h, "/assets/index.CU4W1PlC.js")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "immutable")

	rec = get(h, "/favicon.ico")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	rec = get(h, "/assets/missing.js")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_UnknownAPIPath(t *testing.T) {
	rec := get(newHandler(testFS()), "/api/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestHandler_EmbeddedIndex(t *testing.T) {
	rec := get(Handler(), "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "khakishop")
}
