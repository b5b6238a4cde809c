package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/blogcast/internal/types"
)

func TestURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Blogcast")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><article>Hello</article></body></html>"))
	}))
	defer srv.Close()

	result, err := URL(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Contains(t, result.HTML, "Hello")
	assert.Equal(t, "text/html", result.ContentType)
}

func TestURL_InvalidURL(t *testing.T) {
	_, err := URL(context.Background(), "not-a-url", nil)
	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe.Message, "invalid URL")
}

func TestURL_NonOKStatusReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	result, err := URL(context.Background(), srv.URL, nil)
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, http.StatusGone, result.StatusCode)
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("video-bytes"))
	}))
	defer srv.Close()

	data, err := Download(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("video-bytes"), data)
}

func TestDownload_ServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "busy", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := Download(context.Background(), srv.URL, nil)
	assert.True(t, types.IsTransient(err))
}

func TestDownload_NotFoundIsNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := Download(context.Background(), srv.URL, nil)
	require.Error(t, err)
	assert.False(t, types.IsTransient(err))
}

func TestDownload_ConnectionRefusedIsTransient(t *testing.T) {
	_, err := Download(context.Background(), "http://127.0.0.1:1/video.mp4", nil)
	assert.True(t, types.IsTransient(err))
}

func TestExtractMainText(t *testing.T) {
	html := `<html><body>
		<nav>Menu</nav>
		<article><h1>Title</h1><p>First paragraph.</p><p>Second paragraph.</p></article>
		<footer>Copyright</footer>
	</body></html>`

	text, err := ExtractMainText(html, BlogPostSelectors())
	require.NoError(t, err)
	assert.Contains(t, text, "First paragraph.")
	assert.Contains(t, text, "Second paragraph.")
	assert.NotContains(t, text, "Menu")
	assert.NotContains(t, text, "Copyright")
}

func TestExtractMainText_FallsBackToBody(t *testing.T) {
	text, err := ExtractMainText("<html><body><div>plain text</div></body></html>", BlogPostSelectors()[:2])
	require.NoError(t, err)
	assert.Contains(t, text, "plain text")
}
