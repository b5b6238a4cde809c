package content

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoadFile_MarkdownWithFrontmatter(t *testing.T) {
	path := writeTemp(t, "post.md", `---
title: Shipping Fast
author: Dana
date: 2026-03-01
---

The body of the post starts here.

And continues.`)

	item, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Shipping Fast", item.Title)
	assert.Equal(t, "Dana", item.Author)
	assert.Equal(t, "2026-03-01", item.Date)
	assert.Equal(t, "shipping-fast", item.Slug)
	assert.Contains(t, item.Content, "body of the post")
	assert.NotContains(t, item.Content, "---")
}

func TestLoadFile_MarkdownHeadingTitle(t *testing.T) {
	path := writeTemp(t, "post.md", "# A Heading Title\n\nSome body text.")

	item, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "A Heading Title", item.Title)
	assert.Equal(t, "a-heading-title", item.Slug)
	assert.Equal(t, "Some body text.", item.Content)
}

func TestLoadFile_MarkdownFallsBackToFilename(t *testing.T) {
	path := writeTemp(t, "my-great-post.md", "Just body text, no heading.")

	item, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "my-great-post", item.Title)
}

func TestLoadFile_EmptyContentFails(t *testing.T) {
	path := writeTemp(t, "empty.md", "---\ntitle: Empty\n---\n\n")

	_, err := LoadFile(path)
	assert.ErrorContains(t, err, "no content")
}

func TestLoadFile_HTML(t *testing.T) {
	path := writeTemp(t, "post.html", `<html><head>
		<title>Fallback Title</title>
		<meta property="og:title" content="The Real Title">
		<meta name="author" content="Sam">
		<meta property="article:published_time" content="2026-04-02T10:00:00Z">
	</head><body>
		<nav>Menu</nav>
		<article><h1>The Real Title</h1><p>Paragraph one.</p></article>
	</body></html>`)

	item, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "The Real Title", item.Title)
	assert.Equal(t, "Sam", item.Author)
	assert.Equal(t, "2026-04-02T10:00:00Z", item.Date)
	assert.Contains(t, item.Content, "Paragraph one.")
	assert.NotContains(t, item.Content, "Menu")
}

func TestLoadURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><article><h1>Remote Post</h1><p>Remote body.</p></article></body></html>`))
	}))
	defer srv.Close()

	item, err := LoadURL(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Remote Post", item.Title)
	assert.Equal(t, srv.URL, item.URL)
	assert.Contains(t, item.Content, "Remote body.")
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "hello-world", Slugify("Hello, World!"))
	assert.Equal(t, "a-b-c", Slugify("  a  b  c  "))
}
