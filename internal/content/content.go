// Package content loads blog items from markdown files or saved HTML pages
// so a pipeline can be started from local material or a live URL.
package content

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonathan/blogcast/internal/fetch"
	"github.com/jonathan/blogcast/internal/types"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL-safe slug from a title.
func Slugify(title string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(slug, "-")
}

// LoadFile loads a blog item from a local file. Markdown files may carry a
// simple `key: value` frontmatter block; .html files are parsed with goquery.
func LoadFile(path string) (*types.BlogItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read blog file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".html", ".htm":
		return parseHTML(string(data), "")
	default:
		return parseMarkdown(string(data), path)
	}
}

// LoadURL fetches a blog page and extracts an item from it.
func LoadURL(ctx context.Context, urlStr string) (*types.BlogItem, error) {
	result, err := fetch.URL(ctx, urlStr, nil)
	if err != nil {
		return nil, err
	}
	return parseHTML(result.HTML, urlStr)
}

// parseMarkdown reads an optional frontmatter block delimited by `---` lines,
// with `key: value` pairs for title, author, date and slug. Everything after
// the block is the body.
func parseMarkdown(raw, path string) (*types.BlogItem, error) {
	item := &types.BlogItem{}
	body := raw

	trimmed := strings.TrimLeft(raw, "\n\r \t")
	if strings.HasPrefix(trimmed, "---") {
		rest := trimmed[3:]
		if end := strings.Index(rest, "\n---"); end >= 0 {
			front := rest[:end]
			body = strings.TrimLeft(rest[end+4:], "\n\r")
			for _, line := range strings.Split(front, "\n") {
				key, value, ok := strings.Cut(line, ":")
				if !ok {
					continue
				}
				value = strings.TrimSpace(value)
				switch strings.ToLower(strings.TrimSpace(key)) {
				case "title":
					item.Title = value
				case "author":
					item.Author = value
				case "date":
					item.Date = value
				case "slug":
					item.Slug = value
				case "url":
					item.URL = value
				}
			}
		}
	}

	// Fall back to a leading H1 when frontmatter gave no title.
	if item.Title == "" {
		for _, line := range strings.Split(body, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if strings.HasPrefix(line, "# ") {
				item.Title = strings.TrimSpace(line[2:])
				body = strings.Replace(body, line, "", 1)
			}
			break
		}
	}
	if item.Title == "" {
		base := filepath.Base(path)
		item.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	item.Content = strings.TrimSpace(body)
	if item.Content == "" {
		return nil, fmt.Errorf("blog file has no content: %s", path)
	}
	if item.Slug == "" {
		item.Slug = Slugify(item.Title)
	}
	return item, nil
}

// parseHTML extracts title, author and body text from a blog page.
func parseHTML(html, sourceURL string) (*types.BlogItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	item := &types.BlogItem{URL: sourceURL}

	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && og != "" {
		item.Title = strings.TrimSpace(og)
	} else if h1 := doc.Find("article h1, h1").First(); h1.Length() > 0 {
		item.Title = strings.TrimSpace(h1.Text())
	} else {
		item.Title = strings.TrimSpace(doc.Find("title").Text())
	}

	if author, ok := doc.Find(`meta[name="author"]`).Attr("content"); ok {
		item.Author = strings.TrimSpace(author)
	} else if byline := doc.Find(".author, .byline, [rel='author']").First(); byline.Length() > 0 {
		item.Author = strings.TrimSpace(byline.Text())
	}

	if published, ok := doc.Find(`meta[property="article:published_time"]`).Attr("content"); ok {
		item.Date = strings.TrimSpace(published)
	} else if t, ok := doc.Find("time").First().Attr("datetime"); ok {
		item.Date = strings.TrimSpace(t)
	}

	text, err := fetch.ExtractMainText(html, fetch.BlogPostSelectors())
	if err != nil {
		return nil, err
	}
	item.Content = text
	if strings.TrimSpace(item.Content) == "" {
		return nil, fmt.Errorf("blog page has no extractable content")
	}
	if item.Title == "" {
		return nil, fmt.Errorf("blog page has no title")
	}
	item.Slug = Slugify(item.Title)
	return item, nil
}
