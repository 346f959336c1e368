package views

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitebaker/internal/site"
)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New(Settings{
		Title:          "Our World in Data",
		Subtitle:       "Research and data",
		StaticRoot:     "https://static.example.org/",
		BakedURL:       "https://example.org/",
		CitationAuthor: "Max Roser",
		JournalTitle:   "Our World in Data",
	})
	require.NoError(t, err)
	return r
}

var testEntries = []site.CategoryWithEntries{{
	Name:    "Population",
	Slug:    "population",
	Entries: []site.EntryMeta{{Slug: "fertility", Title: "Fertility"}},
}}

func TestArticlePage(t *testing.T) {
	t.Parallel()

	post := site.FormattedPost{
		FullPost: site.FullPost{
			Post:    site.Post{Slug: "fertility", Title: "Fertility & Births", Type: site.PostTypePage},
			Authors: []string{"Max Roser"},
		},
		HTML:        `<h2 id="intro">Intro</h2><p>Body</p>`,
		Footnotes:   []string{"First <em>note</em>", "Second"},
		TOC:         []site.Heading{{ID: "intro", Text: "Intro", Level: 2}},
		AuthorsText: "Max Roser",
	}

	out, err := newRenderer(t).ArticlePage(testEntries, post)
	require.NoError(t, err)
	assert.Contains(t, out, `<link rel="stylesheet" href="https://static.example.org/site.css"/>`)
	assert.Contains(t, out, `<h1 class="entry-title">Fertility &amp; Births</h1>`)
	assert.Contains(t, out, `<a href="/about/#the-team">by Max Roser</a>`)
	assert.Contains(t, out, `<p>Body</p>`)
	assert.Contains(t, out, `<li id="note-1"`)
	assert.Contains(t, out, `<li id="note-2"`)
	assert.Contains(t, out, `First <em>note</em>`)
	assert.Contains(t, out, `<a href="#intro">Intro</a>`)
	assert.Contains(t, out, `<a href="/fertility">Fertility</a>`)
	assert.Contains(t, out, `<link rel="canonical" href="https://example.org/fertility"/>`)
	assert.NotContains(t, out, "citation_title")
}

func TestBlogPostPageCitation(t *testing.T) {
	t.Parallel()

	post := site.FormattedPost{
		FullPost: site.FullPost{
			Post: site.Post{
				Slug:  "hello",
				Title: "Hello",
				Type:  site.PostTypePost,
				Date:  time.Date(2017, 3, 4, 10, 0, 0, 0, time.UTC),
			},
			Authors: []string{"Hannah Ritchie"},
		},
		HTML:        "<p>x</p>",
		AuthorsText: "Hannah Ritchie",
	}

	out, err := newRenderer(t).BlogPostPage(testEntries, post)
	require.NoError(t, err)
	assert.Contains(t, out, `<meta name="citation_title" content="Hello"/>`)
	assert.Contains(t, out, `<meta name="citation_author" content="Hannah Ritchie"/>`)
	assert.Contains(t, out, `<meta name="citation_author" content="Max Roser"/>`)
	assert.Contains(t, out, `<meta name="citation_publication_date" content="2017/03/04"/>`)
	assert.Contains(t, out, `<meta name="citation_journal_title" content="Our World in Data"/>`)
	assert.Contains(t, out, "March 4, 2017")
}

func TestCitationMetaDoesNotDuplicateAuthor(t *testing.T) {
	t.Parallel()

	r := newRenderer(t)
	authors := []string{"Max Roser"}
	c := r.CitationMeta("T", authors, time.Time{})
	assert.Equal(t, []string{"Max Roser"}, c.Authors)

	authors = []string{"A"}
	c = r.CitationMeta("T", authors, time.Time{})
	assert.Equal(t, []string{"A", "Max Roser"}, c.Authors)
	assert.Equal(t, []string{"A"}, authors, "input slice must not be modified")
}

func TestFrontPage(t *testing.T) {
	t.Parallel()

	posts := []site.Post{{Slug: "latest", Title: "Latest", Date: time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)}}
	out, err := newRenderer(t).FrontPage(testEntries, posts)
	require.NoError(t, err)
	assert.Contains(t, out, `<a href="/latest">Latest</a>`)
	assert.Contains(t, out, `id="entries"`)
	assert.Contains(t, out, `<div id="population" class="category-wrapper">`)
	assert.Contains(t, out, "<title>Our World in Data</title>")
}

func TestBlogPagePagination(t *testing.T) {
	t.Parallel()

	r := newRenderer(t)
	index := []site.BlogIndexEntry{{Slug: "p1", Title: "P1", Authors: []string{"A", "B"}, Excerpt: "About P1"}}

	first, err := r.BlogPage(testEntries, index, 1, 3)
	require.NoError(t, err)
	assert.Contains(t, first, `href="/blog/page/2"`)
	assert.NotContains(t, first, `class="newer"`)
	assert.Contains(t, first, "by A and B")
	assert.Contains(t, first, "About P1")

	middle, err := r.BlogPage(testEntries, index, 2, 3)
	require.NoError(t, err)
	assert.Contains(t, middle, `<a class="newer" href="/blog">`)
	assert.Contains(t, middle, `<a class="older" href="/blog/page/3">`)

	last, err := r.BlogPage(testEntries, index, 3, 3)
	require.NoError(t, err)
	assert.NotContains(t, last, `class="older"`)

	_, err = r.BlogPage(testEntries, index, 4, 3)
	require.Error(t, err)
}

func TestBlogPagePath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/blog", BlogPagePath(1))
	assert.Equal(t, "/blog/page/7", BlogPagePath(7))
}
