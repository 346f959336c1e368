// Package views renders baked pages from html/template templates embedded in
// the binary.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/sitebaker/internal/formatting"
	"github.com/JakeFAU/sitebaker/internal/site"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	articleTemplate  = "article.html"
	blogPostTemplate = "blog_post.html"
	frontTemplate    = "front.html"
	blogTemplate     = "blog.html"
)

// Settings carries the site-wide values every page needs.
type Settings struct {
	Title          string
	Subtitle       string
	StaticRoot     string
	BakedURL       string
	CitationAuthor string
	JournalTitle   string
}

// Citation holds the scholarly citation meta tags of a blog post.
type Citation struct {
	Title   string
	Authors []string
	Date    time.Time
	Journal string
}

type pageData struct {
	Site        Settings
	Entries     []site.CategoryWithEntries
	Title       string
	Description string
	Canonical   string
	Citation    *Citation
	Post        site.FormattedPost
	ShowDate    bool
	Posts       []site.Post
	Index       []site.BlogIndexEntry
	PageNum     int
	NumPages    int
}

// Renderer executes the page templates.
type Renderer struct {
	settings  Settings
	templates map[string]*template.Template
}

// New parses the embedded templates.
func New(settings Settings) (*Renderer, error) {
	settings.StaticRoot = strings.TrimRight(settings.StaticRoot, "/")
	settings.BakedURL = strings.TrimRight(settings.BakedURL, "/")
	r := &Renderer{settings: settings, templates: make(map[string]*template.Template)}
	for _, name := range []string{articleTemplate, blogPostTemplate, frontTemplate, blogTemplate} {
		tmpl, err := template.New(name).
			Funcs(funcs()).
			ParseFS(templateFS, "templates/partials.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}
	return r, nil
}

// ArticlePage renders a standalone page with its table of contents.
func (r *Renderer) ArticlePage(entries []site.CategoryWithEntries, post site.FormattedPost) (string, error) {
	return r.render(articleTemplate, pageData{
		Entries:     entries,
		Title:       post.Title,
		Description: post.Excerpt,
		Canonical:   r.postURL(post.Slug),
		Post:        post,
	})
}

// BlogPostPage renders a dated blog post carrying citation meta.
func (r *Renderer) BlogPostPage(entries []site.CategoryWithEntries, post site.FormattedPost) (string, error) {
	citation := r.CitationMeta(post.Title, post.Authors, post.Date)
	return r.render(blogPostTemplate, pageData{
		Entries:     entries,
		Title:       post.Title,
		Description: post.Excerpt,
		Canonical:   r.postURL(post.Slug),
		Citation:    &citation,
		Post:        post,
		ShowDate:    true,
	})
}

// FrontPage renders the home page with the latest posts and the entries listing.
func (r *Renderer) FrontPage(entries []site.CategoryWithEntries, posts []site.Post) (string, error) {
	return r.render(frontTemplate, pageData{
		Entries:   entries,
		Canonical: r.settings.BakedURL,
		Posts:     posts,
	})
}

// BlogPage renders one page of the paginated blog index.
func (r *Renderer) BlogPage(entries []site.CategoryWithEntries, index []site.BlogIndexEntry, pageNum, numPages int) (string, error) {
	if pageNum < 1 || pageNum > max(numPages, 1) {
		return "", fmt.Errorf("blog page %d out of range 1..%d", pageNum, numPages)
	}
	return r.render(blogTemplate, pageData{
		Entries:   entries,
		Title:     "Blog",
		Canonical: r.settings.BakedURL + BlogPagePath(pageNum),
		Index:     index,
		PageNum:   pageNum,
		NumPages:  max(numPages, 1),
	})
}

// CitationMeta builds the citation for a post, appending the site's default
// citation author when the post does not already list them.
func (r *Renderer) CitationMeta(title string, authors []string, date time.Time) Citation {
	list := slices.Clone(authors)
	if r.settings.CitationAuthor != "" && !slices.Contains(list, r.settings.CitationAuthor) {
		list = append(list, r.settings.CitationAuthor)
	}
	return Citation{Title: title, Authors: list, Date: date, Journal: r.settings.JournalTitle}
}

// BlogPagePath is the site path of blog index page n.
func BlogPagePath(n int) string {
	if n <= 1 {
		return "/blog"
	}
	return "/blog/page/" + strconv.Itoa(n)
}

func (r *Renderer) render(name string, data pageData) (string, error) {
	data.Site = r.settings
	var buf bytes.Buffer
	if err := r.templates[name].ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func (r *Renderer) postURL(slug string) string {
	return r.settings.BakedURL + "/" + slug
}

func funcs() template.FuncMap {
	return template.FuncMap{
		// #nosec G203 -- post HTML comes from the CMS and is trusted.
		"raw":          func(s string) template.HTML { return template.HTML(s) },
		"inc":          func(i int) int { return i + 1 },
		"dec":          func(i int) int { return i - 1 },
		"authors":      formatting.FormatAuthors,
		"blogPage":     BlogPagePath,
		"citationDate": func(t time.Time) string { return t.Format("2006/01/02") },
		"longDate":     func(t time.Time) string { return t.Format("January 2, 2006") },
		"isoDate":      func(t time.Time) string { return t.Format(time.RFC3339) },
	}
}
