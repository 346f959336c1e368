// Package formatting turns raw WordPress post content into the HTML rendered
// on baked pages: footnotes, heading anchors, static chart figures, and
// derived excerpts.
package formatting

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/sitebaker/internal/site"
)

// ExcerptLength is the maximum number of runes in a derived excerpt.
const ExcerptLength = 160

var (
	refPattern   = regexp.MustCompile(`(?s)\[ref\](.*?)\[/ref\]`)
	blockPattern = regexp.MustCompile(`^<(?i:p|div|h[1-6]|ul|ol|li|table|blockquote|figure|iframe|pre|hr|section|img|script|style)\b`)
)

// FormatPost transforms post content for rendering, swapping embedded charts
// for their baked exports where one exists.
func FormatPost(post site.FullPost, exports site.ChartExports) (site.FormattedPost, error) {
	content, footnotes := extractFootnotes(post.Content)
	content = autop(content)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return site.FormattedPost{}, fmt.Errorf("parse content of %q: %w", post.Slug, err)
	}

	toc := anchorHeadings(doc)
	replaceCharts(doc, exports)

	body, err := doc.Find("body").Html()
	if err != nil {
		return site.FormattedPost{}, fmt.Errorf("render content of %q: %w", post.Slug, err)
	}

	formatted := site.FormattedPost{
		FullPost:    post,
		HTML:        body,
		Footnotes:   footnotes,
		TOC:         toc,
		AuthorsText: FormatAuthors(post.Authors),
	}
	if strings.TrimSpace(formatted.Excerpt) == "" {
		formatted.Excerpt = Truncate(excerptText(doc), ExcerptLength)
	}
	return formatted, nil
}

// FormatAuthors joins author names the way bylines read.
func FormatAuthors(authors []string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return authors[0]
	default:
		return strings.Join(authors[:len(authors)-1], ", ") + " and " + authors[len(authors)-1]
	}
}

// GrapherURLs returns the src of every iframe embedding a chart, in document order.
func GrapherURLs(content string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil
	}
	var urls []string
	doc.Find("iframe").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if ok && strings.Contains(src, "/grapher/") {
			urls = append(urls, src)
		}
	})
	return urls
}

// Slugify lowercases text and collapses everything but letters and digits into dashes.
func Slugify(text string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// Truncate shortens s to at most n runes, ending with an ellipsis when cut.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimRightFunc(string(runes[:n-1]), unicode.IsSpace) + "…"
}

// excerptText is the text of the first paragraph without footnote markers.
func excerptText(doc *goquery.Document) string {
	p := doc.Find("p").First().Clone()
	p.Find("a.ref").Remove()
	return strings.Join(strings.Fields(p.Text()), " ")
}

// extractFootnotes replaces [ref]...[/ref] shortcodes with numbered anchors.
func extractFootnotes(content string) (string, []string) {
	var footnotes []string
	out := refPattern.ReplaceAllStringFunc(content, func(match string) string {
		inner := refPattern.FindStringSubmatch(match)[1]
		footnotes = append(footnotes, strings.TrimSpace(inner))
		n := strconv.Itoa(len(footnotes))
		return `<a id="ref-` + n + `" class="ref" href="#note-` + n + `"><sup>` + n + `</sup></a>`
	})
	return out, footnotes
}

// autop wraps loose text blocks separated by blank lines in paragraphs.
func autop(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	chunks := strings.Split(content, "\n\n")
	for i, chunk := range chunks {
		trimmed := strings.TrimSpace(chunk)
		if trimmed == "" || blockPattern.MatchString(trimmed) {
			continue
		}
		chunks[i] = "<p>" + trimmed + "</p>"
	}
	return strings.Join(chunks, "\n\n")
}

func anchorHeadings(doc *goquery.Document) []site.Heading {
	var (
		toc  []site.Heading
		seen = make(map[string]int)
	)
	doc.Find("h2, h3").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		id, ok := s.Attr("id")
		if !ok || id == "" {
			id = Slugify(text)
			if id == "" {
				id = "section"
			}
			if n := seen[id]; n > 0 {
				seen[id] = n + 1
				id = id + "-" + strconv.Itoa(n+1)
			} else {
				seen[id] = 1
			}
			s.SetAttr("id", id)
		}
		level := 2
		if goquery.NodeName(s) == "h3" {
			level = 3
		}
		toc = append(toc, site.Heading{ID: id, Text: text, Level: level})
	})
	return toc
}

func replaceCharts(doc *goquery.Document, exports site.ChartExports) {
	doc.Find("iframe").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok || !strings.Contains(src, "/grapher/") {
			return
		}
		export, ok := exports.Lookup(src)
		if !ok {
			return
		}
		s.ReplaceWithHtml(chartFigure(src, export))
	})
}

func chartFigure(src string, export site.ChartExport) string {
	src = html.EscapeString(src)
	img := html.EscapeString("/" + strings.TrimLeft(export.Path, "/"))
	return fmt.Sprintf(
		`<figure data-grapher-src="%s"><a href="%s" target="_blank"><img src="%s" width="%d" height="%d" loading="lazy"/></a></figure>`,
		src, src, img, export.Width, export.Height,
	)
}
