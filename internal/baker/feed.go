package baker

import (
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/JakeFAU/sitebaker/internal/formatting"
)

const atomNamespace = "http://www.w3.org/2005/Atom"

type atomFeed struct {
	XMLName  xml.Name    `xml:"feed"`
	Xmlns    string      `xml:"xmlns,attr"`
	Title    string      `xml:"title"`
	Subtitle string      `xml:"subtitle,omitempty"`
	ID       string      `xml:"id"`
	Links    []atomLink  `xml:"link"`
	Updated  string      `xml:"updated"`
	Entries  []atomEntry `xml:"entry"`
}

type atomLink struct {
	Type string `xml:"type,attr,omitempty"`
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

type atomEntry struct {
	Title     string       `xml:"title"`
	ID        string       `xml:"id"`
	Link      atomLink     `xml:"link"`
	Published string       `xml:"published"`
	Updated   string       `xml:"updated"`
	Authors   []atomAuthor `xml:"author"`
	Summary   string       `xml:"summary"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

// BakeRSS writes the Atom feed of the latest blog posts to atom.xml.
func (b *Baker) BakeRSS(ctx context.Context) error {
	return b.runStage(ctx, StageRSS, func(ctx context.Context) error {
		posts, err := b.deps.Content.LatestPosts(ctx, b.opts.FeedSize)
		if err != nil {
			return fmt.Errorf("load latest posts: %w", err)
		}

		base := b.opts.BakedURL
		feed := atomFeed{
			Xmlns:    atomNamespace,
			Title:    b.opts.Title,
			Subtitle: b.opts.Subtitle,
			ID:       base + "/",
			Links: []atomLink{
				{Type: "text/html", Rel: "alternate", Href: base},
				{Type: "application/atom+xml", Rel: "self", Href: base + "/" + FeedFile},
			},
			Updated: atomTime(b.deps.Clock.Now()),
		}
		if len(posts) > 0 {
			feed.Updated = atomTime(posts[0].Date)
		}

		for _, post := range posts {
			full, err := b.deps.Content.FullPost(ctx, post)
			if err != nil {
				return fmt.Errorf("load full post %q: %w", post.Slug, err)
			}
			formatted, err := formatting.FormatPost(full, b.chartExports())
			if err != nil {
				return err
			}
			link := base + "/" + post.Slug
			entry := atomEntry{
				Title:     formatted.Title,
				ID:        link,
				Link:      atomLink{Rel: "alternate", Href: link},
				Published: atomTime(formatted.Date),
				Updated:   atomTime(formatted.Modified),
				Summary:   formatted.Excerpt,
			}
			for _, author := range formatted.Authors {
				entry.Authors = append(entry.Authors, atomAuthor{Name: author})
			}
			feed.Entries = append(feed.Entries, entry)
		}

		out, err := xml.MarshalIndent(feed, "", "    ")
		if err != nil {
			return fmt.Errorf("encode feed: %w", err)
		}
		return b.StageWrite(ctx, FeedFile, xml.Header+string(out)+"\n")
	})
}

func atomTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
