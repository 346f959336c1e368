package site

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// PostType distinguishes blog posts from standalone pages.
type PostType string

// Post types stored in wp_posts.post_type.
const (
	PostTypePost PostType = "post"
	PostTypePage PostType = "page"
)

// Post is a published row from the content store.
type Post struct {
	ID       int64     `json:"id"`
	Type     PostType  `json:"type"`
	Slug     string    `json:"slug"`
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	Excerpt  string    `json:"excerpt"`
	Date     time.Time `json:"date"`
	Modified time.Time `json:"modified"`
	Status   string    `json:"status"`
}

// FullPost is a Post with its related rows resolved.
type FullPost struct {
	Post
	Authors []string `json:"authors"`
}

// Heading is one entry of a page's table of contents.
type Heading struct {
	ID    string
	Text  string
	Level int
}

// FormattedPost is a FullPost whose content has been transformed for rendering.
type FormattedPost struct {
	FullPost
	HTML        string
	Footnotes   []string
	TOC         []Heading
	AuthorsText string
}

// EntryMeta links to a single entry page.
type EntryMeta struct {
	Slug  string
	Title string
}

// CategoryWithEntries groups entry pages under their navigation category.
type CategoryWithEntries struct {
	Name    string
	Slug    string
	Entries []EntryMeta
}

// BlogIndexEntry is a summary row for blog listings.
type BlogIndexEntry struct {
	Slug    string
	Title   string
	Date    time.Time
	Excerpt string
	Authors []string
}

// Redirect is one rule of the _redirects file.
type Redirect struct {
	From string
	To   string
	Code int
}

// String renders the redirect in "from to code" form.
func (r Redirect) String() string {
	return fmt.Sprintf("%s %s %d", r.From, r.To, r.Code)
}

// ChartExport describes a static rendition of an embedded chart.
type ChartExport struct {
	URL         string `json:"url"`
	Slug        string `json:"slug"`
	Path        string `json:"path"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Version     string `json:"version"`
	ContentType string `json:"content_type"`
}

// ChartExports maps chart URLs to their baked exports.
type ChartExports map[string]ChartExport

// Lookup returns the export baked for url, if any.
func (c ChartExports) Lookup(url string) (ChartExport, bool) {
	if c == nil {
		return ChartExport{}, false
	}
	export, ok := c[url]
	return export, ok
}

// JobStatus represents the lifecycle state of a bake job.
type JobStatus string

// Bake job states.
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// BakeRequest captures the options of a single bake.
type BakeRequest struct {
	Force       bool   `json:"force"`
	Deploy      bool   `json:"deploy"`
	Message     string `json:"message"`
	AuthorName  string `json:"author_name,omitempty"`
	AuthorEmail string `json:"author_email,omitempty"`
}

// BakeResult summarises what a bake changed.
type BakeResult struct {
	Staged    int  `json:"staged"`
	Deleted   int  `json:"deleted"`
	Unchanged int  `json:"unchanged"`
	Charts    int  `json:"charts"`
	Committed bool `json:"committed"`
}

// BakeJob is the record kept for each bake submitted in server mode.
type BakeJob struct {
	ID        string      `json:"id"`
	Status    JobStatus   `json:"status"`
	Submitted time.Time   `json:"submitted_at"`
	Started   *time.Time  `json:"started_at,omitempty"`
	Finished  *time.Time  `json:"finished_at,omitempty"`
	ErrorText string      `json:"error_text,omitempty"`
	Request   BakeRequest `json:"request"`
	Result    BakeResult  `json:"result"`
}

// QueueItem wraps a bake ready to run.
type QueueItem struct {
	JobID     string
	Request   BakeRequest
	Submitted int64
}
