package site

import (
	"context"
	"io"
	"net/http"
	"time"
)

// ContentStore reads the published site content.
type ContentStore interface {
	PublishedPosts(ctx context.Context) ([]Post, error)
	LatestPosts(ctx context.Context, limit int) ([]Post, error)
	PostBySlug(ctx context.Context, slug string) (Post, error)
	FullPost(ctx context.Context, post Post) (FullPost, error)
	EntriesByCategory(ctx context.Context) ([]CategoryWithEntries, error)
	BlogIndex(ctx context.Context) ([]BlogIndexEntry, error)
	Redirects(ctx context.Context) ([]Redirect, error)
	PublishedContents(ctx context.Context) ([]string, error)
	Close()
}

// BlobStore writes artifacts under a path and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
	DeleteObject(ctx context.Context, path string) error
}

// OutputStore is the BlobStore holding the baked site itself.
type OutputStore interface {
	BlobStore
	GetObject(ctx context.Context, path string) ([]byte, error)
	// List returns the paths (relative, slash separated) of all objects with the given suffix.
	List(ctx context.Context, suffix string) ([]string, error)
	// Root is the directory the store writes into.
	Root() string
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL      string
	Headers  http.Header
	Selector string
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Runner executes external commands.
type Runner interface {
	Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

// Hasher computes content digests.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// Queue provides enqueue/dequeue semantics for bake jobs.
type Queue interface {
	Enqueue(ctx context.Context, job QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// JobStore persists bake job records.
type JobStore interface {
	CreateJob(ctx context.Context, job BakeJob) error
	UpdateJob(ctx context.Context, jobID string, status JobStatus, errText string, result BakeResult) error
	GetJob(ctx context.Context, jobID string) (BakeJob, error)
	ListJobs(ctx context.Context) ([]BakeJob, error)
}
