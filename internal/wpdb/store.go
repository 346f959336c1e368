// Package wpdb reads published site content from the WordPress tables through
// a pgx connection pool.
package wpdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/sitebaker/internal/site"
)

// Config controls the Postgres connection pool used for content reads.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type queryCloser interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store implements site.ContentStore over the WordPress schema.
type Store struct {
	pool queryCloser
}

const postColumns = `id, post_type, post_name, post_title, post_content, post_excerpt, post_date, post_modified, post_status`

const (
	publishedPostsQuery = `SELECT ` + postColumns + `
FROM wp_posts
WHERE (post_type = 'page' OR post_type = 'post') AND post_status = 'publish'
ORDER BY post_date DESC`

	latestPostsQuery = `SELECT ` + postColumns + `
FROM wp_posts
WHERE post_type = 'post' AND post_status = 'publish'
ORDER BY post_date DESC
LIMIT $1`

	authorsQuery = `SELECT t.name
FROM wp_term_relationships tr
JOIN wp_term_taxonomy tt ON tt.term_taxonomy_id = tr.term_taxonomy_id
JOIN wp_terms t ON t.term_id = tt.term_id
WHERE tt.taxonomy = 'author' AND tr.object_id = $1
ORDER BY tr.term_order`

	entriesByCategoryQuery = `SELECT t.term_id, t.name, t.slug, COALESCE(p.post_name, ''), COALESCE(p.post_title, '')
FROM wp_terms t
JOIN wp_term_taxonomy tt ON tt.term_id = t.term_id AND tt.taxonomy = 'category'
LEFT JOIN wp_term_relationships tr ON tr.term_taxonomy_id = tt.term_taxonomy_id
LEFT JOIN wp_posts p ON p.id = tr.object_id AND p.post_type = 'page' AND p.post_status = 'publish'
ORDER BY t.term_order, t.term_id, tr.term_order`

	blogIndexQuery = `SELECT id, post_name, post_title, post_date, post_excerpt
FROM wp_posts
WHERE post_type = 'post' AND post_status = 'publish'
ORDER BY post_date DESC`

	redirectsQuery = `SELECT url, action_data, action_code FROM wp_redirection_items ORDER BY id`

	contentsQuery = `SELECT post_content
FROM wp_posts
WHERE (post_type = 'page' OR post_type = 'post') AND post_status = 'publish'`

	postBySlugQuery = `SELECT ` + postColumns + `
FROM wp_posts
WHERE post_name = $1 AND post_status = 'publish'
LIMIT 1`
)

// New creates a pgxpool-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool queryCloser) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// PublishedPosts returns every published post and page.
func (s *Store) PublishedPosts(ctx context.Context) ([]site.Post, error) {
	return s.queryPosts(ctx, "published posts", publishedPostsQuery)
}

// LatestPosts returns up to limit published blog posts, newest first.
func (s *Store) LatestPosts(ctx context.Context, limit int) ([]site.Post, error) {
	if limit <= 0 {
		return nil, nil
	}
	return s.queryPosts(ctx, "latest posts", latestPostsQuery, limit)
}

// PostBySlug loads a single published post or page.
func (s *Store) PostBySlug(ctx context.Context, slug string) (site.Post, error) {
	var (
		post     site.Post
		postType string
	)
	err := s.pool.QueryRow(ctx, postBySlugQuery, slug).Scan(
		&post.ID,
		&postType,
		&post.Slug,
		&post.Title,
		&post.Content,
		&post.Excerpt,
		&post.Date,
		&post.Modified,
		&post.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return site.Post{}, site.ErrNotFound
		}
		return site.Post{}, fmt.Errorf("query post %q: %w", slug, err)
	}
	post.Type = site.PostType(postType)
	return post, nil
}

// FullPost resolves the authors of post.
func (s *Store) FullPost(ctx context.Context, post site.Post) (site.FullPost, error) {
	authors, err := s.authors(ctx, post.ID)
	if err != nil {
		return site.FullPost{}, err
	}
	return site.FullPost{Post: post, Authors: authors}, nil
}

// EntriesByCategory returns navigation categories with their published entry pages.
func (s *Store) EntriesByCategory(ctx context.Context) ([]site.CategoryWithEntries, error) {
	rows, err := s.pool.Query(ctx, entriesByCategoryQuery)
	if err != nil {
		return nil, fmt.Errorf("query entries by category: %w", err)
	}
	defer rows.Close()

	var (
		categories []site.CategoryWithEntries
		index      = make(map[int64]int)
	)
	for rows.Next() {
		var (
			termID     int64
			name, slug string
			entry      site.EntryMeta
		)
		if err := rows.Scan(&termID, &name, &slug, &entry.Slug, &entry.Title); err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		pos, ok := index[termID]
		if !ok {
			categories = append(categories, site.CategoryWithEntries{Name: name, Slug: slug})
			pos = len(categories) - 1
			index[termID] = pos
		}
		if entry.Slug != "" {
			categories[pos].Entries = append(categories[pos].Entries, entry)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category rows: %w", err)
	}
	return categories, nil
}

// BlogIndex returns summaries of all published blog posts, newest first.
func (s *Store) BlogIndex(ctx context.Context) ([]site.BlogIndexEntry, error) {
	rows, err := s.pool.Query(ctx, blogIndexQuery)
	if err != nil {
		return nil, fmt.Errorf("query blog index: %w", err)
	}
	var (
		ids     []int64
		entries []site.BlogIndexEntry
	)
	for rows.Next() {
		var (
			id    int64
			entry site.BlogIndexEntry
		)
		if err := rows.Scan(&id, &entry.Slug, &entry.Title, &entry.Date, &entry.Excerpt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan blog index row: %w", err)
		}
		ids = append(ids, id)
		entries = append(entries, entry)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blog index rows: %w", err)
	}

	for i, id := range ids {
		authors, err := s.authors(ctx, id)
		if err != nil {
			return nil, err
		}
		entries[i].Authors = authors
	}
	return entries, nil
}

// Redirects returns the redirect rules managed in the CMS.
func (s *Store) Redirects(ctx context.Context) ([]site.Redirect, error) {
	rows, err := s.pool.Query(ctx, redirectsQuery)
	if err != nil {
		return nil, fmt.Errorf("query redirects: %w", err)
	}
	defer rows.Close()

	var redirects []site.Redirect
	for rows.Next() {
		var r site.Redirect
		if err := rows.Scan(&r.From, &r.To, &r.Code); err != nil {
			return nil, fmt.Errorf("scan redirect row: %w", err)
		}
		redirects = append(redirects, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate redirect rows: %w", err)
	}
	return redirects, nil
}

// PublishedContents returns the raw content of every published post and page.
func (s *Store) PublishedContents(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, contentsQuery)
	if err != nil {
		return nil, fmt.Errorf("query post contents: %w", err)
	}
	defer rows.Close()

	var contents []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("scan post content: %w", err)
		}
		contents = append(contents, content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate post contents: %w", err)
	}
	return contents, nil
}

func (s *Store) queryPosts(ctx context.Context, what string, query string, args ...any) ([]site.Post, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", what, err)
	}
	defer rows.Close()

	var posts []site.Post
	for rows.Next() {
		var (
			post     site.Post
			postType string
		)
		err := rows.Scan(
			&post.ID,
			&postType,
			&post.Slug,
			&post.Title,
			&post.Content,
			&post.Excerpt,
			&post.Date,
			&post.Modified,
			&post.Status,
		)
		if err != nil {
			return nil, fmt.Errorf("scan %s row: %w", what, err)
		}
		post.Type = site.PostType(postType)
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", what, err)
	}
	return posts, nil
}

func (s *Store) authors(ctx context.Context, postID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx, authorsQuery, postID)
	if err != nil {
		return nil, fmt.Errorf("query authors of post %d: %w", postID, err)
	}
	defer rows.Close()

	var authors []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan author row: %w", err)
		}
		authors = append(authors, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate author rows: %w", err)
	}
	return authors, nil
}
