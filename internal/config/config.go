// Package config loads and validates baker configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Site      SiteConfig      `mapstructure:"site"`
	DB        DBConfig        `mapstructure:"db"`
	Grapher   GrapherConfig   `mapstructure:"grapher"`
	Assets    AssetsConfig    `mapstructure:"assets"`
	Deploy    DeployConfig    `mapstructure:"deploy"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Bake      BakeConfig      `mapstructure:"bake"`
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// SiteConfig describes the site being baked.
type SiteConfig struct {
	BakedDir         string   `mapstructure:"baked_dir"`
	BakedURL         string   `mapstructure:"baked_url"`
	WordpressDir     string   `mapstructure:"wordpress_dir"`
	WordpressURL     string   `mapstructure:"wordpress_url"`
	Title            string   `mapstructure:"title"`
	Subtitle         string   `mapstructure:"subtitle"`
	StaticRoot       string   `mapstructure:"static_root"`
	BlogPostsPerPage int      `mapstructure:"blog_posts_per_page"`
	FrontPagePosts   int      `mapstructure:"front_page_posts"`
	FeedSize         int      `mapstructure:"feed_size"`
	CitationAuthor   string   `mapstructure:"citation_author"`
	JournalTitle     string   `mapstructure:"journal_title"`
	Redirects        []string `mapstructure:"redirects"`
	PreserveHTML     []string `mapstructure:"preserve_html"`
}

// DBConfig controls access to the content database.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// GrapherConfig configures chart export baking.
type GrapherConfig struct {
	UserAgent      string         `mapstructure:"user_agent"`
	TimeoutSeconds int            `mapstructure:"timeout_seconds"`
	RPS            float64        `mapstructure:"rps"`
	Burst          int            `mapstructure:"burst"`
	Concurrency    int            `mapstructure:"concurrency"`
	ExportsPrefix  string         `mapstructure:"exports_prefix"`
	Headless       HeadlessConfig `mapstructure:"headless"`
}

// HeadlessConfig configures the chromedp chart capture fallback.
type HeadlessConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	MaxParallel   int    `mapstructure:"max_parallel"`
	NavTimeoutSec int    `mapstructure:"nav_timeout_seconds"`
	Selector      string `mapstructure:"selector"`
}

// AssetPath is one rsync source/destination pair.
type AssetPath struct {
	Source string `mapstructure:"source"`
	Dest   string `mapstructure:"dest"`
}

// AssetsConfig configures static asset mirroring.
type AssetsConfig struct {
	RsyncBin  string      `mapstructure:"rsync_bin"`
	RsyncArgs []string    `mapstructure:"rsync_args"`
	Paths     []AssetPath `mapstructure:"paths"`
}

// DeployConfig configures the git commit/push and the optional bucket mirror.
type DeployConfig struct {
	GitBin      string       `mapstructure:"git_bin"`
	Remote      string       `mapstructure:"remote"`
	Branch      string       `mapstructure:"branch"`
	ChunkSize   int          `mapstructure:"chunk_size"`
	AuthorName  string       `mapstructure:"author_name"`
	AuthorEmail string       `mapstructure:"author_email"`
	Mirror      MirrorConfig `mapstructure:"mirror"`
}

// MirrorConfig selects the bucket the baked files are copied to after deploy.
type MirrorConfig struct {
	Driver    string `mapstructure:"driver"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	PathStyle bool   `mapstructure:"path_style"`
	BaseDir   string `mapstructure:"base_dir"`
}

// PubSubConfig holds metadata for bake notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// BakeConfig tunes the bake pipeline and server-mode queue.
type BakeConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	QueueDepth  int           `mapstructure:"queue_depth"`
	JobTimeout  time.Duration `mapstructure:"job_timeout"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// TelemetryConfig controls tracing export.
type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	ProjectID   string `mapstructure:"project_id"`
}

// Mirror drivers accepted by deploy.mirror.driver.
const (
	MirrorNone  = "none"
	MirrorLocal = "local"
	MirrorGCS   = "gcs"
	MirrorS3    = "s3"
)

// DefaultRedirects are written ahead of the redirects stored in the database.
var DefaultRedirects = []string{
	"/feed /atom.xml 302",
	"/entries /#entries 302",
	"/chart-builder/* /grapher/:splat 301",
	"/grapher/public/* /grapher/:splat 301",
	"/grapher/view/* /grapher/:splat 301",
}

// DefaultAssetPaths are the WordPress files mirrored into the baked site.
var DefaultAssetPaths = []AssetPath{
	{Source: "wp-content/themes/owid-theme/identifyadmin.html", Dest: "."},
	{Source: "wp-content", Dest: "."},
	{Source: "wp-includes", Dest: "."},
	{Source: "favicon*", Dest: "."},
	{Source: "slides/", Dest: "slides"},
	{Source: "wp-content/themes/owid-theme/404.html", Dest: "."},
}

// DefaultPreserveHTML lists baked html files the stale sweep never removes.
// A trailing "*" matches by prefix; other entries must match exactly.
var DefaultPreserveHTML = []string{"wp-*", "slides*", "blog*", "index", "identifyadmin", "404"}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BAKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.baked_dir", "")
	v.SetDefault("site.baked_url", "")
	v.SetDefault("site.wordpress_dir", "")
	v.SetDefault("site.wordpress_url", "")
	v.SetDefault("site.title", "Our World in Data")
	v.SetDefault("site.subtitle", "Living conditions around the world are changing rapidly. Explore how and why.")
	v.SetDefault("site.static_root", "")
	v.SetDefault("site.blog_posts_per_page", 21)
	v.SetDefault("site.front_page_posts", 6)
	v.SetDefault("site.feed_size", 10)
	v.SetDefault("site.citation_author", "Max Roser")
	v.SetDefault("site.journal_title", "Our World in Data")
	v.SetDefault("site.redirects", DefaultRedirects)
	v.SetDefault("site.preserve_html", DefaultPreserveHTML)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime", "30m")
	v.SetDefault("grapher.user_agent", "sitebaker/0.1")
	v.SetDefault("grapher.timeout_seconds", 30)
	v.SetDefault("grapher.rps", 4)
	v.SetDefault("grapher.burst", 2)
	v.SetDefault("grapher.concurrency", 4)
	v.SetDefault("grapher.exports_prefix", "grapher/exports")
	v.SetDefault("grapher.headless.enabled", false)
	v.SetDefault("grapher.headless.max_parallel", 1)
	v.SetDefault("grapher.headless.nav_timeout_seconds", 45)
	v.SetDefault("grapher.headless.selector", "figure")
	v.SetDefault("assets.rsync_bin", "rsync")
	v.SetDefault("assets.rsync_args", []string{"-havz", "--delete"})
	v.SetDefault("assets.paths", assetPathDefaults())
	v.SetDefault("deploy.git_bin", "git")
	v.SetDefault("deploy.remote", "origin")
	v.SetDefault("deploy.branch", "master")
	v.SetDefault("deploy.chunk_size", 100)
	v.SetDefault("deploy.mirror.driver", MirrorNone)
	v.SetDefault("deploy.mirror.region", "us-east-1")
	v.SetDefault("bake.concurrency", 4)
	v.SetDefault("bake.queue_depth", 16)
	v.SetDefault("bake.job_timeout", "1h")
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("telemetry.service_name", "sitebaker")
}

func assetPathDefaults() []map[string]any {
	out := make([]map[string]any, 0, len(DefaultAssetPaths))
	for _, p := range DefaultAssetPaths {
		out = append(out, map[string]any{"source": p.Source, "dest": p.Dest})
	}
	return out
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Site.BakedDir) == "" {
		return fmt.Errorf("site.baked_dir is required")
	}
	if strings.TrimSpace(c.Site.BakedURL) == "" {
		return fmt.Errorf("site.baked_url is required")
	}
	if c.Site.BlogPostsPerPage <= 0 {
		return fmt.Errorf("site.blog_posts_per_page must be > 0")
	}
	if c.Bake.Concurrency <= 0 {
		return fmt.Errorf("bake.concurrency must be > 0")
	}
	if c.Bake.QueueDepth <= 0 {
		return fmt.Errorf("bake.queue_depth must be > 0")
	}
	if c.Deploy.ChunkSize <= 0 {
		return fmt.Errorf("deploy.chunk_size must be > 0")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Grapher.Headless.Enabled && c.Grapher.Headless.MaxParallel <= 0 {
		return fmt.Errorf("grapher.headless.max_parallel must be > 0 when headless is enabled")
	}
	switch c.Deploy.Mirror.Driver {
	case "", MirrorNone:
	case MirrorLocal:
		if c.Deploy.Mirror.BaseDir == "" {
			return fmt.Errorf("deploy.mirror.base_dir must be set for the local mirror")
		}
	case MirrorGCS, MirrorS3:
		if c.Deploy.Mirror.Bucket == "" {
			return fmt.Errorf("deploy.mirror.bucket must be set for the %s mirror", c.Deploy.Mirror.Driver)
		}
	default:
		return fmt.Errorf("deploy.mirror.driver %q is not supported", c.Deploy.Mirror.Driver)
	}
	return nil
}

// GrapherTimeout converts the chart fetch timeout to a duration.
func (c Config) GrapherTimeout() time.Duration {
	return time.Duration(c.Grapher.TimeoutSeconds) * time.Second
}

// HeadlessTimeout converts the headless navigation timeout to a duration.
func (c Config) HeadlessTimeout() time.Duration {
	return time.Duration(c.Grapher.Headless.NavTimeoutSec) * time.Second
}

// BakedURL returns the public site URL without a trailing slash.
func (c Config) BakedURL() string {
	return strings.TrimRight(c.Site.BakedURL, "/")
}
