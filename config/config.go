package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// DefaultSearchURL is the Basic Search & Retrieve form this tool drives.
const DefaultSearchURL = "https://icsd.fiz-karlsruhe.de/search/basic.xhtml"

// Config holds all application configuration.
type Config struct {
	Browser Browser
	Queryer Queryer
	Crawler Crawler
	Store   Store
	Log     Log
}

// Browser controls the Rod browser instance.
type Browser struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL for all requests.
	Proxy string

	// UserDataDir holds the browser profile. Wiped on every launch so a
	// stale session never leaks into a new run.
	UserDataDir string // default: ./browser_data

	// DownloadDir is where the browser drops exported CIF files.
	// Defaults to a subdirectory of UserDataDir.
	DownloadDir string

	// Stealth enables anti-bot-detection JS injection.
	Stealth bool // default: false
}

// Queryer controls one search session.
type Queryer struct {
	// URL of the search form.
	URL string // default: DefaultSearchURL

	// OutputDir is the root under which per-entry directories are created.
	OutputDir string // default: "."

	// NavTimeout bounds each page transition.
	NavTimeout time.Duration // default: 30s

	// DownloadTimeout bounds the wait for an exported CIF to land on disk.
	DownloadTimeout time.Duration // default: 60s

	// DownloadPoll is the filesystem polling interval while waiting for
	// a download.
	DownloadPoll time.Duration // default: 100ms

	// EntriesPerSecond paces advances through the result set. Zero or
	// negative disables pacing.
	EntriesPerSecond float64 // default: 2

	// SaveScreenshot saves screenshot.png alongside each entry's metadata.
	SaveScreenshot bool // default: false

	// TagOverrides is an optional YAML file merged over the built-in
	// locator tables.
	TagOverrides string
}

// Crawler controls the batch crawler.
type Crawler struct {
	// CombinedDir holds the enumerated collection-code CSVs.
	CombinedDir string // default: "combined"

	// PageDir holds the per-page CSVs written by the enumerator.
	PageDir string // default: "each"

	// BatchSize is the maximum number of collection codes fetched per
	// query. The web interface caps exports at 100 entries.
	BatchSize int // default: 100

	// Backoff is the pause after a failed batch before retrying.
	Backoff time.Duration // default: 180s
}

// Store controls the progress index.
type Store struct {
	// Path of the SQLite database file. Empty disables the index.
	Path string // default: "icsdcrawl.db"
}

// Log controls structured logging.
type Log struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "text"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	userDataDir := envOr("ICSD_USER_DATA_DIR", "browser_data")
	return &Config{
		Browser: Browser{
			Headless:    envBoolOr("ICSD_HEADLESS", true),
			NoSandbox:   envBoolOr("ICSD_NO_SANDBOX", false),
			BrowserBin:  os.Getenv("ICSD_BROWSER_BIN"),
			Proxy:       os.Getenv("ICSD_PROXY"),
			UserDataDir: userDataDir,
			DownloadDir: envOr("ICSD_DOWNLOAD_DIR", filepath.Join(userDataDir, "driver_downloads")),
			Stealth:     envBoolOr("ICSD_STEALTH", false),
		},
		Queryer: Queryer{
			URL:              envOr("ICSD_URL", DefaultSearchURL),
			OutputDir:        envOr("ICSD_OUTPUT_DIR", "."),
			NavTimeout:       envDurationOr("ICSD_NAV_TIMEOUT", 30*time.Second),
			DownloadTimeout:  envDurationOr("ICSD_DOWNLOAD_TIMEOUT", 60*time.Second),
			DownloadPoll:     envDurationOr("ICSD_DOWNLOAD_POLL", 100*time.Millisecond),
			EntriesPerSecond: envFloatOr("ICSD_ENTRIES_PER_SECOND", 2.0),
			SaveScreenshot:   envBoolOr("ICSD_SCREENSHOT", false),
			TagOverrides:     os.Getenv("ICSD_TAG_OVERRIDES"),
		},
		Crawler: Crawler{
			CombinedDir: envOr("ICSD_COMBINED_DIR", "combined"),
			PageDir:     envOr("ICSD_PAGE_DIR", "each"),
			BatchSize:   envIntOr("ICSD_BATCH_SIZE", 100),
			Backoff:     envDurationOr("ICSD_BACKOFF", 180*time.Second),
		},
		Store: Store{
			Path: envOr("ICSD_DB", "icsdcrawl.db"),
		},
		Log: Log{
			Level:  envOr("ICSD_LOG_LEVEL", "info"),
			Format: envOr("ICSD_LOG_FORMAT", "text"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
