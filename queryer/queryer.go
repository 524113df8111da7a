// Package queryer drives a browser session against the ICSD Basic Search &
// Retrieve form: it submits a query, walks the paginated Detailed View, and
// hands each rendered page to the extractor.
package queryer

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"
	"golang.org/x/time/rate"

	"github.com/icsd-tools/icsdcrawl/config"
	"github.com/icsd-tools/icsdcrawl/exporter"
	"github.com/icsd-tools/icsdcrawl/models"
	"github.com/icsd-tools/icsdcrawl/store"
)

// cifBaseFilename is prepended to every exported CIF; the site appends the
// collection code, yielding e.g. ICSD_Coll_Code_18975.cif.
const cifBaseFilename = "ICSD_Coll_Code"

// domStableWait is the window the DOM must stay unchanged after a page
// transition before scraping continues.
const domStableWait = 300 * time.Millisecond

// Queryer manages one browser session. A session is single-page and serial:
// the site keeps all navigation state server-side, so there is nothing to
// parallelize.
type Queryer struct {
	browser *rod.Browser
	page    *rod.Page
	lc      *launcher.Launcher

	browserCfg config.Browser
	cfg        config.Queryer

	writer  *exporter.Writer
	index   *store.Store // optional progress index
	limiter *rate.Limiter

	// hits is the result count the List View reported for the last query.
	hits   int
	closed bool
}

// New launches a headless browser with a fresh profile and a dedicated
// download directory, and connects a single page to it. The previous
// profile directory is wiped first so a stale session never leaks in.
func New(browserCfg config.Browser, cfg config.Queryer, index *store.Store) (*Queryer, error) {
	if err := os.RemoveAll(browserCfg.UserDataDir); err != nil {
		return nil, models.NewCrawlError(
			models.ErrCodeInternal, "failed to wipe browser profile dir", err)
	}
	if err := os.MkdirAll(browserCfg.DownloadDir, 0o755); err != nil {
		return nil, models.NewCrawlError(
			models.ErrCodeInternal, "failed to create download dir", err)
	}

	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox).
		UserDataDir(browserCfg.UserDataDir)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.Proxy != "" {
		l = l.Proxy(browserCfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewCrawlError(
			models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL,
		"downloadDir", browserCfg.DownloadDir)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewCrawlError(
			models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	// Downloads land in our polling directory instead of ~/Downloads.
	downloadPath, _ := filepath.Abs(browserCfg.DownloadDir)
	if err := (proto.BrowserSetDownloadBehavior{
		Behavior:     proto.BrowserSetDownloadBehaviorBehaviorAllow,
		DownloadPath: downloadPath,
	}).Call(browser); err != nil {
		browser.MustClose()
		return nil, models.NewCrawlError(
			models.ErrCodeBrowserCrash, "failed to set download behavior", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		browser.MustClose()
		return nil, models.NewCrawlError(
			models.ErrCodeBrowserCrash, "failed to open a page", err)
	}

	if browserCfg.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", err)
		}
	}

	// The site localizes panel labels; the marker texts in the tag tables
	// are the English ones.
	_ = proto.NetworkSetExtraHTTPHeaders{
		Headers: proto.NetworkHeaders{
			"Accept-Language": gson.New("en-US,en;q=0.9"),
		},
	}.Call(page)

	writer, err := exporter.NewWriter(cfg.OutputDir)
	if err != nil {
		browser.MustClose()
		return nil, models.NewCrawlError(
			models.ErrCodeInternal, "failed to prepare output dir", err)
	}

	limit := rate.Inf
	if cfg.EntriesPerSecond > 0 {
		limit = rate.Limit(cfg.EntriesPerSecond)
	}

	return &Queryer{
		browser:    browser,
		page:       page,
		lc:         l,
		browserCfg: browserCfg,
		cfg:        cfg,
		writer:     writer,
		index:      index,
		limiter:    rate.NewLimiter(limit, 1),
	}, nil
}

// Hits returns the result count the List View reported for the last query.
func (q *Queryer) Hits() int {
	return q.hits
}

// Close shuts the browser down and cleans up the launcher's temp files.
// Safe to call more than once.
func (q *Queryer) Close() {
	if q.closed {
		return
	}
	q.closed = true
	if err := q.browser.Close(); err != nil {
		slog.Warn("browser close failed", "error", err)
	}
	q.lc.Kill()
	q.lc.Cleanup()
	slog.Info("browser session closed")
}

// fail closes the session and returns a typed error. Every page-marker
// mismatch terminates the whole run; there is no retry because the session
// state on the server side is unknown after a missed transition.
func (q *Queryer) fail(code, msg string, err error) error {
	q.Close()
	return models.NewCrawlError(code, msg, err)
}
