package queryer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/icsd-tools/icsdcrawl/models"
)

// AwaitDownload polls the download directory until the exported CIF for the
// given collection code appears, and returns its path. The browser offers
// no completion event for the export, so the filesystem is the signal.
func (q *Queryer) AwaitDownload(ctx context.Context, code int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, q.cfg.DownloadTimeout)
	defer cancel()

	target := filepath.Join(q.browserCfg.DownloadDir, cifFilename(code))
	return awaitFile(ctx, target, q.cfg.DownloadPoll)
}

// awaitFile waits for path to exist and stop being a partial download.
func awaitFile(ctx context.Context, path string, poll time.Duration) (string, error) {
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		if _, err := os.Stat(path); err == nil {
			// Chrome writes .crdownload first and renames on completion,
			// so an existing target is a finished download.
			return path, nil
		}
		select {
		case <-ctx.Done():
			return "", models.NewCrawlError(
				models.ErrCodeDownloadTimeout,
				fmt.Sprintf("download %q never appeared", path),
				ctx.Err(),
			)
		case <-ticker.C:
		}
	}
}
