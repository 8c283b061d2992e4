// Package collect acquires statute XML from the e-Gov open-data
// endpoint and manages the local file inventory.
package collect

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/redwell/law-search/internal/config"
	lserrors "github.com/redwell/law-search/internal/errors"
)

// minValidFileSize is the smallest plausible statute XML in bytes.
const minValidFileSize = 100

// DownloadResult reports one acquisition attempt. Never persisted.
type DownloadResult struct {
	LawID     string
	Path      string
	SizeBytes int64
	Duration  time.Duration
	Cached    bool
	Err       error
}

// FileInfo describes one file in the local inventory.
type FileInfo struct {
	LawID     string
	Path      string
	SizeBytes int64
	ModTime   time.Time
	Valid     bool
}

// Collector downloads statute XML, pacing bulk runs to respect the
// upstream rate limit.
type Collector struct {
	baseURL    string
	dataDir    string
	lawIDs     []string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

func New(cfg config.CollectorConfig, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.PacingInterval
	if interval <= 0 {
		interval = time.Second
	}
	return &Collector{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		dataDir:    cfg.DataDir,
		lawIDs:     cfg.LawIDs,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
		logger:     logger,
	}
}

// FilePath returns the local path for a law ID.
func (c *Collector) FilePath(lawID string) string {
	return filepath.Join(c.dataDir, lawID+".xml")
}

// Fetch downloads one statute to the local inventory. An existing
// valid local file is reused without touching the network.
func (c *Collector) Fetch(ctx context.Context, lawID string) DownloadResult {
	started := time.Now()
	path := c.FilePath(lawID)

	if err := ValidateFile(path); err == nil {
		info, _ := os.Stat(path)
		c.logger.Debug("using cached statute file", "law_id", lawID, "path", path)
		return DownloadResult{
			LawID: lawID, Path: path, SizeBytes: info.Size(),
			Duration: time.Since(started), Cached: true,
		}
	}

	if err := os.MkdirAll(c.dataDir, 0o755); err != nil {
		return DownloadResult{LawID: lawID, Duration: time.Since(started),
			Err: lserrors.Wrap(lserrors.ErrCodeDownloadFailed, err)}
	}

	data, err := c.download(ctx, lawID)
	if err != nil {
		return DownloadResult{LawID: lawID, Duration: time.Since(started), Err: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return DownloadResult{LawID: lawID, Duration: time.Since(started),
			Err: lserrors.Wrap(lserrors.ErrCodeDownloadFailed, err)}
	}
	if err := ValidateFile(path); err != nil {
		_ = os.Remove(path)
		return DownloadResult{LawID: lawID, Duration: time.Since(started), Err: err}
	}

	c.logger.Info("statute downloaded", "law_id", lawID, "bytes", len(data))
	return DownloadResult{
		LawID: lawID, Path: path, SizeBytes: int64(len(data)),
		Duration: time.Since(started),
	}
}

func (c *Collector) download(ctx context.Context, lawID string) ([]byte, error) {
	url := fmt.Sprintf("%s/api/1/lawdata/%s", c.baseURL, lawID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, lserrors.Wrap(lserrors.ErrCodeDownloadFailed, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, lserrors.Wrap(lserrors.ErrCodeDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, lserrors.AcquisitionError(
			fmt.Sprintf("download of %s returned status %d", lawID, resp.StatusCode), nil)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, lserrors.Wrap(lserrors.ErrCodeDownloadFailed, err)
	}
	return data, nil
}

// FetchAll downloads the configured default document set, pacing
// network requests. Cached files skip the pacing wait.
func (c *Collector) FetchAll(ctx context.Context) []DownloadResult {
	results := make([]DownloadResult, 0, len(c.lawIDs))
	for _, lawID := range c.lawIDs {
		if err := ValidateFile(c.FilePath(lawID)); err != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				results = append(results, DownloadResult{LawID: lawID,
					Err: lserrors.Wrap(lserrors.ErrCodeDownloadFailed, err)})
				continue
			}
		}
		res := c.Fetch(ctx, lawID)
		if res.Err != nil {
			c.logger.Warn("statute acquisition failed", "law_id", lawID, "error", res.Err)
		}
		results = append(results, res)
	}
	return results
}

// LawIDs returns the configured default document set.
func (c *Collector) LawIDs() []string {
	return c.lawIDs
}

// Inventory lists the XML files currently in the data directory.
func (c *Collector) Inventory() ([]FileInfo, error) {
	entries, err := os.ReadDir(c.dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, lserrors.Wrap(lserrors.ErrCodeFileNotFound, err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".xml") {
			continue
		}
		path := filepath.Join(c.dataDir, e.Name())
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			LawID:     strings.TrimSuffix(e.Name(), ".xml"),
			Path:      path,
			SizeBytes: info.Size(),
			ModTime:   info.ModTime(),
			Valid:     ValidateFile(path) == nil,
		})
	}
	return files, nil
}

// CleanupOldFiles removes inventory files older than the given age in
// days and returns the number removed.
func (c *Collector) CleanupOldFiles(days int) (int, error) {
	files, err := c.Inventory()
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().AddDate(0, 0, -days)

	removed := 0
	for _, f := range files {
		if !f.ModTime.Before(cutoff) {
			continue
		}
		if err := os.Remove(f.Path); err != nil {
			c.logger.Warn("failed to remove old statute file", "path", f.Path, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		c.logger.Info("removed old statute files", "removed", removed, "age_days", days)
	}
	return removed, nil
}

// ValidateFile checks that a file plausibly holds statute XML: large
// enough, begins with an XML declaration, and contains a recognizable
// law root element.
func ValidateFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return lserrors.Wrap(lserrors.ErrCodeFileNotFound, err)
	}
	if info.Size() < minValidFileSize {
		return lserrors.New(lserrors.ErrCodeFileInvalid,
			fmt.Sprintf("%s is %d bytes, below the %d byte minimum",
				path, info.Size(), minValidFileSize), nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return lserrors.Wrap(lserrors.ErrCodeFileInvalid, err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "<?xml") {
		return lserrors.New(lserrors.ErrCodeFileInvalid,
			path+" does not begin with an XML declaration", nil)
	}
	if !strings.Contains(content, "<law") && !strings.Contains(content, "<Law") {
		return lserrors.New(lserrors.ErrCodeFileInvalid,
			path+" has no recognizable law root element", nil)
	}
	return nil
}
