// Package fetcher downloads and unpacks dataset archives over HTTP.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nuvie/nuvie-ingestor/internal/core/domain"
	"github.com/nuvie/nuvie-ingestor/internal/core/ports/driven"
	"github.com/nuvie/nuvie-ingestor/internal/logger"
)

// Ensure HTTPFetcher implements the interface.
var _ driven.DatasetFetcher = (*HTTPFetcher)(nil)

// copyBufferSize is the chunk size used when streaming the archive to disk.
const copyBufferSize = 32 * 1024

// HTTPFetcher downloads a dataset archive and extracts it locally.
type HTTPFetcher struct {
	client  *http.Client
	timeout time.Duration
	retries int
	limiter *RetryLimiter
	remove  func(name string) error
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *HTTPFetcher) {
		f.client = c
	}
}

// WithRetryLimiter sets the limiter that paces retries.
func WithRetryLimiter(l *RetryLimiter) Option {
	return func(f *HTTPFetcher) {
		f.limiter = l
	}
}

// WithRemover sets the function used to delete the archive after
// extraction. Defaults to os.Remove.
func WithRemover(remove func(name string) error) Option {
	return func(f *HTTPFetcher) {
		f.remove = remove
	}
}

// NewHTTPFetcher creates a fetcher using the given download settings.
func NewHTTPFetcher(cfg domain.FetchConfig, opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		client:  http.DefaultClient,
		timeout: cfg.Timeout,
		retries: max(0, cfg.Retries),
		limiter: NewRetryLimiter(DefaultRetryInterval),
		remove:  os.Remove,
	}
	if f.timeout <= 0 {
		f.timeout = domain.DefaultFetchTimeout
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Ensure makes ds.CSVName available in dir.
// An extracted CSV short-circuits everything; an archive already on disk
// is extracted without downloading. The archive is removed afterwards.
func (f *HTTPFetcher) Ensure(ctx context.Context, ds domain.Dataset, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %w", domain.ErrFetch, dir, err)
	}

	csvPath := filepath.Join(dir, ds.CSVName)
	if fileExists(csvPath) {
		logger.Info("Dataset already exists, skipping download", "path", csvPath)
		return nil
	}

	archivePath := filepath.Join(dir, ds.ArchiveName)
	if fileExists(archivePath) {
		logger.Info("Zip file exists, extracting", "path", archivePath)
	} else {
		logger.Info("Downloading dataset", "url", ds.SourceURL, "destination", archivePath)
		size, err := f.download(ctx, ds.SourceURL, archivePath)
		if err != nil {
			logger.Error("Failed to download dataset", "error", err)
			return err
		}
		logger.Info("Download completed", "size_mb", fmt.Sprintf("%.2f", float64(size)/1024/1024))
	}

	if err := extract(archivePath, dir, ds.CSVName); err != nil {
		logger.Error("Failed to extract dataset", "error", err)
		return fmt.Errorf("%w: extract %s: %w", domain.ErrFetch, archivePath, err)
	}
	logger.Info("Dataset extracted successfully", "path", dir)

	if err := f.remove(archivePath); err != nil {
		logger.Warn("Failed to remove zip file", "path", archivePath, "error", err)
	} else {
		logger.Info("Zip file removed to save space")
	}
	return nil
}

// EnsureDataset reports whether ds.CSVName is available in dir after
// calling Ensure. Failures are already logged by Ensure.
func EnsureDataset(ctx context.Context, f driven.DatasetFetcher, ds domain.Dataset, dir string) bool {
	return f.Ensure(ctx, ds, dir) == nil
}

// transientError marks a failure worth retrying.
type transientError struct {
	err        error
	retryAfter time.Duration
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// download fetches url into dest, retrying transient failures.
func (f *HTTPFetcher) download(ctx context.Context, url, dest string) (int64, error) {
	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			logger.Warn("Retrying download", "attempt", attempt+1, "error", lastErr)
		}
		if err := f.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("%w: %w", domain.ErrFetch, err)
		}

		n, err := f.downloadOnce(ctx, url, dest)
		if err == nil {
			return n, nil
		}
		lastErr = err

		var te *transientError
		if !errors.As(err, &te) {
			return 0, err
		}
		f.limiter.Backoff(te.retryAfter)
	}
	return 0, lastErr
}

func (f *HTTPFetcher) downloadOnce(ctx context.Context, url, dest string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrFetch, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, &transientError{err: fmt.Errorf("%w: %w", domain.ErrFetch, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return 0, &transientError{
			err:        fmt.Errorf("%w: %s returned status %d", domain.ErrFetch, url, resp.StatusCode),
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("%w: %s returned status %d", domain.ErrFetch, url, resp.StatusCode)
	}

	part := dest + ".part"
	out, err := os.Create(part)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrFetch, err)
	}

	n, copyErr := io.CopyBuffer(out, resp.Body, make([]byte, copyBufferSize))
	closeErr := out.Close()
	if copyErr != nil {
		_ = os.Remove(part)
		return 0, &transientError{err: fmt.Errorf("%w: read body: %w", domain.ErrFetch, copyErr)}
	}
	if closeErr != nil {
		_ = os.Remove(part)
		return 0, fmt.Errorf("%w: %w", domain.ErrFetch, closeErr)
	}

	if err := os.Rename(part, dest); err != nil {
		_ = os.Remove(part)
		return 0, fmt.Errorf("%w: %w", domain.ErrFetch, err)
	}
	return n, nil
}

// parseRetryAfter reads a delay in seconds. HTTP dates are ignored.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
