package fetcher

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nuvie/nuvie-ingestor/internal/core/domain"
)

const patientsCSV = "Id,SSN\n1,999-1\n"

// buildZip returns an archive holding the given name/content pairs.
func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// archiveServer serves body after failing the first failures requests
// with failStatus.
func archiveServer(t *testing.T, body []byte, failures int32, failStatus int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := hits.Add(1)
		if n <= failures {
			w.WriteHeader(failStatus)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func testDataset(url string) domain.Dataset {
	return domain.Dataset{
		Name:        "synthea",
		SourceURL:   url,
		ArchiveName: "synthea.zip",
		CSVName:     "patients.csv",
	}
}

func newTestFetcher(retries int) *HTTPFetcher {
	return NewHTTPFetcher(
		domain.FetchConfig{Timeout: 5 * time.Second, Retries: retries},
		WithRetryLimiter(NewRetryLimiter(time.Millisecond)),
	)
}

func TestEnsure_DownloadsAndExtracts(t *testing.T) {
	srv, hits := archiveServer(t, buildZip(t, map[string]string{"csv/patients.csv": patientsCSV}), 0, 0)
	dir := filepath.Join(t.TempDir(), "downloads")

	err := newTestFetcher(0).Ensure(context.Background(), testDataset(srv.URL), dir)

	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
	content, err := os.ReadFile(filepath.Join(dir, "patients.csv"))
	require.NoError(t, err)
	assert.Equal(t, patientsCSV, string(content))
	assert.NoFileExists(t, filepath.Join(dir, "synthea.zip"), "archive removed")
	assert.NoFileExists(t, filepath.Join(dir, "synthea.zip.part"))
}

func TestEnsure_Idempotent(t *testing.T) {
	srv, hits := archiveServer(t, buildZip(t, map[string]string{"patients.csv": patientsCSV}), 0, 0)
	dir := t.TempDir()
	f := newTestFetcher(0)

	require.NoError(t, f.Ensure(context.Background(), testDataset(srv.URL), dir))
	require.NoError(t, f.Ensure(context.Background(), testDataset(srv.URL), dir))

	assert.Equal(t, int32(1), hits.Load(), "second call makes no request")
}

func TestEnsure_ExtractsExistingArchive(t *testing.T) {
	srv, hits := archiveServer(t, nil, 0, 0)
	dir := t.TempDir()
	archive := buildZip(t, map[string]string{"patients.csv": patientsCSV})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "synthea.zip"), archive, 0o644))

	err := newTestFetcher(0).Ensure(context.Background(), testDataset(srv.URL), dir)

	require.NoError(t, err)
	assert.Zero(t, hits.Load())
	assert.FileExists(t, filepath.Join(dir, "patients.csv"))
	assert.NoFileExists(t, filepath.Join(dir, "synthea.zip"))
}

func TestEnsure_ArchiveRemovalFailureIsNotFatal(t *testing.T) {
	srv, _ := archiveServer(t, buildZip(t, map[string]string{"patients.csv": patientsCSV}), 0, 0)
	dir := t.TempDir()
	var removed []string
	f := NewHTTPFetcher(
		domain.FetchConfig{Timeout: 5 * time.Second},
		WithRetryLimiter(NewRetryLimiter(time.Millisecond)),
		WithRemover(func(name string) error {
			removed = append(removed, name)
			return os.ErrPermission
		}),
	)

	err := f.Ensure(context.Background(), testDataset(srv.URL), dir)

	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "synthea.zip")}, removed)
	assert.FileExists(t, filepath.Join(dir, "patients.csv"))
	assert.FileExists(t, filepath.Join(dir, "synthea.zip"), "archive left in place")
}

func TestEnsureDataset(t *testing.T) {
	srv, _ := archiveServer(t, buildZip(t, map[string]string{"patients.csv": patientsCSV}), 0, 0)
	f := newTestFetcher(0)

	assert.True(t, EnsureDataset(context.Background(), f, testDataset(srv.URL), t.TempDir()))
}

func TestEnsureDataset_Failure(t *testing.T) {
	srv, _ := archiveServer(t, nil, 1, http.StatusNotFound)
	f := newTestFetcher(0)

	assert.False(t, EnsureDataset(context.Background(), f, testDataset(srv.URL), t.TempDir()))
}

func TestEnsure_ClientErrorNotRetried(t *testing.T) {
	srv, hits := archiveServer(t, nil, 100, http.StatusNotFound)
	dir := t.TempDir()

	err := newTestFetcher(3).Ensure(context.Background(), testDataset(srv.URL), dir)

	assert.ErrorIs(t, err, domain.ErrFetch)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), hits.Load())
	assert.NoFileExists(t, filepath.Join(dir, "synthea.zip"))
}

func TestEnsure_RetriesTransientFailures(t *testing.T) {
	body := buildZip(t, map[string]string{"patients.csv": patientsCSV})
	srv, hits := archiveServer(t, body, 2, http.StatusServiceUnavailable)
	dir := t.TempDir()

	err := newTestFetcher(2).Ensure(context.Background(), testDataset(srv.URL), dir)

	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
	assert.FileExists(t, filepath.Join(dir, "patients.csv"))
}

func TestEnsure_GivesUpAfterRetries(t *testing.T) {
	srv, hits := archiveServer(t, nil, 100, http.StatusTooManyRequests)

	err := newTestFetcher(1).Ensure(context.Background(), testDataset(srv.URL), t.TempDir())

	assert.ErrorIs(t, err, domain.ErrFetch)
	assert.Equal(t, int32(2), hits.Load())
}

func TestEnsure_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := newTestFetcher(1).Ensure(context.Background(), testDataset(url), t.TempDir())

	assert.ErrorIs(t, err, domain.ErrFetch)
}

func TestEnsure_InvalidArchive(t *testing.T) {
	srv, _ := archiveServer(t, []byte("definitely not a zip"), 0, 0)

	err := newTestFetcher(0).Ensure(context.Background(), testDataset(srv.URL), t.TempDir())

	assert.ErrorIs(t, err, domain.ErrFetch)
}

func TestEnsure_ArchiveWithoutCSV(t *testing.T) {
	srv, _ := archiveServer(t, buildZip(t, map[string]string{"readme.txt": "hi"}), 0, 0)

	err := newTestFetcher(0).Ensure(context.Background(), testDataset(srv.URL), t.TempDir())

	assert.ErrorIs(t, err, domain.ErrFetch)
	assert.Contains(t, err.Error(), "patients.csv not found")
}

func TestEnsure_RejectsPathTraversal(t *testing.T) {
	srv, _ := archiveServer(t, buildZip(t, map[string]string{"../evil.csv": "x"}), 0, 0)
	parent := t.TempDir()
	dir := filepath.Join(parent, "downloads")

	err := newTestFetcher(0).Ensure(context.Background(), testDataset(srv.URL), dir)

	assert.ErrorIs(t, err, ErrUnsafeArchive)
	assert.ErrorIs(t, err, domain.ErrFetch)
	assert.NoFileExists(t, filepath.Join(parent, "evil.csv"))
}

func TestEnsure_ContextCancelled(t *testing.T) {
	srv, _ := archiveServer(t, nil, 100, http.StatusServiceUnavailable)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestFetcher(5).Ensure(ctx, testDataset(srv.URL), t.TempDir())

	assert.ErrorIs(t, err, domain.ErrFetch)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 3*time.Second, parseRetryAfter("3"))
	assert.Zero(t, parseRetryAfter(""))
	assert.Zero(t, parseRetryAfter("-1"))
	assert.Zero(t, parseRetryAfter("Wed, 21 Oct 2015 07:28:00 GMT"))
}

func TestRetryLimiter_Backoff(t *testing.T) {
	l := NewRetryLimiter(time.Millisecond)
	l.Backoff(50 * time.Millisecond)

	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))

	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestRetryLimiter_WaitCancelled(t *testing.T) {
	l := NewRetryLimiter(time.Millisecond)
	l.Backoff(time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, l.Wait(ctx), context.DeadlineExceeded)
}
