package mediagrab

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const downloadChunkSize = 32 * 1024

// Content types accepted for downloaded media. Anything else is rejected
// before a single byte is written to disk.
var allowedContentTypes = []string{"image/", "video/", "audio/", "application/octet-stream"}

// A DownloadJob is one in-flight transfer: ephemeral, created per request and
// discarded after delivery or failure.
type DownloadJob struct {
	URL string
	// FallbackURL, when non-empty, is tried once if the primary URL fails.
	FallbackURL string
	DestPath    string
	// MaxBytes aborts the transfer the instant the byte count exceeds it,
	// whether the server declared a content length or not. 0 means no limit.
	MaxBytes int64
	// Headers are added to the GET request (referer etc. for picky hosts).
	Headers map[string]string
	// Progress, if set, is called with (downloaded, expected) byte counts.
	// Expected is 0 when the server did not declare a length.
	Progress func(downloaded, expected int64)
}

// Downloader streams URLs to local files with live size enforcement.
type Downloader struct {
	client *http.Client
	log    *zap.SugaredLogger
}

func NewDownloader(client *http.Client) *Downloader {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Downloader{
		client: client,
		log:    zap.S().Named("downloader"),
	}
}

// Download fetches the job's URL into DestPath. On every failure path the
// partial file is removed; on success exactly one complete, non-empty file is
// left at DestPath and the caller owns its deletion.
func (d *Downloader) Download(ctx context.Context, job DownloadJob) error {
	resp, err := d.get(ctx, job.URL, job.Headers)
	if err != nil && job.FallbackURL != "" {
		d.log.Debugw("primary URL failed, trying fallback", "url", job.URL, "error", err)
		resp, err = d.get(ctx, job.FallbackURL, job.Headers)
	}
	if err != nil {
		return fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !contentTypeAllowed(contentType) {
		return fmt.Errorf("%w: %q", ErrBadContentType, contentType)
	}

	expected := resp.ContentLength
	if expected < 0 {
		expected = 0
	}
	if job.MaxBytes > 0 && expected > job.MaxBytes {
		return fmt.Errorf("%w: content-length %d > %d", ErrTooLarge, expected, job.MaxBytes)
	}

	if err := os.MkdirAll(filepath.Dir(job.DestPath), 0755); err != nil {
		return fmt.Errorf("failed to create target directory: %w", err)
	}
	f, err := os.Create(job.DestPath)
	if err != nil {
		return fmt.Errorf("failed to open target file: %w", err)
	}

	downloaded, err := d.copyLimited(ctx, f, resp.Body, job, expected)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to finish target file: %w", cerr)
	}
	if err == nil && downloaded == 0 {
		err = ErrEmptyFile
	}
	if err != nil {
		_ = os.Remove(job.DestPath)
		return err
	}
	return nil
}

func (d *Downloader) get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp, nil
}

// copyLimited streams body to f chunk by chunk, keeping a running byte count
// so dishonest or absent content-length headers cannot smuggle in an oversized
// file.
func (d *Downloader) copyLimited(ctx context.Context, f *os.File, body io.Reader, job DownloadJob, expected int64) (int64, error) {
	src := &readerContext{ctx: ctx, r: body}
	buf := make([]byte, downloadChunkSize)
	var downloaded int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			downloaded += int64(n)
			if job.MaxBytes > 0 && downloaded > job.MaxBytes {
				return downloaded, fmt.Errorf("%w: body exceeded %d bytes", ErrTooLarge, job.MaxBytes)
			}
			if _, werr := f.Write(buf[:n]); werr != nil {
				return downloaded, fmt.Errorf("failed to save stream: %w", werr)
			}
			if job.Progress != nil {
				job.Progress(downloaded, expected)
			}
		}
		if rerr == io.EOF {
			return downloaded, nil
		}
		if rerr != nil {
			return downloaded, fmt.Errorf("failed to read stream: %w", rerr)
		}
	}
}

func contentTypeAllowed(contentType string) bool {
	for _, allowed := range allowedContentTypes {
		if strings.HasPrefix(contentType, allowed) {
			return true
		}
	}
	return false
}

// A context-aware io.Reader wrapper.
type readerContext struct {
	ctx context.Context
	r   io.Reader
}

func (r *readerContext) Read(p []byte) (n int, err error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
