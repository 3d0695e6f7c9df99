// Package fetch downloads master files and decodes their legacy encodings.
package fetch

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultTimeout bounds a whole download, connect through body read.
const DefaultTimeout = 60 * time.Second

// MaxDownloadSize caps the body read from a master file source.
const MaxDownloadSize = 256 << 20

var (
	// ErrNotFound is returned when the remote source does not exist.
	ErrNotFound = errors.New("master file not found")

	// ErrEmptyArchive is returned for an archive without any file member.
	ErrEmptyArchive = errors.New("archive contains no files")
)

// StatusError reports a non-success HTTP status.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}

// Options configures a Downloader.
type Options struct {
	Timeout time.Duration
	// InsecureSkipVerify disables TLS certificate verification for this
	// downloader's client only.
	InsecureSkipVerify bool
}

// Downloader fetches master files over HTTP(S). There is no automatic retry.
type Downloader struct {
	client *http.Client
}

// NewDownloader creates a Downloader with its own HTTP client.
func NewDownloader(opts Options) *Downloader {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.InsecureSkipVerify {
		slog.Warn("master file downloads skip TLS certificate verification")
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // operator opt-in
	}

	return &Downloader{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
	}
}

// Download fetches url into destPath. Archives are unpacked: the member whose
// name ends with suffix is preferred, otherwise the first file member is used.
// The archive itself is never written to disk.
func (d *Downloader) Download(ctx context.Context, url, suffix, destPath string) error {
	body, err := d.get(ctx, url)
	if err != nil {
		return err
	}

	payload := body
	if isArchive(url, body) {
		payload, err = extract(body, suffix)
		if err != nil {
			return fmt.Errorf("extract %s: %w", url, err)
		}
	}

	if err := writeFile(destPath, payload); err != nil {
		return fmt.Errorf("write %s: %w", destPath, err)
	}
	return nil
}

func (d *Downloader) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("GET %s: %w", url, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if len(body) > MaxDownloadSize {
		return nil, fmt.Errorf("read %s: body exceeds %d bytes", url, MaxDownloadSize)
	}
	return body, nil
}

// isArchive detects zip payloads by extension or local file header magic.
func isArchive(url string, body []byte) bool {
	return strings.HasSuffix(strings.ToLower(url), ".zip") || bytes.HasPrefix(body, []byte("PK\x03\x04"))
}

func extract(data []byte, suffix string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	var chosen *zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if chosen == nil {
			chosen = f
		}
		if suffix != "" && strings.HasSuffix(strings.ToLower(f.Name), strings.ToLower(suffix)) {
			chosen = f
			break
		}
	}
	if chosen == nil {
		return nil, ErrEmptyArchive
	}

	rc, err := chosen.Open()
	if err != nil {
		return nil, fmt.Errorf("open member %s: %w", chosen.Name, err)
	}
	defer rc.Close()

	payload, err := io.ReadAll(io.LimitReader(rc, MaxDownloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read member %s: %w", chosen.Name, err)
	}
	if len(payload) > MaxDownloadSize {
		return nil, fmt.Errorf("member %s exceeds %d bytes", chosen.Name, MaxDownloadSize)
	}
	return payload, nil
}

// writeFile replaces path atomically through a sibling temp file.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".part-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
