// Package utils provides download and caching helpers shared by the dashboard binaries.
package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrNotFound = errors.New("file not found on server")

// maxDownload bounds a single fetch; world boundary files are a few MB.
const maxDownload = 64 << 20

type progressWriter struct {
	io.Writer
	total uint64
	last  uint64
	label string
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.total += uint64(n)
	if pw.total-pw.last > 5*1024*1024 { // Log every 5MB
		log.Info().Str("source", pw.label).Uint64("mb", pw.total/1024/1024).Msg("download progress")
		pw.last = pw.total
	}
	return n, err
}

// IsURL reports whether location should be fetched over HTTP rather than read from disk.
func IsURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// Fetch downloads url into memory.
func Fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing response body")
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	var buf bytes.Buffer
	pw := &progressWriter{Writer: &buf, label: url}
	if _, err := io.Copy(pw, io.LimitReader(resp.Body, maxDownload)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GetCached returns the bytes behind location. Files are read directly; URLs
// are served from cache when present and stored there after a download.
// A nil cache disables caching.
func GetCached(ctx context.Context, client *http.Client, location string, cache *BlobCache, ttl time.Duration) ([]byte, error) {
	if !IsURL(location) {
		data, err := os.ReadFile(location)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", location, err)
		}
		return data, nil
	}

	if cache != nil {
		data, err := cache.Get(location)
		if err != nil {
			log.Warn().Err(err).Str("url", location).Msg("cache read failed")
		} else if data != nil {
			log.Info().Str("url", location).Int("bytes", len(data)).Msg("using cached copy")
			return data, nil
		}
	}

	log.Info().Str("url", location).Msg("downloading")
	data, err := Fetch(ctx, client, location)
	if err != nil {
		return nil, err
	}

	if cache != nil {
		if err := cache.Put(location, data, ttl); err != nil {
			log.Warn().Err(err).Str("url", location).Msg("cache write failed")
		}
	}
	return data, nil
}
