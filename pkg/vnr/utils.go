// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package vnr

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// outputName derives the local file name from the final URL path
// segment. Query strings and fragments never contribute to the name.
func outputName(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", ErrEmptyFileName
	}
	return name, nil
}

// isTarball reports whether name looks like a gzipped tarball.
func isTarball(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz")
}

// extractDirName strips the archive suffix to produce the extraction
// directory name.
func extractDirName(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"):
		return name[:len(name)-len(".tar.gz")]
	case strings.HasSuffix(lower, ".tgz"):
		return name[:len(name)-len(".tgz")]
	default:
		return name
	}
}

// acceptsByteRanges reports whether the server advertises byte-range
// support.
func acceptsByteRanges(h http.Header) bool {
	return strings.Contains(strings.ToLower(h.Get("Accept-Ranges")), "bytes")
}

// backoff implements exponential backoff with jitter.
type backoff struct {
	next   time.Duration
	max    time.Duration
	mult   float64
	jitter time.Duration
}

// newRetry creates a new backoff instance from settings.
func newRetry(cfg Settings) *backoff {
	init := 400 * time.Millisecond
	max := 10 * time.Second
	if d, err := time.ParseDuration(defaultString(cfg.BackoffInitial, "400ms")); err == nil {
		init = d
	}
	if d, err := time.ParseDuration(defaultString(cfg.BackoffMax, "10s")); err == nil {
		max = d
	}
	return &backoff{next: init, max: max, mult: 1.6, jitter: 120 * time.Millisecond}
}

// Next returns the next backoff duration.
func (b *backoff) Next() time.Duration {
	d := b.next + time.Duration(int64(b.jitter)*int64(time.Now().UnixNano()%3)/2)
	b.next = time.Duration(float64(b.next) * b.mult)
	if b.next > b.max {
		b.next = b.max
	}
	return d
}

// sleepCtx waits for d or returns false if ctx is canceled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// defaultString returns s if non-empty, otherwise def.
func defaultString(s string, def string) string {
	if s == "" {
		return def
	}
	return s
}
