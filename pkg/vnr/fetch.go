// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package vnr

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Fetch downloads req.URL into req.DestDir while emitting a TraceEvent
// for every observable network step. For gzipped tarballs the compressed
// stream is teed to disk and extracted in the same pass, with progress
// measured against the uncompressed size learned from the gzip ISIZE
// trailer.
//
// Once the arguments validate, the returned Report is non-nil even on
// failure and carries whatever was observed before the error, so a
// failed fetch still shows which phase broke. Validation failures
// return a nil Report.
//
// Cancellation: every request, sleep and copy loop is tied to ctx.
func Fetch(ctx context.Context, req Request, cfg Settings, emit EmitFunc) (*Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", req.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}

	name, err := outputName(req.URL)
	if err != nil {
		return nil, err
	}

	fi, err := os.Stat(req.DestDir)
	if err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("%q: %w", req.DestDir, ErrNotDirectory)
	}

	if d, err := time.ParseDuration(defaultString(cfg.Timeout, "0")); err == nil && d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	p := newProbe(emit)
	httpc := buildHTTPClient(p, cfg)
	defer httpc.CloseIdleConnections()

	report := &Report{
		URL:        req.URL,
		FinalURL:   req.URL,
		OutputPath: filepath.Join(req.DestDir, name),
	}

	if cfg.DNSServer != "" {
		probeDNS(ctx, p, cfg.DNSServer, u.Hostname())
	}

	retry := newRetry(cfg)
	var doneAt time.Time
	var lastErr error
	for attempt := 0; ; attempt++ {
		doneAt, lastErr = fetchOnce(ctx, p, httpc, req, cfg, name, report)
		if lastErr == nil {
			break
		}
		if attempt >= cfg.Retries || !retryable(lastErr) || ctx.Err() != nil {
			p.finish(report, doneAt)
			return report, lastErr
		}
		p.event(TraceEvent{Event: "retry", Attempt: attempt + 1, Err: lastErr.Error()})
		if !sleepCtx(ctx, retry.Next()) {
			p.finish(report, doneAt)
			return report, ctx.Err()
		}
	}

	p.finish(report, doneAt)
	p.event(TraceEvent{
		Event:      "done",
		Downloaded: report.BytesRead,
		Total:      report.UncompressedSize,
		Message:    fmt.Sprintf("wrote %s", report.OutputPath),
	})
	return report, nil
}

// fetchOnce performs one complete download attempt and fills the report.
// It returns the time the body copy finished, for the transfer-phase
// timing.
func fetchOnce(ctx context.Context, p *probe, httpc *http.Client, req Request, cfg Settings, name string, report *Report) (time.Time, error) {
	p.beginAttempt()
	tctx := httptrace.WithClientTrace(ctx, p.clientTrace())

	hreq, err := http.NewRequestWithContext(tctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return time.Time{}, err
	}
	addHeaders(hreq, cfg)

	resp, err := httpc.Do(hreq)
	if err != nil {
		return time.Time{}, err
	}
	defer resp.Body.Close()

	p.headerEvent(resp)
	report.Status = resp.StatusCode
	report.Proto = resp.Proto
	report.FinalURL = resp.Request.URL.String()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return time.Time{}, &HTTPStatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			URL:        report.FinalURL,
		}
	}

	// The compressed size anchors both the ISIZE probe and the final
	// size verification, so its absence is fatal.
	if resp.ContentLength < 0 {
		return time.Time{}, &MissingHeaderError{Name: "Content-Length"}
	}
	compressed := resp.ContentLength
	report.CompressedSize = compressed
	report.AcceptRanges = acceptsByteRanges(resp.Header)

	extract := isTarball(name) && !req.NoExtract

	// Probe the uncompressed size before touching the body. The probe
	// opens a second connection (this one is still busy), which also
	// demonstrates whether the server copes with parallel requests.
	// When it fails, progress is estimated against the compressed size
	// instead; UncompressedSize stays 0 until the trailer is on disk.
	var uncompressed int64
	if isTarball(name) {
		sz, err := fetchUncompressedSize(tctx, httpc, cfg, p, report.FinalURL, compressed)
		if err != nil {
			p.event(TraceEvent{Event: "size_probe", Err: err.Error(), Message: "falling back to compressed size"})
		} else {
			uncompressed = sz
		}
		report.UncompressedSize = uncompressed
	}
	progressTotal := uncompressed
	if progressTotal == 0 {
		progressTotal = compressed
	}

	tmp := report.OutputPath + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return time.Time{}, err
	}
	defer out.Close()
	cleanup := func() { os.Remove(tmp) }

	var read int64
	if extract {
		root := filepath.Join(req.DestDir, extractDirName(name))
		if err := os.MkdirAll(root, 0o755); err != nil {
			cleanup()
			return time.Time{}, err
		}
		report.ExtractPath = root

		// Tee the compressed bytes to disk while the same stream is
		// gunzipped and untarred.
		tee := io.TeeReader(resp.Body, out)
		gz, err := gzip.NewReader(tee)
		if err != nil {
			cleanup()
			return time.Time{}, fmt.Errorf("gzip: %w", err)
		}
		pr := newProgressReader(gz, progressTotal, p.event)
		if err := extractTar(tar.NewReader(pr), root); err != nil {
			cleanup()
			return time.Time{}, err
		}
		// The tar reader stops at the end-of-archive marker; drain the
		// rest so the tee writes every compressed byte to disk.
		if _, err := io.Copy(io.Discard, pr); err != nil {
			cleanup()
			return time.Time{}, err
		}
		read = pr.downloaded
	} else {
		pr := newProgressReader(resp.Body, compressed, p.event)
		if _, err := io.Copy(out, pr); err != nil {
			cleanup()
			return time.Time{}, err
		}
		read = pr.downloaded
	}
	doneAt := time.Now()

	if err := out.Close(); err != nil {
		cleanup()
		return doneAt, err
	}
	if fi, err := os.Stat(tmp); err != nil {
		cleanup()
		return doneAt, err
	} else if fi.Size() != compressed {
		cleanup()
		return doneAt, &VerificationError{Path: report.OutputPath, Expected: compressed, Actual: fi.Size()}
	}
	if err := os.Rename(tmp, report.OutputPath); err != nil {
		cleanup()
		return doneAt, err
	}

	// If the remote probe failed we can still report the real value now
	// that the trailer is on disk.
	if isTarball(name) && report.UncompressedSize == 0 {
		if sz, err := loadISize(report.OutputPath); err == nil {
			report.UncompressedSize = sz
		}
	}

	report.BytesRead = read
	return doneAt, nil
}
