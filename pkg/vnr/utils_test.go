// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package vnr

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestOutputName(t *testing.T) {
	cases := []struct {
		name string
		url  string
		want string
		err  bool
	}{
		{"tarball", "https://nodejs.org/dist/v20.0.0/node-v20.0.0-darwin-arm64.tar.gz", "node-v20.0.0-darwin-arm64.tar.gz", false},
		{"plain file", "https://example.com/file.bin", "file.bin", false},
		{"query string ignored", "https://example.com/file.bin?token=abc", "file.bin", false},
		{"fragment ignored", "https://example.com/file.bin#frag", "file.bin", false},
		{"bare host", "https://example.com", "", true},
		{"root path", "https://example.com/", "", true},
		{"trailing slash keeps last segment", "https://example.com/dist/", "dist", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := outputName(tc.url)
			if tc.err {
				if !errors.Is(err, ErrEmptyFileName) {
					t.Fatalf("expected ErrEmptyFileName, got %v (name %q)", err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("outputName: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestIsTarball(t *testing.T) {
	if !isTarball("node.tar.gz") || !isTarball("node.TGZ") {
		t.Error("expected tarball names to match")
	}
	if isTarball("node.zip") || isTarball("node.gz") {
		t.Error("expected non-tarball names not to match")
	}
}

func TestExtractDirName(t *testing.T) {
	cases := map[string]string{
		"node-v20.tar.gz": "node-v20",
		"pkg.tgz":         "pkg",
		"file.bin":        "file.bin",
	}
	for in, want := range cases {
		if got := extractDirName(in); got != want {
			t.Errorf("extractDirName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAcceptsByteRanges(t *testing.T) {
	h := http.Header{}
	if acceptsByteRanges(h) {
		t.Error("empty header should not accept ranges")
	}
	h.Set("Accept-Ranges", "bytes")
	if !acceptsByteRanges(h) {
		t.Error("bytes should accept ranges")
	}
	h.Set("Accept-Ranges", "none")
	if acceptsByteRanges(h) {
		t.Error("none should not accept ranges")
	}
}

func TestBackoffCapsAtMax(t *testing.T) {
	b := newRetry(Settings{BackoffInitial: "100ms", BackoffMax: "300ms"})
	for i := 0; i < 10; i++ {
		b.Next()
	}
	if b.next > 300*time.Millisecond {
		t.Errorf("backoff exceeded max: %v", b.next)
	}
}

func TestSleepCtx(t *testing.T) {
	t.Run("completes", func(t *testing.T) {
		if !sleepCtx(context.Background(), time.Millisecond) {
			t.Error("expected sleep to complete")
		}
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if sleepCtx(ctx, time.Minute) {
			t.Error("expected sleep to abort on cancellation")
		}
	})
}
