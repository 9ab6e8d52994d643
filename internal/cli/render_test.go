// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/chriskrycho/volta-networking-repro/pkg/vnr"
)

func TestHumanBytes(t *testing.T) {
	cases := map[int64]string{
		512:             "512 B",
		2048:            "2.0 KiB",
		5 * 1024 * 1024: "5.0 MiB",
	}
	for in, want := range cases {
		if got := humanBytes(in); got != want {
			t.Errorf("humanBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestJSONEvents(t *testing.T) {
	var buf bytes.Buffer
	emit := jsonEvents(&buf)

	emit(vnr.TraceEvent{Event: "dns_start", Host: "nodejs.org", T: 0.001})
	emit(vnr.TraceEvent{Event: "done", Message: "wrote file"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	var ev vnr.TraceEvent
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("invalid JSON line: %v", err)
	}
	if ev.Event != "dns_start" || ev.Host != "nodejs.org" {
		t.Errorf("round-trip mismatch: %+v", ev)
	}
}

func TestPrintSummaryJSON(t *testing.T) {
	var buf bytes.Buffer
	r := &vnr.Report{
		URL:            "https://example.com/x.tar.gz",
		FinalURL:       "https://example.com/x.tar.gz",
		Status:         200,
		CompressedSize: 1024,
	}
	printSummary(&buf, r, &RootOpts{JSONOut: true})

	var out struct {
		Event  string      `json:"event"`
		Report *vnr.Report `json:"report"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON report: %v", err)
	}
	if out.Event != "report" || out.Report.Status != 200 {
		t.Errorf("unexpected report envelope: %+v", out)
	}
}

func TestPrintSummaryText(t *testing.T) {
	var buf bytes.Buffer
	r := &vnr.Report{
		URL:              "https://example.com/old.tar.gz",
		FinalURL:         "https://example.com/new.tar.gz",
		OutputPath:       "/tmp/new.tar.gz",
		ExtractPath:      "/tmp/new",
		Addrs:            []string{"192.0.2.1:443"},
		Status:           200,
		Proto:            "HTTP/2.0",
		AcceptRanges:     true,
		CompressedSize:   2048,
		UncompressedSize: 8192,
		Redirects:        []vnr.RedirectHop{{Hop: 1}},
		TLS:              &vnr.TLSSummary{Version: "TLSv1.3", CipherSuite: "TLS_AES_128_GCM_SHA256", ALPN: "h2"},
	}
	r.Phases.Total = 1500 * time.Millisecond
	printSummary(&buf, r, &RootOpts{})

	out := buf.String()
	for _, want := range []string{
		"https://example.com/new.tar.gz",
		"1 redirects",
		"TLSv1.3",
		"2.0 KiB",
		"8.0 KiB",
		"192.0.2.1:443",
		"Phases",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
