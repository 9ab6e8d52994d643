// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package vnr

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetchTracesTLSHandshake(t *testing.T) {
	payload := bytes.Repeat([]byte("secret bits "), 256)

	srv := httptest.NewTLSServer(http.HandlerFunc(serveBlob("data.bin", payload)))
	defer srv.Close()

	col := &collector{}
	cfg := DefaultSettings()
	cfg.InsecureTLS = true // httptest uses a self-signed certificate

	report, err := Fetch(context.Background(), Request{
		URL:     srv.URL + "/data.bin",
		DestDir: t.TempDir(),
	}, cfg, col.emit)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	for _, want := range []string{
		"connect_start", "connect_done",
		"tls_handshake_start", "tls_handshake_done",
		"got_conn", "first_byte", "done",
	} {
		if !col.has(want) {
			t.Errorf("missing %q event", want)
		}
	}

	if report.TLS == nil {
		t.Fatal("report should carry TLS details")
	}
	if !strings.HasPrefix(report.TLS.Version, "TLSv1.") {
		t.Errorf("version = %q", report.TLS.Version)
	}
	if report.TLS.CipherSuite == "" {
		t.Error("cipher suite should be named")
	}
	if len(report.TLS.PeerCerts) == 0 {
		t.Error("peer certificates should be captured")
	}

	if report.Phases.Connect <= 0 {
		t.Error("connect phase should be positive")
	}
	if report.Phases.TLSHandshake <= 0 {
		t.Error("TLS phase should be positive")
	}
	if report.Phases.Total < report.Phases.TLSHandshake {
		t.Error("total should cover the TLS phase")
	}
}

func TestProbeEventStamping(t *testing.T) {
	col := &collector{}
	p := newProbe(col.emit)

	p.event(TraceEvent{Event: "dns_start", Host: "example.com"})
	time.Sleep(time.Millisecond)
	p.event(TraceEvent{Event: "dns_done"})

	if len(col.events) != 2 {
		t.Fatalf("events = %d, want 2", len(col.events))
	}
	if col.events[0].Time.IsZero() {
		t.Error("events must be timestamped")
	}
	if col.events[1].T <= col.events[0].T {
		t.Error("offsets must be monotonic")
	}
}

func TestProbeNilEmit(t *testing.T) {
	p := newProbe(nil)
	// Must not panic.
	p.event(TraceEvent{Event: "dns_start"})
}

func TestFinishAggregatesPhases(t *testing.T) {
	p := newProbe(nil)
	now := time.Now()
	p.wroteAt = now.Add(-30 * time.Millisecond)
	p.firstByteAt = now.Add(-20 * time.Millisecond)
	p.dnsTotal = 5 * time.Millisecond
	p.addrs = []string{"192.0.2.1:443"}

	var r Report
	p.finish(&r, now)

	if r.Phases.DNS != 5*time.Millisecond {
		t.Errorf("dns = %v", r.Phases.DNS)
	}
	if r.Phases.TTFB != 10*time.Millisecond {
		t.Errorf("ttfb = %v", r.Phases.TTFB)
	}
	if r.Phases.Transfer != 20*time.Millisecond {
		t.Errorf("transfer = %v", r.Phases.Transfer)
	}
	if len(r.Addrs) != 1 {
		t.Errorf("addrs = %v", r.Addrs)
	}
}
