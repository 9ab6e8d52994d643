// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/cheggaaa/pb/v3"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/chriskrycho/volta-networking-repro/pkg/vnr"
)

// renderer routes trace events to apex/log and, when the terminal is
// interactive, turns read_progress events into a live pb progress bar.
type renderer struct {
	mu          sync.Mutex
	bar         *pb.ProgressBar
	interactive bool
	closed      bool
}

func newRenderer() *renderer {
	return &renderer{
		interactive: term.IsTerminal(int(os.Stderr.Fd())) && os.Getenv("NO_COLOR") == "",
	}
}

// Handler returns an EmitFunc feeding this renderer. It is called from
// transport goroutines and must stay safe for concurrent use.
func (r *renderer) Handler() vnr.EmitFunc {
	return func(ev vnr.TraceEvent) {
		if ev.Event == "read_progress" && r.interactive {
			r.progress(ev)
			return
		}
		r.mu.Lock()
		if r.bar != nil && ev.Event == "done" {
			r.bar.Finish()
			r.bar = nil
		}
		r.mu.Unlock()
		logEvent(ev)
	}
}

func (r *renderer) progress(ev vnr.TraceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if r.bar == nil {
		r.bar = pb.Full.Start64(ev.Total)
		r.bar.SetWriter(os.Stderr)
		r.bar.Set(pb.Bytes, true)
	}
	if ev.Total > r.bar.Total() {
		r.bar.SetTotal(ev.Total)
	}
	r.bar.SetCurrent(ev.Downloaded)
}

// Close finishes any live bar.
func (r *renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.bar != nil {
		r.bar.Finish()
		r.bar = nil
	}
}

// logEvent writes one trace event through apex/log. The messages are
// intentionally verbose: the whole purpose of the tool is to leave a
// legible record of every network step.
func logEvent(ev vnr.TraceEvent) {
	entry := log.WithField("t", fmt.Sprintf("%.4fs", ev.T))

	switch ev.Event {
	case "dns_start":
		entry.Debugf("DNS: resolving %s", ev.Host)
	case "dns_done":
		if ev.Err != "" {
			entry.WithField("error", ev.Err).Errorf("DNS: lookup failed")
			return
		}
		entry.Debugf("DNS: resolved to %s (coalesced=%v)", strings.Join(ev.Addrs, ", "), ev.Coalesced)
	case "dns_probe":
		e := entry.WithField("server", ev.Addr)
		if ev.Err != "" {
			e.Warnf("DNS probe: %s: %s", ev.Message, ev.Err)
			return
		}
		e.Debugf("DNS probe: %s -> [%s]", ev.Message, strings.Join(ev.Addrs, ", "))
	case "connect_start":
		entry.Debugf("TCP: connecting to %s/%s", ev.Network, ev.Addr)
	case "connect_done":
		if ev.Err != "" {
			entry.WithField("error", ev.Err).Errorf("TCP: connect to %s failed", ev.Addr)
			return
		}
		entry.Debugf("TCP: connected to %s", ev.Addr)
	case "tls_handshake_start":
		entry.Debugf("TLS: handshake starting")
	case "tls_handshake_done":
		if ev.Err != "" {
			entry.WithField("error", ev.Err).Errorf("TLS: handshake failed")
			return
		}
		if ev.TLS != nil {
			entry.Debugf("TLS: %s %s alpn=%q resumed=%v",
				ev.TLS.Version, ev.TLS.CipherSuite, ev.TLS.ALPN, ev.TLS.Resumed)
			for i, cert := range ev.TLS.PeerCerts {
				entry.Debugf("TLS: cert[%d] subject=%q issuer=%q expires=%s",
					i, cert.Subject, cert.Issuer, cert.NotAfter.Format(time.RFC3339))
			}
		}
	case "got_conn":
		entry.Debugf("conn: %s reused=%v wasIdle=%v idle=%dms", ev.Addr, ev.Reused, ev.WasIdle, ev.IdleMs)
	case "wrote_request":
		if ev.Err != "" {
			entry.WithField("error", ev.Err).Errorf("request write failed")
			return
		}
		entry.Debugf("request written")
	case "first_byte":
		entry.Debugf("first response byte")
	case "redirect":
		if ev.Redirect != nil {
			entry.Infof("redirect %d: %s -> %s (%d)",
				ev.Redirect.Hop, ev.Redirect.From, ev.Redirect.To, ev.Redirect.Status)
		}
	case "http_response":
		entry.Infof("HTTP: %s %s", ev.Proto, ev.Message)
		keys := make([]string, 0, len(ev.Header))
		for k := range ev.Header {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			entry.Debugf("  %s: %s", k, strings.Join(ev.Header[k], ", "))
		}
	case "size_probe":
		if ev.Err != "" {
			entry.Warnf("size probe: %s (%s)", ev.Message, ev.Err)
			return
		}
		entry.Debugf("size probe: uncompressed size %s", humanBytes(ev.Total))
	case "read_progress":
		entry.Debugf("read %s / %s", humanBytes(ev.Downloaded), humanBytes(ev.Total))
	case "retry":
		entry.Warnf("retry attempt %d: %s", ev.Attempt, ev.Err)
	case "done":
		entry.Infof("%s (%s read)", ev.Message, humanBytes(ev.Downloaded))
	default:
		entry.Debugf("%s %s", ev.Event, ev.Message)
	}
}

// jsonEvents returns a JSON-lines event emitter.
func jsonEvents(w io.Writer) vnr.EmitFunc {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	var mu sync.Mutex
	return func(ev vnr.TraceEvent) {
		mu.Lock()
		_ = enc.Encode(ev)
		mu.Unlock()
	}
}

// printSummary writes the per-phase report after the fetch. In JSON mode
// the report becomes one final JSON object on stdout instead.
func printSummary(w io.Writer, r *vnr.Report, ro *RootOpts) {
	if ro.JSONOut {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		_ = enc.Encode(struct {
			Event  string      `json:"event"`
			Report *vnr.Report `json:"report"`
		}{Event: "report", Report: r})
		return
	}

	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	fmt.Fprintln(w)
	fmt.Fprintln(w, bold("Summary"))
	fmt.Fprintf(w, "  URL:          %s\n", r.URL)
	if r.FinalURL != r.URL {
		fmt.Fprintf(w, "  Final URL:    %s %s\n", r.FinalURL, dim(fmt.Sprintf("(%d redirects)", len(r.Redirects))))
	}
	fmt.Fprintf(w, "  Output:       %s\n", r.OutputPath)
	if r.ExtractPath != "" {
		fmt.Fprintf(w, "  Extracted to: %s\n", r.ExtractPath)
	}
	if len(r.Addrs) > 0 {
		fmt.Fprintf(w, "  Addresses:    %s\n", strings.Join(r.Addrs, ", "))
	}
	if r.Status != 0 {
		fmt.Fprintf(w, "  Status:       %d (%s)  conn reused: %v\n", r.Status, r.Proto, r.Reused)
	}
	if r.TLS != nil {
		fmt.Fprintf(w, "  TLS:          %s %s alpn=%q\n", r.TLS.Version, r.TLS.CipherSuite, r.TLS.ALPN)
	}
	fmt.Fprintf(w, "  Ranges:       %v\n", r.AcceptRanges)
	if r.CompressedSize > 0 {
		fmt.Fprintf(w, "  Compressed:   %s\n", humanBytes(r.CompressedSize))
	}
	if r.UncompressedSize > 0 {
		fmt.Fprintf(w, "  Uncompressed: %s\n", humanBytes(r.UncompressedSize))
	}

	fmt.Fprintln(w, bold("Phases"))
	fmt.Fprintf(w, "  DNS:          %s\n", r.Phases.DNS.Round(time.Microsecond))
	fmt.Fprintf(w, "  Connect:      %s\n", r.Phases.Connect.Round(time.Microsecond))
	fmt.Fprintf(w, "  TLS:          %s\n", r.Phases.TLSHandshake.Round(time.Microsecond))
	fmt.Fprintf(w, "  First byte:   %s\n", r.Phases.TTFB.Round(time.Microsecond))
	fmt.Fprintf(w, "  Transfer:     %s\n", r.Phases.Transfer.Round(time.Microsecond))
	fmt.Fprintf(w, "  Total:        %s\n", r.Phases.Total.Round(time.Microsecond))
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for n/div >= unit && exp < 6 {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
