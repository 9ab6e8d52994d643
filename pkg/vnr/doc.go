// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package vnr implements a deliberately noisy HTTP download used to
// reproduce and diagnose TLS/HTTP failures seen when fetching release
// tarballs.
//
// The single entry point is Fetch, which downloads a URL into a
// destination directory while emitting a TraceEvent for every observable
// network step: DNS lookup, TCP connect, TLS handshake, connection reuse,
// redirect hops, response status and headers, and byte-level progress.
// Callers receive events through an EmitFunc and a final Report that
// aggregates per-phase timings, so a failing phase (resolution, transport,
// negotiation, transfer) is obvious at a glance.
//
// When the URL names a gzipped tarball, Fetch additionally probes the
// gzip ISIZE trailer with a Range request to learn the uncompressed size
// up front, tees the compressed stream to disk, and extracts the archive
// next to it.
//
// Example:
//
//	req := vnr.Request{URL: url, DestDir: "."}
//	report, err := vnr.Fetch(ctx, req, vnr.DefaultSettings(), func(ev vnr.TraceEvent) {
//	    fmt.Printf("%-20s %s\n", ev.Event, ev.Message)
//	})
package vnr
