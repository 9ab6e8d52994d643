// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package vnr

import (
	"net/http"
	"time"
)

// Request defines what to fetch and where to put it.
type Request struct {
	// URL is the resource to download. Required.
	URL string

	// DestDir is an existing directory the file is written into. The
	// output file name is the final path segment of the URL. Required.
	DestDir string

	// NoExtract skips tarball extraction; the downloaded archive is kept
	// as-is. Ignored for URLs that do not name a .tar.gz/.tgz file.
	NoExtract bool
}

// Settings configures fetch behavior. All fields have working defaults;
// the zero value (or DefaultSettings) is fine for a plain fetch.
type Settings struct {
	// Timeout bounds the whole operation. Accepts duration strings
	// ("30s", "2m"). Empty or "0" means no timeout.
	Timeout string

	// Retries is the maximum number of retry attempts after the first
	// failed request. The default is 0: a repro tool should surface the
	// first failure rather than paper over it.
	Retries int

	// BackoffInitial is the delay before the first retry ("400ms").
	BackoffInitial string

	// BackoffMax caps the exponential retry backoff ("10s").
	BackoffMax string

	// UserAgent overrides the User-Agent header sent with every request.
	UserAgent string

	// InsecureTLS disables TLS certificate verification. Useful for
	// telling a broken trust store apart from a broken handshake.
	InsecureTLS bool

	// DNSServer, when set to host[:port], is queried directly over UDP
	// for A/AAAA records before the fetch, in addition to the system
	// resolver. Port defaults to 53.
	DNSServer string
}

// DefaultSettings returns Settings with defaults filled in.
func DefaultSettings() Settings {
	return Settings{
		Retries:        0,
		BackoffInitial: "400ms",
		BackoffMax:     "10s",
		UserAgent:      "vnr/1 (+https://github.com/chriskrycho/volta-networking-repro)",
	}
}

// CertSummary describes one peer certificate observed during the TLS
// handshake.
type CertSummary struct {
	Subject   string    `json:"subject"`
	Issuer    string    `json:"issuer"`
	NotBefore time.Time `json:"notBefore"`
	NotAfter  time.Time `json:"notAfter"`
	DNSNames  []string  `json:"dnsNames,omitempty"`
}

// TLSSummary describes the negotiated TLS session.
type TLSSummary struct {
	ServerName  string        `json:"serverName"`
	Version     string        `json:"version"`
	CipherSuite string        `json:"cipherSuite"`
	ALPN        string        `json:"alpn,omitempty"`
	Resumed     bool          `json:"resumed"`
	PeerCerts   []CertSummary `json:"peerCerts,omitempty"`
}

// RedirectHop records one followed redirect.
type RedirectHop struct {
	Hop    int    `json:"hop"`
	From   string `json:"from"`
	To     string `json:"to"`
	Status int    `json:"status"`
}

// TraceEvent is a single timestamped observation made during a fetch.
//
// The Event field identifies the observation:
//   - "dns_start", "dns_done": system resolver lookup
//   - "dns_probe": direct query against Settings.DNSServer
//   - "connect_start", "connect_done": TCP connect
//   - "tls_handshake_start", "tls_handshake_done": TLS negotiation
//   - "got_conn": connection checked out of the pool (reuse info)
//   - "wrote_request": request fully written
//   - "first_byte": first response header byte received
//   - "redirect": a redirect hop was followed
//   - "http_response": final response status and headers
//   - "size_probe": gzip ISIZE range request outcome
//   - "read_progress": periodic body progress
//   - "retry": a retry attempt is about to be made
//   - "done": fetch finished
type TraceEvent struct {
	// Time is when the event occurred.
	Time time.Time `json:"time"`

	// T is seconds since the fetch started.
	T float64 `json:"t"`

	// Event is the event type identifier.
	Event string `json:"event"`

	// Host is the name being resolved (dns events).
	Host string `json:"host,omitempty"`

	// Addrs holds resolved addresses (dns events).
	Addrs []string `json:"addrs,omitempty"`

	// Coalesced reports that the lookup was shared with a concurrent one.
	Coalesced bool `json:"coalesced,omitempty"`

	// Network and Addr identify the endpoint (connect/got_conn events).
	Network string `json:"network,omitempty"`
	Addr    string `json:"addr,omitempty"`

	// Reused, WasIdle and IdleMs describe connection pooling (got_conn).
	Reused  bool  `json:"reused,omitempty"`
	WasIdle bool  `json:"wasIdle,omitempty"`
	IdleMs  int64 `json:"idleMs,omitempty"`

	// TLS is set on tls_handshake_done.
	TLS *TLSSummary `json:"tls,omitempty"`

	// Status and Proto are set on http_response and redirect events.
	Status int    `json:"status,omitempty"`
	Proto  string `json:"proto,omitempty"`

	// Header holds the full response header set (http_response).
	Header http.Header `json:"header,omitempty"`

	// Redirect is set on redirect events.
	Redirect *RedirectHop `json:"redirect,omitempty"`

	// Downloaded and Total carry body progress in bytes (read_progress).
	Downloaded int64 `json:"downloaded,omitempty"`
	Total      int64 `json:"total,omitempty"`

	// Attempt is the retry attempt number, 1-based (retry events).
	Attempt int `json:"attempt,omitempty"`

	// Err holds the failure for *_done events that failed.
	Err string `json:"err,omitempty"`

	// Message carries additional human-readable context.
	Message string `json:"message,omitempty"`
}

// EmitFunc receives trace events. It may be called from the goroutines
// that net/http runs trace callbacks on and must be safe for concurrent
// use. A nil EmitFunc is allowed.
type EmitFunc func(TraceEvent)

// Phases aggregates how long each stage of the fetch took. Stages that
// did not happen (cached DNS, reused connection, plain HTTP) are zero.
type Phases struct {
	DNS          time.Duration `json:"dns"`
	Connect      time.Duration `json:"connect"`
	TLSHandshake time.Duration `json:"tlsHandshake"`
	TTFB         time.Duration `json:"ttfb"`
	Transfer     time.Duration `json:"transfer"`
	Total        time.Duration `json:"total"`
}

// Report summarizes a completed (or failed) fetch.
type Report struct {
	URL      string `json:"url"`
	FinalURL string `json:"finalUrl"`

	OutputPath  string `json:"outputPath"`
	ExtractPath string `json:"extractPath,omitempty"`

	Addrs     []string      `json:"addrs,omitempty"`
	Reused    bool          `json:"reused"`
	TLS       *TLSSummary   `json:"tls,omitempty"`
	Redirects []RedirectHop `json:"redirects,omitempty"`

	Status       int    `json:"status"`
	Proto        string `json:"proto,omitempty"`
	AcceptRanges bool   `json:"acceptRanges"`

	// CompressedSize is the advertised Content-Length of the download.
	CompressedSize int64 `json:"compressedSize"`

	// UncompressedSize is the gzip ISIZE value, 0 when unknown.
	UncompressedSize int64 `json:"uncompressedSize,omitempty"`

	// BytesRead counts decompressed bytes for tarballs and raw body
	// bytes otherwise.
	BytesRead int64 `json:"bytesRead"`

	Phases Phases `json:"phases"`
}
