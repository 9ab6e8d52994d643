// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package vnr

import (
	"crypto/tls"
	"net/http"
	"net/http/httptrace"
	"strings"
	"sync"
	"time"
)

// probe converts net/http trace callbacks into TraceEvents stamped
// relative to a zero time, and accumulates the observations the final
// Report needs. Callbacks arrive on transport-internal goroutines, so
// all mutable state sits behind the mutex.
type probe struct {
	zero time.Time
	emit EmitFunc

	mu          sync.Mutex
	dnsStart    time.Time
	connStart   time.Time
	tlsStart    time.Time
	wroteAt     time.Time
	firstByteAt time.Time

	addrs     []string
	reused    bool
	tlsInfo   *TLSSummary
	redirects []RedirectHop

	dnsTotal     time.Duration
	connectTotal time.Duration
	tlsTotal     time.Duration
}

func newProbe(emit EmitFunc) *probe {
	return &probe{zero: time.Now(), emit: emit}
}

// beginAttempt clears the per-attempt observations so a retried fetch
// reports the addresses and redirect hops of its final attempt instead
// of a concatenation of every attempt. Phase durations keep
// accumulating: the retries cost real time.
func (p *probe) beginAttempt() {
	p.mu.Lock()
	p.addrs = nil
	p.redirects = nil
	p.mu.Unlock()
}

// event stamps and forwards ev. Safe with a nil EmitFunc.
func (p *probe) event(ev TraceEvent) {
	now := time.Now()
	ev.Time = now
	ev.T = now.Sub(p.zero).Seconds()
	if p.emit != nil {
		p.emit(ev)
	}
}

// clientTrace returns the httptrace hooks that feed this probe. The same
// probe may see several request cycles (redirect hops); durations are
// accumulated across all of them.
func (p *probe) clientTrace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		DNSStart: func(info httptrace.DNSStartInfo) {
			p.mu.Lock()
			p.dnsStart = time.Now()
			p.mu.Unlock()
			p.event(TraceEvent{Event: "dns_start", Host: info.Host})
		},
		DNSDone: func(info httptrace.DNSDoneInfo) {
			var addrs []string
			for _, a := range info.Addrs {
				addrs = append(addrs, a.String())
			}
			p.mu.Lock()
			if !p.dnsStart.IsZero() {
				p.dnsTotal += time.Since(p.dnsStart)
			}
			p.addrs = append(p.addrs, addrs...)
			p.mu.Unlock()
			p.event(TraceEvent{
				Event:     "dns_done",
				Addrs:     addrs,
				Coalesced: info.Coalesced,
				Err:       errString(info.Err),
			})
		},
		ConnectStart: func(network, addr string) {
			p.mu.Lock()
			p.connStart = time.Now()
			p.mu.Unlock()
			p.event(TraceEvent{Event: "connect_start", Network: network, Addr: addr})
		},
		ConnectDone: func(network, addr string, err error) {
			p.mu.Lock()
			if !p.connStart.IsZero() {
				p.connectTotal += time.Since(p.connStart)
			}
			p.mu.Unlock()
			p.event(TraceEvent{Event: "connect_done", Network: network, Addr: addr, Err: errString(err)})
		},
		TLSHandshakeStart: func() {
			p.mu.Lock()
			p.tlsStart = time.Now()
			p.mu.Unlock()
			p.event(TraceEvent{Event: "tls_handshake_start"})
		},
		TLSHandshakeDone: func(state tls.ConnectionState, err error) {
			summary := newTLSSummary(state)
			p.mu.Lock()
			if !p.tlsStart.IsZero() {
				p.tlsTotal += time.Since(p.tlsStart)
			}
			if err == nil {
				p.tlsInfo = summary
			}
			p.mu.Unlock()
			p.event(TraceEvent{Event: "tls_handshake_done", TLS: summary, Err: errString(err)})
		},
		GotConn: func(info httptrace.GotConnInfo) {
			p.mu.Lock()
			p.reused = info.Reused
			p.mu.Unlock()
			ev := TraceEvent{
				Event:   "got_conn",
				Reused:  info.Reused,
				WasIdle: info.WasIdle,
				IdleMs:  info.IdleTime.Milliseconds(),
			}
			if info.Conn != nil {
				ev.Network = info.Conn.RemoteAddr().Network()
				ev.Addr = info.Conn.RemoteAddr().String()
			}
			p.event(ev)
		},
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			p.mu.Lock()
			p.wroteAt = time.Now()
			p.mu.Unlock()
			p.event(TraceEvent{Event: "wrote_request", Err: errString(info.Err)})
		},
		GotFirstResponseByte: func() {
			p.mu.Lock()
			p.firstByteAt = time.Now()
			p.mu.Unlock()
			p.event(TraceEvent{Event: "first_byte"})
		},
	}
}

// checkRedirect records each followed hop; the chain is capped at ten
// hops, matching the net/http default.
func (p *probe) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return ErrTooManyRedirects
	}
	prev := via[len(via)-1]
	hop := RedirectHop{
		Hop:  len(via),
		From: prev.URL.String(),
		To:   req.URL.String(),
	}
	if prev.Response != nil {
		hop.Status = prev.Response.StatusCode
	}
	p.mu.Lock()
	p.redirects = append(p.redirects, hop)
	p.mu.Unlock()
	p.event(TraceEvent{Event: "redirect", Status: hop.Status, Redirect: &hop})
	return nil
}

// finish folds the accumulated observations into the report. doneAt is
// when the body copy ended (zero when the fetch failed before the body).
func (p *probe) finish(r *Report, doneAt time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r.Addrs = p.addrs
	r.Reused = p.reused
	r.TLS = p.tlsInfo
	r.Redirects = p.redirects

	r.Phases.DNS = p.dnsTotal
	r.Phases.Connect = p.connectTotal
	r.Phases.TLSHandshake = p.tlsTotal
	if !p.firstByteAt.IsZero() && !p.wroteAt.IsZero() {
		r.Phases.TTFB = p.firstByteAt.Sub(p.wroteAt)
	}
	if !doneAt.IsZero() && !p.firstByteAt.IsZero() {
		r.Phases.Transfer = doneAt.Sub(p.firstByteAt)
	}
	r.Phases.Total = time.Since(p.zero)
}

// headerEvent emits the full response status and header set.
func (p *probe) headerEvent(resp *http.Response) {
	p.event(TraceEvent{
		Event:   "http_response",
		Status:  resp.StatusCode,
		Proto:   resp.Proto,
		Header:  resp.Header,
		Message: strings.TrimSpace(resp.Status),
	})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
