// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package vnr

import (
	"crypto/tls"
	"net/http"
	"time"
)

// buildHTTPClient creates the instrumented HTTP client for a fetch. The
// transport deliberately keeps connection pooling on so that got_conn
// events can show whether a connection was reused between the main GET
// and the ISIZE probe.
func buildHTTPClient(p *probe, cfg Settings) *http.Client {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          8,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if cfg.InsecureTLS {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &http.Client{
		Transport:     tr,
		CheckRedirect: p.checkRedirect,
	}
}

// addHeaders sets the request headers shared by every request we make.
func addHeaders(req *http.Request, cfg Settings) {
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultSettings().UserAgent
	}
	req.Header.Set("User-Agent", ua)
}
