// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package vnr

import (
	"crypto/tls"
	"testing"
)

func TestTLSVersionString(t *testing.T) {
	cases := map[uint16]string{
		tls.VersionTLS10: "TLSv1.0",
		tls.VersionTLS12: "TLSv1.2",
		tls.VersionTLS13: "TLSv1.3",
		0:                "",
	}
	for in, want := range cases {
		if got := TLSVersionString(in); got != want {
			t.Errorf("TLSVersionString(%#x) = %q, want %q", in, got, want)
		}
	}
	if got := TLSVersionString(0xBEEF); got != "TLS_VERSION_UNKNOWN_48879" {
		t.Errorf("unknown version rendered as %q", got)
	}
}

func TestTLSCipherSuiteString(t *testing.T) {
	if got := TLSCipherSuiteString(tls.TLS_AES_128_GCM_SHA256); got != "TLS_AES_128_GCM_SHA256" {
		t.Errorf("got %q", got)
	}
	if got := TLSCipherSuiteString(0); got != "" {
		t.Errorf("zero should render empty, got %q", got)
	}
}

func TestNewTLSSummary(t *testing.T) {
	state := tls.ConnectionState{
		ServerName:         "nodejs.org",
		Version:            tls.VersionTLS13,
		CipherSuite:        tls.TLS_AES_256_GCM_SHA384,
		NegotiatedProtocol: "h2",
		DidResume:          true,
	}
	s := newTLSSummary(state)
	if s.ServerName != "nodejs.org" || s.Version != "TLSv1.3" || s.ALPN != "h2" || !s.Resumed {
		t.Errorf("unexpected summary: %+v", s)
	}
}
