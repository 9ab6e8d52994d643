// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package vnr

import (
	"crypto/tls"
	"fmt"
)

// TLSVersionString renders a TLS version constant by name.
func TLSVersionString(v uint16) string {
	switch v {
	case tls.VersionTLS10:
		return "TLSv1.0"
	case tls.VersionTLS11:
		return "TLSv1.1"
	case tls.VersionTLS12:
		return "TLSv1.2"
	case tls.VersionTLS13:
		return "TLSv1.3"
	case 0:
		return ""
	default:
		return fmt.Sprintf("TLS_VERSION_UNKNOWN_%d", v)
	}
}

// TLSCipherSuiteString renders a cipher suite constant by name.
func TLSCipherSuiteString(v uint16) string {
	if v == 0 {
		return ""
	}
	if name := tls.CipherSuiteName(v); name != "" {
		return name
	}
	return fmt.Sprintf("TLS_CIPHER_SUITE_UNKNOWN_%d", v)
}

// newTLSSummary extracts the diagnostic view of a connection state.
func newTLSSummary(state tls.ConnectionState) *TLSSummary {
	s := &TLSSummary{
		ServerName:  state.ServerName,
		Version:     TLSVersionString(state.Version),
		CipherSuite: TLSCipherSuiteString(state.CipherSuite),
		ALPN:        state.NegotiatedProtocol,
		Resumed:     state.DidResume,
	}
	for _, cert := range state.PeerCertificates {
		s.PeerCerts = append(s.PeerCerts, CertSummary{
			Subject:   cert.Subject.String(),
			Issuer:    cert.Issuer.String(),
			NotBefore: cert.NotBefore,
			NotAfter:  cert.NotAfter,
			DNSNames:  cert.DNSNames,
		})
	}
	return s
}
