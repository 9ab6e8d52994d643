// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package vnr

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// normalizeDNSServer turns host[:port] into a dialable address,
// defaulting the port to 53.
func normalizeDNSServer(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(server, "53")
}

// probeDNS queries server directly over UDP for A and AAAA records of
// host and emits one dns_probe event per query. This runs alongside the
// system resolver so a broken local stub can be told apart from a broken
// upstream. Errors are reported through events, never returned: the
// probe must not fail the fetch.
func probeDNS(ctx context.Context, p *probe, server, host string) {
	addr := normalizeDNSServer(server)
	client := &dns.Client{Timeout: 5 * time.Second}
	fqdn := dns.Fqdn(host)

	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		msg := new(dns.Msg)
		msg.SetQuestion(fqdn, qtype)
		msg.RecursionDesired = true

		ev := TraceEvent{
			Event: "dns_probe",
			Host:  host,
			Addr:  addr,
		}
		resp, rtt, err := client.ExchangeContext(ctx, msg, addr)
		if err != nil {
			ev.Err = err.Error()
			ev.Message = fmt.Sprintf("%s query failed", dns.TypeToString[qtype])
			p.event(ev)
			continue
		}

		ev.Message = fmt.Sprintf("%s %s in %s", dns.TypeToString[qtype],
			dns.RcodeToString[resp.Rcode], rtt.Round(time.Microsecond))
		for _, rr := range resp.Answer {
			switch a := rr.(type) {
			case *dns.A:
				ev.Addrs = append(ev.Addrs, a.A.String())
			case *dns.AAAA:
				ev.Addrs = append(ev.Addrs, a.AAAA.String())
			case *dns.CNAME:
				ev.Addrs = append(ev.Addrs, "CNAME "+a.Target)
			}
		}
		p.event(ev)
	}
}
