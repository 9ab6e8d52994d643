// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package vnr

import (
	"context"
	"net"
	"testing"

	"github.com/miekg/dns"
)

func TestNormalizeDNSServer(t *testing.T) {
	cases := map[string]string{
		"1.1.1.1":      "1.1.1.1:53",
		"1.1.1.1:5353": "1.1.1.1:5353",
		"[::1]:53":     "[::1]:53",
		"ns.local":     "ns.local:53",
	}
	for in, want := range cases {
		if got := normalizeDNSServer(in); got != want {
			t.Errorf("normalizeDNSServer(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestProbeDNS(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	srv := &dns.Server{
		PacketConn: pc,
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
			m := new(dns.Msg)
			m.SetReply(r)
			q := r.Question[0]
			if q.Qtype == dns.TypeA {
				m.Answer = append(m.Answer, &dns.A{
					Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
					A:   net.ParseIP("192.0.2.10"),
				})
			}
			w.WriteMsg(m)
		}),
	}
	go srv.ActivateAndServe()
	defer srv.Shutdown()

	col := &collector{}
	p := newProbe(col.emit)

	probeDNS(context.Background(), p, pc.LocalAddr().String(), "nodejs.org")

	if got := col.count("dns_probe"); got != 2 {
		t.Fatalf("dns_probe events = %d, want 2 (A and AAAA)", got)
	}

	a := col.events[0]
	if a.Err != "" {
		t.Fatalf("A query failed: %s", a.Err)
	}
	found := false
	for _, addr := range a.Addrs {
		if addr == "192.0.2.10" {
			found = true
		}
	}
	if !found {
		t.Errorf("A answer missing from %v", a.Addrs)
	}

	aaaa := col.events[1]
	if aaaa.Err != "" {
		t.Fatalf("AAAA query failed: %s", aaaa.Err)
	}
	if len(aaaa.Addrs) != 0 {
		t.Errorf("AAAA should have no answers, got %v", aaaa.Addrs)
	}
}
