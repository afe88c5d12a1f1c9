// Package discovery locates enclave oracle endpoints through DNS. Operators
// register producer instances under a service domain; submitters resolve the
// domain to find endpoints to pull signed payloads from.
package discovery

import (
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// DefaultResolverAddr is the systemd-resolved stub listener.
const DefaultResolverAddr = "127.0.0.53:53"

// Endpoint is one resolved producer instance.
type Endpoint struct {
	Host string
	Port uint16
}

// Resolver finds producer endpoints for a service domain.
type Resolver struct {
	// Addr is the DNS server to query; DefaultResolverAddr when empty.
	Addr string

	client *dns.Client
}

// NewResolver creates a resolver against the given DNS server address.
func NewResolver(addr string) *Resolver {
	if addr == "" {
		addr = DefaultResolverAddr
	}
	return &Resolver{Addr: addr, client: new(dns.Client)}
}

// ResolveEndpoints resolves the service domain's SRV records to producer
// endpoints.
func (r *Resolver) ResolveEndpoints(domain string) ([]Endpoint, error) {
	msg := new(dns.Msg)
	msg.Id = dns.Id()
	msg.RecursionDesired = true
	msg.Question = []dns.Question{{
		Name:   dns.Fqdn(domain),
		Qtype:  dns.TypeSRV,
		Qclass: dns.ClassINET,
	}}

	in, _, err := r.client.Exchange(msg, r.Addr)
	if err != nil {
		return nil, fmt.Errorf("SRV lookup for %s failed: %w", domain, err)
	}

	endpoints := make([]Endpoint, 0, len(in.Answer))
	for _, answer := range in.Answer {
		if srv, ok := answer.(*dns.SRV); ok {
			endpoints = append(endpoints, Endpoint{
				Host: strings.TrimSuffix(srv.Target, "."),
				Port: srv.Port,
			})
		}
	}

	if len(endpoints) == 0 {
		return nil, fmt.Errorf("no SRV records for %s", domain)
	}
	return endpoints, nil
}

// ResolveAttestationURLs resolves the service domain and renders the
// attestation endpoint URL of each instance.
func (r *Resolver) ResolveAttestationURLs(domain string) ([]string, error) {
	endpoints, err := r.ResolveEndpoints(domain)
	if err != nil {
		return nil, err
	}

	urls := make([]string, len(endpoints))
	for i, ep := range endpoints {
		urls[i] = fmt.Sprintf("https://%s:%d/get_attestation", ep.Host, ep.Port)
	}
	return urls, nil
}
