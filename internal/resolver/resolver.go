// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package resolver performs the reverse-DNS fallback lookup the policy
// engine uses when the in-process DNS learner (internal/dnslearn) has no
// answer for an observed IP yet. There is no third-party resolver in the
// examples pack doing anything this package needs beyond what the standard
// library already provides correctly: net.LookupAddr talks to the system
// resolver (including /etc/hosts and nsswitch rules), which is exactly the
// contract wanted here, so this is one of the few places the interceptor
// stays on the standard library.
package resolver

import (
	"net"
	"net/netip"
	"strings"
)

// Resolver performs synchronous reverse-DNS lookups.
type Resolver struct{}

// New returns a Resolver backed by the system's resolver configuration.
func New() *Resolver {
	return &Resolver{}
}

// Lookup reverse-resolves ip to a hostname. It reports false on any
// resolution failure (NXDOMAIN, timeout, no PTR record) rather than
// returning an error: a failed reverse lookup is routine, not exceptional,
// and the caller's only recourse is to fall back to matching on the raw IP.
func (r *Resolver) Lookup(ip netip.Addr) (string, bool) {
	names, err := net.LookupAddr(ip.String())
	if err != nil || len(names) == 0 {
		return "", false
	}
	return strings.TrimSuffix(names[0], "."), true
}
