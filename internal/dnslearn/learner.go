// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package dnslearn snoops DNS responses flowing past the capture point and
// builds a reverse-resolution table: IP -> hostname. The table is owned
// exclusively by the capture loop (see internal/capture); the policy engine
// only ever reads it between mutations, never concurrently with one, so no
// locking is required as long as the single-threaded discipline documented
// in spec.md §5 is upheld.
package dnslearn

import (
	"net/netip"

	"github.com/miekg/dns"

	ierrors "grimm.is/interceptor/internal/errors"
)

// dnsOffset is the fixed byte offset of the DNS payload past
// Ethernet(14)+IPv4(20, no options)+UDP(8) headers. Frames with IP options,
// or anything other than Ethernet/IPv4/UDP framing, will fail to parse and
// be dropped -- this mirrors the original implementation's fixed
// offset (see SPEC_FULL.md §5) and is not a bug to be generalized away.
const dnsOffset = 42

// Learner is the IP -> hostname map populated from observed DNS answers.
// Entries accumulate for the process lifetime: there is no TTL honoring and
// no eviction. This is an accepted memory-leak-shaped tradeoff for the
// tool's expected (short) runtime horizon.
type Learner struct {
	resolved map[netip.Addr]string
}

// New returns an empty learner.
func New() *Learner {
	return &Learner{resolved: make(map[netip.Addr]string)}
}

// Get returns the hostname last learned for ip, if any.
func (l *Learner) Get(ip netip.Addr) (string, bool) {
	name, ok := l.resolved[ip]
	return name, ok
}

// Len reports how many IP->name entries have accumulated, for metrics.
func (l *Learner) Len() int {
	return len(l.resolved)
}

// Observe parses a raw UDP/53 frame and inserts an entry for every A/AAAA
// answer found. All other RR types are ignored. A parse failure never
// propagates: it is returned to the caller (the capture loop logs it at
// error level per spec.md §7) and the frame is simply not learned from.
// Last writer wins on duplicate keys.
func (l *Learner) Observe(frame []byte) error {
	if len(frame) <= dnsOffset {
		return dnsParseErr("frame shorter than the fixed DNS offset")
	}

	var msg dns.Msg
	if err := msg.Unpack(frame[dnsOffset:]); err != nil {
		return ierrors.Attr(ierrors.Wrap(err, ierrors.KindValidation, "failed to parse DNS packet"), "code", "DnsParseError")
	}

	for _, rr := range msg.Answer {
		switch rec := rr.(type) {
		case *dns.A:
			addr, ok := netip.AddrFromSlice(rec.A.To4())
			if !ok {
				continue
			}
			l.resolved[addr] = rec.Hdr.Name
		case *dns.AAAA:
			addr, ok := netip.AddrFromSlice(rec.AAAA.To16())
			if !ok {
				continue
			}
			l.resolved[addr] = rec.Hdr.Name
		default:
			// Only A/AAAA answers feed the reverse-resolution table.
		}
	}
	return nil
}

func dnsParseErr(msg string) error {
	return ierrors.Attr(ierrors.Errorf(ierrors.KindValidation, "%s", msg), "code", "DnsParseError")
}
