// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package policy matches observed TCP connections against the configured
// rule list and decides what to do with them. Matching here follows the
// same plain-struct, procedural-Match style as flywall's rule matcher: a
// HostPredicate is a tagged struct with one active field set by Kind, not a
// polymorphic interface, and Decide walks the rule list doing direct field
// comparisons rather than dispatching through a visitor.
package policy

import (
	"fmt"
	"net/netip"
	"regexp"
	"sort"
	"strings"

	"grimm.is/interceptor/internal/netutil"
)

// PredicateKind tags which field of a HostPredicate is active.
type PredicateKind int

const (
	KindWildcard PredicateKind = iota
	KindIncludeIP
	KindExcludeIP
	KindIncludeMAC
	KindExcludeMAC
	KindRegex
)

// HostPredicate matches one side (source or destination) of an observed
// connection. At most one of IPs, MACs, or Regex is populated, per Kind
// (none for KindWildcard).
type HostPredicate struct {
	Kind  PredicateKind
	IPs   []netip.Addr
	MACs  []netutil.MAC
	Regex *regexp.Regexp
}

// Wildcard returns the predicate that matches any host.
func Wildcard() HostPredicate {
	return HostPredicate{Kind: KindWildcard}
}

// Weight returns the predicate's specificity score. Wildcard predicates
// carry no weight; IP-based predicates are less specific than MAC-based
// ones; regex predicates are the most specific. Rules are sorted by the sum
// of their two predicates' weights, ascending, so general rules are
// evaluated first and shadow the more specific ones placed after them.
func (p HostPredicate) Weight() int {
	switch p.Kind {
	case KindIncludeIP, KindExcludeIP:
		return 1
	case KindIncludeMAC, KindExcludeMAC:
		return 2
	case KindRegex:
		return 4
	default:
		return 0
	}
}

// Action is the verdict a matching Rule produces for a connection.
type Action int

const (
	ActionIgnore Action = iota
	ActionMonitor
	ActionReset
)

// Rule pairs a source/destination predicate with the action to take when
// both match an observed connection.
type Rule struct {
	Name   string
	Src    HostPredicate
	Dst    HostPredicate
	Action Action
}

// Weight is the rule's combined specificity, used to order the rule list.
func (r Rule) Weight() int {
	return r.Src.Weight() + r.Dst.Weight()
}

// SortRules orders rules from least to most specific, stably, so rules of
// equal weight keep their configured relative order. A general rule placed
// after a specific one in the config will still be tried first here -- this
// is the documented, intentional "wildcards shadow specifics" behavior, not
// something to special-case away.
func SortRules(rules []Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Weight() < rules[j].Weight()
	})
}

// Host is the half of a connection tuple a predicate is tested against.
type Host struct {
	IP  netip.Addr
	MAC netutil.MAC
}

// Lookup is the in-process DNS learner's read side: the hostname last
// learned for an IP. Implemented by internal/dnslearn; declared here (as is
// Resolver, for internal/resolver) to keep policy free of a direct
// dependency on either package's concrete type.
type Lookup interface {
	Get(ip netip.Addr) (string, bool)
}

// Resolver performs reverse DNS lookups when the learner has no answer.
type Resolver interface {
	Lookup(ip netip.Addr) (string, bool)
}

// Decide returns the first rule (in sorted order) whose source and
// destination predicates both match, along with its action. If no rule
// matches, it returns the zero Rule and ActionIgnore.
func Decide(rules []Rule, src, dst Host, learner Lookup, resolver Resolver) (Rule, Action) {
	for _, r := range rules {
		if matches(r.Src, src, learner, resolver) && matches(r.Dst, dst, learner, resolver) {
			return r, r.Action
		}
	}
	return Rule{}, ActionIgnore
}

func matches(p HostPredicate, h Host, learner Lookup, resolver Resolver) bool {
	switch p.Kind {
	case KindWildcard:
		return true

	case KindIncludeIP:
		for _, ip := range p.IPs {
			if ip == h.IP {
				return true
			}
		}
		return false

	case KindExcludeIP:
		// Preserved as specified: this matches if ANY configured IP differs
		// from the observed one, not if the observed IP is absent from the
		// list. A single-entry exclude list behaves as intended; a
		// multi-entry one does not perform set exclusion.
		for _, ip := range p.IPs {
			if ip != h.IP {
				return true
			}
		}
		return false

	case KindIncludeMAC:
		for _, mac := range p.MACs {
			if mac == h.MAC {
				return true
			}
		}
		return false

	case KindExcludeMAC:
		// Preserved as specified: identical semantics to KindIncludeMAC, not
		// an inverted match. A configured exclude-MAC list matches hosts
		// whose MAC IS in the list, same as an include list would.
		for _, mac := range p.MACs {
			if mac == h.MAC {
				return true
			}
		}
		return false

	case KindRegex:
		name, ok := learner.Get(h.IP)
		if !ok && resolver != nil {
			name, ok = resolver.Lookup(h.IP)
		}
		if ok && p.Regex.MatchString(name) {
			return true
		}
		return p.Regex.MatchString(ipFallbackString(h.IP))

	default:
		return false
	}
}

// ipFallbackString renders the IP the way the regex predicate falls back
// to when no hostname is known. IPv4 uses netip's normal dotted-decimal
// form; IPv6 is rendered as eight uppercase 4-hex-digit groups derived
// pairwise from the 16 octets, with no RFC 5952 "::" compression -- this
// matches the original filter's octet-pair formatting exactly, not Go's
// default (lowercase, compressed) netip.Addr.String().
func ipFallbackString(ip netip.Addr) string {
	if !ip.Is6() || ip.Is4In6() {
		return ip.String()
	}
	octets := ip.As16()
	groups := make([]string, 8)
	for i := 0; i < 8; i++ {
		groups[i] = fmt.Sprintf("%02X%02X", octets[2*i], octets[2*i+1])
	}
	return strings.Join(groups, ":")
}
