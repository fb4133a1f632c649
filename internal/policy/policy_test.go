// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package policy

import (
	"net/netip"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/interceptor/internal/netutil"
)

func mac(s string) netutil.MAC {
	m, err := netutil.ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return m
}

func ip(s string) netip.Addr {
	return netip.MustParseAddr(s)
}

type fakeLearner map[netip.Addr]string

func (f fakeLearner) Get(addr netip.Addr) (string, bool) {
	name, ok := f[addr]
	return name, ok
}

// S4 / property 5: rules sort least-to-most specific, stably.
func TestSortRules_OrdersByWeightAscending(t *testing.T) {
	rules := []Rule{
		{Name: "regex-both", Src: HostPredicate{Kind: KindRegex, Regex: regexp.MustCompile(`.*`)}, Dst: HostPredicate{Kind: KindRegex, Regex: regexp.MustCompile(`.*`)}},
		{Name: "wildcard", Src: Wildcard(), Dst: Wildcard()},
		{Name: "ip-src", Src: HostPredicate{Kind: KindIncludeIP, IPs: []netip.Addr{ip("10.0.0.1")}}, Dst: Wildcard()},
	}
	SortRules(rules)

	require.Len(t, rules, 3)
	assert.Equal(t, "wildcard", rules[0].Name)
	assert.Equal(t, "ip-src", rules[1].Name)
	assert.Equal(t, "regex-both", rules[2].Name)
}

func TestSortRules_StableForEqualWeight(t *testing.T) {
	rules := []Rule{
		{Name: "first", Src: Wildcard(), Dst: Wildcard()},
		{Name: "second", Src: Wildcard(), Dst: Wildcard()},
	}
	SortRules(rules)
	assert.Equal(t, "first", rules[0].Name)
	assert.Equal(t, "second", rules[1].Name)
}

// S5: a wildcard rule placed ahead of a specific one shadows it.
func TestDecide_FirstMatchWins_WildcardShadowsSpecific(t *testing.T) {
	rules := []Rule{
		{Name: "catch-all", Src: Wildcard(), Dst: Wildcard(), Action: ActionMonitor},
		{Name: "specific", Src: HostPredicate{Kind: KindIncludeIP, IPs: []netip.Addr{ip("10.0.0.1")}}, Dst: Wildcard(), Action: ActionReset},
	}

	rule, action := Decide(rules, Host{IP: ip("10.0.0.1")}, Host{IP: ip("1.1.1.1")}, fakeLearner{}, nil)
	assert.Equal(t, ActionMonitor, action)
	assert.Equal(t, "catch-all", rule.Name)
}

func TestDecide_NoMatch_DefaultsToIgnore(t *testing.T) {
	rules := []Rule{
		{Name: "specific", Src: HostPredicate{Kind: KindIncludeIP, IPs: []netip.Addr{ip("10.0.0.1")}}, Dst: Wildcard(), Action: ActionReset},
	}
	rule, action := Decide(rules, Host{IP: ip("10.0.0.99")}, Host{IP: ip("1.1.1.1")}, fakeLearner{}, nil)
	assert.Equal(t, ActionIgnore, action)
	assert.Equal(t, "", rule.Name)
}

// S6: regex predicate matches via the learner's hostname before falling
// back to the raw IP string.
func TestDecide_RegexViaLearner(t *testing.T) {
	rules := []Rule{
		{Name: "ads", Src: Wildcard(), Dst: HostPredicate{Kind: KindRegex, Regex: regexp.MustCompile(`ads\.`)}, Action: ActionReset},
	}
	learner := fakeLearner{ip("93.184.216.34"): "ads.example.com."}

	_, action := Decide(rules, Host{IP: ip("10.0.0.1")}, Host{IP: ip("93.184.216.34")}, learner, nil)
	assert.Equal(t, ActionReset, action)
}

func TestDecide_RegexEmptyLearner_FallsBackToIPString(t *testing.T) {
	rules := []Rule{
		{Name: "ip-regex", Src: Wildcard(), Dst: HostPredicate{Kind: KindRegex, Regex: regexp.MustCompile(`^93\.184`)}, Action: ActionMonitor},
	}
	_, action := Decide(rules, Host{IP: ip("10.0.0.1")}, Host{IP: ip("93.184.216.34")}, fakeLearner{}, nil)
	assert.Equal(t, ActionMonitor, action)
}

// §9.2/§4.3: IPv6 regex fallback renders eight uppercase 4-hex-digit
// groups derived pairwise from the 16 octets, not netip.Addr's default
// (lowercase, RFC 5952-compressed) form.
func TestDecide_RegexEmptyLearner_FallsBackToUppercaseIPv6(t *testing.T) {
	rules := []Rule{
		{Name: "ipv6-regex", Src: Wildcard(), Dst: HostPredicate{Kind: KindRegex, Regex: regexp.MustCompile(`^2001:0DB8:0000:0000:0000:0000:0000:0001$`)}, Action: ActionMonitor},
	}
	_, action := Decide(rules, Host{IP: ip("10.0.0.1")}, Host{IP: ip("2001:db8::1")}, fakeLearner{}, nil)
	assert.Equal(t, ActionMonitor, action, "expected uppercase, uncompressed IPv6 rendering to match")

	// the default netip.Addr.String() form (lowercase, compressed) must NOT
	// be what the fallback matches against.
	rulesDefaultForm := []Rule{
		{Name: "ipv6-default-form", Src: Wildcard(), Dst: HostPredicate{Kind: KindRegex, Regex: regexp.MustCompile(`^::1$`)}, Action: ActionReset},
	}
	_, action2 := Decide(rulesDefaultForm, Host{IP: ip("10.0.0.1")}, Host{IP: ip("::1")}, fakeLearner{}, nil)
	assert.Equal(t, ActionIgnore, action2, "fallback must not use netip's compressed lowercase form")
}

func TestIpFallbackString_IPv6UppercaseNoCompression(t *testing.T) {
	assert.Equal(t, "2001:0DB8:0000:0000:0000:0000:0000:0001", ipFallbackString(ip("2001:db8::1")))
	assert.Equal(t, "0000:0000:0000:0000:0000:0000:0000:0001", ipFallbackString(ip("::1")))
}

func TestIpFallbackString_IPv4Unaffected(t *testing.T) {
	assert.Equal(t, "10.0.0.1", ipFallbackString(ip("10.0.0.1")))
}

// property 4: Decide is a pure function of (rules, src, dst, learner state).
func TestDecide_Deterministic(t *testing.T) {
	rules := []Rule{
		{Name: "r1", Src: HostPredicate{Kind: KindIncludeIP, IPs: []netip.Addr{ip("10.0.0.1")}}, Dst: Wildcard(), Action: ActionReset},
	}
	aRule, a := Decide(rules, Host{IP: ip("10.0.0.1")}, Host{IP: ip("1.1.1.1")}, fakeLearner{}, nil)
	bRule, b := Decide(rules, Host{IP: ip("10.0.0.1")}, Host{IP: ip("1.1.1.1")}, fakeLearner{}, nil)
	assert.Equal(t, a, b)
	assert.Equal(t, aRule, bRule)
}

// §9.2: ExcludeIPs is "exists i in list, i != observed", not set exclusion.
func TestMatches_ExcludeIP_PreservesLiteralSemantics(t *testing.T) {
	pred := HostPredicate{Kind: KindExcludeIP, IPs: []netip.Addr{ip("10.0.0.1")}}

	// Observed IP equals the sole listed entry: no other entry differs, so
	// this does NOT match -- behaves like a (single-entry) exclusion here.
	assert.False(t, matches(pred, Host{IP: ip("10.0.0.1")}, fakeLearner{}, nil))

	// Observed IP differs from the listed entry: the listed entry is an
	// "other" entry relative to the observed IP, so this DOES match -- the
	// literal bug, not a fixed exclusion.
	assert.True(t, matches(pred, Host{IP: ip("10.0.0.2")}, fakeLearner{}, nil))
}

func TestMatches_ExcludeIP_MultiEntryNeverExcludes(t *testing.T) {
	// With two distinct entries, at least one always differs from whatever
	// IP is observed -- so a multi-entry ExcludeIPs predicate matches
	// everything, including IPs in its own list.
	pred := HostPredicate{Kind: KindExcludeIP, IPs: []netip.Addr{ip("10.0.0.1"), ip("10.0.0.2")}}
	assert.True(t, matches(pred, Host{IP: ip("10.0.0.1")}, fakeLearner{}, nil))
	assert.True(t, matches(pred, Host{IP: ip("10.0.0.2")}, fakeLearner{}, nil))
	assert.True(t, matches(pred, Host{IP: ip("10.0.0.3")}, fakeLearner{}, nil))
}

// §9.3: ExcludeMACs is implemented identically to IncludeMACs.
func TestMatches_ExcludeMAC_SameAsIncludeMAC(t *testing.T) {
	m := mac("aa:bb:cc:dd:ee:ff")
	exclude := HostPredicate{Kind: KindExcludeMAC, MACs: []netutil.MAC{m}}
	include := HostPredicate{Kind: KindIncludeMAC, MACs: []netutil.MAC{m}}

	host := Host{MAC: m}
	assert.Equal(t, matches(include, host, fakeLearner{}, nil), matches(exclude, host, fakeLearner{}, nil))
	assert.True(t, matches(exclude, host, fakeLearner{}, nil))
}

func TestMatches_Wildcard_AlwaysTrue(t *testing.T) {
	assert.True(t, matches(Wildcard(), Host{}, fakeLearner{}, nil))
}
