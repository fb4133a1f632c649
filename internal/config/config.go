// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config loads the interceptor's declarative rule set from a fixed
// TOML path. Decoding follows flywall's dynamic-table-walking style rather
// than a single strict struct tag decode: the filter array is parsed one
// entry at a time out of a generic map so every shape mistake produces the
// specific ConfigError code a caller can act on, mirroring the source
// project's own Value-walking configs.rs.
package config

import (
	"fmt"
	"net/netip"
	"os"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"

	ierrors "grimm.is/interceptor/internal/errors"
	"grimm.is/interceptor/internal/logging"
	"grimm.is/interceptor/internal/netutil"
	"grimm.is/interceptor/internal/policy"
)

// Path is the fixed configuration file location; the interceptor does not
// accept a path override on the command line (see SPEC_FULL.md §6).
const Path = "./test_config.toml"

// Config is the compiled, ready-to-run configuration.
type Config struct {
	Interface string // empty means "auto-lookup a device"
	LogLevel  logging.Level
	LogFile   string // empty means "terminal sink"
	Rules     []policy.Rule
}

// Load reads and compiles Path into a Config. The rule list returned is
// already sorted per policy.SortRules.
func Load() (*Config, error) {
	raw, err := os.ReadFile(Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, configErr("NoConfigFound", "config file %q not found", Path)
		}
		return nil, configErr("FailedToRead", "failed to read config file %q: %v", Path, err)
	}

	var doc map[string]any
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, configErr("FailedToParse", "failed to parse config as TOML: %v", err)
	}

	cfg := &Config{LogLevel: logging.LevelInfo}

	if dev, ok := doc["device"].(map[string]any); ok {
		if iface, ok := dev["interface"].(string); ok && iface != "" {
			cfg.Interface = iface
		}
	}

	if logSec, ok := doc["log"].(map[string]any); ok {
		if lvl, ok := logSec["log-level"].(string); ok && lvl != "" {
			parsed, err := logging.ParseLevel(lvl)
			if err != nil {
				return nil, configErr("InvalidLogLevel", "invalid log-level %q", lvl)
			}
			cfg.LogLevel = parsed
		}
		if file, ok := logSec["log-file"].(string); ok {
			cfg.LogFile = file
		}
	}

	filterVal, ok := doc["filter"]
	if !ok {
		return nil, configErr("NoFiltersFound", "config has no [[filter]] entries")
	}
	filterList, ok := filterVal.([]any)
	if !ok || len(filterList) == 0 {
		return nil, configErr("NoFiltersFound", "config has no [[filter]] entries")
	}

	rules := make([]policy.Rule, 0, len(filterList))
	for i, entry := range filterList {
		table, ok := entry.(map[string]any)
		if !ok {
			return nil, configErr("FailedToParse", "filter entry %d is not a table", i)
		}
		rule, err := compileFilter(table)
		if err != nil {
			return nil, err
		}
		rule.Name = fmt.Sprintf("filter-%d", i)
		rules = append(rules, rule)
	}

	policy.SortRules(rules)
	cfg.Rules = rules
	return cfg, nil
}

// compileFilter turns one [[filter]] table into a policy.Rule, enforcing
// that at most one of the five keyed predicate forms is present per side.
func compileFilter(table map[string]any) (policy.Rule, error) {
	src, err := compileSide(table, "src", "src_regex", "src_exclude", "src_mac", "src_mac_exclude")
	if err != nil {
		return policy.Rule{}, err
	}
	dst, err := compileSide(table, "dst", "dst_regex", "dst_exclude", "dst_mac", "dst_mac_exclude")
	if err != nil {
		return policy.Rule{}, err
	}

	action := policy.ActionReset
	if modeVal, ok := table["mode"]; ok {
		mode, ok := modeVal.(string)
		if !ok {
			return policy.Rule{}, configErr("UnknownMode", "mode must be a string")
		}
		switch strings.ToLower(mode) {
		case "reset":
			action = policy.ActionReset
		case "monitor":
			action = policy.ActionMonitor
		case "ignore":
			action = policy.ActionIgnore
		default:
			return policy.Rule{}, configErr("UnknownMode", "unrecognised mode %q", mode)
		}
	}
	// Legacy boolean form carried over from the original "kill" field.
	if killVal, ok := table["kill"]; ok {
		kill, ok := killVal.(bool)
		if !ok {
			return policy.Rule{}, configErr("UnknownMode", "kill must be a boolean")
		}
		if kill {
			action = policy.ActionReset
		} else {
			action = policy.ActionMonitor
		}
	}

	return policy.Rule{Src: src, Dst: dst, Action: action}, nil
}

// compileSide compiles one side's predicate out of its five possible keys:
// a plain IP list, a regex, an IP exclude list, a MAC list, and a MAC
// exclude list. At most one may be present; more than one is
// MultipleFiltersFound regardless of which keys collide.
func compileSide(table map[string]any, ipKey, regexKey, excludeKey, macKey, macExcludeKey string) (policy.HostPredicate, error) {
	present := 0
	for _, k := range []string{ipKey, regexKey, excludeKey, macKey, macExcludeKey} {
		if _, ok := table[k]; ok {
			present++
		}
	}
	if present > 1 {
		return policy.HostPredicate{}, configErr("MultipleFiltersFound", "at most one of %s/%s/%s/%s/%s may be set", ipKey, regexKey, excludeKey, macKey, macExcludeKey)
	}

	if v, ok := table[ipKey]; ok {
		ips, err := ipListFromValue(v)
		if err != nil {
			return policy.HostPredicate{}, err
		}
		return policy.HostPredicate{Kind: policy.KindIncludeIP, IPs: ips}, nil
	}
	if v, ok := table[excludeKey]; ok {
		ips, err := ipListFromValue(v)
		if err != nil {
			return policy.HostPredicate{}, err
		}
		return policy.HostPredicate{Kind: policy.KindExcludeIP, IPs: ips}, nil
	}
	if v, ok := table[macKey]; ok {
		macs, err := macListFromValue(v)
		if err != nil {
			return policy.HostPredicate{}, err
		}
		return policy.HostPredicate{Kind: policy.KindIncludeMAC, MACs: macs}, nil
	}
	if v, ok := table[macExcludeKey]; ok {
		macs, err := macListFromValue(v)
		if err != nil {
			return policy.HostPredicate{}, err
		}
		return policy.HostPredicate{Kind: policy.KindExcludeMAC, MACs: macs}, nil
	}
	if v, ok := table[regexKey]; ok {
		pattern, ok := v.(string)
		if !ok {
			return policy.HostPredicate{}, configErr("InvalidRegex", "%s must be a string", regexKey)
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return policy.HostPredicate{}, configErr("InvalidRegex", "invalid regex %q: %v", pattern, err)
		}
		return policy.HostPredicate{Kind: policy.KindRegex, Regex: re}, nil
	}

	return policy.Wildcard(), nil
}

func ipListFromValue(v any) ([]netip.Addr, error) {
	raw, ok := v.([]any)
	if !ok {
		return nil, configErr("ExpectedAList", "expected an array of IP strings")
	}
	ips := make([]netip.Addr, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, configErr("ExpectedAList", "expected an array of IP strings")
		}
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return nil, configErr("FailedToParseAsIp", "failed to parse %q as an IP address", s)
		}
		ips = append(ips, addr)
	}
	return ips, nil
}

func macListFromValue(v any) ([]netutil.MAC, error) {
	raw, ok := v.([]any)
	if !ok {
		return nil, configErr("ExpectedAList", "expected an array of MAC strings")
	}
	macs := make([]netutil.MAC, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, configErr("ExpectedAList", "expected an array of MAC strings")
		}
		mac, err := netutil.ParseMAC(s)
		if err != nil {
			return nil, err
		}
		macs = append(macs, mac)
	}
	return macs, nil
}

func configErr(code, format string, args ...any) error {
	err := ierrors.Errorf(ierrors.KindValidation, format, args...)
	return ierrors.Attr(err, "code", code)
}
