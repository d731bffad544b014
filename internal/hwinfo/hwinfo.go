// Package hwinfo canonicalizes heterogeneous hardware descriptors into a
// deterministic, order-independent fingerprint: a sorted sequence of
// "key=value" strings.
package hwinfo

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Keys is the closed set of recognised non-fact hardware keys. Any key
// outside this set that isn't a fact_-prefixed entry is dropped during
// canonicalization.
var Keys = map[string]bool{
	"mac":    true,
	"uuid":   true,
	"serial": true,
	"asset":  true,
}

var netKeyPattern = regexp.MustCompile(`^net[0-9]+$`)

type pair struct {
	key   string
	value string
}

// Canonicalize produces the sorted "key=value" fingerprint for input per the
// procedure: facts are pulled out and fact_-prefixed, mac is normalised
// (colon to hyphen) and netN keys are folded into mac, then everything is
// lowercased, trimmed, filtered against Keys, and sorted by (key, value).
func Canonicalize(input map[string]any) ([]string, error) {
	return CanonicalizeWithKeys(input, Keys)
}

// CanonicalizeWithKeys is Canonicalize parameterized on the closed set of
// recognised non-fact keys, for deployments that override HW_INFO_KEYS at
// configuration time rather than compile time.
func CanonicalizeWithKeys(input map[string]any, keys map[string]bool) ([]string, error) {
	var pairs []pair

	if rawFacts, ok := input["facts"]; ok && rawFacts != nil {
		facts, ok := rawFacts.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("hwinfo: facts must be a mapping, got %T", rawFacts)
		}
		for k, v := range facts {
			pairs = append(pairs, pair{key: "fact_" + k, value: stringify(v)})
		}
	}

	if rawMac, ok := input["mac"]; ok && rawMac != nil {
		for _, m := range macList(rawMac) {
			pairs = append(pairs, pair{key: "mac", value: strings.ReplaceAll(m, ":", "-")})
		}
	}

	for k, v := range input {
		if k == "facts" || k == "mac" {
			continue
		}
		pairs = append(pairs, pair{key: k, value: stringify(v)})
	}

	out := make([]string, 0, len(pairs))
	seen := make(map[string]bool)
	for _, p := range pairs {
		key := strings.ToLower(strings.TrimSpace(p.key))
		if netKeyPattern.MatchString(key) {
			key = "mac"
		}
		value := strings.ToLower(strings.TrimSpace(p.value))
		if key == "mac" {
			value = strings.ReplaceAll(value, ":", "-")
		}

		if value == "" {
			continue
		}
		if !keys[key] && !strings.HasPrefix(key, "fact_") {
			continue
		}

		entry := key + "=" + value
		if seen[entry] {
			continue
		}
		seen[entry] = true
		out = append(out, entry)
	}

	sort.Slice(out, func(i, j int) bool {
		ki, vi := splitEntry(out[i])
		kj, vj := splitEntry(out[j])
		if ki != kj {
			return ki < kj
		}
		return vi < vj
	})

	return out, nil
}

func splitEntry(entry string) (key, value string) {
	idx := strings.IndexByte(entry, '=')
	if idx < 0 {
		return entry, ""
	}
	return entry[:idx], entry[idx+1:]
}

func macList(raw any) []string {
	switch v := raw.(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, stringify(item))
		}
		return out
	default:
		return []string{stringify(v)}
	}
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// Key returns the bare key of a "key=value" hw_info entry.
func Key(entry string) string {
	key, _ := splitEntry(entry)
	return key
}

// Value returns the value of a "key=value" hw_info entry.
func Value(entry string) string {
	_, value := splitEntry(entry)
	return value
}

// HasFactPrefix reports whether entry is a fact_-derived hw_info entry.
func HasFactPrefix(entry string) bool {
	return strings.HasPrefix(Key(entry), "fact_")
}
