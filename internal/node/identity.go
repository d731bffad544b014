package node

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"rackd/internal/hwinfo"
)

// Resolver implements C3, the identity lookup: mapping an incoming
// descriptor to exactly one node, creating, merging, or rejecting as
// needed.
type Resolver struct {
	Store  Store
	Config Config
}

// NewResolver constructs a Resolver over the given store and config.
func NewResolver(store Store, cfg Config) *Resolver {
	return &Resolver{Store: store, Config: cfg}
}

// Lookup resolves exactly one of facts or hwInfo to a single node,
// creating, updating, or merging as C3 dictates. It returns the node and
// whether it was freshly created.
func (r *Resolver) Lookup(ctx context.Context, facts map[string]any, rawHwInfo map[string]any) (n *Node, created bool, err error) {
	if facts == nil && rawHwInfo == nil {
		return nil, false, &InvalidArgumentError{Message: "neither facts nor hw_info supplied"}
	}

	input, dhcpMAC, err := r.buildInput(facts, rawHwInfo)
	if err != nil {
		return nil, false, err
	}

	canonical, err := hwinfo.CanonicalizeWithKeys(input, r.Config.HwInfoKeys)
	if err != nil {
		return nil, false, err
	}

	hwMatch := r.matchEligible(canonical)
	if len(hwMatch) == 0 {
		return nil, false, &InvalidArgumentError{
			Message: fmt.Sprintf("no match-eligible keys among %v", canonical),
		}
	}

	var result *Node
	var madeNew bool
	var dupCandidates []*Node

	err = r.Store.WithTx(ctx, func(ctx context.Context) error {
		candidates, err := r.Store.Overlap(ctx, hwMatch)
		if err != nil {
			return err
		}

		switch len(candidates) {
		case 0:
			created, err := r.Store.Create(ctx, canonical, dhcpMAC)
			if err != nil {
				return err
			}
			if r.Config.ProtectNewNodes {
				installed := "protect_new_nodes"
				now := nowFunc()
				created.Installed = &installed
				created.InstalledAt = &now
				if err := r.Store.Save(ctx, created); err != nil {
					return err
				}
			}
			result, madeNew = created, true
			return nil

		case 1:
			existing := candidates[0]
			if dhcpMAC != "" && dhcpMAC != existing.DHCPMAC {
				existing.DHCPMAC = dhcpMAC
			}
			nonFact := filterNonFact(canonical)
			if !equalStrings(nonFact, filterNonFact(existing.HwInfo)) {
				if hasFactEntries(canonical) {
					existing.HwInfo = canonical
				} else {
					existing.HwInfo = dedupeSorted(append(append([]string{}, nonFact...), filterFact(existing.HwInfo)...))
				}
			}
			if err := r.Store.Save(ctx, existing); err != nil {
				return err
			}
			result = existing
			return nil

		case 2:
			merged, dup, err := r.merge(ctx, candidates, canonical)
			if err != nil {
				return err
			}
			if dup != nil {
				dupCandidates = dup
				return nil
			}
			result = merged
			return nil

		default:
			dupCandidates = candidates
			return nil
		}
	})
	if err != nil {
		return nil, false, err
	}

	if dupCandidates != nil {
		// Logged after the lookup transaction has already committed (it
		// mutated nothing in this branch), so the duplicate_node entries
		// survive regardless of what the caller does with the error.
		r.logDuplicate(ctx, dupCandidates)
		return nil, false, &DuplicateNodeError{HwInfo: canonical, Nodes: dupCandidates}
	}

	return result, madeNew, nil
}

// buildInput assembles the map handed to hwinfo.Canonicalize, pulling
// match_nodes_on_facts-matching entries into a facts sub-mapping and the
// dhcp_mac from the macaddress fact when the caller supplied facts.
func (r *Resolver) buildInput(facts map[string]any, rawHwInfo map[string]any) (map[string]any, string, error) {
	if facts != nil {
		matched := map[string]any{}
		for name, value := range facts {
			if r.factMatchesMatchNodesOn(name) {
				matched[name] = value
			}
		}
		input := map[string]any{"facts": matched}
		dhcpMAC := ""
		if mac, ok := facts["macaddress"]; ok {
			dhcpMAC = strings.ToLower(strings.ReplaceAll(fmt.Sprint(mac), ":", "-"))
		}
		return input, dhcpMAC, nil
	}

	dhcpMAC := ""
	if mac, ok := rawHwInfo["dhcp_mac"]; ok {
		dhcpMAC = strings.ToLower(strings.ReplaceAll(fmt.Sprint(mac), ":", "-"))
	}
	return rawHwInfo, dhcpMAC, nil
}

func (r *Resolver) factMatchesMatchNodesOn(factName string) bool {
	for _, pattern := range r.Config.MatchNodesOnFacts {
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		if re.MatchString(factName) {
			return true
		}
	}
	return false
}

// matchEligible returns the entries of hw_info whose bare key is either
// in match_nodes_on or starts with fact_.
func (r *Resolver) matchEligible(canonical []string) []string {
	allow := make(map[string]bool, len(r.Config.MatchNodesOn))
	for _, k := range r.Config.MatchNodesOn {
		allow[k] = true
	}
	var out []string
	for _, entry := range canonical {
		key := hwinfo.Key(entry)
		if allow[key] || strings.HasPrefix(key, "fact_") {
			out = append(out, entry)
		}
	}
	return out
}

// merge implements the fact/firmware reconciliation for the size-2 case.
// When neither or both candidates carry fact_* entries, there is no
// fact-bearing side to treat as authoritative; merge reports this by
// returning the candidates as dup rather than writing or returning an
// error itself, so the caller can log and fail outside the transaction
// it ran this lookup in.
func (r *Resolver) merge(ctx context.Context, candidates []*Node, canonical []string) (merged *Node, dup []*Node, err error) {
	var real, fake *Node
	aHasFacts := hasFactEntries(candidates[0].HwInfo)
	bHasFacts := hasFactEntries(candidates[1].HwInfo)

	switch {
	case aHasFacts && !bHasFacts:
		real, fake = candidates[0], candidates[1]
	case bHasFacts && !aHasFacts:
		real, fake = candidates[1], candidates[0]
	default:
		return nil, candidates, nil
	}

	real.HwInfo = canonical
	if err := r.Store.Save(ctx, real); err != nil {
		return nil, nil, err
	}
	if err := r.Store.MoveLog(ctx, fake.ID, real.ID); err != nil {
		return nil, nil, err
	}
	if err := r.Store.Destroy(ctx, fake); err != nil {
		return nil, nil, err
	}
	return real, nil, nil
}

func (r *Resolver) logDuplicate(ctx context.Context, candidates []*Node) {
	for _, n := range candidates {
		_ = r.Store.AppendLog(ctx, &NodeLogEntry{
			NodeID:   n.ID,
			Severity: "error",
			Payload:  map[string]any{"event": "boot", "error": "duplicate_node"},
		})
	}
}

func hasFactEntries(hwInfo []string) bool {
	for _, entry := range hwInfo {
		if hwinfo.HasFactPrefix(entry) {
			return true
		}
	}
	return false
}

func filterNonFact(hwInfo []string) []string {
	var out []string
	for _, entry := range hwInfo {
		if !hwinfo.HasFactPrefix(entry) {
			out = append(out, entry)
		}
	}
	return out
}

func filterFact(hwInfo []string) []string {
	var out []string
	for _, entry := range hwInfo {
		if hwinfo.HasFactPrefix(entry) {
			out = append(out, entry)
		}
	}
	return out
}

// dedupeSorted dedupes entries and returns them sorted by (key, value),
// matching hwinfo.Canonicalize's ordering.
func dedupeSorted(entries []string) []string {
	seen := make(map[string]bool, len(entries))
	var out []string
	for _, e := range entries {
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		ki, kj := hwinfo.Key(out[i]), hwinfo.Key(out[j])
		if ki != kj {
			return ki < kj
		}
		return hwinfo.Value(out[i]) < hwinfo.Value(out[j])
	})
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
