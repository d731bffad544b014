package node

import (
	"context"
	"reflect"
	"regexp"
	"time"

	"github.com/google/uuid"

	"rackd/internal/hwinfo"
)

// ActionReboot and ActionNone are the two outcomes a checkin may direct
// the caller to take.
const (
	ActionReboot = "reboot"
	ActionNone   = "none"
)

// Processor implements C4: applying a fact update, refreshing the
// fingerprint, evaluating tags, attempting policy binding, and
// producing a next action directive for the caller.
type Processor struct {
	Store  Store
	Binder *Binder
	Config Config
}

// NewProcessor constructs a Processor over the given store, binder, and
// config.
func NewProcessor(store Store, binder *Binder, cfg Config) *Processor {
	return &Processor{Store: store, Binder: binder, Config: cfg}
}

// Checkin processes a fact report from an already-resolved node,
// returning the action ("reboot" or "none") the caller should take.
func (p *Processor) Checkin(ctx context.Context, nodeID uuid.UUID, facts map[string]any) (action string, err error) {
	var bindFailure error

	err = p.Store.WithTx(ctx, func(ctx context.Context) error {
		n, err := p.Store.Get(ctx, nodeID)
		if err != nil {
			return err
		}

		filtered := p.filterBlacklist(facts)
		if !equalFacts(filtered, n.Facts) {
			n.Facts = filtered
		}

		refreshed, err := p.refreshHwInfo(n)
		if err != nil {
			return err
		}
		if !equalStrings(refreshed, n.HwInfo) {
			n.HwInfo = refreshed
		}

		n.LastCheckin = timePtr(nowFunc())

		if n.Policy == nil {
			bound, bindErr := p.Binder.MatchAndBind(ctx, n)
			if bindErr != nil {
				if re, ok := bindErr.(*RuleEvaluationError); ok {
					_ = p.Store.AppendLog(ctx, &NodeLogEntry{
						NodeID:   n.ID,
						Severity: "error",
						Payload:  map[string]any{"error": re.Error()},
					})
					// The node is saved and the error reported to the
					// caller, but the save must commit regardless, so it
					// is deferred to bindFailure rather than returned
					// here (which would roll it back along with the log
					// entry above).
					if saveErr := p.Store.Save(ctx, n); saveErr != nil {
						return saveErr
					}
					bindFailure = bindErr
					return nil
				}
				return bindErr
			}
			_ = bound
		}

		if n.Policy != nil {
			_ = p.Store.AppendLog(ctx, &NodeLogEntry{
				NodeID:   n.ID,
				Severity: "info",
				Payload:  map[string]any{"action": ActionReboot, "policy": n.Policy.Name},
			})
			action = ActionReboot
		} else {
			action = ActionNone
		}

		return p.Store.Save(ctx, n)
	})
	if err != nil {
		return "", err
	}
	if bindFailure != nil {
		return "", bindFailure
	}
	return action, nil
}

// filterBlacklist drops any fact whose name matches one of the
// configured blacklist patterns (regex or, failing that, literal).
func (p *Processor) filterBlacklist(facts map[string]any) map[string]any {
	out := make(map[string]any, len(facts))
	for name, value := range facts {
		if p.factBlacklisted(name) {
			continue
		}
		out[name] = value
	}
	return out
}

func (p *Processor) factBlacklisted(name string) bool {
	for _, pattern := range p.Config.FactsBlacklist {
		trimmed := pattern
		if len(trimmed) >= 2 && trimmed[0] == '/' && trimmed[len(trimmed)-1] == '/' {
			trimmed = trimmed[1 : len(trimmed)-1]
		}
		if re, err := regexp.Compile(trimmed); err == nil {
			if re.MatchString(name) {
				return true
			}
			continue
		}
		if pattern == name {
			return true
		}
	}
	return false
}

// refreshHwInfo drops existing fact_* entries from the node's hw_info
// and recomputes them from the (filtered) stored facts that match
// match_nodes_on_facts, then re-canonicalizes.
func (p *Processor) refreshHwInfo(n *Node) ([]string, error) {
	nonFact := filterNonFact(n.HwInfo)

	// mac can repeat (multi-NIC firmware, net0/net1), so its values are
	// accumulated into a list rather than keyed into input by bare key
	// like every other (single-valued) non-fact key, which would drop
	// all but the last entry.
	input := map[string]any{}
	var macValues []string
	for _, entry := range nonFact {
		key, value := hwinfo.Key(entry), hwinfo.Value(entry)
		if key == "mac" {
			macValues = append(macValues, value)
			continue
		}
		input[key] = value
	}
	if macValues != nil {
		input["mac"] = macValues
	}

	matchedFacts := map[string]any{}
	for _, pattern := range p.Config.MatchNodesOnFacts {
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		for name, value := range n.Facts {
			if re.MatchString(name) {
				matchedFacts[name] = value
			}
		}
	}
	input["facts"] = matchedFacts

	return hwinfo.CanonicalizeWithKeys(input, p.Config.HwInfoKeys)
}

func equalFacts(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || !equalValue(v, bv) {
			return false
		}
	}
	return true
}

func equalValue(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

func timePtr(t time.Time) *time.Time { return &t }
