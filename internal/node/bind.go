package node

import (
	"context"
	"regexp"
)

// Binder implements C5: matching tags against a node and applying a
// chosen policy to it.
type Binder struct {
	Matcher   TagMatcher
	Catalogue PolicyCatalogue
	Queue     BackgroundQueue
}

// NewBinder constructs a Binder over the given tag matcher, policy
// catalogue, and background queue.
func NewBinder(matcher TagMatcher, catalogue PolicyCatalogue, queue BackgroundQueue) *Binder {
	return &Binder{Matcher: matcher, Catalogue: catalogue, Queue: queue}
}

var idPlaceholder = regexp.MustCompile(`\$\{\s*id\s*\}`)

// MatchAndBind evaluates all tag expressions against the node, sets its
// tag set by symmetric difference, then asks the policy catalogue for
// the first applicable policy and binds it if one is chosen. It reports
// whether a policy was bound.
func (b *Binder) MatchAndBind(ctx context.Context, n *Node) (bound bool, err error) {
	matched, err := b.Matcher.Match(ctx, n)
	if err != nil {
		return false, &RuleEvaluationError{Message: "tag matcher failed", Err: err}
	}

	n.Tags = symmetricDifference(n.Tags, matched)

	policy, err := b.Catalogue.Bind(ctx, n)
	if err != nil {
		return false, err
	}
	if policy == nil {
		return false, nil
	}

	if err := b.bind(ctx, n, policy); err != nil {
		return false, err
	}
	return true, nil
}

// bind applies policy to n: sets the policy reference, resets install
// state, assigns credentials, substitutes the hostname pattern, and
// merges node_metadata without overwriting existing keys.
func (b *Binder) bind(ctx context.Context, n *Node, policy *Policy) error {
	n.Policy = policy
	n.BootCount = 1
	n.Installed = nil
	n.InstalledAt = nil
	n.RootPassword = policy.RootPassword
	n.Hostname = idPlaceholder.ReplaceAllString(policy.HostnamePattern, n.ID.String())

	if len(policy.NodeMetadata) > 0 {
		merged, changed := mergeMetadata(n.Metadata, policy.NodeMetadata, true)
		n.Metadata = merged
		if changed {
			return b.emitEvalTags(ctx, n)
		}
	}
	return nil
}

func (b *Binder) emitEvalTags(ctx context.Context, n *Node) error {
	if b.Queue == nil {
		return nil
	}
	return b.Queue.Publish(ctx, n.ID.String(), map[string]any{"kind": SignalEvalTags})
}

func symmetricDifference(current []Tag, matched []Tag) []Tag {
	matchedSet := make(map[string]Tag, len(matched))
	for _, t := range matched {
		matchedSet[t.Name] = t
	}
	currentSet := make(map[string]bool, len(current))
	for _, t := range current {
		currentSet[t.Name] = true
	}

	var out []Tag
	for _, t := range matched {
		if !currentSet[t.Name] {
			out = append(out, t)
		}
	}
	for _, t := range current {
		if _, ok := matchedSet[t.Name]; !ok {
			out = append(out, t)
		}
	}
	return out
}
