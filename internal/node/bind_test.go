package node

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestBindClearsInstallAndSetsHostname(t *testing.T) {
	n := &Node{ID: uuid.New()}
	installed := "old-policy"
	now := nowFunc()
	n.Installed = &installed
	n.InstalledAt = &now

	policy := &Policy{Name: "p1", HostnamePattern: " host-${ id }.lab ", RootPassword: "secret"}
	b := NewBinder(&fakeTagMatcher{}, &fakeCatalogue{policy: policy}, &fakeQueue{})

	bound, err := b.MatchAndBind(context.Background(), n)
	if err != nil {
		t.Fatalf("MatchAndBind() error = %v", err)
	}
	if !bound {
		t.Fatal("MatchAndBind() bound = false, want true")
	}
	if n.Installed != nil || n.InstalledAt != nil {
		t.Fatalf("install state not cleared: installed=%v installed_at=%v", n.Installed, n.InstalledAt)
	}
	if n.BootCount != 1 {
		t.Fatalf("BootCount = %d, want 1", n.BootCount)
	}
	want := " host-" + n.ID.String() + ".lab "
	if n.Hostname != want {
		t.Fatalf("Hostname = %q, want %q", n.Hostname, want)
	}
	if n.RootPassword != "secret" {
		t.Fatalf("RootPassword = %q, want secret", n.RootPassword)
	}
}

func TestBindNoPolicyChosenLeavesNodeUntouched(t *testing.T) {
	n := &Node{ID: uuid.New()}
	b := NewBinder(&fakeTagMatcher{}, &fakeCatalogue{policy: nil}, &fakeQueue{})

	bound, err := b.MatchAndBind(context.Background(), n)
	if err != nil {
		t.Fatalf("MatchAndBind() error = %v", err)
	}
	if bound {
		t.Fatal("MatchAndBind() bound = true, want false")
	}
	if n.Policy != nil {
		t.Fatalf("Policy = %v, want nil", n.Policy)
	}
}

func TestBindMergesNodeMetadataWithoutOverwriting(t *testing.T) {
	n := &Node{ID: uuid.New(), Metadata: map[string]any{"k": "v0"}}
	policy := &Policy{Name: "p1", HostnamePattern: "h-${id}", NodeMetadata: map[string]any{"k": "v1", "other": "x"}}
	queue := &fakeQueue{}
	b := NewBinder(&fakeTagMatcher{}, &fakeCatalogue{policy: policy}, queue)

	if _, err := b.MatchAndBind(context.Background(), n); err != nil {
		t.Fatalf("MatchAndBind() error = %v", err)
	}
	if n.Metadata["k"] != "v0" {
		t.Fatalf("Metadata[k] = %v, want v0 (preserved)", n.Metadata["k"])
	}
	if n.Metadata["other"] != "x" {
		t.Fatalf("Metadata[other] = %v, want x", n.Metadata["other"])
	}
	if len(queue.published) != 1 || queue.published[0].Message["kind"] != SignalEvalTags {
		t.Fatalf("expected one eval_tags publish, got %v", queue.published)
	}
}

func TestMatchAndBindPropagatesRuleEvaluationError(t *testing.T) {
	n := &Node{ID: uuid.New()}
	b := NewBinder(&fakeTagMatcher{err: errBoom}, &fakeCatalogue{}, &fakeQueue{})

	_, err := b.MatchAndBind(context.Background(), n)
	if _, ok := err.(*RuleEvaluationError); !ok {
		t.Fatalf("MatchAndBind() error = %v, want *RuleEvaluationError", err)
	}
}
