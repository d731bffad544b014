package node

import (
	"context"
	"testing"
)

func TestModifyMetadataNoReplacePreservesExisting(t *testing.T) {
	store := newFakeStore()
	n := newTestNode(store, []string{"mac=aa-bb-cc-dd-ee-01"})
	n.Metadata = map[string]any{"k": "v0"}
	_ = store.Save(context.Background(), n)

	if err := ModifyMetadata(context.Background(), store, nil, n, map[string]any{"k": "v1"}, true, false); err != nil {
		t.Fatalf("ModifyMetadata() error = %v", err)
	}
	if n.Metadata["k"] != "v0" {
		t.Fatalf("Metadata[k] = %v, want v0", n.Metadata["k"])
	}
}

func TestModifyMetadataWithoutNoReplaceOverwrites(t *testing.T) {
	store := newFakeStore()
	n := newTestNode(store, []string{"mac=aa-bb-cc-dd-ee-01"})
	n.Metadata = map[string]any{"k": "v0"}
	_ = store.Save(context.Background(), n)

	if err := ModifyMetadata(context.Background(), store, nil, n, map[string]any{"k": "v1"}, false, false); err != nil {
		t.Fatalf("ModifyMetadata() error = %v", err)
	}
	if n.Metadata["k"] != "v1" {
		t.Fatalf("Metadata[k] = %v, want v1", n.Metadata["k"])
	}
}

func TestModifyMetadataClear(t *testing.T) {
	store := newFakeStore()
	n := newTestNode(store, []string{"mac=aa-bb-cc-dd-ee-01"})
	n.Metadata = map[string]any{"k": "v0"}
	_ = store.Save(context.Background(), n)

	if err := ModifyMetadata(context.Background(), store, nil, n, nil, false, true); err != nil {
		t.Fatalf("ModifyMetadata() error = %v", err)
	}
	if len(n.Metadata) != 0 {
		t.Fatalf("Metadata = %v, want empty", n.Metadata)
	}
}

func TestModifyMetadataEmitsEvalTagsOnChange(t *testing.T) {
	store := newFakeStore()
	n := newTestNode(store, []string{"mac=aa-bb-cc-dd-ee-01"})
	queue := &fakeQueue{}

	if err := ModifyMetadata(context.Background(), store, queue, n, map[string]any{"k": "v1"}, false, false); err != nil {
		t.Fatalf("ModifyMetadata() error = %v", err)
	}
	if len(queue.published) != 1 || queue.published[0].Message["kind"] != SignalEvalTags {
		t.Fatalf("expected one eval_tags publish, got %v", queue.published)
	}
}

func TestModifyMetadataNoChangeNoPublish(t *testing.T) {
	store := newFakeStore()
	n := newTestNode(store, []string{"mac=aa-bb-cc-dd-ee-01"})
	n.Metadata = map[string]any{"k": "v0"}
	_ = store.Save(context.Background(), n)
	queue := &fakeQueue{}

	if err := ModifyMetadata(context.Background(), store, queue, n, map[string]any{"k": "v0"}, false, false); err != nil {
		t.Fatalf("ModifyMetadata() error = %v", err)
	}
	if len(queue.published) != 0 {
		t.Fatalf("expected no publish on no-op update, got %v", queue.published)
	}
}
