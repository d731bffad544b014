package node

import "context"

// ModifyMetadata applies an administrative metadata mutation to n and
// persists it. clear wipes metadata first; update then merges in
// accordance with noReplace (existing keys preserved regardless of
// their stored value when noReplace is true — only an absent key counts
// as empty). Any change emits an eval_tags signal to the background
// queue once the enclosing transaction commits.
func ModifyMetadata(ctx context.Context, store Store, queue BackgroundQueue, n *Node, update map[string]any, noReplace bool, clear bool) error {
	return store.WithTx(ctx, func(ctx context.Context) error {
		changed := false

		if clear {
			if len(n.Metadata) > 0 {
				n.Metadata = map[string]any{}
				changed = true
			}
		}

		if len(update) > 0 {
			merged, didChange := mergeMetadata(n.Metadata, update, noReplace)
			n.Metadata = merged
			if didChange {
				changed = true
			}
		}

		if !changed {
			return nil
		}

		if err := store.Save(ctx, n); err != nil {
			return err
		}
		if queue != nil {
			if err := queue.Publish(ctx, n.ID.String(), map[string]any{"kind": SignalEvalTags}); err != nil {
				return err
			}
		}
		return nil
	})
}

// mergeMetadata merges update into dst, returning the resulting map and
// whether it changed. When noReplace is true, a key already present in
// dst is left untouched regardless of its stored value, including an
// empty string. Only the absence of the key permits the incoming value
// to be written.
func mergeMetadata(dst map[string]any, update map[string]any, noReplace bool) (map[string]any, bool) {
	if dst == nil {
		dst = map[string]any{}
	}
	changed := false
	for k, v := range update {
		if noReplace {
			if _, present := dst[k]; present {
				continue
			}
		}
		if existing, present := dst[k]; present && existing == v {
			continue
		}
		dst[k] = v
		changed = true
	}
	return dst, changed
}
