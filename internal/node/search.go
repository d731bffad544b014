package node

import (
	"context"
	"log"
	"regexp"
)

// Search resolves a hostname pattern to a regex when possible, falling
// back to literal substring matching when it fails to compile. The
// downgrade is traced so operators can see why a pattern behaved
// unexpectedly, then delegates to the store with all hw_info pairs
// ANDed in.
func Search(ctx context.Context, store Store, trace *log.Logger, hostnamePattern string, hwInfo map[string]string) ([]*Node, error) {
	pattern := hostnamePattern
	if pattern != "" {
		if _, err := regexp.Compile(pattern); err != nil {
			if trace != nil {
				trace.Printf("search: hostname pattern %q is not a valid regex (%v), falling back to literal substring", pattern, err)
			}
			pattern = regexp.QuoteMeta(pattern)
		}
	}
	return store.Search(ctx, pattern, hwInfo)
}
