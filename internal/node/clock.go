package node

import "time"

// nowFunc is indirected so tests can pin a deterministic clock.
var nowFunc = time.Now
