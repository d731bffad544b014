package node

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistence contract C3-C7 are built against: relational
// persistence with overlap queries over hw_info, row-level locking, and
// a transactional unit of work. Concrete implementations live outside
// this package (see internal/store/postgres).
type Store interface {
	// Overlap returns every node whose hw_info shares at least one entry
	// with hwMatch, reflecting all committed saves/creates/destroys.
	Overlap(ctx context.Context, hwMatch []string) ([]*Node, error)

	// Create persists a new node with the given canonical hw_info and
	// optional dhcp_mac, assigning id and name.
	Create(ctx context.Context, hwInfo []string, dhcpMAC string) (*Node, error)

	// Get retrieves a node by id, taking a row-level lock suitable for
	// serializing concurrent checkins against the same node.
	Get(ctx context.Context, id uuid.UUID) (*Node, error)

	Save(ctx context.Context, n *Node) error
	Destroy(ctx context.Context, n *Node) error

	// MoveLog reassigns every log entry from one node to another,
	// preserving timestamps, for use by the fact/firmware merge.
	MoveLog(ctx context.Context, from, to uuid.UUID) error

	AppendLog(ctx context.Context, entry *NodeLogEntry) error
	Log(ctx context.Context, nodeID uuid.UUID) ([]*NodeLogEntry, error)

	// Search returns nodes whose hostname matches the given regex pattern
	// and whose hw_info contains every key=value pair in hwInfo. The
	// literal-substring fallback for an invalid regex is applied by the
	// package-level Search before the pattern reaches the store.
	Search(ctx context.Context, hostnamePattern string, hwInfo map[string]string) ([]*Node, error)

	// WithTx runs fn within a single transaction; any signals the fn
	// enqueues via a BackgroundQueue passed through its context become
	// visible to consumers only after the transaction commits.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TagMatcher evaluates tag expressions against a node's facts and
// metadata. It is an external collaborator; this package never
// interprets the expressions themselves.
type TagMatcher interface {
	Match(ctx context.Context, n *Node) ([]Tag, error)
}

// PolicyCatalogue chooses the first policy whose selector matches a
// node's tag set.
type PolicyCatalogue interface {
	Bind(ctx context.Context, n *Node) (*Policy, error)
}

// ManagementChannel is the remote (IPMI-style) power transport.
type ManagementChannel interface {
	On(ctx context.Context, n *Node) (bool, error)
	Power(ctx context.Context, n *Node, on bool) error
	Reset(ctx context.Context, n *Node) error
}

// BackgroundQueue delivers signals to a durable worker pool at-least-
// once, without ordering guarantees. The worker decides retry policy.
type BackgroundQueue interface {
	Publish(ctx context.Context, recipient string, message map[string]any) error
}

// Signal kinds published to the BackgroundQueue.
const (
	SignalEvalTags    = "eval_tags"
	SignalPowerToggle = "power_toggle"
)

// Config carries the subset of configuration that affects this core's
// behaviour, independent of how it was loaded (env, file, defaults).
type Config struct {
	// MatchNodesOn is the non-empty subset of HwInfoKeys used for
	// overlap matching.
	MatchNodesOn []string

	// MatchNodesOnFacts is a list of regex patterns; facts whose name
	// matches any of them become fact_* hw_info entries.
	MatchNodesOnFacts []string

	// FactsBlacklist is a list of regex-or-literal patterns over fact
	// names that must be dropped on checkin.
	FactsBlacklist []string

	// ProtectNewNodes gates whether newly created nodes are pre-marked
	// installed to shield them from reprovisioning.
	ProtectNewNodes bool

	// HwInfoKeys is the closed set of legal non-fact hardware keys.
	HwInfoKeys map[string]bool
}
