// Package node implements the node identity, matching, and lifecycle
// core: canonicalizing hardware descriptors, resolving incoming
// descriptors to a persisted node, processing checkins, binding
// policies, and reconciling power state.
package node

import (
	"time"

	"github.com/google/uuid"
)

// PowerState is one of the three states a node's power can be known or
// desired to be in.
type PowerState string

const (
	PowerOn      PowerState = "on"
	PowerOff     PowerState = "off"
	PowerUnknown PowerState = "unknown"
)

// Tag is a reference to a boolean expression evaluated against a node's
// facts and metadata by the external TagMatcher.
type Tag struct {
	Name string
}

// Policy is a reference to a selector plus installer configuration that
// may be bound to a Node by the PolicyCatalogue.
type Policy struct {
	Name            string
	HostnamePattern string
	RootPassword    string
	NodeMetadata    map[string]any
}

// Node is the central entity: a physical machine identified by a
// canonical hardware fingerprint, its latest fact snapshot, and its
// provisioning lifecycle state.
type Node struct {
	ID   uuid.UUID
	Name string

	HwInfo  []string
	DHCPMAC string

	Facts    map[string]any
	Metadata map[string]any

	Policy *Policy

	Installed   *string
	InstalledAt *time.Time

	Hostname     string
	RootPassword string

	BootCount int

	LastCheckin             *time.Time
	LastPowerStateUpdateAt  *time.Time
	DesiredPowerState       PowerState
	LastKnownPowerState     PowerState

	IPMIHostname string
	IPMIUsername string
	IPMIPassword string

	Tags []Tag

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasTag reports whether the node currently carries a tag of the given
// name.
func (n *Node) HasTag(name string) bool {
	for _, t := range n.Tags {
		if t.Name == name {
			return true
		}
	}
	return false
}

// NodeLogEntry is one entry of a node's append-only event log. Payload
// carries recognised keys (severity, msg, error, action, event) plus
// arbitrary additional fields.
type NodeLogEntry struct {
	ID        int64
	NodeID    uuid.UUID
	Severity  string
	Payload   map[string]any
	Timestamp time.Time
}
