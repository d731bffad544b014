package node

import "context"

// NoopTagMatcher matches no tags. It is the default TagMatcher used
// when no real rule engine is configured, so the daemon can still run
// and leave tag assignment to an operator via modify_metadata.
type NoopTagMatcher struct{}

func (NoopTagMatcher) Match(ctx context.Context, n *Node) ([]Tag, error) { return nil, nil }

// NoopPolicyCatalogue never selects a policy. It is the default
// PolicyCatalogue used when no real catalogue is configured.
type NoopPolicyCatalogue struct{}

func (NoopPolicyCatalogue) Bind(ctx context.Context, n *Node) (*Policy, error) { return nil, nil }

// NoopManagementChannel reports every node off and fails power
// operations. It is the default ManagementChannel used when no IPMI
// transport is configured.
type NoopManagementChannel struct{}

func (NoopManagementChannel) On(ctx context.Context, n *Node) (bool, error) { return false, nil }

func (NoopManagementChannel) Power(ctx context.Context, n *Node, on bool) error {
	return &ManagementError{Message: "no management channel configured"}
}

func (NoopManagementChannel) Reset(ctx context.Context, n *Node) error {
	return &ManagementError{Message: "no management channel configured"}
}
