package node

import "context"

// StageFinished is the stage name that seals a node's install state.
const StageFinished = "finished"

// StageDone records the completion of a provisioning stage. When name
// is "finished" and the node carries a policy, boot_count is
// incremented on the in-memory node before installed/installed_at are
// set, and both changes are written in the same save.
func StageDone(ctx context.Context, store Store, n *Node, name string) error {
	return store.WithTx(ctx, func(ctx context.Context) error {
		if name == StageFinished && n.Policy != nil {
			n.BootCount++
			policyName := n.Policy.Name
			n.Installed = &policyName
			now := nowFunc()
			n.InstalledAt = &now
		}
		return store.Save(ctx, n)
	})
}
