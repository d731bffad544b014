package node

import "context"

// PowerReconciler implements C6: reading current power state from the
// management channel, comparing it to the desired state, and queueing a
// corrective action rather than acting in line.
type PowerReconciler struct {
	Store      Store
	Management ManagementChannel
	Queue      BackgroundQueue
}

// NewPowerReconciler constructs a PowerReconciler over the given store,
// management channel, and background queue.
func NewPowerReconciler(store Store, mgmt ManagementChannel, queue BackgroundQueue) *PowerReconciler {
	return &PowerReconciler{Store: store, Management: mgmt, Queue: queue}
}

// UpdatePowerState queries the management channel for the node's actual
// power state, persists it, and, if it disagrees with the desired
// state, enqueues a single toggle request rather than acting directly.
// The updated state is persisted regardless of whether the management
// channel call succeeded.
func (r *PowerReconciler) UpdatePowerState(ctx context.Context, n *Node) error {
	on, mgmtErr := r.Management.On(ctx, n)

	var saveErr error
	if mgmtErr != nil {
		n.LastKnownPowerState = PowerUnknown
	} else {
		if on {
			n.LastKnownPowerState = PowerOn
		} else {
			n.LastKnownPowerState = PowerOff
		}
		now := nowFunc()
		n.LastPowerStateUpdateAt = &now
	}

	if err := r.Store.WithTx(ctx, func(ctx context.Context) error {
		if mgmtErr == nil && n.DesiredPowerState != "" && n.DesiredPowerState != PowerUnknown &&
			n.LastKnownPowerState != PowerUnknown && n.LastKnownPowerState != n.DesiredPowerState {
			if r.Queue != nil {
				if err := r.Queue.Publish(ctx, n.ID.String(), map[string]any{
					"kind":  SignalPowerToggle,
					"state": string(n.DesiredPowerState),
				}); err != nil {
					saveErr = err
				}
			}
		}
		return r.Store.Save(ctx, n)
	}); err != nil {
		saveErr = err
	}

	if mgmtErr != nil {
		return &ManagementError{Message: "failed to read power state", Err: mgmtErr}
	}
	return saveErr
}

// Reboot, On, and Off are thin synchronous wrappers over the management
// channel.
func (r *PowerReconciler) Reboot(ctx context.Context, n *Node) error {
	if err := r.Management.Reset(ctx, n); err != nil {
		return &ManagementError{Message: "reset failed", Err: err}
	}
	return nil
}

func (r *PowerReconciler) On(ctx context.Context, n *Node) error {
	if err := r.Management.Power(ctx, n, true); err != nil {
		return &ManagementError{Message: "power on failed", Err: err}
	}
	return nil
}

func (r *PowerReconciler) Off(ctx context.Context, n *Node) error {
	if err := r.Management.Power(ctx, n, false); err != nil {
		return &ManagementError{Message: "power off failed", Err: err}
	}
	return nil
}
