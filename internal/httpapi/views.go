package httpapi

import (
	"time"

	"rackd/internal/node"
)

// nodeView is the wire shape for a Node. It deliberately omits
// ipmi_password and root_password; credentials never leave the
// process over this surface.
type nodeView struct {
	ID                     string         `json:"id"`
	Name                   string         `json:"name"`
	HwInfo                 []string       `json:"hw_info"`
	DHCPMAC                string         `json:"dhcp_mac,omitempty"`
	Facts                  map[string]any `json:"facts,omitempty"`
	Metadata               map[string]any `json:"metadata,omitempty"`
	PolicyName             string         `json:"policy_name,omitempty"`
	Installed              *string        `json:"installed"`
	InstalledAt            *time.Time     `json:"installed_at"`
	Hostname               string         `json:"hostname,omitempty"`
	BootCount              int            `json:"boot_count"`
	LastCheckin            *time.Time     `json:"last_checkin,omitempty"`
	DesiredPowerState      string         `json:"desired_power_state"`
	LastKnownPowerState    string         `json:"last_known_power_state"`
	LastPowerStateUpdateAt *time.Time     `json:"last_power_state_update_at,omitempty"`
	Tags                   []string       `json:"tags,omitempty"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
}

func toNodeView(n *node.Node) *nodeView {
	if n == nil {
		return nil
	}
	v := &nodeView{
		ID:                     n.ID.String(),
		Name:                   n.Name,
		HwInfo:                 n.HwInfo,
		DHCPMAC:                n.DHCPMAC,
		Facts:                  n.Facts,
		Metadata:               n.Metadata,
		Installed:              n.Installed,
		InstalledAt:            n.InstalledAt,
		Hostname:               n.Hostname,
		BootCount:              n.BootCount,
		LastCheckin:            n.LastCheckin,
		DesiredPowerState:      string(n.DesiredPowerState),
		LastKnownPowerState:    string(n.LastKnownPowerState),
		LastPowerStateUpdateAt: n.LastPowerStateUpdateAt,
		CreatedAt:              n.CreatedAt,
		UpdatedAt:              n.UpdatedAt,
	}
	if n.Policy != nil {
		v.PolicyName = n.Policy.Name
	}
	for _, t := range n.Tags {
		v.Tags = append(v.Tags, t.Name)
	}
	return v
}
