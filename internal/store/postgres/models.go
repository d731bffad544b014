package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"rackd/internal/node"
	"rackd/internal/secret"
)

type nodeModel struct {
	ID               uuid.UUID         `gorm:"type:uuid;primaryKey"`
	Name             string            `gorm:"type:text;uniqueIndex;not null"`
	HwInfo           textArray         `gorm:"type:text[];not null;column:hw_info"`
	DHCPMAC          string            `gorm:"type:text;column:dhcp_mac"`
	Facts            datatypes.JSONMap `gorm:"type:jsonb"`
	NodeMetadata     datatypes.JSONMap `gorm:"type:jsonb;column:node_metadata"`
	Tags             textArray         `gorm:"type:text[]"`
	PolicyName       string            `gorm:"type:text;column:policy_name"`
	HostnamePattern  string            `gorm:"type:text;column:policy_hostname_pattern"`
	PolicyRootPass   string            `gorm:"type:text;column:policy_root_password"`
	IPMIHostname     string            `gorm:"type:text;column:ipmi_hostname"`
	IPMIUsername     string            `gorm:"type:text;column:ipmi_username"`
	IPMIPasswordSeal string            `gorm:"type:text;column:ipmi_password_sealed"`
	Hostname         string            `gorm:"type:text"`
	RootPassword     string            `gorm:"type:text;column:root_password"`
	Installed        *string           `gorm:"type:text"`
	InstalledAt      *time.Time        `gorm:"type:timestamptz"`
	BootCount        int               `gorm:"type:integer;not null;default:0;column:boot_count"`
	LastCheckin      *time.Time        `gorm:"type:timestamptz;column:last_checkin"`
	LastPowerUpdate  *time.Time        `gorm:"type:timestamptz;column:last_power_state_update_at"`
	DesiredPower     string            `gorm:"type:text;column:desired_power_state"`
	LastKnownPower   string            `gorm:"type:text;column:last_known_power_state"`
	CreatedAt        time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt        time.Time         `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

func (nodeModel) TableName() string { return "nodes" }

// toDomain converts the stored row to a domain Node. sealer may be nil,
// in which case sealed fields are passed through opaque (used by tests
// that never decrypt, and by any component configured without a
// sealing key).
func (m *nodeModel) toDomain(sealer *secret.Sealer) *node.Node {
	n := &node.Node{
		ID:                     m.ID,
		Name:                   m.Name,
		HwInfo:                 []string(m.HwInfo),
		DHCPMAC:                m.DHCPMAC,
		Facts:                  mapFromJSONMap(m.Facts),
		Metadata:               mapFromJSONMap(m.NodeMetadata),
		Installed:              m.Installed,
		InstalledAt:            m.InstalledAt,
		Hostname:               m.Hostname,
		RootPassword:           openSealed(sealer, m.RootPassword),
		BootCount:              m.BootCount,
		LastCheckin:            m.LastCheckin,
		LastPowerStateUpdateAt: m.LastPowerUpdate,
		DesiredPowerState:      node.PowerState(orUnknown(m.DesiredPower)),
		LastKnownPowerState:    node.PowerState(orUnknown(m.LastKnownPower)),
		IPMIHostname:           m.IPMIHostname,
		IPMIUsername:           m.IPMIUsername,
		IPMIPassword:           openSealed(sealer, m.IPMIPasswordSeal),
		CreatedAt:              m.CreatedAt,
		UpdatedAt:              m.UpdatedAt,
	}
	for _, t := range m.Tags {
		n.Tags = append(n.Tags, node.Tag{Name: t})
	}
	if m.PolicyName != "" {
		n.Policy = &node.Policy{
			Name:            m.PolicyName,
			HostnamePattern: m.HostnamePattern,
			RootPassword:    m.PolicyRootPass,
		}
	}
	return n
}

// fromDomain converts a domain Node to a row for writing. ipmi_password
// and root_password are sealed before they ever reach the database.
func fromDomain(n *node.Node, sealer *secret.Sealer) (*nodeModel, error) {
	sealedRoot, err := sealSecret(sealer, n.RootPassword)
	if err != nil {
		return nil, fmt.Errorf("seal root_password: %w", err)
	}
	sealedIPMI, err := sealSecret(sealer, n.IPMIPassword)
	if err != nil {
		return nil, fmt.Errorf("seal ipmi_password: %w", err)
	}

	m := &nodeModel{
		ID:               n.ID,
		Name:             n.Name,
		HwInfo:           textArray(n.HwInfo),
		DHCPMAC:          n.DHCPMAC,
		Facts:            jsonMapFrom(n.Facts),
		NodeMetadata:     jsonMapFrom(n.Metadata),
		Installed:        n.Installed,
		InstalledAt:      n.InstalledAt,
		Hostname:         n.Hostname,
		RootPassword:     sealedRoot,
		BootCount:        n.BootCount,
		LastCheckin:      n.LastCheckin,
		LastPowerUpdate:  n.LastPowerStateUpdateAt,
		DesiredPower:     string(n.DesiredPowerState),
		LastKnownPower:   string(n.LastKnownPowerState),
		IPMIHostname:     n.IPMIHostname,
		IPMIUsername:     n.IPMIUsername,
		IPMIPasswordSeal: sealedIPMI,
		CreatedAt:        n.CreatedAt,
		UpdatedAt:        n.UpdatedAt,
	}
	for _, t := range n.Tags {
		m.Tags = append(m.Tags, t.Name)
	}
	if n.Policy != nil {
		m.PolicyName = n.Policy.Name
		m.HostnamePattern = n.Policy.HostnamePattern
		m.PolicyRootPass = n.Policy.RootPassword
	}
	return m, nil
}

func sealSecret(sealer *secret.Sealer, plaintext string) (string, error) {
	if sealer == nil || plaintext == "" {
		return plaintext, nil
	}
	return sealer.Seal(plaintext)
}

func openSealed(sealer *secret.Sealer, sealed string) string {
	if sealer == nil || sealed == "" {
		return sealed
	}
	opened, err := sealer.Open(sealed)
	if err != nil {
		return sealed
	}
	return opened
}

func orUnknown(s string) string {
	if s == "" {
		return string(node.PowerUnknown)
	}
	return s
}

type nodeLogModel struct {
	ID        int64             `gorm:"type:bigserial;primaryKey"`
	NodeID    uuid.UUID         `gorm:"type:uuid;not null;index;column:node_id"`
	Severity  string            `gorm:"type:text;not null"`
	Payload   datatypes.JSONMap `gorm:"type:jsonb"`
	Timestamp time.Time         `gorm:"type:timestamptz;not null;default:now()"`
}

func (nodeLogModel) TableName() string { return "node_log_entries" }

func (m *nodeLogModel) toDomain() *node.NodeLogEntry {
	return &node.NodeLogEntry{
		ID:        m.ID,
		NodeID:    m.NodeID,
		Severity:  m.Severity,
		Payload:   mapFromJSONMap(m.Payload),
		Timestamp: m.Timestamp,
	}
}

// logRow is scanned directly from a raw pgx query by scany, bypassing
// gorm for Store.Log's read path.
type logRow struct {
	ID        int64             `db:"id"`
	NodeID    uuid.UUID         `db:"node_id"`
	Severity  string            `db:"severity"`
	Payload   datatypes.JSONMap `db:"payload"`
	Timestamp time.Time         `db:"timestamp"`
}

func (r *logRow) toDomain() *node.NodeLogEntry {
	return &node.NodeLogEntry{
		ID:        r.ID,
		NodeID:    r.NodeID,
		Severity:  r.Severity,
		Payload:   mapFromJSONMap(r.Payload),
		Timestamp: r.Timestamp,
	}
}

// mapFromJSONMap and jsonMapFrom convert between gorm's datatypes.JSONMap
// and the plain map[string]any the node package operates on.
func mapFromJSONMap(m datatypes.JSONMap) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func jsonMapFrom(m map[string]any) datatypes.JSONMap {
	if m == nil {
		return nil
	}
	out := make(datatypes.JSONMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
