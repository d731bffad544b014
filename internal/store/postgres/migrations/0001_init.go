package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

type Node struct {
	ID                     uuid.UUID         `gorm:"type:uuid;primaryKey"`
	Name                   string            `gorm:"type:text;uniqueIndex;not null"`
	HwInfo                 []string          `gorm:"type:text[];not null;column:hw_info"`
	DHCPMAC                string            `gorm:"type:text;column:dhcp_mac"`
	Facts                  datatypes.JSONMap `gorm:"type:jsonb"`
	NodeMetadata           datatypes.JSONMap `gorm:"type:jsonb;column:node_metadata"`
	Tags                   []string          `gorm:"type:text[]"`
	PolicyName             string            `gorm:"type:text;column:policy_name"`
	PolicyHostnamePattern  string            `gorm:"type:text;column:policy_hostname_pattern"`
	PolicyRootPassword     string            `gorm:"type:text;column:policy_root_password"`
	IPMIHostname           string            `gorm:"type:text;column:ipmi_hostname"`
	IPMIUsername           string            `gorm:"type:text;column:ipmi_username"`
	IPMIPasswordSealed     string            `gorm:"type:text;column:ipmi_password_sealed"`
	Hostname               string            `gorm:"type:text"`
	RootPassword           string            `gorm:"type:text;column:root_password"`
	Installed              *string           `gorm:"type:text"`
	InstalledAt            *time.Time        `gorm:"type:timestamptz"`
	BootCount              int               `gorm:"type:integer;not null;default:0;column:boot_count"`
	LastCheckin            *time.Time        `gorm:"type:timestamptz;column:last_checkin"`
	LastPowerStateUpdateAt *time.Time        `gorm:"type:timestamptz;column:last_power_state_update_at"`
	DesiredPowerState      string            `gorm:"type:text;column:desired_power_state"`
	LastKnownPowerState    string            `gorm:"type:text;column:last_known_power_state"`
	CreatedAt              time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt              time.Time         `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

type NodeLogEntry struct {
	ID        int64             `gorm:"type:bigserial;primaryKey"`
	NodeID    uuid.UUID         `gorm:"type:uuid;not null;index;column:node_id"`
	Severity  string            `gorm:"type:text;not null"`
	Payload   datatypes.JSONMap `gorm:"type:jsonb"`
	Timestamp time.Time         `gorm:"type:timestamptz;not null;default:now()"`
	Node      Node              `gorm:"foreignKey:NodeID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (NodeLogEntry) TableName() string { return "node_log_entries" }

// OutboxSignal backs the transactional outbox: a row is inserted in the
// same transaction as the node mutation that triggers it, and only
// becomes visible to the drainer once that transaction commits.
type OutboxSignal struct {
	ID           int64             `gorm:"type:bigserial;primaryKey"`
	Recipient    string            `gorm:"type:text;not null"`
	Payload      datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt    time.Time         `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	DispatchedAt *time.Time        `gorm:"type:timestamptz;column:dispatched_at"`
}

func (OutboxSignal) TableName() string { return "outbox_signals" }

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).AutoMigrate(
		&Node{},
		&NodeLogEntry{},
		&OutboxSignal{},
	); err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).Migrator().CreateConstraint(&NodeLogEntry{}, "Node"); err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).Exec(
		`CREATE SEQUENCE IF NOT EXISTS nodes_name_seq`,
	).Error; err != nil {
		return err
	}

	// GIN index for array-overlap (&&) identity matching on hw_info.
	if err := gormDB.WithContext(ctx).Exec(
		`CREATE INDEX IF NOT EXISTS idx_nodes_hw_info ON nodes USING gin (hw_info)`,
	).Error; err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).Exec(
		`CREATE INDEX IF NOT EXISTS idx_outbox_signals_undispatched ON outbox_signals (id) WHERE dispatched_at IS NULL`,
	).Error; err != nil {
		return err
	}

	return nil
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).Migrator().DropTable(
		&OutboxSignal{},
		&NodeLogEntry{},
		&Node{},
	); err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).Exec(`DROP SEQUENCE IF EXISTS nodes_name_seq`).Error; err != nil {
		return err
	}

	return nil
}
