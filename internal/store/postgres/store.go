package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"

	"rackd/internal/node"
	"rackd/internal/secret"
)

// Store implements node.Store over gorm (for model CRUD and the
// array-overlap/search queries) and a raw pgx pool (for the append-only
// node log, read with scany instead of a gorm model since nothing about
// that read path needs gorm's change tracking). Sealer, if set, seals
// ipmi_password and root_password before they are written and opens
// them on read; a nil Sealer passes credential fields through opaque.
type Store struct {
	ORM    *gorm.DB
	Pool   *pgxpool.Pool
	Sealer *secret.Sealer
}

// New constructs a Store bound to the given gorm connection and pgx
// pool. pool may be nil, in which case Log falls back to gorm. sealer
// may be nil.
func New(orm *gorm.DB, pool *pgxpool.Pool, sealer *secret.Sealer) *Store {
	return &Store{ORM: orm, Pool: pool, Sealer: sealer}
}

type txKeyType struct{}

var txKey = txKeyType{}

func (s *Store) db(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey).(*gorm.DB); ok {
		return tx
	}
	return s.ORM.WithContext(ctx)
}

// WithTx runs fn within a single gorm transaction. Any outbox rows
// written via OutboxQueue.Publish inside fn are committed atomically
// with the node mutation and only become visible to the drainer once
// this transaction commits.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.ORM.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey, tx))
	})
}

// Overlap returns every node whose hw_info shares at least one entry
// with hwMatch, using Postgres's array-overlap operator.
func (s *Store) Overlap(ctx context.Context, hwMatch []string) ([]*node.Node, error) {
	if len(hwMatch) == 0 {
		return nil, nil
	}
	var rows []nodeModel
	if err := s.db(ctx).
		Where("hw_info && ?", textArray(hwMatch)).
		Order("name").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*node.Node, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain(s.Sealer))
	}
	return out, nil
}

// Create persists a new node. name is not supplied by the caller: Create
// reads the next value of the nodes_name_seq sequence and sets name to
// "node-<n>" itself before the insert; the column has no default or
// trigger of its own.
func (s *Store) Create(ctx context.Context, hwInfo []string, dhcpMAC string) (*node.Node, error) {
	m := &nodeModel{
		ID:             uuid.New(),
		HwInfo:         textArray(hwInfo),
		DHCPMAC:        dhcpMAC,
		DesiredPower:   string(node.PowerUnknown),
		LastKnownPower: string(node.PowerUnknown),
	}
	var seq int64
	if err := s.db(ctx).Raw("SELECT nextval('nodes_name_seq')").Scan(&seq).Error; err != nil {
		return nil, err
	}
	m.Name = fmt.Sprintf("node-%d", seq)

	n := m.toDomain(s.Sealer)
	if err := n.Validate(); err != nil {
		return nil, err
	}

	if err := s.db(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return n, nil
}

// Get retrieves a node by id with a row-level lock, serializing
// concurrent checkins against the same node.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*node.Node, error) {
	var m nodeModel
	err := s.db(ctx).Clauses(lockingClause()).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return m.toDomain(s.Sealer), nil
}

func (s *Store) Save(ctx context.Context, n *node.Node) error {
	if err := n.Validate(); err != nil {
		return err
	}
	m, err := fromDomain(n, s.Sealer)
	if err != nil {
		return err
	}
	return s.db(ctx).Save(m).Error
}

func (s *Store) Destroy(ctx context.Context, n *node.Node) error {
	return s.db(ctx).Delete(&nodeModel{}, "id = ?", n.ID).Error
}

func (s *Store) MoveLog(ctx context.Context, from, to uuid.UUID) error {
	return s.db(ctx).Model(&nodeLogModel{}).
		Where("node_id = ?", from).
		Update("node_id", to).Error
}

func (s *Store) AppendLog(ctx context.Context, entry *node.NodeLogEntry) error {
	m := &nodeLogModel{
		NodeID:   entry.NodeID,
		Severity: entry.Severity,
		Payload:  jsonMapFrom(entry.Payload),
	}
	if !entry.Timestamp.IsZero() {
		m.Timestamp = entry.Timestamp
	}
	if err := s.db(ctx).Create(m).Error; err != nil {
		return err
	}
	entry.ID = m.ID
	return nil
}

// Log returns a node's entries in chronological order. It reads through
// the raw pgx pool with scany rather than gorm: the log is append-only
// and read in bulk, so there is no model to track changes on.
func (s *Store) Log(ctx context.Context, nodeID uuid.UUID) ([]*node.NodeLogEntry, error) {
	if s.Pool == nil {
		return s.logViaGorm(ctx, nodeID)
	}

	var rows []logRow
	err := pgxscan.Select(ctx, s.Pool, &rows,
		`SELECT id, node_id, severity, payload, "timestamp" FROM node_log_entries WHERE node_id = $1 ORDER BY "timestamp" ASC`,
		nodeID)
	if err != nil {
		return nil, fmt.Errorf("select node log: %w", err)
	}

	out := make([]*node.NodeLogEntry, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (s *Store) logViaGorm(ctx context.Context, nodeID uuid.UUID) ([]*node.NodeLogEntry, error) {
	var rows []nodeLogModel
	if err := s.db(ctx).Where("node_id = ?", nodeID).Order("timestamp asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*node.NodeLogEntry, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

// Search returns nodes whose hostname matches hostnamePattern (already
// resolved to a regex or literal by the caller) and whose hw_info
// contains every key=value pair in hwInfo, ANDed.
func (s *Store) Search(ctx context.Context, hostnamePattern string, hwInfo map[string]string) ([]*node.Node, error) {
	q := s.db(ctx).Model(&nodeModel{})
	if hostnamePattern != "" {
		q = q.Where("hostname ~* ?", hostnamePattern)
	}
	for k, v := range hwInfo {
		q = q.Where("hw_info && ?", textArray{k + "=" + v})
	}
	var rows []nodeModel
	if err := q.Order("name").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*node.Node, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain(s.Sealer))
	}
	return out, nil
}
