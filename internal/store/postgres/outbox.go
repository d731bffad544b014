package postgres

import (
	"context"
	"log"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rackd/internal/node"
)

// OutboxQueue implements node.BackgroundQueue by writing signals into
// the outbox_signals table. When called inside a Store.WithTx callback
// it uses that transaction, so the write commits atomically with the
// node mutation that triggered it; a separate Drainer makes committed
// rows visible to the real background queue.
type OutboxQueue struct {
	store *Store
}

// NewOutboxQueue constructs an OutboxQueue bound to store, sharing its
// notion of "the current transaction" via context.
func NewOutboxQueue(store *Store) *OutboxQueue {
	return &OutboxQueue{store: store}
}

func (q *OutboxQueue) Publish(ctx context.Context, recipient string, message map[string]any) error {
	return q.store.db(ctx).Table("outbox_signals").Create(map[string]any{
		"recipient": recipient,
		"payload":   jsonMapFrom(message),
	}).Error
}

// Drainer polls outbox_signals for undispatched rows and forwards them
// to the real BackgroundQueue (the NATS-backed bus), marking each row
// dispatched in the same transaction as the publish. This is the
// consumer side of the transactional outbox: it only ever sees rows
// whose producing transaction has already committed.
type Drainer struct {
	ORM       *gorm.DB
	Target    node.BackgroundQueue
	BatchSize int
	Logger    *log.Logger
}

// NewDrainer constructs a Drainer forwarding committed outbox rows to
// target in batches of batchSize.
func NewDrainer(orm *gorm.DB, target node.BackgroundQueue, batchSize int, logger *log.Logger) *Drainer {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Drainer{ORM: orm, Target: target, BatchSize: batchSize, Logger: logger}
}

// DrainOnce dispatches one batch of undispatched rows and returns how
// many it dispatched.
func (d *Drainer) DrainOnce(ctx context.Context) (int, error) {
	dispatched := 0
	err := d.ORM.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var models []nodeOutboxRowModel
		if err := tx.Table("outbox_signals").
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("dispatched_at IS NULL").
			Order("id").
			Limit(d.BatchSize).
			Find(&models).Error; err != nil {
			return err
		}

		for _, m := range models {
			if err := d.Target.Publish(ctx, m.Recipient, mapFromJSONMap(m.Payload)); err != nil {
				if d.Logger != nil {
					d.Logger.Printf("outbox: failed to dispatch signal %d to %s: %v", m.ID, m.Recipient, err)
				}
				continue
			}
			now := time.Now()
			if err := tx.Table("outbox_signals").Where("id = ?", m.ID).Update("dispatched_at", now).Error; err != nil {
				return err
			}
			dispatched++
		}
		return nil
	})
	return dispatched, err
}

// Run polls DrainOnce every interval until ctx is cancelled.
func (d *Drainer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.DrainOnce(ctx); err != nil && d.Logger != nil {
				d.Logger.Printf("outbox: drain error: %v", err)
			}
		}
	}
}

type nodeOutboxRowModel struct {
	ID        int64
	Recipient string
	Payload   datatypes.JSONMap
}
