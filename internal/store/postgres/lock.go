package postgres

import "gorm.io/gorm/clause"

// lockingClause requests a row-level lock on SELECT, serializing
// concurrent checkins against the same node (§5).
func lockingClause() clause.Locking {
	return clause.Locking{Strength: "UPDATE"}
}
