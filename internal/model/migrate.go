package model

import "gorm.io/gorm"

// AutoMigrate runs GORM auto-migration for the audit trail.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&AuditEntry{}); err != nil {
		return err
	}

	// Listing is always newest first, optionally per actor.
	return db.Exec(
		"CREATE INDEX IF NOT EXISTS idx_audit_entries_actor_created " +
			"ON audit_entries (actor_id, created_at DESC)",
	).Error
}
