package model

import (
	"time"

	"gorm.io/gorm"
)

// AutoMigrate creates or updates the combat log table.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&CombatLog{})
}

// PruneCombatLogs deletes rows created before cutoff and reports how many
// went.
func PruneCombatLogs(db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.Where("created_at < ?", cutoff).Delete(&CombatLog{})
	return res.RowsAffected, res.Error
}
