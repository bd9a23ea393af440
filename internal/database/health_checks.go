package database

import (
	"time"

	"gorm.io/gorm"
)

// RecordHealthCheck appends a probe outcome and updates the integration's
// bookkeeping fields (consecutive failures, last check timestamps) in one
// transaction. The check row itself is never updated afterwards.
func RecordHealthCheck(db *gorm.DB, check *HealthCheck) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if check.CheckedAt.IsZero() {
			check.CheckedAt = time.Now().UTC()
		}
		if err := tx.Create(check).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"last_health_check": check.CheckedAt,
		}
		if check.Success {
			updates["consecutive_failures"] = 0
			updates["last_successful_check"] = check.CheckedAt
		} else {
			updates["consecutive_failures"] = gorm.Expr("consecutive_failures + 1")
		}
		return tx.Model(&Integration{}).Where("id = ?", check.IntegrationID).Updates(updates).Error
	})
}

// ChecksInWindow returns an integration's checks with
// window_start <= checked_at < window_end, ordered by time. Out-of-order or
// retried probe deliveries are tolerated because ordering happens here.
func ChecksInWindow(db *gorm.DB, integrationID uint, windowStart, windowEnd time.Time) ([]HealthCheck, error) {
	var checks []HealthCheck
	err := db.Where("integration_id = ? AND checked_at >= ? AND checked_at < ?",
		integrationID, windowStart, windowEnd).
		Order("checked_at ASC").
		Find(&checks).Error
	return checks, err
}

// RecentChecks returns the newest checks for an integration since the given
// time, newest first, capped at limit.
func RecentChecks(db *gorm.DB, integrationID uint, since time.Time, limit int) ([]HealthCheck, error) {
	var checks []HealthCheck
	err := db.Where("integration_id = ? AND checked_at >= ?", integrationID, since).
		Order("checked_at DESC").
		Limit(limit).
		Find(&checks).Error
	return checks, err
}
