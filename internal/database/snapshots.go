package database

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertSnapshot writes a snapshot keyed by
// (integration_id, window_start, window_granularity), replacing the existing
// row for the same key. Callers are responsible for only invoking this while
// the window is still open; the aggregator enforces that.
func UpsertSnapshot(db *gorm.DB, snapshot *MetricSnapshot) error {
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "integration_id"},
			{Name: "window_start"},
			{Name: "window_granularity"},
		},
		UpdateAll: true,
	}).Create(snapshot).Error
}

// SnapshotByWindow fetches the snapshot for an exact window key, or
// gorm.ErrRecordNotFound.
func SnapshotByWindow(db *gorm.DB, integrationID uint, windowStart time.Time, granularity WindowGranularity) (*MetricSnapshot, error) {
	var snapshot MetricSnapshot
	err := db.Where("integration_id = ? AND window_start = ? AND window_granularity = ?",
		integrationID, windowStart, granularity).
		First(&snapshot).Error
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// SnapshotsSince returns an integration's snapshots from the given time
// onward, oldest first. An empty granularity matches every granularity.
func SnapshotsSince(db *gorm.DB, integrationID uint, granularity WindowGranularity, since time.Time) ([]MetricSnapshot, error) {
	query := db.Where("integration_id = ? AND window_start >= ?", integrationID, since)
	if granularity != "" {
		query = query.Where("window_granularity = ?", granularity)
	}

	var snapshots []MetricSnapshot
	err := query.Order("window_start ASC").Find(&snapshots).Error
	return snapshots, err
}

// LatestSnapshots batch-fetches the newest snapshot per integration across
// the given set in a single query, returning a map keyed by integration id.
// Rows arrive ordered so that the greatest window_start — and on a tie the
// most recently written row — lands last and wins the map slot.
func LatestSnapshots(db *gorm.DB, integrationIDs []uint, granularity WindowGranularity) (map[uint]*MetricSnapshot, error) {
	result := make(map[uint]*MetricSnapshot, len(integrationIDs))
	if len(integrationIDs) == 0 {
		return result, nil
	}

	sub := db.Model(&MetricSnapshot{}).
		Select("integration_id, MAX(window_start) AS max_window_start").
		Where("integration_id IN ? AND window_granularity = ?", integrationIDs, granularity).
		Group("integration_id")

	var snapshots []MetricSnapshot
	err := db.Model(&MetricSnapshot{}).
		Joins("JOIN (?) latest ON metric_snapshots.integration_id = latest.integration_id AND metric_snapshots.window_start = latest.max_window_start", sub).
		Where("metric_snapshots.window_granularity = ?", granularity).
		Order("metric_snapshots.updated_at ASC").
		Find(&snapshots).Error
	if err != nil {
		return nil, err
	}

	for i := range snapshots {
		result[snapshots[i].IntegrationID] = &snapshots[i]
	}
	return result, nil
}

// LatestClosedSnapshot returns the newest snapshot whose window has already
// ended, or gorm.ErrRecordNotFound. Health status derivation reads this, not
// the still-accumulating current window.
func LatestClosedSnapshot(db *gorm.DB, integrationID uint, granularity WindowGranularity, now time.Time) (*MetricSnapshot, error) {
	cutoff := now.Add(-granularity.Duration())
	var snapshot MetricSnapshot
	err := db.Where("integration_id = ? AND window_granularity = ? AND window_start <= ?",
		integrationID, granularity, cutoff).
		Order("window_start DESC").
		First(&snapshot).Error
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}
