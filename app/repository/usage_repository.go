package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/swifttools/SwiftTools/app/models"
)

// usageRepository implements the UsageRepository interface
type usageRepository struct {
	db *gorm.DB
}

// NewUsageRepository creates a new usage ledger repository instance
func NewUsageRepository(db *gorm.DB) UsageRepository {
	return &usageRepository{db: db}
}

// Create writes the initial ledger row for a processing attempt
func (r *usageRepository) Create(record *models.UsageRecord) error {
	return r.db.Create(record).Error
}

// GetByID retrieves a usage record by its ID
func (r *usageRepository) GetByID(id uint) (*models.UsageRecord, error) {
	var record models.UsageRecord
	err := r.db.First(&record, id).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetByUUID retrieves a usage record by its public UUID
func (r *usageRepository) GetByUUID(uuid string) (*models.UsageRecord, error) {
	var record models.UsageRecord
	err := r.db.Where("uuid = ?", uuid).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetByUserID lists a user's records, newest first
func (r *usageRepository) GetByUserID(userID uint, offset, limit int) ([]models.UsageRecord, error) {
	var records []models.UsageRecord
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&records).Error
	return records, err
}

// UpdateStatus advances a record's lifecycle state. The WHERE predicate
// repeats the monotonic rule so a concurrent or replayed update can never
// regress a record that already moved on.
func (r *usageRepository) UpdateStatus(id uint, status string) error {
	record, err := r.GetByID(id)
	if err != nil {
		return err
	}
	if !models.CanTransitionUsageStatus(record.Status, status) {
		return fmt.Errorf("invalid usage status transition %s -> %s", record.Status, status)
	}

	result := r.db.Model(&models.UsageRecord{}).
		Where("id = ? AND status = ?", id, record.Status).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("usage record %d changed concurrently, status not updated", id)
	}
	return nil
}

// SetCompleted marks a record completed and stores the result location
func (r *usageRepository) SetCompleted(id uint, resultURL string) error {
	record, err := r.GetByID(id)
	if err != nil {
		return err
	}
	if !models.CanTransitionUsageStatus(record.Status, models.UsageStatusCompleted) {
		return fmt.Errorf("invalid usage status transition %s -> %s", record.Status, models.UsageStatusCompleted)
	}

	result := r.db.Model(&models.UsageRecord{}).
		Where("id = ? AND status = ?", id, record.Status).
		Updates(map[string]interface{}{
			"status":     models.UsageStatusCompleted,
			"result_url": resultURL,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("usage record %d changed concurrently, status not updated", id)
	}
	return nil
}

// CountByUserID returns how many processing attempts a user has made
func (r *usageRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.UsageRecord{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
