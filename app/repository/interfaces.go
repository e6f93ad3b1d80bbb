package repository

import (
	"github.com/swifttools/SwiftTools/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	Update(user *models.User) error
	TouchAPIKeyUsage(userID uint) error
	Count() (int64, error)
}

// UsageRepository defines the interface for the usage ledger. Every
// processing attempt creates exactly one record; status updates must obey
// the forward-only lifecycle (queued -> processing -> completed|failed).
type UsageRepository interface {
	Create(record *models.UsageRecord) error
	GetByID(id uint) (*models.UsageRecord, error)
	GetByUUID(uuid string) (*models.UsageRecord, error)
	GetByUserID(userID uint, offset, limit int) ([]models.UsageRecord, error)
	UpdateStatus(id uint, status string) error
	SetCompleted(id uint, resultURL string) error
	CountByUserID(userID uint) (int64, error)
}
