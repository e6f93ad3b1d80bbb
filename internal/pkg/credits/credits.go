package credits

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/swifttools/SwiftTools/app/models"
)

// ErrInsufficientCredits is returned when a metered account cannot cover
// the requested deduction. The rejection has no side effects.
var ErrInsufficientCredits = errors.New("insufficient credits")

// Gate is the credit account contract consumed by the submission path.
// Deduct must run and succeed before any ledger record or job is created.
type Gate interface {
	Deduct(ctx context.Context, userID uint, amount int) (*models.User, error)
}

// DBGate deducts credits against the users table.
type DBGate struct {
	db *gorm.DB
}

// NewDBGate creates a database-backed credit gate
func NewDBGate(db *gorm.DB) *DBGate {
	return &DBGate{db: db}
}

// Deduct atomically removes amount credits from the user's balance.
// Unlimited-tier accounts (admin role, top plan) pass through unchanged.
// The conditional UPDATE guards the balance so concurrent submissions
// from the same owner can never drive it negative.
func (g *DBGate) Deduct(ctx context.Context, userID uint, amount int) (*models.User, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("deduction amount must be positive, got %d", amount)
	}

	var user models.User
	if err := g.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", userID, err)
	}

	if user.HasUnlimitedUsage() {
		return &user, nil
	}

	result := g.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND credits >= ?", userID, amount).
		UpdateColumn("credits", gorm.Expr("credits - ?", amount))
	if result.Error != nil {
		return nil, fmt.Errorf("failed to deduct credits for user %d: %w", userID, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrInsufficientCredits
	}

	user.Credits -= amount
	return &user, nil
}
