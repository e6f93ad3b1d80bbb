package controllers

import (
	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/swifttools/SwiftTools/app/repository"
	"github.com/swifttools/SwiftTools/internal/pkg/usercontext"
)

// UserController serves the account-facing endpoints: profile and the
// usage history backing the dashboard.
type UserController struct {
	users repository.UserRepository
	usage repository.UsageRepository
}

func NewUserController(users repository.UserRepository, usage repository.UsageRepository) *UserController {
	return &UserController{users: users, usage: usage}
}

// HandleProfile returns the authenticated user's account data including
// the current credit balance
func (uc *UserController) HandleProfile(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	user, err := uc.users.GetByID(userCtx.UserID)
	if err != nil {
		fiberlog.Errorf("[User] Profile lookup failed for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Profile lookup failed"})
	}

	return c.JSON(fiber.Map{
		"id":        user.ID,
		"name":      user.Name,
		"email":     user.Email,
		"role":      user.Role,
		"plan":      user.Plan,
		"credits":   user.Credits,
		"unlimited": user.HasUnlimitedUsage(),
	})
}

// HandleUsage lists the user's usage ledger, newest first, paginated
// via ?page= and ?limit=
func (uc *UserController) HandleUsage(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	records, err := uc.usage.GetByUserID(userCtx.UserID, (page-1)*limit, limit)
	if err != nil {
		fiberlog.Errorf("[User] Usage listing failed for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Usage listing failed"})
	}
	total, err := uc.usage.CountByUserID(userCtx.UserID)
	if err != nil {
		fiberlog.Errorf("[User] Usage count failed for user %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Usage listing failed"})
	}

	return c.JSON(fiber.Map{
		"records": records,
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}
