package controllers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swifttools/SwiftTools/app/models"
	"github.com/swifttools/SwiftTools/internal/pkg/usercontext"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[uint]*models.User
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: map[uint]*models.User{}}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (r *fakeUserRepo) Create(user *models.User) error { return nil }

func (r *fakeUserRepo) GetByID(id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, errors.New("user not found")
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(email string) (*models.User, error) {
	return nil, errors.New("not implemented")
}

func (r *fakeUserRepo) GetByAPIKeyHash(hash string) (*models.User, error) {
	return nil, errors.New("not implemented")
}

func (r *fakeUserRepo) Update(user *models.User) error { return nil }

func (r *fakeUserRepo) TouchAPIKeyUsage(userID uint) error { return nil }

func (r *fakeUserRepo) Count() (int64, error) { return int64(len(r.users)), nil }

func newUserTestApp(uc *UserController, user usercontext.UserContext) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if user.UserID != 0 {
			usercontext.SetUserContext(c, user)
		}
		return c.Next()
	})
	app.Get("/api/v1/user/profile", uc.HandleProfile)
	app.Get("/api/v1/usage", uc.HandleUsage)
	return app
}

func TestHandleProfile(t *testing.T) {
	users := newFakeUserRepo(&models.User{
		ID:      1,
		Name:    "testuser",
		Email:   "test@example.com",
		Role:    models.ROLE_USER,
		Plan:    models.PlanPremium,
		Credits: 42,
	})
	uc := NewUserController(users, newFakeUsageRepo())
	app := newUserTestApp(uc, usercontext.UserContext{UserID: 1, IsLoggedIn: true})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user/profile", nil)
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeJSON(t, resp)
	assert.Equal(t, "testuser", body["name"])
	assert.Equal(t, models.PlanPremium, body["plan"])
	assert.Equal(t, float64(42), body["credits"])
	assert.Equal(t, false, body["unlimited"])
}

func TestHandleProfileRequiresAuth(t *testing.T) {
	uc := NewUserController(newFakeUserRepo(), newFakeUsageRepo())
	app := newUserTestApp(uc, usercontext.UserContext{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user/profile", nil)
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleUsageListsOwnRecords(t *testing.T) {
	usage := newFakeUsageRepo()
	require.NoError(t, usage.Create(&models.UsageRecord{UUID: "a", UserID: 1, ToolName: "image-resizer", Status: models.UsageStatusCompleted}))
	require.NoError(t, usage.Create(&models.UsageRecord{UUID: "b", UserID: 1, ToolName: "pdf-compressor", Status: models.UsageStatusQueued}))
	require.NoError(t, usage.Create(&models.UsageRecord{UUID: "c", UserID: 2, ToolName: "image-favicon", Status: models.UsageStatusFailed}))

	uc := NewUserController(newFakeUserRepo(&models.User{ID: 1}), usage)
	app := newUserTestApp(uc, usercontext.UserContext{UserID: 1, IsLoggedIn: true})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/usage", nil)
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeJSON(t, resp)
	records, ok := body["records"].([]interface{})
	require.True(t, ok)
	assert.Len(t, records, 2)
	assert.Equal(t, float64(2), body["total"])
	assert.Equal(t, float64(1), body["page"])
}
