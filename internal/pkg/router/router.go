package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/swifttools/SwiftTools/app/controllers"
	"github.com/swifttools/SwiftTools/internal/pkg/middleware"
)

// Controllers bundles the handler sets the router mounts
type Controllers struct {
	Tools *controllers.ToolsController
	User  *controllers.UserController
	Admin *controllers.AdminController
}

// InstallRouter mounts the API surface. Every route under /api/v1
// requires an API key; admin routes additionally require the admin role.
func InstallRouter(app *fiber.App, ctrl Controllers) {
	api := app.Group("/api/v1", middleware.APIKeyAuthMiddleware())

	tools := api.Group("/tools")
	tools.Post("/process", ctrl.Tools.HandleProcess)
	tools.Get("/status/:id", ctrl.Tools.HandleStatus)
	tools.Post("/process-direct", ctrl.Tools.HandleProcessDirect)

	user := api.Group("/user")
	user.Get("/profile", ctrl.User.HandleProfile)

	api.Get("/usage", ctrl.User.HandleUsage)

	admin := api.Group("/admin", middleware.AdminOnly())
	admin.Get("/queue/stats", ctrl.Admin.HandleQueueStats)
}
