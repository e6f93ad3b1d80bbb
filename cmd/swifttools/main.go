package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/swifttools/SwiftTools/app/controllers"
	"github.com/swifttools/SwiftTools/app/repository"
	"github.com/swifttools/SwiftTools/internal/pkg/cache"
	"github.com/swifttools/SwiftTools/internal/pkg/credits"
	"github.com/swifttools/SwiftTools/internal/pkg/database"
	"github.com/swifttools/SwiftTools/internal/pkg/env"
	"github.com/swifttools/SwiftTools/internal/pkg/jobqueue"
	"github.com/swifttools/SwiftTools/internal/pkg/router"
	"github.com/swifttools/SwiftTools/internal/pkg/tools"
)

func main() {
	app, manager := NewApplication()

	manager.Start()
	defer manager.Stop()

	// stop workers cleanly on SIGINT/SIGTERM
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		manager.Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() (*fiber.App, *jobqueue.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()

	factory := repository.NewFactory(database.GetDB())
	repository.SetGlobalFactory(factory)
	repos := factory.GetRepositories()

	uploadDir := env.GetEnv("UPLOAD_DIR", "./uploads")
	publicBaseURL := env.GetEnv("PUBLIC_BASE_URL", "http://localhost:4000")

	handlers := map[tools.Family]tools.Handler{
		tools.FamilyImage: tools.NewImageHandler(),
		tools.FamilyPDF:   tools.NewPDFHandler(),
	}

	dispatcher := jobqueue.NewDispatcher(jobqueue.DispatcherConfig{
		PublicBaseURL: publicBaseURL,
	}, repos.Usage, handlers)

	workers, err := strconv.Atoi(env.GetEnv("JOBQUEUE_WORKERS", "3"))
	if err != nil || workers < 1 {
		workers = 3
	}

	var broker jobqueue.Runner
	var inspector controllers.QueueInspector
	switch env.GetEnv("JOBQUEUE_DRIVER", "redis") {
	case "memory":
		mem := jobqueue.NewMemoryBroker(workers, dispatcher)
		broker, inspector = mem, mem
	default:
		cache.SetupCache()
		queue := jobqueue.NewQueue(workers, dispatcher)
		broker, inspector = queue, queue
	}
	dispatcher.SetBroker(broker)
	manager := jobqueue.NewManager(broker)

	gate := credits.NewDBGate(database.GetDB())

	ctrl := router.Controllers{
		Tools: controllers.NewToolsController(controllers.ToolsConfig{
			UploadDir:     uploadDir,
			PublicBaseURL: publicBaseURL,
		}, gate, repos.Usage, broker, handlers),
		User:  controllers.NewUserController(repos.User, repos.Usage),
		Admin: controllers.NewAdminController(inspector),
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 104857600, // 100 MiB
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			"admin": env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), monitor.New())

	// processed results are served straight from the upload directory
	app.Static("/uploads", uploadDir, fiber.Static{
		CacheDuration: 10 * time.Second,
		Compress:      false,
		MaxAge:        604800, // 7 days
	})

	router.InstallRouter(app, ctrl)

	return app, manager
}
