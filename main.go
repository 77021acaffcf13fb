package main

import (
	"academyhub/config"
	"academyhub/database"
	"academyhub/database/seeders"
	"academyhub/handlers"
	"academyhub/middleware"
	"academyhub/routes"
	"academyhub/services"
	"academyhub/services/notifications"
	"academyhub/services/websocket"
	"academyhub/storage"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	serviceName = "AcademyHub API"
	version     = "1.0.0"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		logrus.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "academyhub",
		Short:         "Multi-tenant academy management API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadConfig()
			setupLogging(config.AppConfig)
		},
		RunE: func(cmd *cobra.Command, args []string) error { return serve() },
	}

	var archiveDays int
	archive := &cobra.Command{
		Use:   "archive-logs",
		Short: "Zip activity logs older than --days to S3 and delete them",
		RunE: func(cmd *cobra.Command, args []string) error {
			database.Connect()
			defer database.Close()
			svc := services.NewLogArchiveService(database.DB, database.GetRedisClient(), config.AppConfig)
			a, err := svc.ArchiveOldLogs(cmd.Context(), archiveDays)
			if err != nil {
				return err
			}
			if a == nil {
				logrus.Info("nothing to archive")
				return nil
			}
			logrus.WithFields(logrus.Fields{"s3_key": a.S3Key, "records": a.RecordCount}).Info("archive written")
			return nil
		},
	}
	archive.Flags().IntVar(&archiveDays, "days", 30, "archive logs older than this many days (min 7)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server (default)",
			RunE:  func(cmd *cobra.Command, args []string) error { return serve() },
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the service's tables",
			RunE: func(cmd *cobra.Command, args []string) error {
				config.AppConfig.SkipMigrate = true
				database.Connect()
				defer database.Close()
				if err := database.AutoMigrate(database.DB); err != nil {
					return err
				}
				logrus.Info("migration completed")
				return nil
			},
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Insert a super admin and a demo academy",
			RunE: func(cmd *cobra.Command, args []string) error {
				database.Connect()
				defer database.Close()
				return seeders.SeedAll()
			},
		},
		&cobra.Command{
			Use:   "flush-logs",
			Short: "Move Redis-buffered activity logs into the database",
			RunE: func(cmd *cobra.Command, args []string) error {
				database.Connect()
				defer database.Close()
				svc := services.NewLogArchiveService(database.DB, database.GetRedisClient(), config.AppConfig)
				n, err := svc.FlushCachedLogs(cmd.Context(), 0)
				if err != nil {
					return err
				}
				logrus.WithField("flushed", n).Info("cached logs flushed")
				return nil
			},
		},
		archive,
	)
	return root
}

func serve() error {
	cfg := config.AppConfig
	database.Connect()
	defer database.Close()

	wsHub := websocket.NewHub()
	go wsHub.Run()
	defer wsHub.Stop()

	line := services.NewLineMessagingService(cfg)
	notifications.SetDefaultWSHub(wsHub)
	if line.Enabled() {
		notifications.SetDefaultLinePusher(line)
	}
	stopWorker := make(chan struct{})
	defer close(stopWorker)
	if cfg.UseRedisNotifications {
		notifications.NewService().StartWorker(stopWorker)
	}

	var scheduler *services.ScheduleManager
	if cfg.EnableCronJobs {
		scheduler = services.NewScheduleManager(database.DB, database.GetRedisClient(), cfg)
		if err := scheduler.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer scheduler.Stop()
	}

	deps := routes.Deps{
		Hub:     wsHub,
		Archive: services.NewLogArchiveService(database.DB, database.GetRedisClient(), cfg),
		Health:  services.NewHealthService(serviceName, version),
	}
	if files, err := storage.NewStorageService(cfg); err != nil {
		logrus.WithError(err).Warn("file uploads disabled")
	} else {
		deps.Files = files
	}
	if cfg.LineChannelSecret != "" {
		deps.Line = handlers.NewLineWebhookHandler(database.DB, cfg.LineChannelSecret, line)
	} else {
		logrus.Warn("LINE webhook disabled: LINE_CHANNEL_SECRET not set")
	}

	app := newApp(cfg, deps)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	errc := make(chan error, 1)
	go func() {
		logrus.WithFields(logrus.Fields{
			"port":        cfg.Port,
			"environment": cfg.AppEnv,
			"version":     version,
		}).Info("server starting")
		errc <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		logrus.Info("shutting down")
		return app.ShutdownWithTimeout(15 * time.Second)
	}
}

func newApp(cfg *config.Config, deps routes.Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      serviceName,
		ErrorHandler: customErrorHandler,
		BodyLimit:    int(cfg.MaxFileSize) + 1<<20,
	})

	app.Use(recover.New())
	app.Use(helmet.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Academy-ID",
		AllowCredentials: cfg.AllowedOrigins != "*",
	}))
	app.Use(middleware.RequestContext(cfg.RequestTimeout))
	app.Use(middleware.LoggerMiddleware())
	app.Use(middleware.LogActivityMiddleware())

	routes.SetupRoutes(app, deps)

	if cfg.AppEnv == "development" {
		for _, r := range app.Stack() {
			for _, route := range r {
				logrus.Debugf("route %s %s", route.Method, route.Path)
			}
		}
	}

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":  "Route not found",
			"path":   c.Path(),
			"method": c.Method(),
		})
	})
	return app
}

// setupLogging configures logrus from LOG_LEVEL and LOG_FILE. Development logs
// go to stdout only.
func setupLogging(cfg *config.Config) {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.AppEnv == "development" || cfg.LogFile == "" {
		logrus.SetOutput(os.Stdout)
		return
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755); err != nil {
		logrus.WithError(err).Warn("could not create log directory")
		return
	}
	file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logrus.WithError(err).Warn("could not open log file, logging to stdout")
		return
	}
	logrus.SetOutput(io.MultiWriter(os.Stdout, file))
}

// customErrorHandler renders errors no handler answered itself.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	} else if status := database.HTTPStatus(err); status != fiber.StatusInternalServerError {
		code = status
		message = database.PublicMessage(err)
	}

	entry := logrus.WithFields(logrus.Fields{
		"error":      err.Error(),
		"path":       c.Path(),
		"method":     c.Method(),
		"ip":         c.IP(),
		"status":     code,
		"request_id": c.GetRespHeader(fiber.HeaderXRequestID),
	})
	if code >= fiber.StatusInternalServerError {
		entry.WithFields(database.ErrorFields(err)).Error("request error")
	} else {
		entry.Warn("request error")
	}

	return c.Status(code).JSON(fiber.Map{"error": message})
}
