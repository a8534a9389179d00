package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/storage/redis/v3"
	"github.com/triarqhealth/iam-portal/internal/audit"
	"github.com/triarqhealth/iam-portal/internal/common"
	"github.com/triarqhealth/iam-portal/internal/config"
	"github.com/triarqhealth/iam-portal/internal/handlers/api"
	"github.com/triarqhealth/iam-portal/internal/mail"
	"github.com/triarqhealth/iam-portal/internal/middlewares"
	"github.com/triarqhealth/iam-portal/internal/middlewares/sessions"
	"github.com/triarqhealth/iam-portal/internal/notify"
	"github.com/triarqhealth/iam-portal/internal/requests"
	"github.com/triarqhealth/iam-portal/internal/users"
	"github.com/triarqhealth/iam-portal/model"
	"github.com/triarqhealth/iam-portal/params"
	"github.com/urfave/cli/v2"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

var (
	app       *cli.App
	gitCommit string
	gitDate   string
)

var (
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "YAML config file",
		Value: "config.yaml",
	}
	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Enable debug logging",
	}
)

func init() {
	app = cli.NewApp()
	app.EnableBashCompletion = true
	app.Usage = "iam-portal - IT access request management portal"
	app.Flags = []cli.Flag{
		configFileFlag,
		debugFlag,
	}
	app.Commands = []*cli.Command{
		{
			Name: "version",
			Action: func(ctx *cli.Context) error {
				fmt.Println(params.VersionWithCommit(gitCommit, gitDate))
				return nil
			},
		},
	}
	app.Action = run
}

func mustInitLogger(debug bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

func mustInitDatabase(dbConfig config.MySQLConfig) *gorm.DB {
	db, err := gorm.Open(mysql.Open(dbConfig.Dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   dbConfig.TablePrefix,
			SingularTable: true,
		},
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	sqlDB, err := db.DB()
	if err != nil {
		slog.Error("Failed to access database handle", "error", err)
		os.Exit(1)
	}
	if dbConfig.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConns)
	}
	if dbConfig.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbConfig.MaxOpenConns)
	}
	if dbConfig.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(dbConfig.ConnMaxIdleTime) * time.Second)
	}
	if dbConfig.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Second)
	}

	if err := db.AutoMigrate(model.Models...); err != nil {
		slog.Error("Database migration failed", "error", err)
		os.Exit(1)
	}

	return db
}

func mustInitMailSender(mailCfg config.MailConfig) mail.MailSender {
	if mailCfg.Backend == "" {
		slog.Warn("No mail backend configured, outgoing mail is disabled")
		return mail.NoopSender{}
	}
	if mailCfg.Backend == "smtp" {
		sender, err := mail.NewSMTPMailSender(mail.SMTPConfig(mailCfg.SMTP), mailCfg.From)
		if err != nil {
			slog.Error("Failed to initialize SMTP mail sender", "error", err)
			os.Exit(1)
		}
		return sender
	}
	slog.Error("Unsupported mail sender backend", "backend", mailCfg.Backend)
	os.Exit(1)
	return nil
}

func mustInitRedisStorage(redisCfg config.RedisConfig) *redis.Storage {
	return redis.New(redis.Config{
		URL:           redisCfg.URL,
		PoolSize:      redisCfg.PoolSize,
		IsClusterMode: redisCfg.ClusterMode,
	})
}

func setupAPIRoutes(
	router fiber.Router,
	sessionConfig sessions.Config,
	userService *users.UserService,
	requestService *requests.Service,
	requestRepo requests.RequestRepository,
	auditRepo audit.AuditRepository,
	notifier notify.Notifier,
	hub *notify.Hub,
	mailSender mail.MailSender,
	portal mail.PortalInfo) {

	// handlers
	var (
		authHandler    = api.NewAuthHandler(userService, notifier)
		requestHandler = api.NewRequestHandler(requestService, mailSender, portal)
		userHandler    = api.NewUserHandler(userService)
		auditHandler   = api.NewAuditHandler(auditRepo)
		adminHandler   = api.NewAdminHandler(requestRepo, auditRepo, userService, notifier)
		streamHandler  = api.NewStreamHandler(hub)
	)

	// routes
	router.Use(sessions.New(sessionConfig))
	v1 := router.Group("/api/v1")
	v1.Post("/auth/login", authHandler.PostLogin)
	v1.Post("/auth/logout", authHandler.PostLogout)
	v1.Get("/auth/me", api.RequireLogin, authHandler.GetMe)
	v1.Get("/stream", api.RequireLogin, streamHandler.GetStream)
	v1.Post("/requests", api.RequireLogin, requestHandler.PostRequest)
	v1.Get("/requests", api.RequireLogin, requestHandler.GetRequests)
	v1.Get("/requests/stats", api.RequirePrivileged, requestHandler.GetStats)
	v1.Get("/requests/:id", api.RequireLogin, requestHandler.GetRequest)
	v1.Patch("/requests/:id", api.RequireLogin, requestHandler.PatchRequest)
	v1.Get("/users", api.RequirePrivileged, userHandler.GetUsers)
	v1.Post("/users", api.RequireAdmin, userHandler.PostUser)
	v1.Patch("/users/:id", api.RequireAdmin, userHandler.PatchUser)
	v1.Post("/users/:id/reset-password", api.RequireAdmin, userHandler.PostResetPassword)
	v1.Get("/audit", api.RequireAdmin, auditHandler.GetAuditLog)
	v1.Get("/admin/export", api.RequireAdmin, adminHandler.GetExport)
	v1.Post("/admin/import", api.RequireAdmin, adminHandler.PostImport)
	v1.Post("/admin/sample-data", api.RequireAdmin, adminHandler.PostSample)
	v1.Post("/admin/reset", api.RequireAdmin, adminHandler.PostReset)
}

func run(ctx *cli.Context) error {
	config, err := config.LoadConfig(ctx.String(configFileFlag.Name))
	if err != nil {
		slog.Error("Could not load config file.", "error", err)
		return err
	}

	mustInitLogger(config.Debug || ctx.IsSet(debugFlag.Name))

	mailSender := mustInitMailSender(config.Mail)
	db := mustInitDatabase(config.MySQL)
	redisStorage := mustInitRedisStorage(config.Redis)

	// repositories
	var (
		userRepo    = users.NewUserRepository(db)
		requestRepo = requests.NewRequestRepository(db)
		auditRepo   = audit.NewAuditRepository(db)
	)
	audit.Initialize(auditRepo)

	// notifications
	notifier := notify.NewRedisNotifier(redisStorage.Conn(), params.NotifyChannel)
	defer notifier.Close()

	hub := notify.NewHub()
	hubCtx, stopHub := context.WithCancel(ctx.Context)
	defer stopHub()
	go hub.Run(hubCtx)
	unsubscribe := notifier.Subscribe(hub.Broadcast)
	defer unsubscribe()

	// services
	var (
		userService    = users.NewUserService(userRepo)
		requestService = requests.NewService(requestRepo, userService, notifier)
	)

	if config.SeedDemoData {
		if err := userService.SeedDefaults(ctx.Context, config.EmailDomain, config.DemoPassword); err != nil {
			slog.Error("Failed to seed default users", "error", err)
			return err
		}
	}

	router := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		BodyLimit:     params.ServerBodyLimit,
		IdleTimeout:   params.ServerIdleTimeout,
		ReadTimeout:   params.ServerReadTimeout,
		WriteTimeout:  params.ServerWriteTimeout,
		ErrorHandler:  middlewares.ErrorHandler,
	})

	router.Use(recover.New())
	router.Use(logger.New())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(config.AllowOrigins, ", "),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
	}))

	setupAPIRoutes(
		router,
		sessions.Config{
			Storage:        redisStorage,
			SessionMaxAge:  config.Session.SessionMaxAge,
			CookieSecure:   config.Session.CookieSecure,
			CookieHttpOnly: config.Session.CookieHttpOnly,
			CookieName:     config.Session.CookieName,
		},
		userService,
		requestService,
		requestRepo,
		auditRepo,
		notifier,
		hub,
		mailSender,
		mail.PortalInfo{SiteName: config.SiteName, BaseURL: config.BaseURL},
	)

	healthCheckCtx, term := context.WithCancel(ctx.Context)
	done := make(chan struct{})
	go common.StartHealthCheckServer(healthCheckCtx, done, redisStorage.Conn(), db)
	defer func() {
		term()
		<-done
	}()
	return router.Listen(config.ListenAddr)
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
