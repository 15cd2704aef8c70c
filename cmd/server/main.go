package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Maxito7/agenda/internal/application"
	"github.com/Maxito7/agenda/internal/config"
	"github.com/Maxito7/agenda/internal/domain"
	"github.com/Maxito7/agenda/internal/email"
	"github.com/Maxito7/agenda/internal/fastapi"
	"github.com/Maxito7/agenda/internal/infrastructure/migrations"
	"github.com/Maxito7/agenda/internal/infrastructure/repository"
	handlers "github.com/Maxito7/agenda/internal/interfaces/http"
	"github.com/Maxito7/agenda/internal/logger"
	"github.com/Maxito7/agenda/internal/queue"
	"github.com/Maxito7/agenda/internal/scheduler"
	services "github.com/Maxito7/agenda/internal/service"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/session"
	_ "github.com/lib/pq"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.New("info").Fatal(err, "Error loading config")
	}
	log := logger.New(cfg.LogLevel)

	db, err := sql.Open("postgres", cfg.GetDBConnString())
	if err != nil {
		log.Fatal(err, "Error connecting to database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal(err, "Error pinging database")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := migrations.Apply(ctx, db); err != nil {
		cancel()
		log.Fatal(err, "Error applying migrations")
	}
	cancel()

	// Repositorios
	personaRepo := repository.NewPersonaRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)
	uow := repository.NewUnitOfWork(db)

	// Destinos de sincronización
	fastapiClient := fastapi.NewClient(cfg.Sync.FastAPIURL, cfg.Sync.Timeout)
	destinos := map[string]application.SyncDeliverer{
		domain.DestinoFastAPI: fastapiClient,
	}

	var publisher *queue.Publisher
	if cfg.RabbitMQURL != "" {
		publisher, err = queue.Connect(cfg.RabbitMQURL, cfg.RabbitMQExchange, log)
		if err != nil {
			log.Fatal(err, "Error connecting to RabbitMQ")
		}
		defer publisher.Close()
		destinos[domain.DestinoRabbitMQ] = publisher
	}

	nombres := []string{domain.DestinoFastAPI}
	if publisher != nil {
		nombres = append(nombres, domain.DestinoRabbitMQ)
	}

	// Avisos de eventos fallidos
	var notifiers []application.FailureNotifier
	if cfg.EmailEnabled() {
		emailClient, err := email.NewClient(
			cfg.SMTPHost,
			cfg.SMTPPort,
			cfg.SMTPUser,
			cfg.SMTPPassword,
			cfg.SMTPFromName,
			cfg.SMTPFromEmail,
		)
		if err != nil {
			log.Warnf("Email client initialization failed: %v", err)
		} else {
			notifiers = append(notifiers, email.NewFailureNotifier(emailClient, cfg.SyncAlertEmail))
		}
	}
	if cfg.S3BucketName != "" {
		s3Service, err := services.NewS3Service(context.Background(), cfg.S3BucketName, cfg.AWSRegion)
		if err != nil {
			log.Warnf("S3 initialization failed: %v", err)
		} else {
			notifiers = append(notifiers, s3Service)
		}
	}

	// Personas
	personaService := application.NewPersonaService(personaRepo, uow, application.SyncOptions{
		Modo:                       cfg.Sync.Mode,
		Destinos:                   nombres,
		SincronizarActualizaciones: cfg.Sync.Updates,
		Inline:                     fastapi.NewBestEffort(fastapiClient, log),
	}, log)
	syncService := application.NewSyncService(outboxRepo)

	var outboxScheduler *scheduler.OutboxScheduler
	if cfg.Sync.Mode == config.SyncModeOutbox {
		dispatcher := application.NewSyncDispatcher(outboxRepo, destinos, notifiers, application.DispatcherConfig{
			BatchSize: cfg.Outbox.BatchSize,
			Lease:     cfg.Outbox.Lease,
			Politica: application.PoliticaReintento{
				MaxIntentos: cfg.Outbox.MaxIntentos,
				Base:        cfg.Outbox.BackoffBase,
				Max:         cfg.Outbox.BackoffMax,
			},
			Limiter: rate.NewLimiter(rate.Limit(cfg.Sync.RatePerSec), cfg.Sync.RateBurst),
		}, log)

		outboxScheduler = scheduler.NewOutboxScheduler(dispatcher, cfg.Outbox.Schedule, log)
		if err := outboxScheduler.Start(); err != nil {
			log.Fatal(err, "Error starting outbox scheduler")
		}
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(log),
		Views:        handlers.NewViews(),
		ViewsLayout:  handlers.ViewsLayout,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: true,
		ExposeHeaders:    "Content-Length",
		MaxAge:           86400,
	}))
	app.Use(handlers.RequestLogger(log))

	app.Get("/health", handlers.NewHealthHandler(db).Health)
	app.Get("/metrics", handlers.MetricsHandler())

	api := app.Group("/api")
	handlers.NewPersonaHandler(personaService).RegisterRoutes(api)
	handlers.NewSyncHandler(syncService).RegisterRoutes(api)

	// Páginas HTML
	handlers.NewWebHandler(personaService, session.New(), log).RegisterRoutes(app)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Info("Shutting down server")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error(err, "Error shutting down server")
		}
	}()

	log.Infof("Server starting on port %s (sync mode %s)", cfg.ServerPort, cfg.Sync.Mode)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		log.Fatal(err, "Error starting server")
	}

	if outboxScheduler != nil {
		outboxScheduler.Stop()
	}
}
