package container

import (
	"context"
	"fmt"
	"log"
	"time"

	"receiptflow/internal/config"
	infraCache "receiptflow/internal/infrastructure/cache"
	"receiptflow/internal/infrastructure/database"
	"receiptflow/internal/infrastructure/email"
	"receiptflow/internal/infrastructure/queue"
	"receiptflow/internal/infrastructure/storage"
	"receiptflow/pkg/cache"
	"receiptflow/pkg/jwt"

	receiptHandler "receiptflow/internal/domains/receipt/handler"
	receiptJob "receiptflow/internal/domains/receipt/job"
	receiptRepo "receiptflow/internal/domains/receipt/repository"
	receiptService "receiptflow/internal/domains/receipt/service"

	"receiptflow/internal/domains/receipt/gateway"
	"receiptflow/internal/domains/receipt/gateway/generic"
	"receiptflow/internal/domains/receipt/gateway/mock"
	"receiptflow/internal/domains/receipt/gateway/paystack"
	"receiptflow/internal/domains/receipt/model"
	"receiptflow/internal/domains/receipt/render"
)

// Container is the composition root, grounded on the teacher's own
// six-step NewContainer: infrastructure, gateways, providers, repositories,
// services, handlers, each phase depending only on the ones before it.
type Container struct {
	Config    *config.Config
	DB        *database.PostgresDB
	Cache     cache.Cache
	JWTManager *jwt.Manager
	QueueClient *queue.Client
	Scheduler   *queue.Scheduler
	Storage     *storage.MinIOStorage
	EmailService email.EmailService

	// Repositories
	OrderRepo       receiptRepo.OrderRepository
	PaymentRepo     receiptRepo.PaymentTransactionRepository
	ReceiptRepo     receiptRepo.ReceiptRepository
	RefundRepo      receiptRepo.RefundRequestRepository
	WebhookRepo     receiptRepo.WebhookLogRepository
	EmailLogRepo    receiptRepo.EmailLogRepository
	CloudLogRepo    receiptRepo.CloudStorageLogRepository
	JobLogRepo      receiptRepo.JobLogRepository
	TxManager       receiptRepo.TransactionManager

	// Domain services
	CommitService       receiptService.CommitService
	IntakeService       receiptService.IntakeService
	FulfillmentService  receiptService.FulfillmentService
	RecoveryService     receiptService.RecoveryService
	ReconcileService    receiptService.ReconcileService
	WebhookRetryService receiptService.WebhookRetryService

	// HTTP handlers
	WebhookHandler *receiptHandler.WebhookHandler
	AdminHandler   *receiptHandler.AdminHandler

	// Job handlers
	RenderHandler         *receiptJob.RenderHandler
	UploadHandler         *receiptJob.UploadHandler
	EmailHandler          *receiptJob.EmailHandler
	RecoveryScanHandler   *receiptJob.RecoveryScanHandler
	WebhookRetryHandler   *receiptJob.WebhookRetryHandler
	WebhookCleanupHandler *receiptJob.WebhookCleanupHandler
}

func NewContainer() (*Container, error) {
	c := &Container{}

	if err := c.initInfrastructure(); err != nil {
		return nil, fmt.Errorf("failed to init infrastructure: %w", err)
	}
	if err := c.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}
	if err := c.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}
	if err := c.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	log.Println("container initialized")
	return c, nil
}

func (c *Container) initInfrastructure() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	c.Config = cfg

	dbConfig, err := config.LoadDatabaseConfig()
	if err != nil {
		return fmt.Errorf("failed to load database config: %w", err)
	}

	db := database.NewPostgresDB(dbConfig)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.HealthCheck(context.Background()); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	c.DB = db
	log.Println("database connected")

	if err := database.Migrate(context.Background(), db.Pool); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	redisCache := infraCache.NewRedisCache(cfg.Redis.Host, cfg.Redis.Password, cfg.Redis.DB)
	if rc, ok := redisCache.(*infraCache.RedisCache); ok {
		if err := rc.Connect(context.Background()); err != nil {
			log.Printf("redis connection failed (non-critical): %v", err)
		} else {
			log.Println("redis connected")
		}
	}
	c.Cache = redisCache

	c.JWTManager = jwt.NewManager(cfg.JWT.Secret)

	c.QueueClient = queue.NewClient(cfg.Redis.Host)
	c.Scheduler = queue.NewScheduler(cfg.Redis.Host, cfg.Job)

	minioStorage, err := storage.NewMinIOStorage(cfg.MinIO)
	if err != nil {
		return fmt.Errorf("failed to init minio storage: %w", err)
	}
	c.Storage = minioStorage

	c.EmailService = email.NewSMTPEmailService(
		cfg.Email.Host,
		cfg.Email.Port,
		cfg.Email.Username,
		cfg.Email.Password,
		cfg.Email.FromAddress,
	)

	return nil
}

func (c *Container) initRepositories() error {
	pool := c.DB.Pool

	c.OrderRepo = receiptRepo.NewOrderRepository(pool)
	c.PaymentRepo = receiptRepo.NewPaymentTransactionRepository(pool)
	c.ReceiptRepo = receiptRepo.NewReceiptRepository(pool)
	c.RefundRepo = receiptRepo.NewRefundRequestRepository(pool)
	c.WebhookRepo = receiptRepo.NewWebhookLogRepository(pool)
	c.EmailLogRepo = receiptRepo.NewEmailLogRepository(pool)
	c.CloudLogRepo = receiptRepo.NewCloudStorageLogRepository(pool)
	c.JobLogRepo = receiptRepo.NewJobLogRepository(pool)
	c.TxManager = receiptRepo.NewPostgresTransactionManager(pool)

	return nil
}

func (c *Container) initServices() error {
	dedupCache, err := infraCache.NewDedupCache(c.Cache, model.WebhookLogTTL)
	if err != nil {
		return fmt.Errorf("failed to init dedup cache: %w", err)
	}
	mailer := email.NewReceiptMailer(c.EmailService)
	renderer := render.NewPDFRenderer()

	registry := gateway.NewRegistry(generic.NewParser())
	registry.Register(model.ProviderPaystack, paystack.NewParser())
	registry.Register(model.ProviderMock, mock.NewParser())
	registry.Register(model.ProviderGeneric, generic.NewParser())

	c.CommitService = receiptService.NewCommitService(
		c.OrderRepo,
		c.PaymentRepo,
		c.ReceiptRepo,
		c.RefundRepo,
		c.TxManager,
		c.QueueClient,
	)

	c.IntakeService = receiptService.NewIntakeService(
		c.WebhookRepo,
		c.OrderRepo,
		registry,
		c.Config.Webhook.Secrets,
		dedupCache,
		c.CommitService,
	)

	c.FulfillmentService = receiptService.NewFulfillmentService(
		c.ReceiptRepo,
		c.OrderRepo,
		c.EmailLogRepo,
		c.CloudLogRepo,
		renderer,
		c.Storage,
		mailer,
		c.QueueClient,
		c.Config.MinIO.PresignExpiry,
	)

	c.RecoveryService = receiptService.NewRecoveryService(
		c.ReceiptRepo,
		c.QueueClient,
		c.Config.Job.RecoveryScanBatchSize,
	)

	c.ReconcileService = receiptService.NewReconcileService(c.ReceiptRepo, c.QueueClient)

	c.WebhookRetryService = receiptService.NewWebhookRetryService(
		c.WebhookRepo,
		c.OrderRepo,
		registry,
		c.CommitService,
		c.Config.Job.WebhookRetryMaxAge,
		c.Config.Job.WebhookRetryBatchSize,
	)

	return nil
}

func (c *Container) initHandlers() error {
	c.WebhookHandler = receiptHandler.NewWebhookHandler(c.IntakeService)
	c.AdminHandler = receiptHandler.NewAdminHandler(c.ReconcileService, c.EmailLogRepo, c.CloudLogRepo)

	c.RenderHandler = receiptJob.NewRenderHandler(c.FulfillmentService)
	c.UploadHandler = receiptJob.NewUploadHandler(c.FulfillmentService)
	c.EmailHandler = receiptJob.NewEmailHandler(c.FulfillmentService)
	c.RecoveryScanHandler = receiptJob.NewRecoveryScanHandler(c.RecoveryService)
	c.WebhookRetryHandler = receiptJob.NewWebhookRetryHandler(c.WebhookRetryService)
	c.WebhookCleanupHandler = receiptJob.NewWebhookCleanupHandler(c.WebhookRetryService)

	return nil
}

func (c *Container) Cleanup() {
	log.Println("cleaning up container resources")

	if c.DB != nil && c.DB.Pool != nil {
		c.DB.Pool.Close()
	}
	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			log.Printf("queue client close failed: %v", err)
		}
	}
	if c.Cache != nil {
		if rc, ok := c.Cache.(*infraCache.RedisCache); ok {
			if err := rc.Close(); err != nil {
				log.Printf("failed to close redis: %v", err)
			}
		}
	}

	log.Println("container cleanup completed")
}
