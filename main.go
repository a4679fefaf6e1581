package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"gitpress/config"
	"gitpress/githubapi"
	"gitpress/models"
	"gitpress/repository"
	"gitpress/services"
	"gitpress/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	webhookDeliveriesCounter prometheus.Counter
	syncedFilesCounter       prometheus.Counter
	syncFailuresCounter      prometheus.Counter
	searchQueriesCounter     prometheus.Counter
)

func init() {
	webhookDeliveriesCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Total number of webhook deliveries accepted.",
		},
	)
	syncedFilesCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "synced_files_total",
			Help: "Total number of article files synced from deliveries.",
		},
	)
	syncFailuresCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_failures_total",
			Help: "Total number of per-file sync failures.",
		},
	)
	searchQueriesCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "search_queries_total",
			Help: "Total number of search queries executed.",
		},
	)
	prometheus.MustRegister(webhookDeliveriesCounter, syncedFilesCounter, syncFailuresCounter, searchQueriesCounter)
}

func adminAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.AdminAPIKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.AdminAPIKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to database.")

	logging.Info("Running database auto-migration...")
	db.AutoMigrate(&models.Author{}, &models.RepoLink{}, &models.Article{},
		&models.Topic{}, &models.Notification{}, &models.SearchEntry{})

	drafts, err := storage.OpenDraftCache(cfg.DraftCachePath)
	if err != nil {
		logging.Fatal("Failed to open draft cache", zap.Error(err))
	}
	defer drafts.Close()

	s3Client, err := storage.NewS3Client(cfg)
	if err != nil {
		logging.Fatal("S3 client creation failed", zap.Error(err))
	}
	objects := storage.NewS3Store(s3Client, cfg)

	stores := repository.NewStores(db)
	fetcher := githubapi.NewClient(cfg, logging)

	notifications := services.NewNotificationService(stores.Notifications, logging, uuid.NewString, time.Now)
	images := services.NewImagePipeline(fetcher, objects, logging)
	syncService := &services.SyncService{
		Stores:        stores,
		Fetcher:       fetcher,
		Images:        images,
		Drafts:        drafts,
		Objects:       objects,
		Notifications: notifications,
		Logger:        logging,
		NewID:         uuid.NewString,
		Now:           time.Now,
	}
	webhookService := &services.WebhookService{
		Config: cfg,
		Stores: stores,
		Sync:   syncService,
		Logger: logging,
	}
	reviewService := &services.ReviewService{
		Stores:        stores,
		Fetcher:       fetcher,
		Images:        images,
		Drafts:        drafts,
		Objects:       objects,
		Notifications: notifications,
		Logger:        logging,
		Now:           time.Now,
	}
	searchService := services.NewSearchService(stores.Search, logging)
	cleanupService := &services.CleanupService{
		Stores:  stores,
		Drafts:  drafts,
		Objects: objects,
		Logger:  logging,
	}

	router := gin.Default()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	setupWebhookRoutes(router, webhookService, logging)
	setupArticleRoutes(router, cfg, stores, reviewService, searchService, logging)
	setupNotificationRoutes(router, notifications, logging)
	setupAdminRoutes(router, cfg, reviewService, logging)

	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CleanupSchedule, func() {
		logging.Info("Running scheduled draft cleanup...")
		if err := cleanupService.Run(context.Background()); err != nil {
			logging.Error("Cleanup job failed", zap.Error(err))
		}
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func setupWebhookRoutes(router *gin.Engine, webhooks *services.WebhookService, log *zap.Logger) {
	rg := router.Group("/webhook")

	rg.POST("/github", func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
			return
		}
		eventType := c.GetHeader("X-GitHub-Event")
		signature := c.GetHeader("X-Hub-Signature-256")

		result, err := webhooks.Ingest(c.Request.Context(), eventType, signature, body)
		if err != nil {
			respondError(c, log, err, "Webhook ingest failed")
			return
		}

		webhookDeliveriesCounter.Inc()
		syncedFilesCounter.Add(float64(result.Synced))
		syncFailuresCounter.Add(float64(result.Failed))
		c.JSON(http.StatusOK, result)
	})
}

func setupArticleRoutes(router *gin.Engine, cfg *config.Config, stores *repository.Stores, reviews *services.ReviewService, search *services.SearchService, log *zap.Logger) {
	rg := router.Group("/articles")

	rg.GET("/", func(c *gin.Context) {
		page, limit := pagination(c, cfg.SearchPageLimit)
		offset := (page - 1) * limit

		var (
			articles []models.Article
			total    int64
			err      error
		)
		if category := c.Query("category"); category != "" {
			articles, total, err = stores.Articles.ListPublishedByCategory(c.Request.Context(), category, limit, offset)
		} else {
			articles, total, err = stores.Articles.ListPublished(c.Request.Context(), limit, offset)
		}
		if err != nil {
			log.Error("Database query for articles failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"items":    articles,
			"total":    total,
			"page":     page,
			"limit":    limit,
			"has_more": int64(offset+len(articles)) < total,
		})
	})

	rg.GET("/search", func(c *gin.Context) {
		query := c.Query("q")
		page, limit := pagination(c, cfg.SearchPageLimit)

		result, err := search.Search(c.Request.Context(), query, page, limit)
		if err != nil {
			log.Error("Search query failed", zap.String("query", query), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		searchQueriesCounter.Inc()
		c.JSON(http.StatusOK, gin.H{
			"items":    result.Items,
			"total":    result.Total,
			"page":     result.Page,
			"limit":    result.Limit,
			"has_more": result.HasMore,
		})
	})

	rg.DELETE("/:id", func(c *gin.Context) {
		authorID := c.GetHeader("X-Author-ID")
		if authorID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "X-Author-ID header is required"})
			return
		}
		if err := reviews.Delete(c.Request.Context(), c.Param("id"), authorID); err != nil {
			respondError(c, log, err, "Article deletion failed")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "article deleted"})
	})
}

func setupNotificationRoutes(router *gin.Engine, notifications *services.NotificationService, log *zap.Logger) {
	rg := router.Group("/notifications")

	rg.GET("/", func(c *gin.Context) {
		authorID := c.GetHeader("X-Author-ID")
		if authorID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "X-Author-ID header is required"})
			return
		}
		page, limit := pagination(c, 20)

		items, err := notifications.ListForAuthor(c.Request.Context(), authorID, limit, (page-1)*limit)
		if err != nil {
			log.Error("Database query for notifications failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, items)
	})
}

func setupAdminRoutes(router *gin.Engine, cfg *config.Config, reviews *services.ReviewService, log *zap.Logger) {
	rg := router.Group("/admin")
	rg.Use(adminAuthMiddleware(cfg))

	rg.GET("/articles/pending", func(c *gin.Context) {
		articles, err := reviews.ListPending(c.Request.Context())
		if err != nil {
			log.Error("Database query for pending articles failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, articles)
	})

	rg.POST("/articles/:id/approve", func(c *gin.Context) {
		var req struct {
			Summary string `json:"summary"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		article, err := reviews.Approve(c.Request.Context(), c.Param("id"), req.Summary)
		if err != nil {
			respondError(c, log, err, "Approval failed")
			return
		}
		c.JSON(http.StatusOK, article)
	})

	rg.POST("/articles/:id/reject", func(c *gin.Context) {
		var req struct {
			Reason string `json:"reason" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid fields (reason required)"})
			return
		}
		article, err := reviews.Reject(c.Request.Context(), c.Param("id"), req.Reason)
		if err != nil {
			respondError(c, log, err, "Rejection failed")
			return
		}
		c.JSON(http.StatusOK, article)
	})
}

func pagination(c *gin.Context, defaultLimit int) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if limit < 1 || limit > 100 {
		limit = defaultLimit
	}
	return page, limit
}

// respondError maps domain errors onto their HTTP status; anything else is a 500.
func respondError(c *gin.Context, log *zap.Logger, err error, msg string) {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.Status, gin.H{"error": appErr.Message, "code": appErr.Code})
		return
	}
	log.Error(msg, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
