package main

import (
	"database/sql"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	"github.com/ledgerwire/core/audit"
	"github.com/ledgerwire/core/balancecache"
	"github.com/ledgerwire/core/chain"
	"github.com/ledgerwire/core/kms"
	"github.com/ledgerwire/core/payment"
	"github.com/ledgerwire/core/walletcrypto"
	"github.com/ledgerwire/payment-service/internal/command"
	"github.com/ledgerwire/payment-service/internal/handler"
	"github.com/ledgerwire/payment-service/internal/query"
	"github.com/ledgerwire/payment-service/internal/repository"
	"github.com/ledgerwire/shared/config"
	"github.com/ledgerwire/shared/middleware"
	sharedredis "github.com/ledgerwire/shared/redis"
)

func main() {
	cfg := config.Load()

	db, err := sql.Open("postgres", cfg.DatabaseConnectionString)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("failed to ping database: %v", err)
	}

	redisClient, err := sharedredis.NewClient(cfg.RedisConnectionString, "", 0)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	provider, err := kms.NewProvider(cfg)
	if err != nil {
		log.Fatalf("failed to construct kms provider: %v", err)
	}

	chainClient, err := chain.NewSolanaClient(cfg.SolanaRpcURL, cfg.SolanaUSDCMint, cfg.SolanaUSDTMint)
	if err != nil {
		log.Fatalf("failed to construct solana client: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	whitelistRepo := repository.NewWhitelistRepository(db)

	walletCrypto := walletcrypto.New(provider)
	balances := balancecache.New(redisClient, chainClient)
	auditLogger := audit.NewPostgresLogger(db)
	rateLimiter := payment.NewRedisRateLimiter(redisClient, int64(cfg.RateLimitPerMinute), time.Minute)

	engine := payment.New(
		userRepo, walletRepo, transactionRepo, whitelistRepo,
		rateLimiter, auditLogger, walletCrypto, chainClient, balances,
		nil, // feeHook: schedule-driven override not wired in this deployment
	)

	paymentCommands := command.NewPaymentCommandService(engine)
	paymentQueries := query.NewTransactionQueryService(transactionRepo)
	paymentHandler := handler.NewPaymentHandler(paymentCommands, paymentQueries)

	router := gin.Default()
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.TraceMiddleware())

	v1 := router.Group("/api")
	v1.Use(middleware.AuthMiddleware())
	{
		v1.POST("/payments/send", paymentHandler.Send)
		v1.POST("/wallet/withdraw", paymentHandler.Withdraw)
		v1.GET("/payments/history", paymentHandler.History)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	log.Printf("payment-service starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
