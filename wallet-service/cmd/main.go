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
	"github.com/ledgerwire/core/walletcrypto"
	"github.com/ledgerwire/shared/config"
	"github.com/ledgerwire/shared/middleware"
	sharedredis "github.com/ledgerwire/shared/redis"
	"github.com/ledgerwire/wallet-service/internal/command"
	"github.com/ledgerwire/wallet-service/internal/handler"
	"github.com/ledgerwire/wallet-service/internal/otp"
	"github.com/ledgerwire/wallet-service/internal/query"
	"github.com/ledgerwire/wallet-service/internal/repository"
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
	walletCrypto := walletcrypto.New(provider)
	balances := balancecache.New(redisClient, chainClient)
	auditLogger := audit.NewPostgresLogger(db)
	otpService := otp.New(redisClient, otp.LogSender{})

	authCommands := command.NewAuthCommandService(userRepo, walletRepo, otpService, walletCrypto, auditLogger, time.Duration(cfg.JWTExpiryMinutes)*time.Minute)
	walletQueries := query.NewWalletQueryService(walletRepo, balances)

	authHandler := handler.NewAuthHandler(authCommands)
	walletHandler := handler.NewWalletHandler(walletQueries)

	router := gin.Default()
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.TraceMiddleware())

	v1 := router.Group("/api")
	{
		v1.POST("/auth/request-otp", authHandler.RequestOTP)
		v1.POST("/auth/verify-otp", authHandler.VerifyOTP)

		authorized := v1.Group("")
		authorized.Use(middleware.AuthMiddleware())
		authorized.GET("/wallet/balance", walletHandler.Balance)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	log.Printf("wallet-service starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
