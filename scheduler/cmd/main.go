package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/ledgerwire/core/audit"
	"github.com/ledgerwire/core/balancecache"
	"github.com/ledgerwire/core/chain"
	"github.com/ledgerwire/core/kms"
	"github.com/ledgerwire/core/walletcrypto"
	"github.com/ledgerwire/scheduler/internal/repository"

	coresched "github.com/ledgerwire/core/scheduler"
	"github.com/ledgerwire/shared/config"
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

	transactionRepo := repository.NewTransactionRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	walletCrypto := walletcrypto.New(provider)
	balances := balancecache.New(redisClient, chainClient)
	auditLogger := audit.NewPostgresLogger(db)

	monitor := coresched.NewMonitor(transactionRepo, walletRepo, chainClient, balances, walletCrypto, auditLogger)
	dispatcher := coresched.NewAdHocDispatcher(monitor)

	instanceID := getEnv("INSTANCE_ID", "scheduler-1")
	sched := coresched.New(redisClient, instanceID)
	sched.SetAdHocHandler(instanceID, dispatcher.Handle)

	// Recurring job table and their polling periods.
	sched.Register(coresched.Job{Name: "process_pending", Period: 30 * time.Second, Run: monitor.ProcessPending})
	sched.Register(coresched.Job{Name: "mark_stale", Period: 5 * time.Minute, Run: monitor.MarkStale})
	sched.Register(coresched.Job{Name: "refresh_active_balances", Period: 5 * time.Minute, Run: monitor.RefreshActiveBalances})
	sched.Register(coresched.Job{Name: "check_fee_sol", Period: 24 * time.Hour, Run: monitor.CheckFeeSol})
	sched.Register(coresched.Job{Name: "validate_encryptions", Period: 7 * 24 * time.Hour, Run: monitor.ValidateEncryptions})
	sched.Register(coresched.Job{Name: "log_key_version_stats", Period: 24 * time.Hour, Run: monitor.LogKeyVersionStats})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched.Start(ctx)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("shutting down...")
		cancel()
	}()

	log.Printf("scheduler %s running", instanceID)
	<-ctx.Done()
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
