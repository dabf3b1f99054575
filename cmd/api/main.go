package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ibrahimkeyboad/proofly/internal/adapter/cache"
	"github.com/ibrahimkeyboad/proofly/internal/adapter/handler"
	"github.com/ibrahimkeyboad/proofly/internal/adapter/ledger"
	"github.com/ibrahimkeyboad/proofly/internal/adapter/middleware"
	"github.com/ibrahimkeyboad/proofly/internal/adapter/storage"
	"github.com/ibrahimkeyboad/proofly/internal/adapter/storage/sqlite"
	"github.com/ibrahimkeyboad/proofly/internal/core/config"
	"github.com/ibrahimkeyboad/proofly/internal/core/notifications"
	"github.com/ibrahimkeyboad/proofly/internal/core/presentation"
	"github.com/ibrahimkeyboad/proofly/internal/core/security"
	"github.com/ibrahimkeyboad/proofly/internal/core/worker"
	"github.com/ibrahimkeyboad/proofly/internal/core/workflow"
)

// Journal rows orphaned by a disconnect are settled every this many worker ticks.
const reconcileEveryTicks = 6

type journal interface {
	workflow.Journal
	worker.PendingJournal
}

func main() {
	// 1. Setup Logger
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	// 2. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("❌ Invalid configuration", "error", err)
		os.Exit(1)
	}
	network := cfg.Network()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Connect to the ledger
	startCtx, cancelStart := context.WithTimeout(ctx, 15*time.Second)
	defer cancelStart()

	client, rpcChainID, err := ledger.Dial(startCtx, cfg.RPCURL)
	if err != nil {
		slog.Error("❌ RPC connection failed", "error", err)
		os.Exit(1)
	}
	if rpcChainID != network.ChainID {
		slog.Warn("⚠️ RPC serves a different chain than configured", "rpc_chain_id", rpcChainID, "chain_id", network.ChainID)
	}

	var wallet workflow.Wallet
	if cfg.WalletPrivateKey != "" {
		kw, err := ledger.NewKeyWallet(cfg.WalletPrivateKey, network.ChainID)
		if err != nil {
			slog.Error("❌ Wallet setup failed", "error", err)
			os.Exit(1)
		}
		wallet = kw
		slog.Info("🔑 Signing wallet loaded", "account", kw.Address().Hex())
	} else {
		slog.Warn("No WALLET_PRIVATE_KEY set, sessions cannot connect")
	}

	// 4. Token metadata cache
	var tokenCache ledger.MetadataCache = cache.NewMemoryTokenCache()
	if cfg.RedisURL != "" {
		rdb, err := cache.ConnectRedis(startCtx, cfg.RedisURL)
		if err != nil {
			slog.Warn("Redis unavailable, caching token metadata in memory", "error", err)
		} else {
			defer rdb.Close()
			tokenCache = cache.NewTokenCache(rdb, network.ChainID)
		}
	}

	contract := common.HexToAddress(cfg.ContractAddress)
	gateway, err := ledger.NewGateway(client, contract, tokenCache)
	if err != nil {
		slog.Error("❌ Gateway setup failed", "error", err)
		os.Exit(1)
	}

	// 5. Storage: Postgres when configured, SQLite otherwise
	var (
		dbPool      *pgxpool.Pool
		txJournal   journal
		idempotency middleware.IdempotencyStore
		keys        middleware.KeyVerifier
	)
	if cfg.DatabaseURL != "" {
		dbPool, err = storage.ConnectDB(startCtx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("❌ Database connection failed", "error", err)
			os.Exit(1)
		}
		txJournal = storage.NewJournalRepository(dbPool)
		idempotency = storage.NewIdempotencyRepository(dbPool)
	} else {
		local, err := sqlite.NewJournal(cfg.SQLitePath)
		if err != nil {
			slog.Error("❌ SQLite journal failed", "error", err)
			os.Exit(1)
		}
		defer local.Close()
		txJournal = local
		idempotency = storage.NewMemoryIdempotencyStore()
		slog.Info("📒 Using SQLite journal", "path", cfg.SQLitePath)
	}

	// 6. API keys
	switch {
	case cfg.APIKeyHash != "":
		static := security.NewStaticKeys(cfg.APIKeyHash)
		if static.Len() == 0 {
			slog.Error("❌ API_KEY_HASH holds no key hashes")
			os.Exit(1)
		}
		slog.Info("🔑 API keys loaded", "count", static.Len())
		keys = static
	default:
		realKey, keyHash, err := security.GenerateAPIKey()
		if err != nil {
			slog.Error("Crypto error generating key", "error", err)
			os.Exit(1)
		}
		if dbPool != nil {
			repo := storage.NewAPIKeyRepository(dbPool)
			if err := repo.SaveAPIKey(startCtx, keyHash, security.KeyPrefix, "bootstrap"); err != nil {
				slog.Error("Failed to save API key", "error", err)
				os.Exit(1)
			}
			keys = repo
		} else {
			keys = security.NewStaticKeys(keyHash)
		}
		slog.Warn("🔑 No API_KEY_HASH set, generated a key for this run", "api_key", realKey)
	}

	// 7. Publishers
	var publishers notifications.Fanout
	if cfg.KafkaBroker != "" {
		kp, err := notifications.NewKafkaPublisher(cfg.KafkaBroker, cfg.KafkaTopic)
		if err != nil {
			slog.Error("❌ Kafka producer failed", "error", err)
			os.Exit(1)
		}
		defer kp.Close()
		publishers = append(publishers, kp)
	}
	if cfg.DiscordBotToken != "" && cfg.DiscordChannelID != "" {
		dp, err := notifications.NewDiscordPublisher(cfg.DiscordBotToken, cfg.DiscordChannelID)
		if err != nil {
			slog.Error("❌ Discord setup failed", "error", err)
			os.Exit(1)
		}
		publishers = append(publishers, dp)
	}
	if cfg.WebhookURL != "" {
		if cfg.WebhookSecret == "" {
			slog.Warn("⚠️ WEBHOOK_SECRET is missing, webhooks are sent unsigned")
		}
		publishers = append(publishers, &notifications.WebhookPublisher{URL: cfg.WebhookURL, Secret: cfg.WebhookSecret})
	}

	// 8. Core
	links := presentation.Links{ExplorerURL: cfg.ExplorerURL, PublicBaseURL: cfg.PublicBaseURL}
	flow := workflow.New(workflow.Options{
		Network:   network,
		Wallet:    wallet,
		Gateway:   gateway,
		Journal:   txJournal,
		Publisher: publishers,
		Links:     links,
	})
	presenter := presentation.NewPresenter(gateway, links, network)

	sessionHandler := &handler.SessionHandler{Service: flow, Presenter: presenter}
	receiptHandler := &handler.ReceiptHandler{Presenter: presenter, Network: network}
	tokenHandler := &handler.TokenHandler{Tokens: cfg.Tokens, Network: network}

	// 9. Setup Fiber
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(cors.New())
	app.Use(logger.New())

	// 10. Routes
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "network": network})
	})

	api := app.Group("/v1")

	// Public
	api.Get("/tokens", tokenHandler.List)
	api.Get("/receipts/:id", receiptHandler.Get)
	api.Get("/creators/:address/receipts", receiptHandler.ByCreator)

	// Protected
	private := api.Group("/sessions", middleware.Protected(keys))
	private.Post("/", sessionHandler.Connect)
	private.Get("/:id", sessionHandler.Get)
	private.Delete("/:id", sessionHandler.Disconnect)
	private.Post("/:id/network", sessionHandler.SwitchNetwork)
	private.Post("/:id/approve", middleware.Idempotency(idempotency), sessionHandler.Approve)
	private.Post("/:id/preview", sessionHandler.Preview)
	private.Post("/:id/receipts", middleware.Idempotency(idempotency), sessionHandler.Submit)
	private.Get("/:id/receipts", sessionHandler.Receipts)

	// 11. Start Workers
	if settled, pending, err := worker.ReconcileJournal(startCtx, txJournal, gateway); err != nil {
		slog.Warn("Journal reconciliation failed", "error", err)
	} else if pending > 0 {
		slog.Info("Journal still has pending rows", "settled", settled, "pending", pending)
	}
	workerDone := worker.StartConfirmationWorker(ctx, flow, cfg.SyncInterval, &worker.Reconciler{
		Journal: txJournal,
		Checker: gateway,
		Every:   reconcileEveryTicks,
	})

	// ==========================================
	// 🚀 GRACEFUL SHUTDOWN LOGIC STARTS HERE
	// ==========================================

	go func() {
		slog.Info("🚀 Server starting", "env", cfg.Env, "port", cfg.Port, "network", network.Name)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
		}
	}()

	// Block here until we receive a stop signal
	<-ctx.Done()
	slog.Info("🛑 Shutting down server...")

	// Tell Fiber to stop accepting new requests and finish active ones
	if err := app.Shutdown(); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	<-workerDone

	if dbPool != nil {
		dbPool.Close()
		slog.Info("✅ Database connection closed")
	}
	client.Close()

	slog.Info("👋 Server exited successfully")
}
