package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"kodata-dao/chain"
	"kodata-dao/config"
	"kodata-dao/handlers"
	"kodata-dao/metrics"
	"kodata-dao/middleware"
	"kodata-dao/models"
	"kodata-dao/services"
	"kodata-dao/utils"
	"kodata-dao/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()

	app := fiber.New(fiber.Config{
		BodyLimit: 12 * 1024 * 1024, // submission uploads are capped at 10MB
	})

	// Load allowed origins from environment variable
	allowedOriginsList := strings.Split(cfg.AllowedOrigins, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	app.Use(metrics.Middleware())

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Challenge{},
		&models.Task{},
		&models.Submission{},
		&models.TokenTransfer{},
		&models.Proposal{},
		&models.Vote{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	signer, err := chain.NewSigner(cfg.HotWalletKey)
	if err != nil {
		log.Fatal("failed to load hot wallet key:", err)
	}

	starknet := chain.NewStarkliClient(chain.StarkliConfig{
		Bin:              cfg.StarkliBin,
		RPCURL:           cfg.StarknetRPCURL,
		Account:          cfg.StarknetAccount,
		Keystore:         cfg.StarknetKeystore,
		KeystorePassword: cfg.StarknetKeystorePw,
		TokenAddress:     cfg.TokenAddress,
		PlatformAddress:  cfg.PlatformAddress,
		Timeout:          cfg.StarkliTimeout,
	})

	lisk := chain.NewLiskClient(chain.LiskConfig{
		RPCURL:          cfg.LiskRPCURL,
		ChainID:         cfg.LiskChainID,
		ContractAddress: cfg.ReputationAddress,
	}, signer)

	var store *utils.Storage
	if cfg.R2Configured() {
		store, err = utils.NewR2Storage(cfg.R2AccountID, cfg.R2AccessKeyID, cfg.R2AccessSecret, cfg.R2Bucket, cfg.CDNBaseURL)
		if err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
	} else {
		log.Println("⚠️  R2 credentials not set, storing submission payloads on local disk")
		store = utils.NewLocalStorage("uploads")
		app.Static("/uploads", "./uploads")
	}

	relayer := workers.NewRelayer(db, lisk)

	authService := services.NewAuthService(db, cfg.JWTSecret, cfg.ChallengeTTL, cfg.AdminAddresses)
	userService := services.NewUserService(db)
	taskService := services.NewTaskService(db)
	tokenService := services.NewTokenService(db, starknet)
	submissionService := services.NewSubmissionService(db, starknet, tokenService, store, relayer)
	rewardService := services.NewRewardService(db, tokenService)
	governanceService := services.NewGovernanceService(db)
	statusService := services.NewStatusService(db, starknet, lisk, relayer)
	scheduler := services.NewScheduler(db, tokenService, authService, relayer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	relayer.Start(ctx)
	scheduler.Start()

	auth := middleware.UserContext(cfg.JWTSecret)
	sseAuth := middleware.SSEUserContext(cfg.JWTSecret)
	admin := middleware.AdminOnly(db)

	handlers.SetupAuthRoutes(app, authService)
	handlers.SetupUserRoutes(app, userService, auth, admin)
	handlers.SetupTaskRoutes(app, taskService, auth, admin)
	handlers.SetupSubmissionRoutes(app, submissionService, auth, admin)
	handlers.SetupTokenRoutes(app, tokenService, auth, admin)
	handlers.SetupRewardRoutes(app, rewardService, auth, sseAuth, admin)
	handlers.SetupGovernanceRoutes(app, governanceService, auth, admin)
	handlers.SetupStatusRoutes(app, statusService)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", cfg.Port)
	log.Println("✅ Reputation relayer running")
	log.Println("✅ Background sweeps running (retry, confirm, requeue, challenge cleanup)")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	scheduler.Stop()
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}
