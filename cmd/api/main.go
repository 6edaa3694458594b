package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"fundrise/invest-portal/invest-portal-backend/internal/auth"
	"fundrise/invest-portal/invest-portal-backend/internal/chain"
	"fundrise/invest-portal/invest-portal-backend/internal/companies"
	"fundrise/invest-portal/invest-portal-backend/internal/config"
	"fundrise/invest-portal/invest-portal-backend/internal/investing"
	"fundrise/invest-portal/invest-portal-backend/internal/ledger"
	"fundrise/invest-portal/invest-portal-backend/internal/milestones"
	"fundrise/invest-portal/invest-portal-backend/internal/notifications"
	"fundrise/invest-portal/invest-portal-backend/internal/risk"
	"fundrise/invest-portal/invest-portal-backend/internal/verification"
)

func main() {
	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.GetDatabaseURL()), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&ledger.Company{},
		&ledger.Investment{},
		&ledger.Milestone{},
		&ledger.RiskReport{},
		&ledger.CompanyVerification{},
	); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	repo := ledger.NewRepository(db)

	// The mirror is optional. Without a chain endpoint the service runs as
	// a pure off-chain ledger and every chain-dependent path degrades.
	var mirror *chain.Mirror
	if cfg.Chain.Endpoint != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		client, err := chain.NewEVMClient(ctx, chain.Config{
			Endpoint:        cfg.Chain.Endpoint,
			ContractAddress: cfg.Chain.ContractAddress,
			OperatorKey:     cfg.Chain.OperatorKey,
			ConfirmTimeout:  cfg.Chain.ConfirmTimeout,
		})
		cancel()
		if err != nil {
			log.Fatalf("failed to connect to chain endpoint: %v", err)
		}
		mirror = chain.NewMirror(client, cfg.Chain.ConfirmTimeout)
		log.Printf("blockchain mirror enabled: %s", cfg.Chain.Endpoint)
	} else {
		log.Printf("blockchain mirror disabled, running off-chain only")
	}

	var (
		companyMirror   companies.ChainMirror
		investMirror    investing.ChainMirror
		milestoneMirror milestones.ChainMirror
		verifyMirror    verification.ChainMirror
	)
	if mirror != nil {
		companyMirror = mirror
		investMirror = mirror
		milestoneMirror = mirror
		verifyMirror = mirror
	}

	hub := notifications.NewHub()
	defer hub.Close()

	verificationService := verification.NewService(repo, verifyMirror)
	companyService := companies.NewService(repo, companyMirror)
	investingService := investing.NewService(repo, investMirror, hub)
	milestoneService := milestones.NewService(repo, milestoneMirror)
	riskService := risk.NewService(repo)

	if mirror != nil && cfg.Sweep.Enabled {
		sweeper := verification.NewSweeper(verificationService, time.Minute)
		if err := sweeper.Start(cfg.Sweep.Schedule); err != nil {
			log.Fatalf("failed to start reconciliation sweep: %v", err)
		}
		defer sweeper.Stop()
		log.Printf("reconciliation sweep scheduled: %s", cfg.Sweep.Schedule)
	}

	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, Origin")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	api := router.Group("/api/v1")
	if cfg.Security.JWTSecret != "" {
		api.Use(auth.Middleware(cfg.Security.JWTSecret))
	}
	{
		companies.NewHandler(companyService, verificationService).RegisterRoutes(api)
		investing.NewHandler(investingService).RegisterRoutes(api)
		milestones.NewHandler(milestoneService).RegisterRoutes(api)
		risk.NewHandler(riskService).RegisterRoutes(api)
	}

	router.GET("/ws/notifications", func(c *gin.Context) {
		if err := hub.HandleConnection(c.Writer, c.Request); err != nil {
			log.Printf("websocket upgrade failed: %v", err)
		}
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
		})
	})

	srv := &http.Server{
		Addr:    cfg.Server.GetServerAddr(),
		Handler: router,
	}

	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
}
