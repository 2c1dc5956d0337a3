package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/ecomkit/cyberpay/gateway"
	"github.com/ecomkit/cyberpay/handler"
	"github.com/ecomkit/cyberpay/infra/config"
	"github.com/ecomkit/cyberpay/infra/logger"
	"github.com/ecomkit/cyberpay/infra/middle"
	"github.com/ecomkit/cyberpay/infra/opensearch"
	"github.com/ecomkit/cyberpay/infra/store"
	"github.com/ecomkit/cyberpay/reconcile"
	"github.com/ecomkit/cyberpay/router"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}
	cfg := config.App()

	// OpenSearch sink is optional; the service runs console-only without it.
	var sink logger.EventSink
	var osLogger *opensearch.Logger
	if cfg.EnableOpenSearch {
		osClient, err := opensearch.NewClient(cfg)
		if err != nil {
			log.Printf("Failed to initialize OpenSearch client: %v", err)
		} else {
			osLogger = opensearch.NewLogger(osClient)
			sink = osLogger
		}
	}
	logger.Init(sink, logger.Config{
		MinLevel:    logger.Level(cfg.LoggingLevel),
		Service:     "cyberpay",
		Environment: cfg.Environment,
	})

	credentials := config.Gateway()
	client, err := gateway.NewClient(gateway.Config{
		Production:     credentials.Production,
		OrganizationID: credentials.OrganizationID,
		AccessKey:      credentials.AccessKey,
		SecretKey:      credentials.SecretKey,
	})
	if err != nil {
		logger.Fatal("Failed to initialize gateway client", err)
	}

	txnStore, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		logger.Fatal("Failed to open transaction store", err)
	}
	defer txnStore.Close()

	checkout := reconcile.NewCheckout(client, txnStore, cfg.AutoCapture)
	reconciler := reconcile.NewReconciler(client, txnStore, cfg.WebhookSecret)
	if osLogger != nil {
		checkout = checkout.WithAuditTrail(osLogger)
		reconciler = reconciler.WithAuditTrail(osLogger)
	}

	r := chi.NewRouter()
	r.Use(middle.PanicRecovery())
	r.Use(middle.RequestID())
	r.Use(middle.SecurityHeaders())
	r.Use(middle.RequestLogging())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", handler.SignatureHeader},
		MaxAge:         300,
	}))

	router.Routes(r, router.Config{
		Payments:    handler.NewPaymentHandler(checkout, reconciler, txnStore, validator.New()),
		Webhooks:    handler.NewWebhookHandler(reconciler),
		Health:      handler.NewHealthHandler(cfg.Environment),
		AdminAPIKey: cfg.AdminAPIKey,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	go func() {
		logger.Info("Server starting", logger.LogContext{Fields: map[string]any{"port": cfg.Port}})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", err)
	}
	logger.Info("Server stopped")
}
