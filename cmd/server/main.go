package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kiranakart-be/internal/cart"
	"kiranakart-be/internal/catalog"
	"kiranakart-be/internal/config"
	"kiranakart-be/internal/db"
	"kiranakart-be/internal/httpserver"
	"kiranakart-be/internal/logger"
	"kiranakart-be/internal/metrics"
	"kiranakart-be/internal/notification"
	"kiranakart-be/internal/order"
	"kiranakart-be/internal/payment"
	"kiranakart-be/internal/payment/webhook"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	database := db.InitDB(cfg)
	defer database.Close()

	stats := &metrics.Reconciliation{}
	notifier := notification.NewLogNotifier()

	gateway := payment.NewPayUGateway(cfg.PayUKey, cfg.PayUSalt, cfg.CallbackBaseURL)
	paymentRepo := payment.NewRepository(database)

	catalogRepo := catalog.NewRepository(database)
	orderRepo := order.NewRepository(database, paymentRepo)
	orderSvc := order.NewService(orderRepo, catalogRepo, gateway)

	cartRepo := cart.NewRepository(database)
	cartSvc := cart.NewService(cartRepo, orderSvc)

	reconciler := payment.NewReconciler(database, paymentRepo, orderRepo, notifier, stats)
	webhookHandler := webhook.NewHandler(gateway, paymentRepo, reconciler, stats)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := payment.NewSweeper(paymentRepo, gateway, reconciler, cfg.SweepInterval, cfg.PaymentTimeout)
	go sweeper.Run(ctx)

	srv := httpserver.New(":"+cfg.AppPort, database, httpserver.Deps{
		Orders:      orderSvc,
		Cart:        cartSvc,
		Payments:    paymentRepo,
		Webhook:     webhookHandler,
		Stats:       stats,
		CORSOrigins: cfg.CORSOrigins,
	})

	go func() {
		logger.L().Info("server listening", zap.String("port", cfg.AppPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.L().Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.L().Error("shutdown incomplete", zap.Error(err))
	}
}
