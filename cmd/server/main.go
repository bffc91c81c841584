package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appbilling "github.com/cloudbill/backend/internal/application/billing"
	appescalation "github.com/cloudbill/backend/internal/application/escalation"
	"github.com/cloudbill/backend/internal/domain/billing"
	"github.com/cloudbill/backend/internal/domain/escalation"
	"github.com/cloudbill/backend/internal/domain/shared/valueobject"
	"github.com/cloudbill/backend/internal/infrastructure/cache"
	"github.com/cloudbill/backend/internal/infrastructure/cloud"
	"github.com/cloudbill/backend/internal/infrastructure/config"
	"github.com/cloudbill/backend/internal/infrastructure/logger"
	"github.com/cloudbill/backend/internal/infrastructure/notification"
	"github.com/cloudbill/backend/internal/infrastructure/persistence"
	"github.com/cloudbill/backend/internal/infrastructure/scheduler"
	"github.com/cloudbill/backend/internal/infrastructure/telemetry"
	"github.com/cloudbill/backend/internal/interfaces/http/handler"
	"github.com/cloudbill/backend/internal/interfaces/http/router"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Info("starting billing server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("closing database", zap.Error(err))
		}
	}()

	// Repositories
	projectRepo := persistence.NewGormBillingProjectRepository(db.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	componentRepo := persistence.NewGormUsageComponentRepository(db.DB)
	priceRepo := persistence.NewGormPriceRepository(db.DB)
	balanceRepo := persistence.NewGormBalanceRepository(db.DB)
	txnRepo := persistence.NewGormBalanceTransactionRepository(db.DB)
	notificationRepo := persistence.NewGormNotificationRepository(db.DB)
	settingsStore := persistence.NewGormSettingsStore(db.DB)
	tm := persistence.NewGormTransactionManager(db.DB)

	// Pricing and the usage component registry
	priceSvc := appbilling.NewPriceService(priceRepo, log)
	priceImportSvc := appbilling.NewPriceImportService(priceSvc, log)
	defaults, err := defaultRates(cfg.Pricing.DefaultRates)
	if err != nil {
		return fmt.Errorf("parse default rates: %w", err)
	}
	registry := billing.NewDefaultRegistry(priceSvc, defaults)

	// Application services
	notifier := notification.NewLogSender(cfg.Notification.Sender, log)
	notificationSvc := appbilling.NewNotificationService(notificationRepo, projectRepo, notifier, log)
	balanceSvc := appbilling.NewBalanceService(tm, balanceRepo, txnRepo, log)
	invoiceSvc := appbilling.NewInvoiceService(tm, invoiceRepo, componentRepo, projectRepo, registry, balanceSvc, notificationSvc, log)
	driverSvc := appbilling.NewDriverService(tm, settingsStore, projectRepo, invoiceRepo, componentRepo, priceRepo, registry, invoiceSvc, log)
	projectSvc := appbilling.NewProjectService(projectRepo, log)
	settingsSvc := appbilling.NewSettingsService(settingsStore, log)
	overviewSvc := appbilling.NewOverviewService(componentRepo, registry, log)

	policy, err := escalationPolicy(cfg.Escalation.Entries)
	if err != nil {
		return fmt.Errorf("build escalation policy: %w", err)
	}
	cloudClient, err := newCloudClient(cfg, log)
	if err != nil {
		return fmt.Errorf("build cloud client: %w", err)
	}
	unpaidSvc := appescalation.NewUnpaidService(
		invoiceRepo, projectRepo, policy, cloudClient, notificationSvc,
		cfg.Escalation.ActionTimeout, log,
	)
	eventSvc := appescalation.NewEventService(driverSvc, unpaidSvc, log)

	// Scheduler
	sweepLock, err := newSweepLock(cfg)
	if err != nil {
		return fmt.Errorf("build sweep lock: %w", err)
	}
	cronScheduler := scheduler.NewBillingCronScheduler(scheduler.Config{
		Enabled:             cfg.Scheduler.Enabled,
		InvoiceCronSchedule: cfg.Scheduler.InvoiceCronSchedule,
		UnpaidCronSchedule:  cfg.Scheduler.UnpaidCronSchedule,
		JobTimeout:          cfg.Scheduler.JobTimeout,
		LockTTL:             cfg.Scheduler.SweepLockTTL,
	}, driverSvc, unpaidSvc, sweepLock, log)

	if cfg.Scheduler.Enabled {
		if err := cronScheduler.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		log.Info("billing scheduler started",
			zap.String("invoice_schedule", cfg.Scheduler.InvoiceCronSchedule),
			zap.String("unpaid_schedule", cfg.Scheduler.UnpaidCronSchedule),
		)
	}

	// Metrics
	collector := telemetry.NewBillingCollector(overviewSvc, log)
	metricsRegistry := telemetry.NewRegistry(collector)

	// HTTP surface
	handlers := router.Handlers{
		Invoices:      handler.NewInvoiceHandler(invoiceSvc, log),
		Balances:      handler.NewBalanceHandler(balanceSvc, log),
		Admin:         handler.NewBillingAdminHandler(driverSvc, settingsSvc, cronScheduler, log),
		Settings:      handler.NewSettingsHandler(settingsSvc, log),
		Prices:        handler.NewPriceHandler(priceSvc, priceImportSvc, log),
		Projects:      handler.NewProjectHandler(projectSvc, log),
		Notifications: handler.NewNotificationHandler(notificationSvc, log),
		Overview:      handler.NewOverviewHandler(overviewSvc, log),
		Events:        handler.NewEventHandler(eventSvc, log),
	}
	engine, err := router.NewEngine(handlers, log, router.Options{
		MetricsHandler: telemetry.Handler(metricsRegistry),
		EventRateLimit: 600,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	if err := cronScheduler.Stop(ctx); err != nil {
		log.Error("scheduler shutdown", zap.Error(err))
	}

	log.Info("server stopped")
	return nil
}

// defaultRates parses the configured fallback hourly rates into money
// values keyed by resource kind
func defaultRates(rates map[string]string) (map[billing.ResourceKind]valueobject.Money, error) {
	out := make(map[billing.ResourceKind]valueobject.Money, len(rates))
	for kind, amount := range rates {
		m, err := valueobject.NewMoneyFromString(amount, valueobject.DefaultCurrency)
		if err != nil {
			return nil, fmt.Errorf("rate for %s: %w", kind, err)
		}
		out[billing.ResourceKind(kind)] = m
	}
	return out, nil
}

func escalationPolicy(entries []config.EscalationEntry) (*escalation.Policy, error) {
	converted := make([]escalation.Entry, 0, len(entries))
	for _, e := range entries {
		converted = append(converted, escalation.Entry{
			Day:            e.Day,
			Action:         escalation.Action(e.Action),
			MessageTitle:   e.MessageTitle,
			MessageShort:   e.MessageShortDescription,
			MessageContent: e.MessageContent,
		})
	}
	return escalation.NewPolicy(converted)
}

func newCloudClient(cfg *config.Config, log *zap.Logger) (escalation.CloudClient, error) {
	if cfg.Cloud.Mode == "http" {
		return cloud.NewHTTPCloudClient(cloud.Config{
			BaseURL: cfg.Cloud.BaseURL,
			Token:   cfg.Cloud.Token,
			Timeout: cfg.Cloud.Timeout,
		})
	}
	return cloud.NewInMemoryCloudClient(log), nil
}

func newSweepLock(cfg *config.Config) (scheduler.Lock, error) {
	if cfg.Redis.Enabled {
		return cache.NewRedisSweepLock(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	return cache.NewInMemorySweepLock(), nil
}
