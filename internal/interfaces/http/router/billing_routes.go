package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cloudbill/backend/internal/infrastructure/logger"
	"github.com/cloudbill/backend/internal/interfaces/http/handler"
	"github.com/cloudbill/backend/internal/interfaces/http/middleware"
)

// maxBodyBytes caps request bodies; billing payloads are small
const maxBodyBytes = 1 << 20

// Handlers bundles every billing endpoint handler for route setup
type Handlers struct {
	Invoices      *handler.InvoiceHandler
	Balances      *handler.BalanceHandler
	Admin         *handler.BillingAdminHandler
	Settings      *handler.SettingsHandler
	Prices        *handler.PriceHandler
	Projects      *handler.ProjectHandler
	Notifications *handler.NotificationHandler
	Overview      *handler.OverviewHandler
	Events        *handler.EventHandler
}

// Options tunes the HTTP surface
type Options struct {
	// MetricsHandler serves Prometheus metrics when set
	MetricsHandler http.Handler
	// EventRateLimit caps control plane event intake per minute per
	// client; zero disables the limiter
	EventRateLimit int
	TrustedProxies []string
}

// NewEngine builds the gin engine with the standard middleware chain
// and all billing routes registered
func NewEngine(h Handlers, log *zap.Logger, opts Options) (*gin.Engine, error) {
	engine := gin.New()
	if err := engine.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, err
	}

	middleware.SetupValidator()

	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.CORS())
	engine.Use(middleware.Secure())
	engine.Use(middleware.BodyLimit(maxBodyBytes))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.MetricsHandler != nil {
		engine.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}

	r := NewRouter(engine, WithAPIVersion("v1"))
	r.Register(billingRoutes(h, opts))
	r.Setup()

	return engine, nil
}

// billingRoutes lays out the versioned API surface
func billingRoutes(h Handlers, opts Options) *DomainGroup {
	g := NewDomainGroup("billing", "")

	g.POST("/billing/enable", h.Admin.Enable)
	g.POST("/billing/disable", h.Admin.Disable)
	g.POST("/billing/reset", h.Admin.Reset)
	g.GET("/billing/status", h.Admin.Status)
	g.POST("/billing/run/invoices", h.Admin.RunInvoiceSweep)
	g.POST("/billing/run/unpaid", h.Admin.RunUnpaidSweep)

	g.GET("/invoices", h.Invoices.List)
	g.GET("/invoices/:id", h.Invoices.Get)
	g.POST("/invoices/:id/finish", h.Invoices.Finish)
	g.POST("/invoices/:id/rollback", h.Invoices.Rollback)

	g.GET("/balances", h.Balances.List)
	g.GET("/projects", h.Projects.List)
	g.GET("/projects/:id/balance", h.Balances.Get)
	g.POST("/projects/:id/balance/deposit", h.Balances.Deposit)
	g.POST("/projects/:id/balance/withdraw", h.Balances.Withdraw)
	g.GET("/projects/:id/balance/transactions", h.Balances.Transactions)

	g.GET("/tenants/:tenant_id/project", h.Projects.GetByTenant)
	g.PUT("/tenants/:tenant_id/email", h.Projects.UpdateEmail)

	g.GET("/prices", h.Prices.List)
	g.PUT("/prices", h.Prices.Set)
	g.POST("/prices/import", h.Prices.Import)
	g.DELETE("/prices/:id", h.Prices.Delete)

	g.GET("/settings", h.Settings.List)
	g.GET("/settings/:key", h.Settings.Get)
	g.PUT("/settings/:key", h.Settings.Set)

	g.GET("/notifications", h.Notifications.List)
	g.GET("/notifications/:id", h.Notifications.Get)
	g.POST("/notifications/:id/read", h.Notifications.MarkRead)
	g.POST("/notifications/:id/unread", h.Notifications.MarkUnread)
	g.POST("/notifications/:id/resend", h.Notifications.Resend)

	g.GET("/overview", h.Overview.ByKind)

	events := g.Group("events", "/events")
	if opts.EventRateLimit > 0 {
		limiter := middleware.NewRateLimiter(opts.EventRateLimit, time.Minute)
		events.Use(middleware.RateLimit(limiter))
	}
	events.POST("", h.Events.Ingest)

	return g
}
