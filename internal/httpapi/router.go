package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dshills/ordermgr/internal/obs"
	"github.com/dshills/ordermgr/internal/service"
	"github.com/dshills/ordermgr/internal/storage"
)

// Catalog is the product API the handlers depend on.
// Satisfied by *service.CatalogService.
type Catalog interface {
	Create(ctx context.Context, in service.ProductInput) (*storage.Product, error)
	Update(ctx context.Context, productID int64, in service.ProductInput) (*storage.Product, error)
	Delete(ctx context.Context, productID int64) error
	Get(ctx context.Context, productID int64) (*storage.Product, error)
	List(ctx context.Context) ([]*storage.Product, error)
}

// Orders is the order API the handlers depend on.
// Satisfied by *service.OrderService.
type Orders interface {
	Create(ctx context.Context, in service.CreateOrderInput) (int64, error)
	Update(ctx context.Context, orderID int64, in service.UpdateOrderInput) error
	Delete(ctx context.Context, orderID int64) error
	SetStatus(ctx context.Context, orderID int64, status string) error
	Get(ctx context.Context, orderID int64) (*service.OrderDetail, error)
	List(ctx context.Context) ([]*storage.Order, error)
}

// Pinger reports backend health
type Pinger interface {
	Ping(ctx context.Context) error
}

// App carries the handlers' dependencies
type App struct {
	catalog    Catalog
	orders     Orders
	health     Pinger
	logger     *slog.Logger
	metrics    *obs.Metrics
	corsOrigin string
}

// Options configures optional App behaviour
type Options struct {
	Logger     *slog.Logger
	Metrics    *obs.Metrics
	CORSOrigin string // empty disables CORS headers
}

// NewApp wires handlers to their services
func NewApp(catalog Catalog, orders Orders, health Pinger, opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = obs.Discard()
	}
	return &App{
		catalog:    catalog,
		orders:     orders,
		health:     health,
		logger:     logger,
		metrics:    opts.Metrics,
		corsOrigin: opts.CORSOrigin,
	}
}

// NewRouter registers HTTP routes and returns the handler with middleware.
// The resource routes are served both at the root and under /api, where the
// browser UI expects them.
func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()
	r.Use(WithRequestID, app.withAccessLog, middleware.Recoverer)
	if app.corsOrigin != "" {
		r.Use(cors.Handler(corsOptions(app.corsOrigin)))
	}

	r.Get("/", app.bannerHandler)
	r.Get("/healthz", app.healthHandler)
	r.Handle("/metrics", app.metrics.Handler())

	app.resourceRoutes(r)
	r.Route("/api", app.resourceRoutes)
	return r
}

func (a *App) resourceRoutes(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", a.listProducts)
		r.Post("/", a.createProduct)
		r.Get("/{id}", a.getProduct)
		r.Put("/{id}", a.updateProduct)
		r.Delete("/{id}", a.deleteProduct)
	})
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", a.listOrders)
		r.Post("/", a.createOrder)
		r.Get("/{id}", a.getOrder)
		r.Put("/{id}", a.updateOrder)
		r.Delete("/{id}", a.deleteOrder)
		r.Patch("/{id}/status", a.setOrderStatus)
	})
}

func (a *App) bannerHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Orders API is running"))
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.health.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
