package server

import (
	"log/slog"
	"net/http"

	"empires-server/internal/base"
	baseHandlers "empires-server/internal/base/handlers"
	"empires-server/internal/catalog"
	catalogHandlers "empires-server/internal/catalog/handlers"
	"empires-server/internal/empire"
	empireHandlers "empires-server/internal/empire/handlers"
	"empires-server/internal/fleet"
	"empires-server/internal/middleware"
	"empires-server/internal/notify"
	"empires-server/internal/queue"
	queueHandlers "empires-server/internal/queue/handlers"
	serverHandlers "empires-server/internal/server/handlers"
	"empires-server/internal/shared/database"
)

type Routes struct {
	db            *database.DB
	catalog       *catalog.Provider
	empireService *empire.Service
	baseService   *base.Service
	fleetService  *fleet.Service
	engine        *queue.Engine
	hub           *notify.Hub
	logger        *slog.Logger
}

func NewRoutes(
	db *database.DB,
	cat *catalog.Provider,
	empireService *empire.Service,
	baseService *base.Service,
	fleetService *fleet.Service,
	engine *queue.Engine,
	hub *notify.Hub,
	logger *slog.Logger,
) *Routes {
	return &Routes{
		db:            db,
		catalog:       cat,
		empireService: empireService,
		baseService:   baseService,
		fleetService:  fleetService,
		engine:        engine,
		hub:           hub,
		logger:        logger,
	}
}

func (r *Routes) Setup() *http.ServeMux {
	logger := slog.With("component", "routes", "operation", "setup")
	logger.Debug("Setting up application routes")

	mux := http.NewServeMux()

	healthHandler := serverHandlers.NewHealthHandler(r.db)
	catalogHandler := catalogHandlers.NewCatalogHandler(r.catalog)
	empireHandler := empireHandlers.NewEmpireHandler(r.empireService)
	baseHandler := baseHandlers.NewBaseHandler(r.baseService, r.fleetService)
	queueHandler := queueHandlers.NewQueueHandler(r.engine)

	// Public endpoints
	mux.Handle("/api/server/health", healthHandler)
	mux.HandleFunc("/api/catalog", catalogHandler.List)
	mux.HandleFunc("/api/catalog/{key}", catalogHandler.Get)
	mux.HandleFunc("/api/empires/register", empireHandler.Register)
	mux.HandleFunc("/api/empires/login", empireHandler.Login)
	mux.HandleFunc("/api/empires/logout", empireHandler.Logout)

	// Protected endpoints (authenticated empires)
	mux.Handle("/api/empires/me", middleware.JWTMiddleware(http.HandlerFunc(empireHandler.Me)))
	mux.Handle("/api/empires/me/transactions", middleware.JWTMiddleware(http.HandlerFunc(empireHandler.Transactions)))
	mux.Handle("/api/bases/{coord}", middleware.JWTMiddleware(http.HandlerFunc(baseHandler.GetDashboard)))
	mux.Handle("/api/bases/{coord}/fleet", middleware.JWTMiddleware(http.HandlerFunc(baseHandler.GetFleet)))
	mux.Handle("/api/bases/{coord}/queue", middleware.JWTMiddleware(http.HandlerFunc(queueHandler.Enqueue)))
	mux.Handle("/api/bases/{coord}/queue/items", middleware.JWTMiddleware(http.HandlerFunc(queueHandler.List)))
	mux.Handle("/api/queue/{id}", middleware.JWTMiddleware(http.HandlerFunc(queueHandler.Cancel)))

	// Live event stream
	mux.Handle("/ws", middleware.JWTMiddleware(http.HandlerFunc(r.hub.ServeWS)))

	logger.Info("Routes configured successfully",
		"public_endpoints", []string{"/api/server/health", "/api/catalog", "/api/empires/register", "/api/empires/login"},
		"protected_endpoints", []string{"/api/empires/me", "/api/bases/{coord}", "/api/bases/{coord}/queue", "/api/queue/{id}", "/ws"},
	)

	return mux
}
