package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/dvaldes/gradgala/internal/config"
	"github.com/dvaldes/gradgala/internal/database"
	"github.com/dvaldes/gradgala/internal/gateway"
	"github.com/dvaldes/gradgala/internal/handler"
	"github.com/dvaldes/gradgala/internal/middleware"
	"github.com/dvaldes/gradgala/internal/queue"
	"github.com/dvaldes/gradgala/internal/repository"
	"github.com/dvaldes/gradgala/internal/router"
)

func main() {
	// A local .env is optional; container environments set vars directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()

	// Repositories
	events := repository.NewEventRepo(db)
	graduates := repository.NewGraduateRepo(db)
	tables := repository.NewTableRepo(db)
	selections := repository.NewSelectionRepo(db)
	tickets := repository.NewTicketRepo(db)
	guests := repository.NewGuestRepo(db)
	payments := repository.NewPaymentRepo(db)
	tokens := repository.NewTokenRepo(db)

	openpay := gateway.NewOpenpayClient(cfg.OpenpayMerchantID, cfg.OpenpayPrivateKey, cfg.Env == "prod")

	// Handlers
	authH := handler.NewAuthHandler(graduates, events, tokens, cfg)
	layoutH := handler.NewLayoutHandler(tables, selections, tickets, graduates, events)
	ticketsH := handler.NewTicketsHandler(tickets, guests, graduates, events, payments, selections)
	mealsH := handler.NewMealsHandler(guests, graduates, events)
	thermoH := handler.NewThermoHandler(graduates, events, tickets, payments)
	paymentsH := handler.NewPaymentsHandler(payments, graduates, events, tickets, openpay, cfg)
	dashboardH := handler.NewDashboardHandler(graduates, events, tickets, payments)
	adminH := handler.NewAdminHandler(events, tables, selections)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	cacheMW := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterGraduate(e, router.GraduateHandlers{
		Layout:    layoutH,
		Tickets:   ticketsH,
		Meals:     mealsH,
		Thermo:    thermoH,
		Payments:  paymentsH,
		Dashboard: dashboardH,
	}, cfg.JWTSecret, cacheMW)
	router.RegisterWebhooks(e, paymentsH)
	router.RegisterAdmin(e, adminH, cfg.JWTSecret)

	go func() {
		if err := queue.StartActivityConsumer(); err != nil {
			log.Printf("activity consumer stopped: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
