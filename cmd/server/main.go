package main

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/equipment-rental/internal/config"
	"github.com/iliyamo/equipment-rental/internal/database"
	"github.com/iliyamo/equipment-rental/internal/handler"
	"github.com/iliyamo/equipment-rental/internal/lock"
	"github.com/iliyamo/equipment-rental/internal/middleware"
	"github.com/iliyamo/equipment-rental/internal/queue"
	"github.com/iliyamo/equipment-rental/internal/repository"
	"github.com/iliyamo/equipment-rental/internal/router"
	"github.com/iliyamo/equipment-rental/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set the environment directly
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Fatal("redis: connection failed; the lock store is required")
	}
	defer rdb.Close()

	locks := lock.NewManager(rdb, time.Duration(cfg.LockTTLSeconds)*time.Second)
	equipmentRepo := repository.NewEquipmentRepo(db)
	bookingRepo := repository.NewBookingRepo(db)
	searchRepo := repository.NewEquipmentSearch(db)
	payments := service.NewHTTPPaymentClient(cfg.PaymentBaseURL)
	bookings := service.NewBookingService(equipmentRepo, bookingRepo, locks, payments)

	// Background consumer for confirmed-booking events.
	go func() {
		if err := queue.StartBookingConsumer(); err != nil {
			log.Printf("booking-consumer: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)

	rateLimit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.ResponseCache(config.LoadCacheConfig(), rdb)
	lockHandler := handler.NewLockHandler(locks)

	router.RegisterRentals(e,
		handler.NewSearchHandler(searchRepo),
		handler.NewBookingHandler(bookings),
		lockHandler,
		rateLimit, cache)
	router.RegisterLockAdmin(e, lockHandler, cfg.AdminJWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
