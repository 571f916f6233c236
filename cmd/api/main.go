package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"creator-checkout/internal/alerts"
	"creator-checkout/internal/config"
	"creator-checkout/internal/db"
	"creator-checkout/internal/httpserver"
	cartrepo "creator-checkout/internal/repository/cart"
	orderrepo "creator-checkout/internal/repository/order"
	productrepo "creator-checkout/internal/repository/product"
	statsrepo "creator-checkout/internal/repository/stats"
	cartsvc "creator-checkout/internal/service/cart"
	checkoutsvc "creator-checkout/internal/service/checkout"
	ordersvc "creator-checkout/internal/service/order"
	statssvc "creator-checkout/internal/service/stats"
	surchargesvc "creator-checkout/internal/service/surcharge"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer dbpool.Close()

	bus := alerts.NewBus()

	productRepo := productrepo.NewPostgres(dbpool, logger)
	cartRepo := cartrepo.NewPostgres(dbpool)
	orderRepo := orderrepo.NewPostgres(dbpool, logger)
	statsRepo := statsrepo.NewPostgres(dbpool)

	cartService := cartsvc.New(cartRepo, bus, logger, cfg.MaxCartProducts, cfg.CartPersistDebounce)
	orderService := ordersvc.New(productRepo, orderRepo, ordersvc.LogTracker{Logger: logger}, logger)
	surchargeService := surchargesvc.New(surchargesvc.RateTable{
		"US": 7,
		"GB": 20,
		"DE": 19,
	}, logger)
	checkoutService := checkoutsvc.New(productRepo, cartService, orderService, surchargeService, bus, logger, cfg.RecaptchaSiteKey)
	statsService := statssvc.New(statsRepo, logger)
	searcher := statssvc.NewSearcher(productRepo)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		Checkout:   checkoutService,
		CartRepo:   cartRepo,
		Surcharges: surchargeService,
		Stats:      statsService,
		Search:     searcher,
		Bus:        bus,
	})
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Printf("starting http server on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Printf("received signal %s, shutting down", sig)
	case err := <-serverErr:
		logger.Printf("server error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	} else {
		logger.Printf("server stopped")
	}
}
