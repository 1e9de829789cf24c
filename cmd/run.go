package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"casino/clock"
	"casino/config"
	"casino/database"
	"casino/events"
	"casino/games/crash"
	"casino/games/trading"
	"casino/gateway"
	"casino/repository"
	"casino/rng"
	"casino/service"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	log.Println("Starting casino engine...")

	// Load configuration
	cfg := config.Get()

	// Initialize database connection
	log.Println("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Println("Database connection established successfully")

	// Initialize event bus
	log.Println("Initializing event bus...")
	eventBus := events.NewBus()
	log.Println("Event bus initialized successfully")

	// Initialize unit of work factory
	log.Println("Initializing unit of work factory...")
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)
	log.Println("Unit of work factory initialized successfully")

	// Initialize ledger worker pool
	log.Println("Initializing ledger sync...")
	ledger, err := service.NewLedgerSync(uowFactory, cfg.LedgerWorkers)
	if err != nil {
		return fmt.Errorf("failed to initialize ledger sync: %w", err)
	}
	log.Println("Ledger sync initialized successfully")

	// Initialize services
	log.Println("Initializing services...")
	clk := clock.New()
	profileService := service.NewProfileService(uowFactory, cfg.DemoRefillAmount)
	darajaGateway := gateway.NewDaraja(cfg.Mpesa, clk)
	paymentService := service.NewPaymentService(uowFactory, darajaGateway, clk)
	adminService := service.NewAdminService(uowFactory, clk)
	log.Println("Services initialized successfully")

	// Start the shared crash rounds
	log.Println("Starting crash rounds...")
	crashConfig := crash.Config{
		HouseEdge:  cfg.CrashHouseEdge,
		GrowthRate: cfg.CrashGrowthRate,
	}
	crashRounds := crash.NewSupervisor(crashConfig, cfg.CrashIntermission, clk, rng.New(), eventBus)
	log.Println("Crash rounds started")

	// Start a price walk per tradable symbol
	log.Println("Starting trading markets...")
	tradingConfig := trading.Config{
		PayoutRate:  cfg.TradingPayoutRate,
		SettleDelay: cfg.TradingSettleDelay,
		TickEvery:   cfg.TradingTickEvery,
	}
	markets := make(map[string]*trading.Market, len(trading.Symbols))
	for _, symbol := range trading.Symbols {
		markets[symbol.Name] = trading.NewMarket(symbol, tradingConfig, clk, rng.New())
	}
	log.Printf("Trading markets started for %d symbols", len(markets))

	// Start the payment callback listener
	log.Println("Starting callback listener...")
	mux := http.NewServeMux()
	mux.HandleFunc("POST /payments/deposit", depositHandler(paymentService))
	mux.HandleFunc("POST /payments/withdraw", withdrawHandler(paymentService))
	mux.HandleFunc("POST /payments/mpesa/callback", callbackHandler(paymentService))
	mux.HandleFunc("POST /profiles", profileHandler(profileService))
	mux.HandleFunc("POST /admin/withdrawals/{id}/approve", withdrawalDecisionHandler(adminService, true))
	mux.HandleFunc("POST /admin/withdrawals/{id}/reject", withdrawalDecisionHandler(adminService, false))
	mux.HandleFunc("POST /admin/profiles/{id}/balance", setBalanceHandler(adminService))
	mux.HandleFunc("POST /admin/profiles/{id}/suspend", setSuspendedHandler(adminService))
	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}
	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()
	log.Printf("Callback listener started on %s", cfg.ListenAddr)

	// Wait for context cancellation
	log.Printf("Engine is running in %s mode...", cfg.Environment)
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		return fmt.Errorf("callback listener failed: %w", err)
	}

	// Cleanup resources
	log.Println("Shutting down engine...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Stop accepting callbacks
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error closing callback listener: %v", err)
	}

	// Stop the crash rotation and the market walks; open positions stay
	// pending
	crashRounds.Stop()
	for _, market := range markets {
		market.Close()
	}

	// Drain pending ledger writes
	ledger.Close()

	// Close database connection
	log.Println("Closing database connection...")
	db.Close()

	select {
	case <-shutdownCtx.Done():
		log.Println("Shutdown timeout exceeded")
	case <-time.After(1 * time.Second):
		log.Println("Shutdown completed")
	}

	return nil
}
