package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/reiswijzer/reiswijzer-go/api/handlers"
	"github.com/reiswijzer/reiswijzer-go/internal/cache"
	"github.com/reiswijzer/reiswijzer-go/internal/config"
	"github.com/reiswijzer/reiswijzer-go/internal/favorites"
	"github.com/reiswijzer/reiswijzer-go/internal/nsapi"
	"github.com/reiswijzer/reiswijzer-go/internal/ov"
	"github.com/reiswijzer/reiswijzer-go/internal/resolver"
	"github.com/reiswijzer/reiswijzer-go/internal/search"
)

func main() {
	var (
		configPath = flag.String("config", "config.yml", "Configuration file")
		port       = flag.String("port", "", "Server port (overrides config)")
		apiKey     = flag.String("api-key", "", "NS API subscription key")
	)
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *apiKey != "" {
		cfg.NS.APIKey = *apiKey
	}
	if cfg.NS.APIKey == "" {
		log.Fatal("NS API key required (use -api-key flag, NS_API_KEY env var, or config file)")
	}
	if *port != "" {
		p, perr := strconv.Atoi(*port)
		if perr != nil {
			log.Fatalf("Invalid port %q", *port)
		}
		cfg.Server.Port = p
	}

	nsOpts := []nsapi.ClientOption{
		nsapi.WithTimeout(time.Duration(cfg.NS.TimeoutSeconds) * time.Second),
		nsapi.WithTripConcurrency(int64(cfg.NS.TripSlots)),
		nsapi.WithStationConcurrency(int64(cfg.NS.StationSlots)),
	}
	if cfg.NS.BaseURL != "" {
		nsOpts = append(nsOpts, nsapi.WithBaseURL(cfg.NS.BaseURL))
	}
	nsClient, err := nsapi.NewClient(cfg.NS.APIKey, nsOpts...)
	if err != nil {
		log.Fatalf("Failed to create NS client: %v", err)
	}

	stations := resolver.New(nsClient,
		resolver.WithTTL(time.Duration(cfg.Cache.StationTTLMinutes)*time.Minute),
		resolver.WithCapacity(cfg.Cache.StationCapacity),
	)
	stations.Start()
	defer stations.Stop()

	params := search.DefaultParams()
	params.Target = cfg.Search.Target
	params.MaxVia = cfg.Search.MaxVia
	params.TopA = cfg.Search.TopA
	params.TopB = cfg.Search.TopB
	params.MaxTransfer = time.Duration(cfg.Search.MaxTransferMinutes) * time.Minute
	params.Budget = time.Duration(cfg.Search.BudgetSeconds) * time.Second
	params.TransferThresholdMin = cfg.Search.TransferThresholdMinutes
	params.TransferPenaltyFactor = cfg.Search.TransferPenaltyFactor
	engine := search.New(nsClient, stations, params)

	ovOpts := []ov.ClientOption{
		ov.WithTimeout(time.Duration(cfg.OV.TimeoutSeconds) * time.Second),
	}
	if cfg.OV.BaseURL != "" {
		ovOpts = append(ovOpts, ov.WithBaseURL(cfg.OV.BaseURL))
	}
	board := ov.NewClient(ovOpts...)

	results := cache.New(time.Duration(cfg.Cache.ResponseTTLSeconds)*time.Second, cfg.Cache.ResponseCapacity)

	favs, err := favorites.NewStore(cfg.Favorites)
	if err != nil {
		log.Fatalf("Failed to open favorites store: %v", err)
	}

	r := mux.NewRouter()
	h := handlers.NewHandler(engine, stations, board, results, favs)
	h.RegisterRoutes(r)

	r.Use(loggingMiddleware)
	r.Use(corsMiddleware)

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.RequestURI, time.Since(start))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
