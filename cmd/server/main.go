package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/trip-dispatch/internal/config"
	"github.com/example/trip-dispatch/internal/dispatch"
	"github.com/example/trip-dispatch/internal/geo"
	"github.com/example/trip-dispatch/internal/httpapi"
	"github.com/example/trip-dispatch/internal/ingest"
	"github.com/example/trip-dispatch/internal/logging"
	"github.com/example/trip-dispatch/internal/matcher"
	"github.com/example/trip-dispatch/internal/models"
	"github.com/example/trip-dispatch/internal/quote"
	"github.com/example/trip-dispatch/internal/storage"
	"github.com/example/trip-dispatch/internal/trips"
)

// tracker is the full presence surface; both the in-memory and the Redis
// implementation satisfy it.
type tracker interface {
	Upsert(d models.Driver)
	SetOnline(id string, online bool, now time.Time)
	Snapshot(ctx context.Context, maxAge time.Duration, now time.Time) ([]models.Driver, error)
	Nearby(ctx context.Context, origin models.Coord, radiusM float64, limit int) ([]models.Driver, error)
}

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var presence tracker
	if cfg.RedisAddr != "" {
		presence = geo.NewRedisTracker(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
		logger.Info("driver presence backed by redis", "addr", cfg.RedisAddr)
	} else {
		presence = geo.NewTracker()
	}

	var tripStore storage.TripStore
	if cfg.PGDSN != "" {
		if cfg.RunMigrations {
			runMigrations(cfg.PGDSN)
		}
		ps, err := storage.NewPostgresTripStore(cfg.PGDSN)
		if err != nil {
			log.Fatalf("postgres trip store: %v", err)
		}
		tripStore = ps
		logger.Info("trip store backed by postgres")
	} else {
		tripStore = storage.NewMemoryTripStore()
	}

	offers := storage.NewMemoryOfferStore()
	assignments := storage.NewAssignmentTracker()
	queue := matcher.NewWaveQueue()
	wsreg := dispatch.NewWSRegistry()

	engine := &matcher.Engine{
		Trips:   tripStore,
		Offers:  offers,
		Drivers: presence,
		Queue:   queue,
		Notify:  wsreg,
		Opts: matcher.Options{
			MaxOffersPerTrip: cfg.MaxOffersPerTrip,
			SearchRadiusM:    cfg.SearchRadiusM,
			LocationMaxAge:   cfg.LocationMaxAge,
			OfferTTL:         cfg.OfferTTL,
			Wave1Count:       cfg.Wave1Count,
			WaveNCount:       cfg.WaveNCount,
			WaveDelay:        cfg.WaveDelay,
		},
		Log: logger,
	}

	var events trips.EventPublisher
	var locations httpapi.LocationPublisher
	if len(cfg.KafkaBrokers) > 0 {
		lp := ingest.NewLocationProducer(cfg.KafkaBrokers, cfg.KafkaLocationTopic)
		ep := ingest.NewEventProducer(cfg.KafkaBrokers, cfg.KafkaEventTopic)
		defer func() { _ = lp.Close(); _ = ep.Close() }()
		locations = lp
		events = ep
	}

	pricing := quote.DefaultPricing()
	pricing.TTL = cfg.QuoteTTL

	svc := &trips.Service{
		Trips:       tripStore,
		Offers:      offers,
		Assignments: assignments,
		Dispatcher:  engine,
		Quotes:      quote.Engine{Pricing: pricing},
		Tokens:      quote.NewTokenCodec(cfg.QuoteSecret),
		Events:      events,
		Log:         logger,
	}

	scheduler := &matcher.Scheduler{Queue: queue, Engine: engine, Poll: cfg.WavePoll, Log: logger}
	sweeper := &matcher.Sweeper{Offers: offers, Interval: cfg.SweepInterval, Log: logger}
	go scheduler.Run(ctx)
	go sweeper.Run(ctx)

	srv := httpapi.NewServer(svc, presence, locations, wsreg, logger)
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("trip-dispatch listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}

// runMigrations applies migrations/001_create_trips.sql when requested.
func runMigrations(dsn string) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Printf("migration db open error: %v", err)
		return
	}
	defer db.Close()
	b, err := os.ReadFile(filepath.Join("migrations", "001_create_trips.sql"))
	if err != nil {
		log.Printf("migration read error: %v", err)
		return
	}
	if _, err := db.Exec(string(b)); err != nil {
		log.Printf("migration exec error: %v", err)
		return
	}
	log.Printf("migration applied: 001_create_trips.sql")
}
