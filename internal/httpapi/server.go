package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/trip-dispatch/internal/dispatch"
	"github.com/example/trip-dispatch/internal/models"
	"github.com/example/trip-dispatch/internal/trips"
)

// Presence is the driver location/availability surface the API writes to.
type Presence interface {
	Upsert(d models.Driver)
	SetOnline(id string, online bool, now time.Time)
}

// NearbyFinder is an optional Presence capability used by the ops endpoint.
type NearbyFinder interface {
	Nearby(ctx context.Context, origin models.Coord, radiusM float64, limit int) ([]models.Driver, error)
}

// LocationPublisher forwards location reports to the ingestion feed.
type LocationPublisher interface {
	PublishLocation(d models.Driver) error
}

// Server wires the orchestration service to HTTP. Authentication is an
// external collaborator: callers arrive with already-authenticated actor
// ids in the X-Rider-ID / X-Driver-ID headers.
type Server struct {
	Service  *trips.Service
	Presence Presence
	Kafka    LocationPublisher // optional
	WSReg    *dispatch.WSRegistry

	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(svc *trips.Service, presence Presence, kafka LocationPublisher, wsreg *dispatch.WSRegistry, logger *slog.Logger) *Server {
	s := &Server{
		Service:  svc,
		Presence: presence,
		Kafka:    kafka,
		WSReg:    wsreg,
		logger:   logger,
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/trips/quote", s.handleQuote).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips", s.handleCreateTrip).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips/mine", s.handleRiderTrips).Methods("GET")
	s.mux.HandleFunc("/api/v1/trips/driver/mine", s.handleDriverTrips).Methods("GET")
	s.mux.HandleFunc("/api/v1/trips/{trip_id}", s.handleGetTrip).Methods("GET")
	s.mux.HandleFunc("/api/v1/trips/{trip_id}/request", s.handleRequestTrip).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips/{trip_id}/arrive", s.handleArrive).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips/{trip_id}/start", s.handleStart).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips/{trip_id}/complete", s.handleComplete).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips/{trip_id}/cancel", s.handleCancel).Methods("POST")

	s.mux.HandleFunc("/api/v1/dispatch/offers", s.handleMyOffers).Methods("GET")
	s.mux.HandleFunc("/api/v1/dispatch/offers/accept", s.handleAcceptOffer).Methods("POST")

	s.mux.HandleFunc("/api/v1/driver/me/availability", s.handleAvailability).Methods("POST")
	s.mux.HandleFunc("/internal/driver/locations", s.handleDriverLocation).Methods("POST")
	s.mux.HandleFunc("/internal/drivers/nearby", s.handleNearby).Methods("GET")

	s.mux.HandleFunc("/ws/drivers/{driver_id}", s.handleWS)

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }
