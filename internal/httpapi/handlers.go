package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/example/trip-dispatch/internal/models"
	"github.com/example/trip-dispatch/internal/observability"
	"github.com/example/trip-dispatch/internal/quote"
	"github.com/example/trip-dispatch/internal/storage"
	"github.com/example/trip-dispatch/internal/trip"
	"github.com/example/trip-dispatch/internal/trips"
)

type quoteBody struct {
	PickupLat  float64 `json:"pickup_lat"`
	PickupLon  float64 `json:"pickup_lon"`
	DropoffLat float64 `json:"dropoff_lat"`
	DropoffLon float64 `json:"dropoff_lon"`
	Mode       int     `json:"mode"`
}

type createTripBody struct {
	quoteBody
	QuoteToken string `json:"quote_token"`
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var body quoteBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_body")
		return
	}
	q, token, err := s.Service.Quote(r.Context(),
		models.Coord{Lat: body.PickupLat, Lon: body.PickupLon},
		models.Coord{Lat: body.DropoffLat, Lon: body.DropoffLon},
		trip.Mode(body.Mode))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quote": q, "quote_token": token})
}

func (s *Server) handleCreateTrip(w http.ResponseWriter, r *http.Request) {
	riderID := r.Header.Get("X-Rider-ID")
	if riderID == "" {
		writeError(w, http.StatusUnauthorized, "missing_rider_id")
		return
	}
	var body createTripBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_body")
		return
	}
	t, err := s.Service.Create(r.Context(), riderID,
		models.Coord{Lat: body.PickupLat, Lon: body.PickupLon},
		models.Coord{Lat: body.DropoffLat, Lon: body.DropoffLon},
		trip.Mode(body.Mode), body.QuoteToken)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tripResponse(t))
}

func (s *Server) handleRequestTrip(w http.ResponseWriter, r *http.Request) {
	tripID := mux.Vars(r)["trip_id"]
	var body struct {
		QuoteToken string `json:"quote_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_body")
		return
	}
	t, err := s.Service.Request(r.Context(), tripID, body.QuoteToken)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tripResponse(t))
}

func (s *Server) handleArrive(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.Service.Arrive)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.Service.Start)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	s.handleTransition(w, r, s.Service.Complete)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Driver-ID") != "" {
		s.handleTransition(w, r, s.Service.CancelByDriver)
		return
	}
	if r.Header.Get("X-Rider-ID") != "" {
		s.handleTransition(w, r, s.Service.CancelByRider)
		return
	}
	writeError(w, http.StatusUnauthorized, "missing_actor_id")
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (trip.Trip, error)) {
	tripID := mux.Vars(r)["trip_id"]
	t, err := op(r.Context(), tripID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tripResponse(t))
}

func (s *Server) handleGetTrip(w http.ResponseWriter, r *http.Request) {
	t, err := s.Service.Trips.Get(r.Context(), mux.Vars(r)["trip_id"])
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleRiderTrips(w http.ResponseWriter, r *http.Request) {
	riderID := r.Header.Get("X-Rider-ID")
	if riderID == "" {
		writeError(w, http.StatusUnauthorized, "missing_rider_id")
		return
	}
	lister, ok := s.Service.Trips.(interface {
		ListByRider(ctx context.Context, riderID string) ([]trip.Trip, error)
	})
	if !ok {
		writeJSON(w, http.StatusOK, []trip.Trip{})
		return
	}
	list, err := lister.ListByRider(r.Context(), riderID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleDriverTrips(w http.ResponseWriter, r *http.Request) {
	driverID := r.Header.Get("X-Driver-ID")
	if driverID == "" {
		writeError(w, http.StatusUnauthorized, "missing_driver_id")
		return
	}
	lister, ok := s.Service.Trips.(interface {
		ListByDriver(ctx context.Context, driverID string) ([]trip.Trip, error)
	})
	if !ok {
		writeJSON(w, http.StatusOK, []trip.Trip{})
		return
	}
	list, err := lister.ListByDriver(r.Context(), driverID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleMyOffers(w http.ResponseWriter, r *http.Request) {
	driverID := r.Header.Get("X-Driver-ID")
	if driverID == "" {
		writeError(w, http.StatusUnauthorized, "missing_driver_id")
		return
	}
	offers, err := s.Service.OffersFor(r.Context(), driverID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, offers)
}

func (s *Server) handleAcceptOffer(w http.ResponseWriter, r *http.Request) {
	driverID := r.Header.Get("X-Driver-ID")
	if driverID == "" {
		writeError(w, http.StatusUnauthorized, "missing_driver_id")
		return
	}
	var body struct {
		OfferID   string `json:"offer_id"`
		VehicleID string `json:"vehicle_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.OfferID == "" {
		writeError(w, http.StatusBadRequest, "offer_id_required")
		return
	}
	accepted, t, err := s.Service.AcceptOffer(r.Context(), driverID, body.OfferID, body.VehicleID)
	if err != nil && !errors.Is(err, trips.ErrDriverBusy) {
		s.writeServiceError(w, err)
		return
	}
	resp := map[string]any{"accepted": accepted}
	if accepted {
		resp["trip_id"] = t.ID
		resp["status"] = t.Status.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	driverID := r.Header.Get("X-Driver-ID")
	if driverID == "" {
		writeError(w, http.StatusUnauthorized, "missing_driver_id")
		return
	}
	var body struct {
		IsOnline bool `json:"is_online"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed_body")
		return
	}
	s.Presence.SetOnline(driverID, body.IsOnline, time.Now())
	if body.IsOnline {
		observability.DriversOnline.Inc()
	} else {
		observability.DriversOnline.Dec()
	}
	writeJSON(w, http.StatusOK, map[string]any{"driver_id": driverID, "online": body.IsOnline})
}

func (s *Server) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	var d models.Driver
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil || d.ID == "" {
		writeError(w, http.StatusBadRequest, "malformed_body")
		return
	}
	d.Online = true
	if d.Updated.IsZero() {
		d.Updated = time.Now()
	}
	if s.Kafka != nil {
		_ = s.Kafka.PublishLocation(d)
	}
	s.Presence.Upsert(d)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	finder, ok := s.Presence.(NearbyFinder)
	if !ok {
		writeError(w, http.StatusNotImplemented, "nearby_unavailable")
		return
	}
	q := r.URL.Query()
	lat, _ := strconv.ParseFloat(q.Get("lat"), 64)
	lon, _ := strconv.ParseFloat(q.Get("lon"), 64)
	radius, err := strconv.ParseFloat(q.Get("radius"), 64)
	if err != nil || radius <= 0 {
		radius = 5000
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 {
		limit = 10
	}
	drivers, ferr := finder.Nearby(r.Context(), models.Coord{Lat: lat, Lon: lon}, radius, limit)
	if ferr != nil {
		writeError(w, http.StatusInternalServerError, "nearby_failed")
		return
	}
	writeJSON(w, http.StatusOK, drivers)
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["driver_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, "upgrade_failed")
		return
	}
	s.WSReg.Add(id, conn)
}

// writeServiceError maps the core's stable error conditions onto transport
// responses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, quote.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "invalid_quote_token")
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "trip_not_found")
	case errors.Is(err, storage.ErrOfferNotFound):
		writeError(w, http.StatusNotFound, "offer_not_found")
	case errors.Is(err, storage.ErrVersionConflict):
		writeError(w, http.StatusConflict, "concurrency_conflict")
	case errors.Is(err, trips.ErrDriverBusy):
		writeError(w, http.StatusConflict, "driver_busy")
	case errors.Is(err, trip.ErrQuoteExpired):
		writeError(w, http.StatusBadRequest, "quote_expired")
	case errors.Is(err, trip.ErrTripFinal), errors.Is(err, trip.ErrInvalidTransition), errors.Is(err, trip.ErrMissingQuote):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("unhandled service error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error")
	}
}

func tripResponse(t trip.Trip) map[string]any {
	return map[string]any{"trip_id": t.ID, "status": t.Status.String()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
