package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-pooling/internal/cache"
	"github.com/example/ride-pooling/internal/config"
	"github.com/example/ride-pooling/internal/dispatch"
	"github.com/example/ride-pooling/internal/eta"
	"github.com/example/ride-pooling/internal/geo"
	"github.com/example/ride-pooling/internal/ingest"
	"github.com/example/ride-pooling/internal/logging"
	"github.com/example/ride-pooling/internal/match"
	"github.com/example/ride-pooling/internal/models"
	"github.com/example/ride-pooling/internal/observability"
	"github.com/example/ride-pooling/internal/payments"
	"github.com/example/ride-pooling/internal/route"
	"github.com/example/ride-pooling/internal/storage"
)

const version = "1.0.0"

// offerWindow bounds how far either side of the requested departure the
// store is searched for candidate offers.
const offerWindow = 2 * time.Hour

// PaymentClient is the booking fare hold/capture/release surface the
// handlers need; payments.StripeClient implements it.
type PaymentClient interface {
	HoldFare(ctx context.Context, b *models.Booking, currency string) (string, error)
	CaptureFare(ctx context.Context, paymentIntentID string) error
	ReleaseFare(ctx context.Context, paymentIntentID string) error
}

type Server struct {
	Offers   geo.OfferIndex
	Store    storage.OfferStore
	Bookings storage.BookingStore
	Matcher  *match.Service
	Planner  *route.Planner
	Kafka    *ingest.KafkaProducer
	Payments PaymentClient
	WSReg    *dispatch.WSRegistry

	cfg    config.ServerConfig
	logger *slog.Logger
	now    func() time.Time
	mux    *mux.Router
}

func NewServerFromEnv() (*Server, error) {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.NewLogger(cfg.LogLevel)

	var offers geo.OfferIndex
	if cfg.RedisAddr != "" {
		offers = geo.NewRedisGeo(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
	} else {
		offers = geo.NewIndex()
	}

	mem := storage.NewMemoryStore()
	var store storage.OfferStore = mem
	var bookings storage.BookingStore = mem
	if cfg.PGDSN != "" {
		if ps, err := storage.NewPostgresStore(cfg.PGDSN); err == nil {
			store = ps
			bookings = ps
		} else {
			logger.Warn("postgres unavailable, using memory store", "error", err)
		}
	}

	var kp *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		kp = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}

	wsreg := dispatch.NewWSRegistry()
	var dispatcher match.Dispatcher = wsreg
	switch {
	case cfg.FCMEndpoint != "":
		dispatcher = dispatch.Fallback{wsreg, dispatch.NewFCMDispatcher(cfg.FCMEndpoint, cfg.FCMKey)}
	case cfg.PushEndpoint != "":
		dispatcher = dispatch.NewPushDispatcher(cfg.PushEndpoint, wsreg)
	}

	scorer, err := match.NewScorer(match.DefaultWeights())
	if err != nil {
		return nil, err
	}
	matcher := &match.Service{
		Scorer:   scorer,
		Dispatch: dispatcher,
		Limit:    cfg.MatchLimit,
		Logger:   logger,
	}
	if cfg.RedisAddr != "" {
		matcher.Cache = cache.NewMatchCache(cfg.RedisAddr, cfg.RedisPassword, cfg.MatchCacheTTL)
	}
	if cfg.OSRMEndpoint != "" {
		matcher.ETAClient = eta.NewOSRMClient(cfg.OSRMEndpoint)
		matcher.ETACache = eta.NewCache(5 * time.Minute)
	}

	planner := &route.Planner{
		AvgSpeedKmh:   cfg.RouteAvgSpeedKmh,
		MaxPassengers: cfg.MaxPassengers,
		Logger:        logger,
	}

	s := &Server{
		Offers:   offers,
		Store:    store,
		Bookings: bookings,
		Matcher:  matcher,
		Planner:  planner,
		Kafka:    kp,
		WSReg:    wsreg,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		mux:      mux.NewRouter(),
	}
	if os.Getenv("STRIPE_API_KEY") != "" {
		s.Payments = payments.NewStripeClient()
	}
	s.registerMiddleware()
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/matches", s.handleFindMatches).Methods("POST")
	s.mux.HandleFunc("/api/v1/routes/optimize", s.handleOptimizeRoute).Methods("POST")
	s.mux.HandleFunc("/api/v1/offers", s.handlePostOffer).Methods("POST")
	s.mux.HandleFunc("/api/v1/bookings", s.handleCreateBooking).Methods("POST")
	s.mux.HandleFunc("/api/v1/bookings/{booking_id}/complete", s.handleCompleteBooking).Methods("POST")
	s.mux.HandleFunc("/api/v1/bookings/{booking_id}/cancel", s.handleCancelBooking).Methods("POST")
	s.mux.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{driver_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleFindMatches(w http.ResponseWriter, r *http.Request) {
	var req models.MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Origin.Valid() || !req.Destination.Valid() {
		writeError(w, http.StatusBadRequest, "origin and destination coordinates are required")
		return
	}
	if req.DepartureTime.IsZero() {
		req.DepartureTime = s.now()
	}

	candidates := s.candidatesFor(r, req)
	requestID := newID()
	results := s.Matcher.FindMatches(r.Context(), requestID, req, candidates)

	writeJSON(w, http.StatusOK, map[string]any{
		"request_id": requestID,
		"matches":    results,
		"count":      len(results),
	})
}

// candidatesFor prefers the geo index (redis or in-memory) and falls back
// to a departure-window scan of the offer store.
func (s *Server) candidatesFor(r *http.Request, req models.MatchRequest) []models.CandidateOffer {
	if s.Offers != nil {
		if cands := s.Offers.Nearby(req.Origin.Lat, req.Origin.Lon, s.cfg.MatchLimit*2); len(cands) > 0 {
			return cands
		}
	}
	if s.Store == nil {
		return nil
	}
	cands, err := s.Store.ListOpenOffers(r.Context(), req.DepartureTime.Add(-offerWindow), req.DepartureTime.Add(offerWindow))
	if err != nil {
		s.logger.Error("offer store query failed", "error", err)
		return nil
	}
	return cands
}

type optimizeRequest struct {
	Waypoints   []models.Waypoint `json:"waypoints"`
	Constraints struct {
		MaxPassengers int `json:"max_passengers"`
	} `json:"constraints"`
}

func (s *Server) handleOptimizeRoute(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	optimized, segments, err := s.Planner.Optimize(req.Waypoints, req.Constraints.MaxPassengers)
	switch {
	case errors.Is(err, route.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, route.ErrCapacityExceeded):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, route.ErrIncompleteRoute):
		// sequencer defect, not caller input; keep the details in the log
		s.logger.Error("route evaluation lost a passenger", "error", err)
		writeError(w, http.StatusInternalServerError, "route optimization failed")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "route optimization failed")
		return
	}

	observability.RoutesOptimized.Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"route":            optimized,
		"passenger_routes": segments,
	})
}

func (s *Server) handlePostOffer(w http.ResponseWriter, r *http.Request) {
	var o models.CandidateOffer
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if o.ID == "" {
		o.ID = newID()
	}
	if !o.Origin.Valid() || !o.Destination.Valid() || o.AvailableSeats <= 0 {
		writeError(w, http.StatusBadRequest, "offer needs valid coordinates and at least one seat")
		return
	}

	if s.Kafka != nil {
		if err := s.Kafka.PublishOffer(o); err != nil {
			s.logger.Warn("offer publish failed", "offer_id", o.ID, "error", err)
		}
	}
	if s.Store != nil {
		if err := s.Store.SaveOffer(r.Context(), o); err != nil {
			s.logger.Error("offer save failed", "offer_id", o.ID, "error", err)
		}
	}
	if s.Offers != nil {
		s.Offers.Upsert(o)
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"offer_id": o.ID})
}

type bookingRequest struct {
	RiderID      string  `json:"rider_id"`
	OfferID      string  `json:"offer_id"`
	DriverID     string  `json:"driver_id"`
	Seats        int     `json:"seats"`
	PricePerSeat float64 `json:"price_per_seat"`
	Currency     string  `json:"currency"`
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RiderID == "" || req.OfferID == "" || req.Seats < 1 {
		writeError(w, http.StatusBadRequest, "rider_id, offer_id and seats are required")
		return
	}
	if req.Currency == "" {
		req.Currency = "usd"
	}

	b := &models.Booking{
		ID:         newID(),
		RiderID:    req.RiderID,
		OfferID:    req.OfferID,
		DriverID:   req.DriverID,
		Seats:      req.Seats,
		FareAmount: float64(req.Seats) * req.PricePerSeat,
		Status:     "pending",
		CreatedAt:  s.now(),
		UpdatedAt:  s.now(),
	}
	if s.Payments != nil && b.FareAmount > 0 {
		piID, err := s.Payments.HoldFare(r.Context(), b, req.Currency)
		if err != nil {
			s.logger.Error("fare hold failed", "booking_id", b.ID, "error", err)
			writeError(w, http.StatusBadGateway, "payment hold failed")
			return
		}
		b.PaymentIntentID = piID
		b.Status = "held"
	}
	if err := s.Bookings.SaveBooking(r.Context(), b); err != nil {
		s.logger.Error("booking save failed", "booking_id", b.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "booking save failed")
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// handleCompleteBooking captures the held fare and marks the booking
// confirmed once the trip finishes.
func (s *Server) handleCompleteBooking(w http.ResponseWriter, r *http.Request) {
	s.finishBooking(w, r, "confirmed")
}

// handleCancelBooking releases the held fare and marks the booking canceled.
func (s *Server) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	s.finishBooking(w, r, "canceled")
}

func (s *Server) finishBooking(w http.ResponseWriter, r *http.Request, status string) {
	id := mux.Vars(r)["booking_id"]
	b, err := s.Bookings.GetBooking(r.Context(), id)
	if errors.Is(err, storage.ErrBookingNotFound) {
		writeError(w, http.StatusNotFound, "booking not found")
		return
	}
	if err != nil {
		s.logger.Error("booking lookup failed", "booking_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "booking lookup failed")
		return
	}

	if s.Payments != nil && b.PaymentIntentID != "" && b.Status == "held" {
		settle := s.Payments.ReleaseFare
		if status == "confirmed" {
			settle = s.Payments.CaptureFare
		}
		if err := settle(r.Context(), b.PaymentIntentID); err != nil {
			s.logger.Error("fare settlement failed", "booking_id", b.ID, "status", status, "error", err)
			writeError(w, http.StatusBadGateway, "payment settlement failed")
			return
		}
	}

	b.Status = status
	b.UpdatedAt = s.now()
	if err := s.Bookings.UpdateBooking(r.Context(), b); err != nil {
		s.logger.Error("booking update failed", "booking_id", b.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "booking update failed")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "ride pooling services are running",
		"version":   version,
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["driver_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", 400)
		return
	}
	s.WSReg.Add(id, conn)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
