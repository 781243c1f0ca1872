package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/ride-pooling/internal/config"
	"github.com/example/ride-pooling/internal/geo"
	"github.com/example/ride-pooling/internal/match"
	"github.com/example/ride-pooling/internal/models"
	"github.com/example/ride-pooling/internal/route"
	"github.com/example/ride-pooling/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg, err := config.LoadServerConfig()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	scorer, err := match.NewScorer(match.DefaultWeights())
	if err != nil {
		t.Fatalf("scorer: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := storage.NewMemoryStore()
	s := &Server{
		Offers:   geo.NewIndex(),
		Store:    mem,
		Bookings: mem,
		Matcher:  &match.Service{Scorer: scorer, Limit: cfg.MatchLimit, Logger: logger},
		Planner:  &route.Planner{AvgSpeedKmh: cfg.RouteAvgSpeedKmh, MaxPassengers: cfg.MaxPassengers, Logger: logger},
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func TestPostOfferThenFindMatches(t *testing.T) {
	s := newTestServer(t)
	departure := time.Now().Add(time.Hour)

	offer := models.CandidateOffer{
		ID:             "o1",
		DriverID:       "d1",
		Origin:         models.Coord{Lat: 40.7128, Lon: -74.0060},
		Destination:    models.Coord{Lat: 40.7580, Lon: -73.9855},
		DepartureTime:  departure,
		AvailableSeats: 3,
		PricePerSeat:   10,
		DriverRating:   4.8,
	}
	if w := doJSON(t, s, http.MethodPost, "/api/v1/offers", offer); w.Code != http.StatusAccepted {
		t.Fatalf("offer post status %d: %s", w.Code, w.Body.String())
	}

	reqBody := models.MatchRequest{
		RiderID:       "r1",
		Origin:        offer.Origin,
		Destination:   offer.Destination,
		DepartureTime: departure,
		Prefs:         models.Preferences{MaxDistanceKm: 10, SeatsNeeded: 1},
	}
	w := doJSON(t, s, http.MethodPost, "/api/v1/matches", reqBody)
	if w.Code != http.StatusOK {
		t.Fatalf("match status %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		RequestID string                       `json:"request_id"`
		Matches   []models.CompatibilityResult `json:"matches"`
		Count     int                          `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || len(resp.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", resp.Count)
	}
	if resp.Matches[0].OfferID != "o1" {
		t.Fatalf("wrong offer matched: %s", resp.Matches[0].OfferID)
	}
	if resp.RequestID == "" {
		t.Fatal("missing request id")
	}
}

func TestFindMatchesRejectsBadCoordinates(t *testing.T) {
	s := newTestServer(t)
	req := models.MatchRequest{
		Origin:      models.Coord{Lat: 95, Lon: 0},
		Destination: models.Coord{Lat: 0, Lon: 0},
	}
	if w := doJSON(t, s, http.MethodPost, "/api/v1/matches", req); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestFindMatchesEmptyIsOK(t *testing.T) {
	s := newTestServer(t)
	req := models.MatchRequest{
		Origin:      models.Coord{Lat: 40.7, Lon: -74},
		Destination: models.Coord{Lat: 40.8, Lon: -73.9},
	}
	w := doJSON(t, s, http.MethodPost, "/api/v1/matches", req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with empty matches, got %d", w.Code)
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 0 {
		t.Fatalf("expected 0 matches, got %d", resp.Count)
	}
}

func optimizeBody(waypoints []models.Waypoint, maxPassengers int) map[string]any {
	return map[string]any{
		"waypoints":   waypoints,
		"constraints": map[string]any{"max_passengers": maxPassengers},
	}
}

func routePair(passenger string, pickupLat, dropoffLat float64) []models.Waypoint {
	return []models.Waypoint{
		{ID: passenger + "-p", Kind: models.Pickup, PassengerID: passenger, Loc: models.Coord{Lat: pickupLat}},
		{ID: passenger + "-d", Kind: models.Dropoff, PassengerID: passenger, Loc: models.Coord{Lat: dropoffLat}},
	}
}

func TestOptimizeRoute(t *testing.T) {
	s := newTestServer(t)
	var wps []models.Waypoint
	wps = append(wps, routePair("p1", 0, 0.3)...)
	wps = append(wps, routePair("p2", 0.02, 0.28)...)

	w := doJSON(t, s, http.MethodPost, "/api/v1/routes/optimize", optimizeBody(wps, 4))
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Route           models.Route              `json:"route"`
		PassengerRoutes []models.PassengerSegment `json:"passenger_routes"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Route.Waypoints) != 4 || len(resp.PassengerRoutes) != 2 {
		t.Fatalf("unexpected payload: %s", w.Body.String())
	}
}

func TestOptimizeRouteInvalidInput(t *testing.T) {
	s := newTestServer(t)
	wps := routePair("p1", 0, 0.3)[:1]
	if w := doJSON(t, s, http.MethodPost, "/api/v1/routes/optimize", optimizeBody(wps, 4)); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestOptimizeRouteCapacityExceeded(t *testing.T) {
	s := newTestServer(t)
	var wps []models.Waypoint
	for i := 0; i < 5; i++ {
		wps = append(wps, routePair(string(rune('a'+i)), float64(i)*0.01, float64(i)*0.01+0.1)...)
	}
	if w := doJSON(t, s, http.MethodPost, "/api/v1/routes/optimize", optimizeBody(wps, 4)); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
}

func TestCreateBookingWithoutPayments(t *testing.T) {
	s := newTestServer(t)
	body := map[string]any{
		"rider_id":       "r1",
		"offer_id":       "o1",
		"driver_id":      "d1",
		"seats":          2,
		"price_per_seat": 12.5,
	}
	w := doJSON(t, s, http.MethodPost, "/api/v1/bookings", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var b models.Booking
	if err := json.Unmarshal(w.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.FareAmount != 25 || b.Status != "pending" {
		t.Fatalf("unexpected booking: %+v", b)
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

type fakePayments struct {
	captured []string
	released []string
	holdErr  error
}

func (f *fakePayments) HoldFare(ctx context.Context, b *models.Booking, currency string) (string, error) {
	if f.holdErr != nil {
		return "", f.holdErr
	}
	return "pi_" + b.ID, nil
}

func (f *fakePayments) CaptureFare(ctx context.Context, paymentIntentID string) error {
	f.captured = append(f.captured, paymentIntentID)
	return nil
}

func (f *fakePayments) ReleaseFare(ctx context.Context, paymentIntentID string) error {
	f.released = append(f.released, paymentIntentID)
	return nil
}

func createHeldBooking(t *testing.T, s *Server) models.Booking {
	t.Helper()
	w := doJSON(t, s, http.MethodPost, "/api/v1/bookings", map[string]any{
		"rider_id":       "r1",
		"offer_id":       "o1",
		"seats":          1,
		"price_per_seat": 10.0,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("booking status %d: %s", w.Code, w.Body.String())
	}
	var b models.Booking
	if err := json.Unmarshal(w.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return b
}

func TestCompleteBookingCapturesFare(t *testing.T) {
	s := newTestServer(t)
	fp := &fakePayments{}
	s.Payments = fp

	b := createHeldBooking(t, s)
	if b.Status != "held" || b.PaymentIntentID == "" {
		t.Fatalf("expected held booking with intent, got %+v", b)
	}

	w := doJSON(t, s, http.MethodPost, "/api/v1/bookings/"+b.ID+"/complete", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("complete status %d: %s", w.Code, w.Body.String())
	}
	var done models.Booking
	if err := json.Unmarshal(w.Body.Bytes(), &done); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if done.Status != "confirmed" {
		t.Fatalf("expected confirmed, got %s", done.Status)
	}
	if len(fp.captured) != 1 || fp.captured[0] != b.PaymentIntentID {
		t.Fatalf("fare not captured: %v", fp.captured)
	}
	if len(fp.released) != 0 {
		t.Fatalf("fare released on completion: %v", fp.released)
	}
}

func TestCancelBookingReleasesFare(t *testing.T) {
	s := newTestServer(t)
	fp := &fakePayments{}
	s.Payments = fp

	b := createHeldBooking(t, s)
	w := doJSON(t, s, http.MethodPost, "/api/v1/bookings/"+b.ID+"/cancel", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("cancel status %d: %s", w.Code, w.Body.String())
	}
	var done models.Booking
	if err := json.Unmarshal(w.Body.Bytes(), &done); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if done.Status != "canceled" {
		t.Fatalf("expected canceled, got %s", done.Status)
	}
	if len(fp.released) != 1 || fp.released[0] != b.PaymentIntentID {
		t.Fatalf("fare not released: %v", fp.released)
	}
	if len(fp.captured) != 0 {
		t.Fatalf("fare captured on cancel: %v", fp.captured)
	}
}

func TestCompleteUnknownBooking(t *testing.T) {
	s := newTestServer(t)
	if w := doJSON(t, s, http.MethodPost, "/api/v1/bookings/nope/complete", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestOptimizeRouteCannotRaiseConfiguredCap(t *testing.T) {
	s := newTestServer(t)
	var wps []models.Waypoint
	for i := 0; i < 5; i++ {
		wps = append(wps, routePair(string(rune('a'+i)), float64(i)*0.01, float64(i)*0.01+0.1)...)
	}
	// five passengers against a configured cap of four; asking for more
	// seats in the request must not lift the ceiling
	if w := doJSON(t, s, http.MethodPost, "/api/v1/routes/optimize", optimizeBody(wps, 99)); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
}
