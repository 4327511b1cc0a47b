package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/fleet-booking/internal/config"
	"github.com/example/fleet-booking/internal/models"
)

func newTestServer() *Server {
	cfg := config.ServerConfig{
		APITokens:    []string{"pippo1"},
		DepositCents: 500,
		Currency:     "eur",
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewServer(cfg, logger)
}

func do(s *Server, method, path string, body any) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("bad response body %q: %v", w.Body.String(), err)
	}
}

func TestTokenGate(t *testing.T) {
	s := newTestServer()
	if w := do(s, "GET", "/cars", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w := do(s, "GET", "/cars?token=wrong", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", w.Code)
	}
	if w := do(s, "GET", "/cars?token=pippo1", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", w.Code)
	}
	if w := do(s, "GET", "/healthz", nil); w.Code != http.StatusOK {
		t.Fatalf("expected /healthz open, got %d", w.Code)
	}
}

func TestListCars(t *testing.T) {
	s := newTestServer()
	w := do(s, "GET", "/cars?token=pippo1", nil)
	var cars []models.Car
	decode(t, w, &cars)
	if len(cars) != s.Fleet.Len() {
		t.Fatalf("expected %d cars, got %d", s.Fleet.Len(), len(cars))
	}

	w = do(s, "GET", "/cars?availability=true&token=pippo1", nil)
	decode(t, w, &cars)
	for _, c := range cars {
		if !c.Available {
			t.Fatalf("expected only available cars, got %+v", c)
		}
	}

	if w := do(s, "GET", "/cars?availability=banana&token=pippo1", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong filter, got %d", w.Code)
	}
}

func TestGetCarByID(t *testing.T) {
	s := newTestServer()
	w := do(s, "GET", "/cars/ECHO-01?token=pippo1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var car models.Car
	decode(t, w, &car)
	if car.Model == "" {
		t.Fatal("expected model populated")
	}
	if w := do(s, "GET", "/cars/NOPE-99?token=pippo1", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestNearestCars(t *testing.T) {
	s := newTestServer()
	w := do(s, "GET", "/cars/nearests/2/2?token=pippo1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var cars []models.Car
	decode(t, w, &cars)
	if len(cars) == 0 {
		t.Fatal("expected at least one nearby car")
	}

	if w := do(s, "GET", "/cars/nearests/wrong/2?token=pippo1", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric latitude, got %d", w.Code)
	}
	if w := do(s, "GET", "/cars/nearests/2/wrong?token=pippo1", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric longitude, got %d", w.Code)
	}
	if w := do(s, "GET", "/cars/nearests/1000/1000?token=pippo1", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when nothing is near, got %d", w.Code)
	}
}

func TestPriceEstimate(t *testing.T) {
	s := newTestServer()
	w := do(s, "GET", "/prices/11/10/30/40?token=pippo1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Estimate float64 `json:"estimate"`
	}
	decode(t, w, &resp)
	if resp.Estimate != 98 {
		t.Fatalf("expected estimate 98, got %v", resp.Estimate)
	}

	if w := do(s, "GET", "/prices/hello/2/13/22?token=pippo1", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric param, got %d", w.Code)
	}
	if w := do(s, "GET", "/prices/2/2/hello/22?token=pippo1", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric third param, got %d", w.Code)
	}
}

func TestReservationLifecycle(t *testing.T) {
	s := newTestServer()
	body := map[string]string{"car_id": "ECHO-01", "user": "Giovanni Tropea", "destination": "Milan"}

	w := do(s, "POST", "/reservations?token=pippo1", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		Reservation models.Reservation `json:"reservation"`
	}
	decode(t, w, &created)
	if created.Reservation.Code == "" {
		t.Fatal("expected reservation code")
	}

	if car, _ := s.Fleet.Get("ECHO-01"); car.Available {
		t.Fatal("expected ECHO-01 unavailable after booking")
	}

	// second booking before cancellation fails
	if w := do(s, "POST", "/reservations?token=pippo1", body); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on double booking, got %d", w.Code)
	}

	w = do(s, "DELETE", "/reservations/"+created.Reservation.Code+"?token=pippo1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on cancel, got %d: %s", w.Code, w.Body.String())
	}
	if car, _ := s.Fleet.Get("ECHO-01"); !car.Available {
		t.Fatal("expected ECHO-01 available after cancel")
	}
	if w := do(s, "DELETE", "/reservations/"+created.Reservation.Code+"?token=pippo1", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 cancelling twice, got %d", w.Code)
	}
}

func TestReservationMissingField(t *testing.T) {
	s := newTestServer()
	w := do(s, "POST", "/reservations?token=pippo1", map[string]string{"car_id": "ECHO-01", "destination": "Milan"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var resp struct {
		Errors []fieldError `json:"errors"`
	}
	decode(t, w, &resp)
	if len(resp.Errors) != 1 || resp.Errors[0].Field != "user" {
		t.Fatalf("expected user field error, got %+v", resp.Errors)
	}
}

func TestVoteFlow(t *testing.T) {
	s := newTestServer()

	w := do(s, "POST", "/cars/votes?token=pippo1", map[string]any{"car_id": "ECHO-01", "userName": "Giovanni", "vote": 1})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Car models.Car `json:"car"`
	}
	decode(t, w, &resp)
	if resp.Car.Ranking != 1 || len(resp.Car.Votes) != 1 {
		t.Fatalf("expected ranking 1 after first vote, got %+v", resp.Car)
	}

	w = do(s, "POST", "/cars/votes?token=pippo1", map[string]any{"car_id": "ECHO-01", "userName": "Pippo", "vote": 5})
	decode(t, w, &resp)
	if resp.Car.Ranking != 3 || len(resp.Car.Votes) != 2 {
		t.Fatalf("expected ranking 3 after second vote, got %+v", resp.Car)
	}

	if w := do(s, "POST", "/cars/votes?token=pippo1", map[string]any{"car_id": "ECHO-11", "userName": "Giovanni", "vote": 1}); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown car, got %d", w.Code)
	}
	if w := do(s, "POST", "/cars/votes?token=pippo1", map[string]any{"car_id": "ECHO-01", "userName": "Giovanni"}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing vote, got %d", w.Code)
	}
	if w := do(s, "POST", "/cars/votes?token=pippo1", map[string]any{"car_id": "ECHO-01", "userName": "Giovanni", "vote": "five"}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric vote, got %d", w.Code)
	}
}
