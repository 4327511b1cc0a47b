package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/fleet-booking/internal/booking"
	"github.com/example/fleet-booking/internal/config"
	"github.com/example/fleet-booking/internal/dispatch"
	"github.com/example/fleet-booking/internal/fleet"
	"github.com/example/fleet-booking/internal/ingest"
	"github.com/example/fleet-booking/internal/match"
	"github.com/example/fleet-booking/internal/observability"
	"github.com/example/fleet-booking/internal/payments"
	"github.com/example/fleet-booking/internal/rating"
	"github.com/example/fleet-booking/internal/storage"
)

type Server struct {
	Fleet    *fleet.Registry
	Bookings *booking.Service
	Ratings  *rating.Service
	WSReg    *dispatch.WSRegistry

	tokens map[string]struct{}
	logger *slog.Logger
	mux    *mux.Router
}

// NewServer wires the registry, ledger and aggregator with whatever side
// channels the config enables. Kafka, Postgres, the webhook and Stripe are
// all optional; the in-memory core works without any of them.
func NewServer(cfg config.ServerConfig, logger *slog.Logger) *Server {
	reg := fleet.NewRegistry(fleet.DefaultFleet())
	observability.CarsAvailable.Set(float64(reg.Len()))

	var journal storage.Journal
	if cfg.PGDSN != "" {
		if pj, err := storage.NewPostgresJournal(cfg.PGDSN); err == nil {
			journal = pj
		} else {
			logger.Warn("postgres journal unavailable, falling back to memory", "error", err)
		}
	}
	if journal == nil {
		journal = storage.NewMemoryJournal()
	}

	wsreg := dispatch.NewWSRegistry()
	notifier := dispatch.NewPushDispatcher(cfg.WebhookURL, wsreg)

	bookings := booking.NewService(reg)
	bookings.Journal = journal
	bookings.Notify = notifier
	bookings.Logger = logger

	ratings := &rating.Service{Fleet: reg, Journal: journal, Logger: logger}

	if len(cfg.KafkaBrokers) > 0 {
		kp := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		bookings.Events = kp
		ratings.Events = kp
	}
	if cfg.StripeAPIKey != "" {
		bookings.Deposits = payments.NewStripeClient(cfg.StripeAPIKey)
		bookings.DepositCents = cfg.DepositCents
		bookings.Currency = cfg.Currency
	}

	tokens := make(map[string]struct{}, len(cfg.APITokens))
	for _, t := range cfg.APITokens {
		tokens[t] = struct{}{}
	}

	s := &Server{
		Fleet:    reg,
		Bookings: bookings,
		Ratings:  ratings,
		WSReg:    wsreg,
		tokens:   tokens,
		logger:   logger,
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/cars", s.handleListCars).Methods("GET")
	s.mux.HandleFunc("/cars/nearests/{latitude}/{longitude}", s.handleNearest).Methods("GET")
	s.mux.HandleFunc("/cars/votes", s.handleVote).Methods("POST")
	s.mux.HandleFunc("/cars/{id}", s.handleGetCar).Methods("GET")
	s.mux.HandleFunc("/prices/{userLatitude}/{userLongitude}/{destinationLatitude}/{destinationLongitude}", s.handlePrice).Methods("GET")
	s.mux.HandleFunc("/reservations", s.handleCreateReservation).Methods("POST")
	s.mux.HandleFunc("/reservations/{resId}", s.handleCancelReservation).Methods("DELETE")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws/{car_id}", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleListCars(w http.ResponseWriter, r *http.Request) {
	var filter *bool
	switch r.URL.Query().Get("availability") {
	case "":
	case "true":
		v := true
		filter = &v
	case "false":
		v := false
		filter = &v
	default:
		writeError(w, http.StatusBadRequest, "wrong filter value")
		return
	}
	writeJSON(w, http.StatusOK, s.Fleet.List(filter))
}

func (s *Server) handleGetCar(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	car, ok := s.Fleet.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Car not found")
		return
	}
	writeJSON(w, http.StatusOK, car)
}

func (s *Server) handleNearest(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var errs []fieldError
	lat := parseFloatVar(vars, "latitude", &errs)
	lon := parseFloatVar(vars, "longitude", &errs)
	if len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}
	cars := match.Nearest(s.Fleet, lat, lon)
	if len(cars) == 0 {
		writeError(w, http.StatusNotFound, "No cars near your position")
		return
	}
	writeJSON(w, http.StatusOK, cars)
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var errs []fieldError
	uLat := parseFloatVar(vars, "userLatitude", &errs)
	uLon := parseFloatVar(vars, "userLongitude", &errs)
	dLat := parseFloatVar(vars, "destinationLatitude", &errs)
	dLon := parseFloatVar(vars, "destinationLongitude", &errs)
	if len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}
	est := match.Estimate(uLat, uLon, dLat, dLon)
	writeJSON(w, http.StatusOK, map[string]any{
		"estimate": est,
		"message":  fmt.Sprintf("Travel estimate is %g€", est),
	})
}

func (s *Server) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CarID       string `json:"car_id"`
		User        string `json:"user"`
		Destination string `json:"destination"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var errs []fieldError
	requireField(body.CarID, "car_id", &errs)
	requireField(body.User, "user", &errs)
	requireField(body.Destination, "destination", &errs)
	if len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}
	res, err := s.Bookings.Reserve(r.Context(), body.CarID, body.User, body.Destination)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Car %s not found", body.CarID))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":     fmt.Sprintf("Car %s reserved with reservation id %s", res.CarID, res.Code),
		"reservation": res,
	})
}

func (s *Server) handleCancelReservation(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["resId"]
	res, err := s.Bookings.Cancel(r.Context(), code)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Reservation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     fmt.Sprintf("Reservation for the car %s with code %s was deleted", res.CarID, res.Code),
		"reservation": res,
	})
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CarID    string       `json:"car_id"`
		UserName string       `json:"userName"`
		Vote     *json.Number `json:"vote"`
	}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var errs []fieldError
	requireField(body.CarID, "car_id", &errs)
	requireField(body.UserName, "userName", &errs)
	if body.Vote == nil {
		errs = append(errs, fieldError{Field: "vote", Message: "required"})
	}
	if len(errs) > 0 {
		writeValidationErrors(w, errs)
		return
	}
	score, err := body.Vote.Float64()
	if err != nil {
		writeValidationErrors(w, []fieldError{{Field: "vote", Message: "must be numeric"}})
		return
	}
	car, err := s.Ratings.Cast(r.Context(), body.CarID, body.UserName, score)
	if err != nil {
		switch {
		case errors.Is(err, rating.ErrInvalidScore):
			writeValidationErrors(w, []fieldError{{Field: "vote", Message: "must be numeric"}})
		case errors.Is(err, rating.ErrNotFound):
			writeError(w, http.StatusNotFound, fmt.Sprintf("Driver with code %s not found", body.CarID))
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": fmt.Sprintf("Driver with code %s was successfully voted with %g", body.CarID, score),
		"car":     car,
	})
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	carID := mux.Vars(r)["car_id"]
	if _, ok := s.Fleet.Get(carID); !ok {
		writeError(w, http.StatusNotFound, "Car not found")
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", 400)
		return
	}
	s.WSReg.Add(carID, conn)
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func parseFloatVar(vars map[string]string, name string, errs *[]fieldError) float64 {
	f, err := strconv.ParseFloat(vars[name], 64)
	if err != nil {
		*errs = append(*errs, fieldError{Field: name, Message: "must be numeric"})
		return 0
	}
	return f
}

func requireField(v, name string, errs *[]fieldError) {
	if v == "" {
		*errs = append(*errs, fieldError{Field: name, Message: "required"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeValidationErrors(w http.ResponseWriter, errs []fieldError) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"errors": errs})
}
