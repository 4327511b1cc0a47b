package dispatch

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/example/fleet-booking/internal/models"
)

// PushDispatcher delivers booking events to the driver for a car: the
// WebSocket session first when one is connected, otherwise a webhook POST
// to the configured endpoint. Either leg failing is non-fatal to the
// booking itself.
type PushDispatcher struct {
	Endpoint string // optional webhook fallback
	Client   *http.Client
	WS       *WSRegistry
}

func NewPushDispatcher(endpoint string, ws *WSRegistry) *PushDispatcher {
	return &PushDispatcher{Endpoint: endpoint, Client: &http.Client{Timeout: 3 * time.Second}, WS: ws}
}

func (p *PushDispatcher) Notify(carID string, ev models.BookingEvent) error {
	if p.WS != nil {
		if err := p.WS.Notify(carID, ev); err == nil {
			return nil
		}
	}
	if p.Endpoint == "" {
		return ErrNoSession
	}
	b, _ := json.Marshal(map[string]interface{}{"car_id": carID, "event": ev})
	resp, err := p.Client.Post(p.Endpoint, "application/json", bytes.NewReader(b))
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
