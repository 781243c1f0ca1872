package dispatch

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/example/ride-pooling/internal/models"
)

// Dispatcher delivers a match notice to the offering driver.
type Dispatcher interface {
	Notify(requestID string, n models.MatchNotice) error
}

// Fallback tries each dispatcher in order until one delivers.
type Fallback []Dispatcher

func (f Fallback) Notify(requestID string, n models.MatchNotice) error {
	var err error
	for _, d := range f {
		if err = d.Notify(requestID, n); err == nil {
			return nil
		}
	}
	return err
}

// PushDispatcher tries the driver's live websocket session first and falls
// back to an HTTP POST to the push provider endpoint.
type PushDispatcher struct {
	Endpoint string
	Client   *http.Client
	WS       *WSRegistry
}

func NewPushDispatcher(endpoint string, ws *WSRegistry) *PushDispatcher {
	return &PushDispatcher{Endpoint: endpoint, Client: &http.Client{Timeout: 3 * time.Second}, WS: ws}
}

func (p *PushDispatcher) Notify(requestID string, n models.MatchNotice) error {
	if p.WS != nil {
		if err := p.WS.Notify(requestID, n); err == nil {
			return nil
		}
	}
	if p.Endpoint == "" {
		return ErrNoSession
	}
	b, err := json.Marshal(map[string]interface{}{"request_id": requestID, "notice": n})
	if err != nil {
		return err
	}
	resp, err := p.Client.Post(p.Endpoint, "application/json", bytes.NewReader(b))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}
