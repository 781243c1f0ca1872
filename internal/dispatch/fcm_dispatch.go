package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/ride-pooling/internal/models"
)

// FCMDispatcher posts match notices to the FCM HTTPv1 endpoint. The mobile
// driver app listens for `ride_match` data messages.
type FCMDispatcher struct {
	Endpoint string
	Key      string
	Client   *http.Client
}

func NewFCMDispatcher(endpoint, key string) *FCMDispatcher {
	return &FCMDispatcher{Endpoint: endpoint, Key: key, Client: &http.Client{Timeout: 3 * time.Second}}
}

func (f *FCMDispatcher) Notify(requestID string, n models.MatchNotice) error {
	body := map[string]interface{}{
		"message": map[string]interface{}{
			"topic": "driver." + n.DriverID,
			"data": map[string]string{
				"type":       "ride_match",
				"request_id": requestID,
				"offer_id":   n.OfferID,
				"score":      fmt.Sprintf("%.3f", n.Score),
			},
		},
	}
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, f.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if f.Key != "" {
		req.Header.Set("Authorization", "Bearer "+f.Key)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("fcm status %d", resp.StatusCode)
	}
	return nil
}
