package dispatch

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/ride-pooling/internal/models"
)

type fakeDispatcher struct {
	err   error
	calls int
}

func (f *fakeDispatcher) Notify(requestID string, n models.MatchNotice) error {
	f.calls++
	return f.err
}

func testNotice() models.MatchNotice {
	return models.MatchNotice{RequestID: "req1", RiderID: "r1", OfferID: "o1", DriverID: "d1", Score: 0.9, Seats: 1}
}

func TestFallbackStopsAtFirstSuccess(t *testing.T) {
	failing := &fakeDispatcher{err: errors.New("down")}
	working := &fakeDispatcher{}
	unreached := &fakeDispatcher{}

	if err := (Fallback{failing, working, unreached}).Notify("req1", testNotice()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if failing.calls != 1 || working.calls != 1 || unreached.calls != 0 {
		t.Fatalf("wrong call pattern: %d/%d/%d", failing.calls, working.calls, unreached.calls)
	}
}

func TestFallbackReturnsLastError(t *testing.T) {
	last := errors.New("still down")
	f := Fallback{&fakeDispatcher{err: errors.New("down")}, &fakeDispatcher{err: last}}
	if err := f.Notify("req1", testNotice()); err != last {
		t.Fatalf("expected last error, got %v", err)
	}
}

func TestPushDispatcherFallsBackToHTTP(t *testing.T) {
	var got struct {
		RequestID string             `json:"request_id"`
		Notice    models.MatchNotice `json:"notice"`
	}
	received := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = true
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad push body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// registry has no session for the driver, so the POST path must carry it
	p := NewPushDispatcher(srv.URL, NewWSRegistry())
	if err := p.Notify("req1", testNotice()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !received {
		t.Fatal("push endpoint was never called")
	}
	if got.RequestID != "req1" || got.Notice.OfferID != "o1" {
		t.Fatalf("push payload wrong: %+v", got)
	}
}

func TestPushDispatcherNoSessionNoEndpoint(t *testing.T) {
	p := NewPushDispatcher("", NewWSRegistry())
	if err := p.Notify("req1", testNotice()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestWSRegistryNotifyUnknownDriver(t *testing.T) {
	r := NewWSRegistry()
	if err := r.Notify("req1", testNotice()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestWSRegistryRemove(t *testing.T) {
	r := NewWSRegistry()
	r.Add("d1", nil)
	r.Remove("d1")
	if err := r.Notify("req1", testNotice()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession after remove, got %v", err)
	}
}
