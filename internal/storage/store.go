package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/example/ride-pooling/internal/models"
)

var ErrBookingNotFound = errors.New("booking not found")

// OfferStore lists driver-posted trip offers that can serve a request.
type OfferStore interface {
	SaveOffer(ctx context.Context, o models.CandidateOffer) error
	ListOpenOffers(ctx context.Context, from, to time.Time) ([]models.CandidateOffer, error)
}

// BookingStore persists rider bookings against matched offers.
type BookingStore interface {
	SaveBooking(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	UpdateBooking(ctx context.Context, b *models.Booking) error
}

type MemoryStore struct {
	mu       sync.RWMutex
	offers   map[string]models.CandidateOffer
	bookings map[string]*models.Booking
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		offers:   make(map[string]models.CandidateOffer),
		bookings: make(map[string]*models.Booking),
	}
}

func (m *MemoryStore) SaveOffer(ctx context.Context, o models.CandidateOffer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offers[o.ID] = o
	return nil
}

func (m *MemoryStore) ListOpenOffers(ctx context.Context, from, to time.Time) ([]models.CandidateOffer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.CandidateOffer, 0, len(m.offers))
	for _, o := range m.offers {
		if o.AvailableSeats <= 0 {
			continue
		}
		if o.DepartureTime.Before(from) || o.DepartureTime.After(to) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (m *MemoryStore) SaveBooking(ctx context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = b
	return nil
}

func (m *MemoryStore) UpdateBooking(ctx context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = b
	return nil
}

func (m *MemoryStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	return b, nil
}
