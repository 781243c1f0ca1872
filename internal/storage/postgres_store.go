package storage

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/ride-pooling/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) SaveOffer(ctx context.Context, o models.CandidateOffer) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO offers(id, driver_id, origin_lat, origin_lon, dest_lat, dest_lon, departure_time, available_seats, price_per_seat, driver_rating, vehicle_make, vehicle_model, vehicle_year)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO UPDATE SET available_seats=EXCLUDED.available_seats, price_per_seat=EXCLUDED.price_per_seat, departure_time=EXCLUDED.departure_time`,
		o.ID, o.DriverID, o.Origin.Lat, o.Origin.Lon, o.Destination.Lat, o.Destination.Lon,
		o.DepartureTime, o.AvailableSeats, o.PricePerSeat, o.DriverRating,
		o.Vehicle.Make, o.Vehicle.Model, o.Vehicle.Year)
	return err
}

func (p *PostgresStore) ListOpenOffers(ctx context.Context, from, to time.Time) ([]models.CandidateOffer, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id, driver_id, origin_lat, origin_lon, dest_lat, dest_lon, departure_time, available_seats, price_per_seat, COALESCE(driver_rating, 5.0), vehicle_make, vehicle_model, vehicle_year
		FROM offers
		WHERE departure_time BETWEEN $1 AND $2 AND available_seats > 0
		ORDER BY departure_time`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CandidateOffer
	for rows.Next() {
		var o models.CandidateOffer
		if err := rows.Scan(&o.ID, &o.DriverID, &o.Origin.Lat, &o.Origin.Lon, &o.Destination.Lat, &o.Destination.Lon,
			&o.DepartureTime, &o.AvailableSeats, &o.PricePerSeat, &o.DriverRating,
			&o.Vehicle.Make, &o.Vehicle.Model, &o.Vehicle.Year); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (p *PostgresStore) SaveBooking(ctx context.Context, b *models.Booking) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO bookings(id, rider_id, offer_id, driver_id, seats, fare_amount, payment_intent_id, status, created_at, updated_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		b.ID, b.RiderID, b.OfferID, b.DriverID, b.Seats, b.FareAmount, b.PaymentIntentID, b.Status, b.CreatedAt, b.UpdatedAt)
	return err
}

func (p *PostgresStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	var b models.Booking
	err := p.db.QueryRowContext(ctx, `SELECT id, rider_id, offer_id, driver_id, seats, fare_amount, COALESCE(payment_intent_id, ''), status, created_at, updated_at
		FROM bookings WHERE id=$1`, id).
		Scan(&b.ID, &b.RiderID, &b.OfferID, &b.DriverID, &b.Seats, &b.FareAmount, &b.PaymentIntentID, &b.Status, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (p *PostgresStore) UpdateBooking(ctx context.Context, b *models.Booking) error {
	_, err := p.db.ExecContext(ctx, `UPDATE bookings SET status=$1, payment_intent_id=$2, updated_at=$3 WHERE id=$4`,
		b.Status, b.PaymentIntentID, time.Now(), b.ID)
	return err
}
