package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/eventhub/apiserver/types"
)

// BookingRepository handles persistence for bookings, including the seat
// accounting on the events table.
type BookingRepository struct {
	db *sql.DB
}

func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create inserts a confirmed booking and claims its seats in one
// transaction. The seat update only matches while enough seats remain, so
// two concurrent bookings cannot oversell the event.
func (r *BookingRepository) Create(ctx context.Context, booking types.Booking) (types.Booking, error) {
	now := time.Now()
	booking.CreatedAt = now
	booking.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Booking{}, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const claimQuery = `
		UPDATE events
		SET booked = booked + $1, updated_at = $2
		WHERE id = $3
			AND status = 'published'
			AND booked + $1 <= capacity`
	result, err := tx.ExecContext(ctx, claimQuery, booking.Quantity, now, booking.EventID)
	if err != nil {
		return types.Booking{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Booking{}, err
	}
	if affected == 0 {
		// Either the event is missing/unpublished or the seats ran out.
		var exists bool
		const existsQuery = `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1 AND status = 'published')`
		if err := tx.QueryRowContext(ctx, existsQuery, booking.EventID).Scan(&exists); err != nil {
			return types.Booking{}, err
		}
		if !exists {
			return types.Booking{}, ErrNotFound
		}
		return types.Booking{}, ErrSoldOut
	}

	const insertQuery = `
		INSERT INTO bookings (event_id, user_id, quantity, total_cents, reference, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := tx.QueryRowContext(
		ctx,
		insertQuery,
		booking.EventID,
		booking.UserID,
		booking.Quantity,
		booking.TotalCents,
		booking.Reference,
		booking.Status,
		booking.CreatedAt,
		booking.UpdatedAt,
	).Scan(&booking.ID); err != nil {
		return types.Booking{}, err
	}

	if err := tx.Commit(); err != nil {
		return types.Booking{}, err
	}
	return booking, nil
}

func (r *BookingRepository) Get(ctx context.Context, id int) (types.Booking, error) {
	const query = `
		SELECT id, event_id, user_id, quantity, total_cents, reference, status, created_at, updated_at
		FROM bookings
		WHERE id = $1`
	var booking types.Booking
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&booking.ID,
		&booking.EventID,
		&booking.UserID,
		&booking.Quantity,
		&booking.TotalCents,
		&booking.Reference,
		&booking.Status,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Booking{}, ErrNotFound
		}
		return types.Booking{}, err
	}
	return booking, nil
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID int) ([]types.Booking, error) {
	const query = `
		SELECT id, event_id, user_id, quantity, total_cents, reference, status, created_at, updated_at
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []types.Booking
	for rows.Next() {
		var booking types.Booking
		if err := rows.Scan(
			&booking.ID,
			&booking.EventID,
			&booking.UserID,
			&booking.Quantity,
			&booking.TotalCents,
			&booking.Reference,
			&booking.Status,
			&booking.CreatedAt,
			&booking.UpdatedAt,
		); err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return bookings, nil
}

// Cancel marks a confirmed booking as cancelled and releases its seats in
// one transaction. Only the owning user may cancel; a booking that is
// missing, foreign, or already cancelled yields ErrNotFound.
func (r *BookingRepository) Cancel(ctx context.Context, id, userID int) error {
	now := time.Now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const cancelQuery = `
		UPDATE bookings
		SET status = 'cancelled', updated_at = $1
		WHERE id = $2 AND user_id = $3 AND status = 'confirmed'
		RETURNING event_id, quantity`
	var eventID, quantity int
	err = tx.QueryRowContext(ctx, cancelQuery, now, id, userID).Scan(&eventID, &quantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	const releaseQuery = `
		UPDATE events
		SET booked = GREATEST(booked - $1, 0), updated_at = $2
		WHERE id = $3`
	if _, err := tx.ExecContext(ctx, releaseQuery, quantity, now, eventID); err != nil {
		return err
	}

	return tx.Commit()
}

// PublisherEventStats is one dashboard row: booking totals for a single
// event owned by the publisher.
type PublisherEventStats struct {
	EventID      int    `json:"event_id"`
	Title        string `json:"title"`
	Status       string `json:"status"`
	Capacity     int    `json:"capacity"`
	TicketsSold  int    `json:"tickets_sold"`
	Bookings     int    `json:"bookings"`
	RevenueCents int64  `json:"revenue_cents"`
}

// StatsByPublisher aggregates confirmed bookings per event for every
// listing owned by the publisher, including events with no bookings yet.
func (r *BookingRepository) StatsByPublisher(ctx context.Context, publisherID int) ([]PublisherEventStats, error) {
	const query = `
		SELECT e.id, e.title, e.status, e.capacity,
			COALESCE(SUM(b.quantity), 0),
			COUNT(b.id),
			COALESCE(SUM(b.total_cents), 0)
		FROM events e
		LEFT JOIN bookings b ON b.event_id = e.id AND b.status = 'confirmed'
		WHERE e.publisher_id = $1
		GROUP BY e.id, e.title, e.status, e.capacity
		ORDER BY e.id`
	rows, err := r.db.QueryContext(ctx, query, publisherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []PublisherEventStats
	for rows.Next() {
		var row PublisherEventStats
		if err := rows.Scan(
			&row.EventID,
			&row.Title,
			&row.Status,
			&row.Capacity,
			&row.TicketsSold,
			&row.Bookings,
			&row.RevenueCents,
		); err != nil {
			return nil, err
		}
		stats = append(stats, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stats, nil
}
