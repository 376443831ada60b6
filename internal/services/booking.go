package services

import (
	"context"
	"errors"

	"github.com/eventhub/apiserver/internal/store"
	"github.com/eventhub/apiserver/types"
	"github.com/google/uuid"
)

// ErrInvalidQuantity is returned when a booking asks for fewer than one seat.
var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// BookingRepository defines persistence operations for bookings.
type BookingRepository interface {
	Create(ctx context.Context, booking types.Booking) (types.Booking, error)
	Get(ctx context.Context, id int) (types.Booking, error)
	ListByUser(ctx context.Context, userID int) ([]types.Booking, error)
	Cancel(ctx context.Context, id, userID int) error
	StatsByPublisher(ctx context.Context, publisherID int) ([]store.PublisherEventStats, error)
}

// BookingRecorder counts successful bookings.
type BookingRecorder interface {
	RecordBookingCreated(quantity int)
}

// BookingService encapsulates booking use-cases.
type BookingService struct {
	repo    BookingRepository
	events  EventRepository
	metrics BookingRecorder
}

func NewBookingService(repo BookingRepository, events EventRepository, metrics BookingRecorder) *BookingService {
	return &BookingService{repo: repo, events: events, metrics: metrics}
}

// Create books seats on the event for the user. The price is captured at
// booking time; the store claims the seats atomically and reports
// store.ErrSoldOut when too few remain.
func (s *BookingService) Create(ctx context.Context, userID, eventID, quantity int) (types.Booking, error) {
	if quantity < 1 {
		return types.Booking{}, ErrInvalidQuantity
	}

	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		return types.Booking{}, err
	}
	if event.Status != types.EventStatusPublished {
		return types.Booking{}, store.ErrNotFound
	}

	booking := types.Booking{
		EventID:    eventID,
		UserID:     userID,
		Quantity:   quantity,
		TotalCents: event.PriceCents * int64(quantity),
		Reference:  uuid.NewString(),
		Status:     types.BookingStatusConfirmed,
	}
	created, err := s.repo.Create(ctx, booking)
	if err != nil {
		return types.Booking{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordBookingCreated(quantity)
	}
	return created, nil
}

func (s *BookingService) Get(ctx context.Context, id int) (types.Booking, error) {
	return s.repo.Get(ctx, id)
}

func (s *BookingService) ListByUser(ctx context.Context, userID int) ([]types.Booking, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Cancel releases the booking's seats. Only the owning user may cancel.
func (s *BookingService) Cancel(ctx context.Context, id, userID int) error {
	return s.repo.Cancel(ctx, id, userID)
}

// StatsByPublisher aggregates booking totals per event for the publisher's
// dashboard.
func (s *BookingService) StatsByPublisher(ctx context.Context, publisherID int) ([]store.PublisherEventStats, error) {
	return s.repo.StatsByPublisher(ctx, publisherID)
}
